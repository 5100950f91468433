package llm

import (
	"context"
	"sync"
	"testing"

	"github.com/rkondo/kaiwa/internal/store"
)

type memEventRepo struct {
	mu     sync.Mutex
	events []store.LLMRequestEventData
}

func (r *memEventRepo) AppendLLMRequest(_ context.Context, data store.LLMRequestEventData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, data)
	return nil
}

func (r *memEventRepo) QueryLLMEvents(context.Context, store.QueryOpts) ([]store.LLMEvent, error) {
	return nil, nil
}

func (r *memEventRepo) GetLLMEvent(context.Context, uint) (*store.LLMEvent, error) {
	return nil, nil
}

func TestNewProviderMockGetsFullChain(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = "mock"
	cfg.Retry = RetryConfig{MaxAttempts: 1}
	repo := &memEventRepo{}

	p, err := NewProvider(context.Background(), cfg, repo)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if p.ModelID() != "mock" {
		t.Fatalf("expected model id mock, got %q", p.ModelID())
	}

	// an exhausted mock queue errors; the event must still be recorded
	ctx := WithPurpose(context.Background(), "stage:plan")
	_, err = p.Generate(ctx, Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err == nil {
		t.Fatal("expected error from empty mock queue")
	}

	if len(repo.events) != 1 {
		t.Fatalf("expected 1 recorded event, got %d", len(repo.events))
	}
	e := repo.events[0]
	if e.Success {
		t.Error("failed call must be recorded as unsuccessful")
	}
	if e.Purpose != "stage:plan" {
		t.Errorf("expected purpose stage:plan, got %q", e.Purpose)
	}
	if e.Provider != "mock" {
		t.Errorf("expected provider mock, got %q", e.Provider)
	}
}
