package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/rkondo/kaiwa/internal/logger"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "kaiwa.db"), logger.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLessonRepo_VersionsAppendOnly(t *testing.T) {
	s := testStore(t)
	repo := s.LessonRepo()
	ctx := context.Background()

	v1, err := repo.SaveNewVersion(ctx, NewLessonData{
		ID: uuid.New(), CanDoID: "JF:105", Metalanguage: "en",
		Model: "mock", Payload: []byte(`{"cards":[]}`),
	})
	if err != nil {
		t.Fatalf("save v1: %v", err)
	}
	if v1 != 1 {
		t.Fatalf("expected version 1, got %d", v1)
	}

	v2, err := repo.SaveNewVersion(ctx, NewLessonData{
		ID: uuid.New(), CanDoID: "JF:105", Metalanguage: "en",
		Model: "mock", Payload: []byte(`{"cards":["x"]}`),
	})
	if err != nil {
		t.Fatalf("save v2: %v", err)
	}
	if v2 != 2 {
		t.Fatalf("expected version 2, got %d", v2)
	}

	// Prior version is untouched.
	rec, err := repo.Get(ctx, "JF:105", 1)
	if err != nil {
		t.Fatalf("get v1: %v", err)
	}
	if string(rec.Payload) != `{"cards":[]}` {
		t.Fatalf("v1 payload mutated: %s", rec.Payload)
	}

	latest, err := repo.Latest(ctx, "JF:105")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Version != 2 {
		t.Fatalf("expected latest version 2, got %d", latest.Version)
	}

	versions, err := repo.ListVersions(ctx, "JF:105")
	if err != nil || len(versions) != 2 {
		t.Fatalf("list versions: err=%v len=%d", err, len(versions))
	}

	if _, err := repo.Get(ctx, "JF:999", 1); !errors.Is(err, ErrLessonNotFound) {
		t.Fatalf("expected ErrLessonNotFound, got %v", err)
	}
}

func TestSessionRepo_GetOrCreateAndFlush(t *testing.T) {
	s := testStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()
	lessonID := uuid.New()

	sess, err := repo.GetOrCreate(ctx, "local", lessonID)
	if err != nil {
		t.Fatalf("get-or-create: %v", err)
	}
	if sess.StageIdx != 0 || string(sess.TurnHistory) != "[]" {
		t.Fatalf("new session not at stage 0: %+v", sess)
	}

	// Second call returns the same identity.
	again, err := repo.GetOrCreate(ctx, "local", lessonID)
	if err != nil {
		t.Fatalf("get-or-create again: %v", err)
	}
	if again.ID != sess.ID {
		t.Fatal("expected same session id")
	}

	if err := repo.SaveProgress(ctx, sess.ID, 2, []byte(`[{"learner_text":"これは私の母です。"}]`)); err != nil {
		t.Fatalf("save progress: %v", err)
	}

	saved, err := repo.Find(ctx, "local", lessonID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if saved.StageIdx != 2 {
		t.Fatalf("expected stage 2, got %d", saved.StageIdx)
	}

	stamp, err := repo.Flush(ctx, sess.ID)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if stamp.IsZero() {
		t.Fatal("expected flush timestamp")
	}

	flushed, err := repo.Find(ctx, "local", lessonID)
	if err != nil {
		t.Fatalf("find after flush: %v", err)
	}
	if flushed.ID != sess.ID {
		t.Fatal("flush must keep session identity")
	}
	if flushed.StageIdx != 0 || string(flushed.TurnHistory) != "[]" {
		t.Fatalf("flush did not reset progress: %+v", flushed)
	}
	if flushed.FlushedAt == nil {
		t.Fatal("expected flushed_at stamp")
	}
}

func TestSessionRepo_FlushUnknownSession(t *testing.T) {
	s := testStore(t)
	repo := s.SessionRepo()

	_, err := repo.Flush(context.Background(), uuid.New())
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestEventRepo_AppendAndQuery(t *testing.T) {
	s := testStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	for _, purpose := range []string{"stage:plan", "stage:plan", "guided-turn"} {
		if err := repo.AppendLLMRequest(ctx, LLMRequestEventData{
			Provider: "mock", Model: "mock", Purpose: purpose, Success: true,
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := repo.QueryLLMEvents(ctx, QueryOpts{})
	if err != nil || len(all) != 3 {
		t.Fatalf("query all: err=%v len=%d", err, len(all))
	}
	// Newest first.
	if all[0].Purpose != "guided-turn" {
		t.Fatalf("expected newest first, got %q", all[0].Purpose)
	}

	plans, err := repo.QueryLLMEvents(ctx, QueryOpts{Purpose: "stage:plan"})
	if err != nil || len(plans) != 2 {
		t.Fatalf("query filtered: err=%v len=%d", err, len(plans))
	}
}
