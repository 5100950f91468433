package repair

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rkondo/kaiwa/internal/llm"
)

var greetingSchema = &llm.Schema{
	Name:        "greeting",
	Description: "test schema",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text":  map[string]any{"type": "string"},
			"words": map[string]any{"type": "integer"},
		},
		"required": []any{"text", "words"},
	},
}

func testConfig() Config {
	return Config{MaxRepair: 2, MaxTokens: 256, Temperature: 0}
}

func malformed(n int) []llm.MockResponse {
	out := make([]llm.MockResponse, n)
	for i := range out {
		out[i] = llm.MockResponse{Content: json.RawMessage(`{"text": "こんにちは"`)} // unterminated
	}
	return out
}

func TestLoop_ValidFirstAttempt(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Content: json.RawMessage(`{"text":"こんにちは","words":1}`)},
	)
	loop := New(mock, testConfig())

	res, err := loop.Generate(context.Background(), greetingSchema, "sys", "make a greeting")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", res.Attempts)
	}
	if !res.Trace[0].OK {
		t.Fatal("expected successful trace entry")
	}
}

func TestLoop_RepairWithinBudget(t *testing.T) {
	// k failures then valid: succeeds iff k <= MaxRepair.
	for k := 0; k <= 2; k++ {
		responses := malformed(k)
		responses = append(responses, llm.MockResponse{Content: json.RawMessage(`{"text":"やあ","words":1}`)})
		mock := llm.NewMockProvider(responses...)
		loop := New(mock, testConfig())

		res, err := loop.Generate(context.Background(), greetingSchema, "sys", "greet")
		if err != nil {
			t.Fatalf("k=%d: unexpected error: %v", k, err)
		}
		if res.Attempts != k+1 {
			t.Fatalf("k=%d: expected %d attempts, got %d", k, k+1, res.Attempts)
		}
	}
}

func TestLoop_ExhaustsBeyondBudget(t *testing.T) {
	responses := malformed(3)
	responses = append(responses, llm.MockResponse{Content: json.RawMessage(`{"text":"やあ","words":1}`)})
	mock := llm.NewMockProvider(responses...)
	loop := New(mock, testConfig())

	_, err := loop.Generate(context.Background(), greetingSchema, "sys", "greet")
	var exhausted *ErrGenerationExhausted
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ErrGenerationExhausted, got: %v", err)
	}
	if exhausted.Attempts != 3 {
		t.Fatalf("expected 3 attempts recorded, got %d", exhausted.Attempts)
	}
	if mock.CallCount() != 3 {
		t.Fatalf("expected exactly 3 provider calls, got %d", mock.CallCount())
	}
	var parse *ErrParseFailure
	if !errors.As(exhausted.LastErr, &parse) {
		t.Fatalf("expected last error to be a parse failure, got: %v", exhausted.LastErr)
	}
}

func TestLoop_SchemaFailureQuotesPath(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Content: json.RawMessage(`{"text":"こんにちは","words":"one"}`)},
		llm.MockResponse{Content: json.RawMessage(`{"text":"こんにちは","words":1}`)},
	)
	loop := New(mock, testConfig())

	res, err := loop.Generate(context.Background(), greetingSchema, "sys", "greet")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", res.Attempts)
	}

	// The repair prompt must quote the offending path.
	second := mock.Calls[1].Messages[0].Content
	if !strings.Contains(second, "/words") {
		t.Fatalf("repair prompt does not quote offending path:\n%s", second)
	}
	if !strings.Contains(second, "violated the required schema") {
		t.Fatalf("repair prompt missing schema-failure wording:\n%s", second)
	}
}

func TestLoop_ParseFailurePromptDiffers(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Content: json.RawMessage(`not json at all`)},
		llm.MockResponse{Content: json.RawMessage(`{"text":"やあ","words":1}`)},
	)
	loop := New(mock, testConfig())

	if _, err := loop.Generate(context.Background(), greetingSchema, "sys", "greet"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := mock.Calls[1].Messages[0].Content
	if !strings.Contains(second, "not valid JSON") {
		t.Fatalf("repair prompt missing parse-failure wording:\n%s", second)
	}
}

func TestLoop_UnknownFieldsTolerated(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Content: json.RawMessage(`{"text":"こんにちは","words":1,"mood":"cheerful"}`)},
	)
	loop := New(mock, testConfig())

	res, err := loop.Generate(context.Background(), greetingSchema, "sys", "greet")
	if err != nil {
		t.Fatalf("unknown field rejected: %v", err)
	}

	var out struct {
		Text  string `json:"text"`
		Words int    `json:"words"`
	}
	if err := Decode(res.Content, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Text != "こんにちは" || out.Words != 1 {
		t.Fatalf("unexpected decode result: %+v", out)
	}
}

func TestLoop_TransportErrorAbortsImmediately(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("down")}},
	)
	loop := New(mock, testConfig())

	_, err := loop.Generate(context.Background(), greetingSchema, "sys", "greet")
	if err == nil {
		t.Fatal("expected error")
	}
	var exhausted *ErrGenerationExhausted
	if errors.As(err, &exhausted) {
		t.Fatal("transport errors must not consume the repair budget")
	}
	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 call, got %d", mock.CallCount())
	}
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	long := strings.Repeat("あ", 1200) // 3600 bytes

	got := truncate(long, 2000)
	if !utf8.ValidString(got) {
		t.Fatal("truncated string is not valid UTF-8")
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected ellipsis suffix, got %q", got[len(got)-8:])
	}
	if len(got) > 2000+len("…") {
		t.Fatalf("truncated to %d bytes, want at most %d", len(got), 2000+len("…"))
	}

	if truncate("まだ短い", 2000) != "まだ短い" {
		t.Fatal("short strings must pass through unchanged")
	}
}
