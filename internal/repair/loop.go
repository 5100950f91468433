package repair

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/rkondo/kaiwa/internal/llm"
)

// Config controls the repair loop.
type Config struct {
	// MaxRepair is the number of extra attempts after the first failure.
	// Default 2, i.e. 3 total attempts.
	MaxRepair int

	// MaxTokens is the token budget per attempt.
	MaxTokens int

	// Temperature for generation.
	Temperature float64
}

// DefaultConfig returns the standard repair budget.
func DefaultConfig() Config {
	return Config{
		MaxRepair:   2,
		MaxTokens:   2048,
		Temperature: 0.7,
	}
}

// Attempt records one generation attempt for provenance.
type Attempt struct {
	Instruction string
	Raw         json.RawMessage
	Err         string
	OK          bool
}

// Result is a schema-valid generation plus its attempt trace.
type Result struct {
	Content  json.RawMessage
	Attempts int
	Trace    []Attempt
	Usage    llm.Usage
	Model    string
}

// Loop drives bounded generate-validate-repair cycles against a Provider.
// It owns the sole retry budget for malformed structured output; transport
// retries live below it in the provider chain.
type Loop struct {
	provider llm.Provider
	cfg      Config
}

// New creates a repair loop over the given provider.
func New(provider llm.Provider, cfg Config) *Loop {
	return &Loop{provider: provider, cfg: cfg}
}

// ModelID reports the underlying provider's model identifier.
func (l *Loop) ModelID() string { return l.provider.ModelID() }

// Generate produces JSON valid under schema, or fails with
// ErrGenerationExhausted carrying the last classification error. Provider
// transport errors abort immediately: re-prompting cannot fix a network.
func (l *Loop) Generate(ctx context.Context, schema *llm.Schema, system, instruction string) (*Result, error) {
	res := &Result{Model: l.provider.ModelID()}

	var lastErr error
	prompt := instruction

	for attempt := 0; attempt <= l.cfg.MaxRepair; attempt++ {
		req := llm.Request{
			System:      system,
			Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
			Schema:      schema,
			MaxTokens:   l.cfg.MaxTokens,
			Temperature: l.cfg.Temperature,
		}

		resp, err := l.provider.Generate(ctx, req)
		res.Attempts++
		if err != nil {
			res.Trace = append(res.Trace, Attempt{Instruction: prompt, Err: err.Error()})
			return nil, fmt.Errorf("generate %q: %w", schema.Name, err)
		}

		verr := classify(schema, resp.Content)
		if verr == nil {
			res.Trace = append(res.Trace, Attempt{Instruction: prompt, Raw: resp.Content, OK: true})
			res.Content = resp.Content
			res.Usage = resp.Usage
			if resp.Model != "" {
				res.Model = resp.Model
			}
			return res, nil
		}

		res.Trace = append(res.Trace, Attempt{Instruction: prompt, Raw: resp.Content, Err: verr.Error()})
		lastErr = verr
		prompt = repairPrompt(instruction, resp.Content, verr)
	}

	return nil, &ErrGenerationExhausted{
		Schema:   schema.Name,
		Attempts: res.Attempts,
		LastErr:  lastErr,
	}
}

// repairPrompt rebuilds the instruction with a machine-readable description
// of what went wrong. The wording differs by failure class: a parse failure
// asks for well-formed JSON, a schema failure quotes the offending path.
func repairPrompt(instruction string, raw json.RawMessage, verr error) string {
	var parse *ErrParseFailure
	if errors.As(verr, &parse) {
		return fmt.Sprintf(
			"%s\n\nYour previous response was not valid JSON.\nError: %v\nRespond again with a single well-formed JSON object and nothing else.",
			instruction, parse.Err)
	}

	var schema *ErrSchemaFailure
	if errors.As(verr, &schema) {
		return fmt.Sprintf(
			"%s\n\nYour previous response was valid JSON but violated the required schema.\nOffending location: %s\nError: %v\nPrevious response:\n%s\nRespond again with a JSON object that satisfies the schema.",
			instruction, schema.Path, schema.Err, truncate(string(raw), 2000))
	}

	return fmt.Sprintf("%s\n\nYour previous response was invalid: %v\nRespond again.", instruction, verr)
}

// truncate cuts s to at most n bytes on a rune boundary, so a sliced
// multibyte response never feeds invalid UTF-8 back into a prompt.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
