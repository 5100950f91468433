package repair

import (
	"encoding/json"
	"fmt"
)

// ErrParseFailure indicates the LLM response was not well-formed JSON.
type ErrParseFailure struct {
	Raw json.RawMessage
	Err error
}

func (e *ErrParseFailure) Error() string {
	return fmt.Sprintf("response is not valid JSON: %v", e.Err)
}

func (e *ErrParseFailure) Unwrap() error { return e.Err }

// ErrSchemaFailure indicates the response parsed but violates the target
// schema. Path is the JSON pointer of the first offending location.
type ErrSchemaFailure struct {
	Raw  json.RawMessage
	Path string
	Err  error
}

func (e *ErrSchemaFailure) Error() string {
	return fmt.Sprintf("schema validation failed at %s: %v", e.Path, e.Err)
}

func (e *ErrSchemaFailure) Unwrap() error { return e.Err }

// ErrGenerationExhausted indicates the repair budget ran out. The last
// classification error is retained for diagnostics.
type ErrGenerationExhausted struct {
	Schema   string
	Attempts int
	LastErr  error
}

func (e *ErrGenerationExhausted) Error() string {
	return fmt.Sprintf("generation exhausted for %q after %d attempts: %v",
		e.Schema, e.Attempts, e.LastErr)
}

func (e *ErrGenerationExhausted) Unwrap() error { return e.LastErr }
