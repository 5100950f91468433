package repair

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rkondo/kaiwa/internal/llm"
)

// schemaCache caches compiled JSON schemas by name.
var schemaCache sync.Map // map[string]*jsonschema.Schema

// classify validates raw JSON against the given schema and returns nil on
// success, *ErrParseFailure when the text is not well-formed JSON, or
// *ErrSchemaFailure when it is well-formed but violates the schema.
func classify(schema *llm.Schema, raw json.RawMessage) error {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return &ErrParseFailure{Raw: raw, Err: err}
	}

	compiled, err := getCompiledSchema(schema)
	if err != nil {
		// A schema that won't compile is a programming error, not a model
		// failure; surface it as-is so it is never "repaired".
		return fmt.Errorf("compile schema %q: %w", schema.Name, err)
	}

	if err := compiled.Validate(parsed); err != nil {
		return &ErrSchemaFailure{
			Raw:  raw,
			Path: leafInstancePath(err),
			Err:  err,
		}
	}

	return nil
}

// leafInstancePath extracts the deepest offending instance location from a
// validation error as a JSON pointer, or "/" when unavailable.
func leafInstancePath(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return "/"
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	if len(ve.InstanceLocation) == 0 {
		return "/"
	}
	return "/" + strings.Join(ve.InstanceLocation, "/")
}

// getCompiledSchema returns a cached compiled schema or compiles and caches it.
func getCompiledSchema(schema *llm.Schema) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(schema.Name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	// The jsonschema library expects a parsed JSON value (any), not raw
	// bytes. Marshal then unmarshal to get a clean any representation.
	defBytes, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema definition: %w", err)
	}
	var defParsed any
	if err := json.Unmarshal(defBytes, &defParsed); err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	c := jsonschema.NewCompiler()
	schemaURL := fmt.Sprintf("schema://%s.json", schema.Name)
	if err := c.AddResource(schemaURL, defParsed); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}

	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	schemaCache.Store(schema.Name, compiled)
	return compiled, nil
}

// Decode is the single tolerant-decode step: unknown fields are ignored, so
// consumers always work against a strict schema post-decode while extra
// model output never causes failure.
func Decode(raw json.RawMessage, v any) error {
	return json.Unmarshal(raw, v)
}
