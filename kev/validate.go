package kev

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationError reports feed bytes that do not conform to the catalog
// schema. The sync must not parse or apply anything after it.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("KEV feed failed schema validation: %s", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks feed bytes against the given JSON Schema document.
func Validate(feed, schema []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("kev_schema.json", bytes.NewReader(schema)); err != nil {
		return &ValidationError{Err: err}
	}
	sch, err := compiler.Compile("kev_schema.json")
	if err != nil {
		return &ValidationError{Err: err}
	}

	var doc interface{}
	if err := json.Unmarshal(feed, &doc); err != nil {
		return &ValidationError{Err: err}
	}
	if err := sch.Validate(doc); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}
