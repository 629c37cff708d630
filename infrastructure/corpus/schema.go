package corpus

import (
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// corpusSchema describes a corpus document after YAML documents have been
// converted to JSON.
const corpusSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "required": ["expressions"],
  "properties": {
    "application": {"type": "string"},
    "language": {"type": "string"},
    "expressions": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["text", "intent"],
        "properties": {
          "text": {"type": "string", "minLength": 1},
          "intent": {"type": "string", "minLength": 1},
          "entities": {
            "type": "array",
            "items": {
              "type": "object",
              "additionalProperties": false,
              "required": ["role", "type", "start", "end"],
              "properties": {
                "role": {"type": "string", "minLength": 1},
                "type": {"type": "string", "minLength": 1},
                "start": {"type": "integer", "minimum": 0},
                "end": {"type": "integer", "minimum": 1}
              }
            }
          }
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// schema returns the compiled corpus schema.
func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = jsonschema.CompileString("corpus.schema.json", corpusSchema)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile corpus schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}
