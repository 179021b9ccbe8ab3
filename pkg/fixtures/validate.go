package fixtures

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// fixtureDataSchema is the structural schema every fixture data payload must
// satisfy: a request shape and a response shape with a valid HTTP status.
const fixtureDataSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["request", "response"],
	"properties": {
		"request": {
			"type": "object",
			"properties": {
				"method": {"type": "string"},
				"path": {"type": "string"},
				"headers": {"type": "object"},
				"query": {"type": "object"},
				"body": {}
			}
		},
		"response": {
			"type": "object",
			"required": ["status"],
			"properties": {
				"status": {"type": "integer", "minimum": 100, "maximum": 599},
				"headers": {"type": "object"},
				"body": {}
			}
		}
	}
}`

var dataSchema = jsonschema.MustCompileString("fixture-data.schema.json", fixtureDataSchema)

// ValidateData checks a fixture data payload against the structural schema.
func ValidateData(data map[string]any) error {
	if data == nil {
		return fmt.Errorf("fixture data is required")
	}
	// The schema validator wants plain decoded-JSON values; map[string]any
	// from a JSON decode already is one.
	if err := dataSchema.Validate(map[string]any(data)); err != nil {
		return fmt.Errorf("fixture data is invalid: %w", err)
	}
	return nil
}
