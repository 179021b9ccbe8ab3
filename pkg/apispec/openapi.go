package apispec

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-openapi/spec"
	"gopkg.in/yaml.v3"
)

// responseSchema is the schema of an operation's default success response.
type responseSchema = spec.Schema

// maxSynthesisDepth bounds schema recursion when generating synthetic values.
const maxSynthesisDepth = 8

// OpenAPIParser parses Swagger/OpenAPI 2.0 documents. Non-OpenAPI spec types
// yield zero operations; the mock layer then falls back to fixture-only
// matching.
type OpenAPIParser struct{}

// NewParser returns the default Parser implementation.
func NewParser() Parser {
	return OpenAPIParser{}
}

// Detect implements Parser.
func (OpenAPIParser) Detect(raw []byte) SpecType {
	return Detect(raw)
}

// Operations lists every (method, path) operation the spec declares, with
// the lowest 2xx response as the operation's default success response.
func (p OpenAPIParser) Operations(raw []byte) ([]Operation, error) {
	if Detect(raw) != SpecTypeOpenAPI {
		return nil, nil
	}

	doc, err := loadSwagger(raw)
	if err != nil {
		return nil, err
	}
	if doc.Paths == nil {
		return nil, nil
	}

	var ops []Operation
	for path, item := range doc.Paths.Paths {
		for method, op := range map[string]*spec.Operation{
			http.MethodGet:     item.Get,
			http.MethodPut:     item.Put,
			http.MethodPost:    item.Post,
			http.MethodDelete:  item.Delete,
			http.MethodOptions: item.Options,
			http.MethodHead:    item.Head,
			http.MethodPatch:   item.Patch,
		} {
			if op == nil {
				continue
			}
			status, schema := successResponse(op)
			ops = append(ops, Operation{
				Method: method,
				Path:   path,
				ID:     op.ID,
				Status: status,
				schema: schema,
			})
		}
	}

	// Map iteration order is random; keep the operation list stable.
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Path != ops[j].Path {
			return ops[i].Path < ops[j].Path
		}
		return ops[i].Method < ops[j].Method
	})

	return ops, nil
}

// Synthesize generates a schema-conformant synthetic value for an operation
// with no fixture. Operations without a response schema yield an empty object.
func (OpenAPIParser) Synthesize(op Operation) (any, error) {
	if op.schema == nil {
		return map[string]any{}, nil
	}
	return synthesizeSchema(op.schema, 0), nil
}

// loadSwagger parses a JSON or YAML Swagger document and expands internal
// $ref pointers so response schemas are self-contained.
func loadSwagger(raw []byte) (*spec.Swagger, error) {
	doc := &spec.Swagger{}
	if err := json.Unmarshal(raw, doc); err != nil {
		// Try YAML: decode to a generic document, round-trip through JSON.
		var generic map[string]any
		if yamlErr := yaml.Unmarshal(raw, &generic); yamlErr != nil {
			return nil, fmt.Errorf("parse spec document: %w", err)
		}
		jsonBytes, err := json.Marshal(generic)
		if err != nil {
			return nil, fmt.Errorf("convert spec document: %w", err)
		}
		if err := json.Unmarshal(jsonBytes, doc); err != nil {
			return nil, fmt.Errorf("parse spec document: %w", err)
		}
	}

	if err := spec.ExpandSpec(doc, nil); err != nil {
		return nil, fmt.Errorf("expand spec refs: %w", err)
	}
	return doc, nil
}

// successResponse picks the lowest 2xx status declared by the operation,
// falling back to the default response, then to a bare 200.
func successResponse(op *spec.Operation) (int, *spec.Schema) {
	if op.Responses == nil {
		return http.StatusOK, nil
	}

	codes := make([]int, 0, len(op.Responses.StatusCodeResponses))
	for code := range op.Responses.StatusCodeResponses {
		if code >= 200 && code < 300 {
			codes = append(codes, code)
		}
	}
	if len(codes) > 0 {
		sort.Ints(codes)
		resp := op.Responses.StatusCodeResponses[codes[0]]
		return codes[0], resp.Schema
	}

	if op.Responses.Default != nil {
		return http.StatusOK, op.Responses.Default.Schema
	}
	return http.StatusOK, nil
}

// synthesizeSchema walks a schema producing an example value: explicit
// example > default > first enum member > type-derived sample.
func synthesizeSchema(s *spec.Schema, depth int) any {
	if s == nil || depth > maxSynthesisDepth {
		return nil
	}

	if s.Example != nil {
		return s.Example
	}
	if s.Default != nil {
		return s.Default
	}
	if len(s.Enum) > 0 {
		return s.Enum[0]
	}

	switch {
	case s.Type.Contains("object") || len(s.Properties) > 0:
		obj := make(map[string]any, len(s.Properties))
		for name := range s.Properties {
			prop := s.Properties[name]
			obj[name] = synthesizeSchema(&prop, depth+1)
		}
		return obj
	case s.Type.Contains("array"):
		if s.Items != nil && s.Items.Schema != nil {
			return []any{synthesizeSchema(s.Items.Schema, depth+1)}
		}
		return []any{}
	case s.Type.Contains("string"):
		return sampleString(s.Format)
	case s.Type.Contains("integer"):
		return 0
	case s.Type.Contains("number"):
		return 0.0
	case s.Type.Contains("boolean"):
		return true
	}

	return map[string]any{}
}

// sampleString returns a format-appropriate sample string value.
func sampleString(format string) string {
	switch format {
	case "date-time":
		return "2024-01-01T00:00:00Z"
	case "date":
		return "2024-01-01"
	case "uuid":
		return "00000000-0000-0000-0000-000000000000"
	case "email":
		return "user@example.com"
	case "uri":
		return "https://example.com"
	default:
		return "string"
	}
}
