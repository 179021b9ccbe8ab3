// Package apispec parses API specification documents: detecting the spec
// type from raw content, listing the operations a spec declares, and
// generating schema-conformant synthetic values for operations that have no
// recorded fixture.
package apispec

import (
	"bytes"
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// SpecType identifies the kind of API specification document.
type SpecType string

const (
	SpecTypeOpenAPI  SpecType = "openapi"
	SpecTypeGraphQL  SpecType = "graphql"
	SpecTypeAsyncAPI SpecType = "asyncapi"
	SpecTypeGRPC     SpecType = "grpc"
	SpecTypeSOAP     SpecType = "soap"
	SpecTypeUnknown  SpecType = ""
)

// Operation describes a single operation declared by a spec: an HTTP method
// and templated path, plus the default success response.
type Operation struct {
	Method string
	Path   string
	ID     string
	Status int

	schema *responseSchema
}

// Parser is the narrow contract the rest of the system consumes: detect the
// spec type, list operations, and synthesize a response body for an
// operation without fixtures.
type Parser interface {
	Detect(raw []byte) SpecType
	Operations(raw []byte) ([]Operation, error)
	Synthesize(op Operation) (any, error)
}

// Detect sniffs the spec type from raw document content. JSON and YAML
// documents are inspected for openapi/swagger/asyncapi markers; GraphQL SDL,
// protobuf service definitions, and WSDL are recognized by keyword.
func Detect(raw []byte) SpecType {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return SpecTypeUnknown
	}

	if doc := parseDocument(trimmed); doc != nil {
		if _, ok := doc["openapi"]; ok {
			return SpecTypeOpenAPI
		}
		if _, ok := doc["swagger"]; ok {
			return SpecTypeOpenAPI
		}
		if _, ok := doc["asyncapi"]; ok {
			return SpecTypeAsyncAPI
		}
	}

	text := string(trimmed)
	switch {
	case strings.Contains(text, "<definitions") || strings.Contains(text, "wsdl:definitions"):
		return SpecTypeSOAP
	case strings.Contains(text, "type Query") || strings.Contains(text, "schema {"):
		return SpecTypeGraphQL
	case strings.Contains(text, "syntax =") && strings.Contains(text, "service "):
		return SpecTypeGRPC
	}

	return SpecTypeUnknown
}

// parseDocument attempts to interpret raw content as a JSON or YAML mapping.
// Returns nil if the content is neither.
func parseDocument(raw []byte) map[string]any {
	var doc map[string]any
	if json.Unmarshal(raw, &doc) == nil {
		return doc
	}
	if yaml.Unmarshal(raw, &doc) == nil {
		return doc
	}
	return nil
}
