// Package mockserver synthesizes mock HTTP endpoints for a service version
// from its approved fixtures and its API spec. Handler sets are built once
// per (tenant, service, version) and cached; fixture state changes
// invalidate the affected entries.
package mockserver

import "time"

// MockResponse is what the mock returns for one simulated request.
type MockResponse struct {
	Status  int
	Headers map[string]string
	Body    any
}

// cannedResponse is one fixture-backed response, retained in tie-break
// order (priority DESC, then newest first).
type cannedResponse struct {
	fixtureID string
	priority  int
	createdAt time.Time
	reqPath   string
	response  MockResponse
}

// OperationHandler serves one operation: a method plus a templated path,
// with its ordered canned responses and a synthetic fallback derived from
// the spec schema.
type OperationHandler struct {
	Method string
	Path   string

	segments  []string
	responses []cannedResponse
	synthetic *MockResponse
}

// HandlerSet is the full set of operation handlers for one resolved
// service version.
type HandlerSet struct {
	Service   string
	Version   string
	VersionID string

	handlers []OperationHandler
}

// Operations lists the method+path pairs the set can serve, for
// introspection endpoints and tests.
func (s *HandlerSet) Operations() []string {
	out := make([]string, 0, len(s.handlers))
	for _, h := range s.handlers {
		out = append(out, h.Method+" "+h.Path)
	}
	return out
}
