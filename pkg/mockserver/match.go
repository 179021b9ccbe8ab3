package mockserver

import (
	"net/http"
	"strings"
)

// MatchHeader distinguishes a synthesizer miss from a canned business 404.
const MatchHeader = "X-Mock-Match"

// Handle matches a request against the handler set and returns the
// simulated response. Unmatched requests get a 404-shaped response carrying
// "X-Mock-Match: none".
func Handle(method, path string, set *HandlerSet) MockResponse {
	segments := splitPath(path)
	for i := range set.handlers {
		h := &set.handlers[i]
		if !strings.EqualFold(h.Method, method) {
			continue
		}
		if !segmentsMatch(h.segments, segments) {
			continue
		}
		return h.respond(path)
	}

	return MockResponse{
		Status: http.StatusNotFound,
		Headers: map[string]string{
			"Content-Type": "application/json",
			MatchHeader:    "none",
		},
		Body: map[string]any{
			"error":  "no mock handler for " + method + " " + path,
			"method": method,
			"path":   path,
		},
	}
}

// respond picks the first applicable canned response: an exact recorded-path
// match wins over the tie-break order, otherwise the highest-priority newest
// fixture is returned, otherwise the synthetic fallback.
func (h *OperationHandler) respond(path string) MockResponse {
	for i := range h.responses {
		if h.responses[i].reqPath == path {
			resp := h.responses[i].response
			resp.Headers = withMatch(resp.Headers, "fixture")
			return resp
		}
	}
	if len(h.responses) > 0 {
		resp := h.responses[0].response
		resp.Headers = withMatch(resp.Headers, "fixture")
		return resp
	}
	if h.synthetic != nil {
		resp := *h.synthetic
		resp.Headers = withMatch(resp.Headers, "synthetic")
		return resp
	}
	return MockResponse{
		Status: http.StatusNotFound,
		Headers: map[string]string{
			"Content-Type": "application/json",
			MatchHeader:    "none",
		},
		Body: map[string]any{"error": "no fixture or schema for " + h.Method + " " + h.Path},
	}
}

func withMatch(headers map[string]string, kind string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}
	out[MatchHeader] = kind
	return out
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// segmentsMatch compares a templated path against a concrete one. Template
// segments wrapped in braces match any single segment.
func segmentsMatch(template, actual []string) bool {
	if len(template) != len(actual) {
		return false
	}
	for i, seg := range template {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if actual[i] == "" {
				return false
			}
			continue
		}
		if seg != actual[i] {
			return false
		}
	}
	return true
}
