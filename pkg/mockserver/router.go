package mockserver

import (
	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the mock endpoint. The catch-all accepts
// every HTTP method so recorded interactions replay verbatim.
func Router(s *Synthesizer) chi.Router {
	r := chi.NewRouter()

	r.Get("/{service}/{version}", ListOperationsHandler(s))
	r.Handle("/{service}/{version}/*", MockHandler(s))

	return r
}
