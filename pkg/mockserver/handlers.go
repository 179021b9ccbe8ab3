package mockserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/contracthub/contract-registry/pkg/registry"
	"github.com/contracthub/contract-registry/pkg/tenancy"
)

// MockHandler handles every method on /mock/{service}/{version}/* and
// replays the synthesized response for the simulated endpoint.
func MockHandler(s *Synthesizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())
		service := chi.URLParam(r, "service")
		version := chi.URLParam(r, "version")

		set, err := s.Handlers(r.Context(), tenant, service, version)
		if err != nil {
			writeSynthError(w, err)
			return
		}

		path := "/" + chi.URLParam(r, "*")
		resp := Handle(r.Method, path, set)

		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(resp.Status)
		if resp.Body != nil {
			_ = json.NewEncoder(w).Encode(resp.Body)
		}
	}
}

// ListOperationsHandler handles GET /mock/{service}/{version}, returning the
// operations the mock can serve.
func ListOperationsHandler(s *Synthesizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())
		service := chi.URLParam(r, "service")
		version := chi.URLParam(r, "version")

		set, err := s.Handlers(r.Context(), tenant, service, version)
		if err != nil {
			writeSynthError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"service":    set.Service,
			"version":    set.Version,
			"operations": set.Operations(),
		})
	}
}

func writeSynthError(w http.ResponseWriter, err error) {
	var svcNotFound *registry.ServiceNotFoundError
	if errors.As(err, &svcNotFound) {
		writeError(w, http.StatusNotFound, svcNotFound.Error())
		return
	}
	var verNotFound *registry.VersionNotFoundError
	if errors.As(err, &verNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":             verNotFound.Error(),
			"availableVersions": verNotFound.Available,
		})
		return
	}
	writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to build mock handlers: %v", err))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
