package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/contracthub/contract-registry/pkg/tenancy"
)

// RegisterServiceHandler handles POST /api/registry/v1alpha1/services
func RegisterServiceHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())

		var req struct {
			Name      string `json:"name"`
			SpecType  string `json:"specType"`
			GitRepo   string `json:"gitRepo"`
			GitBranch string `json:"gitBranch"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "service name is required")
			return
		}

		svc, err := store.EnsureService(tenant, req.Name)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to register service: %v", err))
			return
		}

		// Fill optional metadata that the stub creation left empty.
		if err := store.UpdateServiceMetadata(svc, req.SpecType, req.GitRepo, req.GitBranch); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to update service metadata: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, serviceToResponse(svc))
	}
}

// ListServicesHandler handles GET /api/registry/v1alpha1/services
func ListServicesHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())

		pageSize := 20
		if ps := r.URL.Query().Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}
		pageToken := r.URL.Query().Get("pageToken")

		records, nextToken, err := store.ListServices(tenant, pageSize, pageToken)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list services: %v", err))
			return
		}

		services := make([]serviceResponse, len(records))
		for i := range records {
			services[i] = serviceToResponse(&records[i])
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"services":      services,
			"nextPageToken": nextToken,
		})
	}
}

// GetServiceHandler handles GET /api/registry/v1alpha1/services/{service}
func GetServiceHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())
		name := chi.URLParam(r, "service")

		svc, err := store.GetService(tenant, name)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get service: %v", err))
			return
		}
		if svc == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("service %q not found", name))
			return
		}

		writeJSON(w, http.StatusOK, serviceToResponse(svc))
	}
}

// EnsureVersionHandler handles PUT /api/registry/v1alpha1/services/{service}/versions/{version}
func EnsureVersionHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())
		serviceName := chi.URLParam(r, "service")
		version := chi.URLParam(r, "version")

		var req struct {
			Spec     string `json:"spec"`
			SpecType string `json:"specType"`
			GitSHA   string `json:"gitSha"`
		}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
				return
			}
		}

		record, err := store.EnsureVersion(tenant, serviceName, version, VersionMeta{
			Spec:      req.Spec,
			SpecType:  req.SpecType,
			GitSHA:    req.GitSHA,
			CreatedBy: tenancy.UserFromContext(r.Context()),
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to ensure version: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, versionToResponse(record))
	}
}

// ListVersionsHandler handles GET /api/registry/v1alpha1/services/{service}/versions
func ListVersionsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())
		serviceName := chi.URLParam(r, "service")

		svc, err := store.GetService(tenant, serviceName)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get service: %v", err))
			return
		}
		if svc == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("service %q not found", serviceName))
			return
		}

		records, err := store.ListVersions(tenant, svc.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list versions: %v", err))
			return
		}

		versions := make([]versionResponse, len(records))
		for i := range records {
			versions[i] = versionToResponse(&records[i])
		}

		writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
	}
}

// ResolveVersionHandler handles GET /api/registry/v1alpha1/services/{service}/versions:resolve?version=^1.2.0
func ResolveVersionHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())
		serviceName := chi.URLParam(r, "service")
		requested := r.URL.Query().Get("version")

		svc, err := store.GetService(tenant, serviceName)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get service: %v", err))
			return
		}
		if svc == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("service %q not found", serviceName))
			return
		}

		records, err := store.ListVersions(tenant, svc.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list versions: %v", err))
			return
		}

		resolved, err := ResolveVersion(serviceName, requested, records)
		if err != nil {
			var notFound *VersionNotFoundError
			if errors.As(err, &notFound) {
				writeJSON(w, http.StatusNotFound, map[string]any{
					"error":             "not_found",
					"message":           notFound.Error(),
					"availableVersions": notFound.Available,
				})
				return
			}
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to resolve version: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, versionToResponse(resolved))
	}
}

// serviceResponse is the API response for a service.
type serviceResponse struct {
	ID          string `json:"id"`
	Tenant      string `json:"tenant"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	SpecType    string `json:"specType,omitempty"`
	GitRepo     string `json:"gitRepo,omitempty"`
	GitBranch   string `json:"gitBranch,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

func serviceToResponse(svc *Service) serviceResponse {
	return serviceResponse{
		ID:          svc.ID,
		Tenant:      svc.Tenant,
		Name:        svc.Name,
		Description: svc.Description,
		SpecType:    svc.SpecType,
		GitRepo:     svc.GitRepo,
		GitBranch:   svc.GitBranch,
		CreatedAt:   svc.CreatedAt.Format(time.RFC3339),
	}
}

// versionResponse is the API response for a service version.
type versionResponse struct {
	ID        string `json:"id"`
	ServiceID string `json:"serviceId"`
	Version   string `json:"version"`
	SpecType  string `json:"specType,omitempty"`
	HasSpec   bool   `json:"hasSpec"`
	GitSHA    string `json:"gitSha,omitempty"`
	CreatedBy string `json:"createdBy,omitempty"`
	CreatedAt string `json:"createdAt"`
}

func versionToResponse(v *ServiceVersion) versionResponse {
	return versionResponse{
		ID:        v.ID,
		ServiceID: v.ServiceID,
		Version:   v.Version,
		SpecType:  v.SpecType,
		HasSpec:   v.Spec != "",
		GitSHA:    v.GitSHA,
		CreatedBy: v.CreatedBy,
		CreatedAt: v.CreatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
