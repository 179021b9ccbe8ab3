package deployments

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/contracthub/contract-registry/pkg/registry"
	"github.com/contracthub/contract-registry/pkg/tenancy"
)

// DeployHandler handles POST /api/deployments/v1alpha1/deployments
func DeployHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())

		var req struct {
			Service     string `json:"service"`
			Version     string `json:"version"`
			Environment string `json:"environment"`
			GitSHA      string `json:"gitSha"`
			DeployedBy  string `json:"deployedBy"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if req.Service == "" || req.Version == "" || req.Environment == "" {
			writeError(w, http.StatusBadRequest, "service, version and environment are required")
			return
		}
		if req.DeployedBy == "" {
			req.DeployedBy = tenancy.UserFromContext(r.Context())
		}

		dep, err := store.Deploy(r.Context(), tenant, DeploySpec{
			Service:     req.Service,
			Version:     req.Version,
			Environment: req.Environment,
			GitSHA:      req.GitSHA,
			DeployedBy:  req.DeployedBy,
		})
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, deploymentToResponse(dep))
	}
}

// ListActiveHandler handles GET /api/deployments/v1alpha1/environments/{environment}/deployments
// Query params: includeInactive
func ListActiveHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())
		environment := chi.URLParam(r, "environment")
		includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("includeInactive"))

		records, err := store.ListActive(tenant, environment, includeInactive)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list deployments: %v", err))
			return
		}

		items := make([]deploymentResponse, 0, len(records))
		for i := range records {
			items = append(items, deploymentToResponse(&records[i]))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"environment": environment,
			"items":       items,
			"size":        len(items),
		})
	}
}

// HistoryHandler handles GET /api/deployments/v1alpha1/services/{service}/deployments
// Query params: environment, pageSize, pageToken
func HistoryHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())
		service := chi.URLParam(r, "service")
		environment := r.URL.Query().Get("environment")

		pageSize := 0
		if raw := r.URL.Query().Get("pageSize"); raw != "" {
			pageSize, _ = strconv.Atoi(raw)
		}

		records, nextToken, err := store.History(tenant, service, environment, pageSize, r.URL.Query().Get("pageToken"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list deployment history: %v", err))
			return
		}

		items := make([]deploymentResponse, 0, len(records))
		for i := range records {
			items = append(items, deploymentToResponse(&records[i]))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items":         items,
			"size":          len(items),
			"nextPageToken": nextToken,
		})
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
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
	writeError(w, http.StatusInternalServerError, err.Error())
}

type deploymentResponse struct {
	ID          string `json:"id"`
	Service     string `json:"service"`
	Version     string `json:"version"`
	VersionID   string `json:"versionId"`
	Environment string `json:"environment"`
	GitSHA      string `json:"gitSha,omitempty"`
	DeployedBy  string `json:"deployedBy,omitempty"`
	Active      bool   `json:"active"`
	Status      string `json:"status"`
	DeployedAt  string `json:"deployedAt"`
}

func deploymentToResponse(dep *Deployment) deploymentResponse {
	return deploymentResponse{
		ID:          dep.ID,
		Service:     dep.Service,
		Version:     dep.Version,
		VersionID:   dep.VersionID,
		Environment: dep.Environment,
		GitSHA:      dep.GitSHA,
		DeployedBy:  dep.DeployedBy,
		Active:      dep.Active,
		Status:      string(dep.Status),
		DeployedAt:  dep.DeployedAt.Format(time.RFC3339),
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
