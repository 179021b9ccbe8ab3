package verification

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/contracthub/contract-registry/pkg/tenancy"
)

// CreateTaskHandler handles POST /api/verification/v1alpha1/tasks
func CreateTaskHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())

		var req struct {
			Consumer        string        `json:"consumer"`
			Provider        string        `json:"provider"`
			ProviderVersion string        `json:"providerVersion"`
			Interactions    []Interaction `json:"interactions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if req.Consumer == "" || req.Provider == "" {
			writeError(w, http.StatusBadRequest, "consumer and provider are required")
			return
		}

		task, err := store.CreateTask(r.Context(), tenant, TaskSpec{
			Consumer:        req.Consumer,
			Provider:        req.Provider,
			ProviderVersion: req.ProviderVersion,
			Interactions:    req.Interactions,
			CreatedBy:       tenancy.UserFromContext(r.Context()),
		})
		if err != nil {
			writeStoreError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, taskToResponse(task))
	}
}

// ListPendingTasksHandler handles GET /api/verification/v1alpha1/tasks:pending?provider=orders
func ListPendingTasksHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())
		provider := r.URL.Query().Get("provider")

		tasks, err := store.ListPendingTasks(tenant, provider)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list pending tasks: %v", err))
			return
		}

		items := make([]taskResponse, len(tasks))
		for i := range tasks {
			items[i] = taskToResponse(&tasks[i])
		}

		writeJSON(w, http.StatusOK, map[string]any{"tasks": items})
	}
}

// GetTaskHandler handles GET /api/verification/v1alpha1/tasks/{taskId}
func GetTaskHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())
		taskID := chi.URLParam(r, "taskId")

		task, err := store.GetTask(tenant, taskID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get task: %v", err))
			return
		}
		if task == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("verification task %q not found", taskID))
			return
		}

		writeJSON(w, http.StatusOK, taskToResponse(task))
	}
}

// SubmitResultHandler handles POST /api/verification/v1alpha1/providers/{provider}/results
func SubmitResultHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())
		provider := chi.URLParam(r, "provider")

		var req struct {
			TaskID          string        `json:"taskId"`
			ProviderVersion string        `json:"providerVersion"`
			Results         []ResultEntry `json:"results"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		summary, dependencyUpdated, err := store.SubmitResult(r.Context(), tenant, provider,
			req.TaskID, req.ProviderVersion, req.Results)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status":                  "received",
			"summary":                 summary,
			"dependencyStatusUpdated": dependencyUpdated,
		})
	}
}

// ListDependenciesHandler handles GET /api/verification/v1alpha1/dependencies?service=orders
func ListDependenciesHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())
		service := r.URL.Query().Get("service")

		deps, err := store.ListDependencies(tenant, service)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list dependencies: %v", err))
			return
		}

		items := make([]dependencyResponse, len(deps))
		for i := range deps {
			items[i] = dependencyToResponse(&deps[i])
		}

		writeJSON(w, http.StatusOK, map[string]any{"dependencies": items})
	}
}

// writeStoreError maps store error types onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	var invalid *InvalidIdentifierError
	if errors.As(err, &invalid) {
		writeError(w, http.StatusBadRequest, invalid.Error())
		return
	}
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, notFound.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// taskResponse is the API response for a verification task.
type taskResponse struct {
	ID              string          `json:"id"`
	Tenant          string          `json:"tenant"`
	Consumer        string          `json:"consumer"`
	Provider        string          `json:"provider"`
	ProviderVersion string          `json:"providerVersion,omitempty"`
	DependencyID    string          `json:"dependencyId,omitempty"`
	Interactions    json.RawMessage `json:"interactions,omitempty"`
	CreatedBy       string          `json:"createdBy,omitempty"`
	CreatedAt       string          `json:"createdAt"`
}

func taskToResponse(task *VerificationTask) taskResponse {
	return taskResponse{
		ID:              task.ID,
		Tenant:          task.Tenant,
		Consumer:        task.Consumer,
		Provider:        task.Provider,
		ProviderVersion: task.ProviderVersion,
		DependencyID:    task.DependencyID,
		Interactions:    json.RawMessage(task.Interactions),
		CreatedBy:       task.CreatedBy,
		CreatedAt:       task.CreatedAt.Format(time.RFC3339),
	}
}

// dependencyResponse is the API response for a service dependency.
type dependencyResponse struct {
	ID             string `json:"id"`
	Consumer       string `json:"consumer"`
	Provider       string `json:"provider"`
	Status         string `json:"status"`
	LastVerifiedAt string `json:"lastVerifiedAt,omitempty"`
}

func dependencyToResponse(dep *ServiceDependency) dependencyResponse {
	resp := dependencyResponse{
		ID:       dep.ID,
		Consumer: dep.Consumer,
		Provider: dep.Provider,
		Status:   string(dep.Status),
	}
	if dep.LastVerifiedAt != nil {
		resp.LastVerifiedAt = dep.LastVerifiedAt.Format(time.RFC3339)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
