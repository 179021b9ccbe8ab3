package fixtures

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

// ProposeFixtureHandler handles POST /api/fixtures/v1alpha1/fixtures
// Responds 201 when a new fixture row was created, 200 when the proposal
// matched an existing fixture and its version was attached.
func ProposeFixtureHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())

		var req struct {
			Service     string         `json:"service"`
			Operation   string         `json:"operation"`
			Version     string         `json:"version"`
			Data        map[string]any `json:"data"`
			Source      string         `json:"source"`
			Priority    int            `json:"priority"`
			CreatedFrom string         `json:"createdFrom"`
			Notes       string         `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		fixture, created, err := store.Propose(r.Context(), tenant, Proposal{
			Service:     req.Service,
			Operation:   req.Operation,
			Version:     req.Version,
			Data:        req.Data,
			Source:      FixtureSource(req.Source),
			Priority:    req.Priority,
			CreatedFrom: req.CreatedFrom,
			Notes:       req.Notes,
		})
		if err != nil {
			writeStoreError(w, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, fixtureWithVersions(store, fixture))
	}
}

// GetFixtureHandler handles GET /api/fixtures/v1alpha1/fixtures/{id}
func GetFixtureHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())
		id := chi.URLParam(r, "id")

		fixture, err := store.Get(tenant, id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get fixture: %v", err))
			return
		}
		if fixture == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("fixture %q not found", id))
			return
		}

		writeJSON(w, http.StatusOK, fixtureWithVersions(store, fixture))
	}
}

// ListFixturesHandler handles GET /api/fixtures/v1alpha1/fixtures
// Query params: service, operation, status, pageSize, pageToken
func ListFixturesHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())

		filter := ListFilter{
			Service:   r.URL.Query().Get("service"),
			Operation: r.URL.Query().Get("operation"),
			Status:    FixtureStatus(r.URL.Query().Get("status")),
		}

		pageSize := 20
		if ps := r.URL.Query().Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}
		pageToken := r.URL.Query().Get("pageToken")

		records, nextToken, total, err := store.List(tenant, filter, pageSize, pageToken)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list fixtures: %v", err))
			return
		}

		items := make([]fixtureResponse, len(records))
		for i := range records {
			items[i] = fixtureToResponse(&records[i], nil)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"fixtures":      items,
			"nextPageToken": nextToken,
			"totalSize":     total,
		})
	}
}

// ApproveFixtureHandler handles POST /api/fixtures/v1alpha1/fixtures/{id}:approve
func ApproveFixtureHandler(store *Store) http.HandlerFunc {
	return transitionHandler(store, func(r *http.Request, store *Store, tenant, id, by, notes string) (*Fixture, error) {
		return store.Approve(r.Context(), tenant, id, by, notes)
	})
}

// RejectFixtureHandler handles POST /api/fixtures/v1alpha1/fixtures/{id}:reject
func RejectFixtureHandler(store *Store) http.HandlerFunc {
	return transitionHandler(store, func(r *http.Request, store *Store, tenant, id, by, notes string) (*Fixture, error) {
		return store.Reject(r.Context(), tenant, id, by, notes)
	})
}

// RevokeFixtureHandler handles POST /api/fixtures/v1alpha1/fixtures/{id}:revoke
func RevokeFixtureHandler(store *Store) http.HandlerFunc {
	return transitionHandler(store, func(r *http.Request, store *Store, tenant, id, by, notes string) (*Fixture, error) {
		return store.Revoke(r.Context(), tenant, id, by, notes)
	})
}

func transitionHandler(store *Store, transition func(r *http.Request, store *Store, tenant, id, by, notes string) (*Fixture, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())
		id := chi.URLParam(r, "id")

		var req struct {
			By    string `json:"by"`
			Notes string `json:"notes"`
		}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
				return
			}
		}
		if req.By == "" {
			req.By = tenancy.UserFromContext(r.Context())
		}

		fixture, err := transition(r, store, tenant, id, req.By, req.Notes)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, fixtureWithVersions(store, fixture))
	}
}

// writeStoreError maps store error types onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	var validation *ValidationError
	if errors.As(err, &validation) {
		writeError(w, http.StatusBadRequest, validation.Error())
		return
	}
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, notFound.Error())
		return
	}
	var transition *TransitionError
	if errors.As(err, &transition) {
		writeError(w, http.StatusNotFound, transition.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// fixtureResponse is the API response for a fixture. ServiceVersions is the
// legacy array shape, derived from the join table at serialization time.
type fixtureResponse struct {
	ID              string          `json:"id"`
	Tenant          string          `json:"tenant"`
	Service         string          `json:"service"`
	Operation       string          `json:"operation"`
	Status          string          `json:"status"`
	Source          string          `json:"source"`
	Priority        int             `json:"priority"`
	Data            json.RawMessage `json:"data"`
	Hash            string          `json:"hash"`
	SpecType        string          `json:"specType,omitempty"`
	CreatedFrom     string          `json:"createdFrom,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	ServiceVersion  string          `json:"serviceVersion,omitempty"`
	ServiceVersions []string        `json:"serviceVersions,omitempty"`
	ApprovedBy      string          `json:"approvedBy,omitempty"`
	ApprovedAt      string          `json:"approvedAt,omitempty"`
	RejectedBy      string          `json:"rejectedBy,omitempty"`
	RejectedAt      string          `json:"rejectedAt,omitempty"`
	CreatedAt       string          `json:"createdAt"`
}

func fixtureToResponse(f *Fixture, versionIDs []string) fixtureResponse {
	resp := fixtureResponse{
		ID:              f.ID,
		Tenant:          f.Tenant,
		Service:         f.Service,
		Operation:       f.Operation,
		Status:          string(f.Status),
		Source:          string(f.Source),
		Priority:        f.Priority,
		Data:            json.RawMessage(f.Data),
		Hash:            f.Hash,
		SpecType:        f.SpecType,
		CreatedFrom:     f.CreatedFrom,
		Notes:           f.Notes,
		ServiceVersion:  f.ServiceVersion,
		ServiceVersions: versionIDs,
		ApprovedBy:      f.ApprovedBy,
		RejectedBy:      f.RejectedBy,
		CreatedAt:       f.CreatedAt.Format(time.RFC3339),
	}
	if f.ApprovedAt != nil {
		resp.ApprovedAt = f.ApprovedAt.Format(time.RFC3339)
	}
	if f.RejectedAt != nil {
		resp.RejectedAt = f.RejectedAt.Format(time.RFC3339)
	}
	return resp
}

func fixtureWithVersions(store *Store, f *Fixture) fixtureResponse {
	versionIDs, err := store.VersionIDs(f.ID)
	if err != nil {
		versionIDs = nil
	}
	return fixtureToResponse(f, versionIDs)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
