package events

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/contracthub/contract-registry/pkg/tenancy"
)

// ListEventsHandler handles GET /api/audit/v1alpha1/events
// Query params: eventType, service, pageSize, pageToken
func ListEventsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())
		eventType := r.URL.Query().Get("eventType")
		service := r.URL.Query().Get("service")

		pageSize := 20
		if ps := r.URL.Query().Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}
		pageToken := r.URL.Query().Get("pageToken")

		records, nextToken, total, err := store.List(tenant, eventType, service, pageSize, pageToken)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list events: %v", err))
			return
		}

		items := make([]eventResponse, len(records))
		for i := range records {
			items[i] = eventToResponse(&records[i])
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"events":        items,
			"nextPageToken": nextToken,
			"totalSize":     total,
		})
	}
}

// Router creates a chi.Router for the audit event API.
func Router(store *Store) chi.Router {
	r := chi.NewRouter()
	r.Get("/events", ListEventsHandler(store))
	return r
}

// eventResponse is the API response for an audit event.
type eventResponse struct {
	ID        string          `json:"id"`
	Tenant    string          `json:"tenant"`
	EventType string          `json:"eventType"`
	Service   string          `json:"service,omitempty"`
	Subject   string          `json:"subject,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt string          `json:"createdAt"`
}

func eventToResponse(e *EventRecord) eventResponse {
	return eventResponse{
		ID:        e.ID,
		Tenant:    e.Tenant,
		EventType: e.EventType,
		Service:   e.Service,
		Subject:   e.Subject,
		Payload:   json.RawMessage(e.Payload),
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
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
