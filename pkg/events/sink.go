package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
)

// Sink receives notifications after fixture, verification, and deployment
// state changes. Implementations must never fail the underlying operation:
// Notify has no error return and sinks are expected to log and swallow
// their own failures.
type Sink interface {
	Notify(ctx context.Context, tenant, eventType string, payload map[string]any)
}

// NopSink discards all notifications.
type NopSink struct{}

// Notify implements Sink.
func (NopSink) Notify(context.Context, string, string, map[string]any) {}

// AuditSink persists notifications as append-only audit events and logs
// them. Persistence failures are logged and swallowed.
type AuditSink struct {
	store  *Store
	logger *slog.Logger
}

// NewAuditSink creates an AuditSink backed by the given store.
func NewAuditSink(store *Store, logger *slog.Logger) *AuditSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditSink{store: store, logger: logger}
}

// Notify implements Sink.
func (s *AuditSink) Notify(ctx context.Context, tenant, eventType string, payload map[string]any) {
	if tenant == "" {
		tenant = "default"
	}

	service, _ := payload["service"].(string)
	subject, _ := payload["id"].(string)

	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to encode event payload",
			"tenant", tenant, "eventType", eventType, "error", err)
		raw = []byte("{}")
	}

	record := &EventRecord{
		ID:        uuid.New().String(),
		Tenant:    tenant,
		EventType: eventType,
		Service:   service,
		Subject:   subject,
		Payload:   string(raw),
	}

	if err := s.store.Append(record); err != nil {
		s.logger.Error("failed to persist audit event",
			"tenant", tenant, "eventType", eventType, "error", err)
		return
	}

	s.logger.Info("event recorded",
		"tenant", tenant, "eventType", eventType, "service", service, "subject", subject)
}
