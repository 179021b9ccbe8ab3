package events

import "time"

// Event types emitted after state changes.
const (
	TypeFixtureProposed    = "fixture.proposed"
	TypeFixtureMatched     = "fixture.matched"
	TypeFixtureApproved    = "fixture.approved"
	TypeFixtureRejected    = "fixture.rejected"
	TypeFixtureRevoked     = "fixture.revoked"
	TypeVerificationResult = "verification.result"
	TypeDependencyUpdated  = "dependency.updated"
	TypeDeploymentCreated  = "deployment.created"
)

// EventRecord is the GORM model for an append-only audit event.
type EventRecord struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	Tenant    string    `gorm:"column:tenant;index:idx_event_tenant_type,priority:1;not null;default:default"`
	EventType string    `gorm:"column:event_type;index:idx_event_tenant_type,priority:2;not null"`
	Service   string    `gorm:"column:service;index:idx_event_service"`
	Subject   string    `gorm:"column:subject"`
	Payload   string    `gorm:"column:payload;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;index:idx_event_created"`
}

// TableName returns the GORM table name.
func (EventRecord) TableName() string { return "audit_events" }
