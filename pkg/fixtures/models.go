package fixtures

import "time"

// FixtureStatus represents the lifecycle state of a fixture.
type FixtureStatus string

const (
	StatusDraft    FixtureStatus = "draft"
	StatusApproved FixtureStatus = "approved"
	StatusRejected FixtureStatus = "rejected"
)

// FixtureSource identifies who recorded the fixture.
type FixtureSource string

const (
	SourceConsumer FixtureSource = "consumer"
	SourceProvider FixtureSource = "provider"
	SourceManual   FixtureSource = "manual"
)

// Fixture is the GORM model for a canonical example of an operation's
// request/response pair. The content hash is unique per tenant: identical
// (operation, data) never produces two rows, new observations attach to the
// existing row instead. The join table (FixtureVersion) is the single source
// of truth for the fixture-version relationship; ServiceVersion only tracks
// the most recent attachment for backward compatibility.
type Fixture struct {
	ID          string        `gorm:"primaryKey;column:id;type:varchar(36)"`
	Tenant      string        `gorm:"column:tenant;uniqueIndex:idx_fixture_tenant_hash,priority:1;not null;default:default"`
	Service     string        `gorm:"column:service;index:idx_fixture_service;not null"`
	Operation   string        `gorm:"column:operation;index:idx_fixture_operation;not null"`
	Status      FixtureStatus `gorm:"column:status;index:idx_fixture_status;not null;default:draft"`
	Source      FixtureSource `gorm:"column:source;not null;default:manual"`
	Priority    int           `gorm:"column:priority;not null;default:1"`
	Data        string        `gorm:"column:data;type:text;not null"`
	Hash        string        `gorm:"column:hash;uniqueIndex:idx_fixture_tenant_hash,priority:2;not null"`
	SpecType    string        `gorm:"column:spec_type"`
	CreatedFrom string        `gorm:"column:created_from"`
	Notes       string        `gorm:"column:notes"`

	// ServiceVersion is the legacy singular field: the most recently
	// attached version id.
	ServiceVersion string `gorm:"column:service_version"`

	ApprovedBy string     `gorm:"column:approved_by"`
	ApprovedAt *time.Time `gorm:"column:approved_at"`
	RejectedBy string     `gorm:"column:rejected_by"`
	RejectedAt *time.Time `gorm:"column:rejected_at"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName returns the GORM table name.
func (Fixture) TableName() string { return "fixtures" }

// FixtureVersion is the join row linking a fixture to a service version it
// has been observed against. The pair is unique; attaching twice is a no-op.
type FixtureVersion struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	FixtureID string    `gorm:"column:fixture_id;uniqueIndex:idx_fixture_version_pair,priority:1;index:idx_fv_fixture;not null"`
	VersionID string    `gorm:"column:version_id;uniqueIndex:idx_fixture_version_pair,priority:2;index:idx_fv_version;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName returns the GORM table name.
func (FixtureVersion) TableName() string { return "fixture_versions" }

// Proposal is the input for proposing a fixture.
type Proposal struct {
	Service     string
	Operation   string
	Version     string
	Data        map[string]any
	Source      FixtureSource
	Priority    int
	CreatedFrom string
	Notes       string
}
