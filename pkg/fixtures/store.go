package fixtures

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/contracthub/contract-registry/pkg/events"
	"github.com/contracthub/contract-registry/pkg/registry"
)

// Invalidator receives keyed invalidation hooks when the approved-fixture
// set of a (service, version) pair changes. The mock synthesizer implements
// it to drop stale handler sets.
type Invalidator interface {
	Invalidate(tenant, service, versionID string)
}

// Store provides database operations for fixtures and their version
// associations.
type Store struct {
	db          *gorm.DB
	registry    *registry.Store
	sink        events.Sink
	invalidator Invalidator
}

// NewStore creates a new Store. sink may be nil.
func NewStore(db *gorm.DB, reg *registry.Store, sink events.Sink) *Store {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Store{db: db, registry: reg, sink: sink}
}

// SetInvalidator wires the mock-cache invalidation hook. Called once at
// startup after the synthesizer is constructed.
func (s *Store) SetInvalidator(inv Invalidator) {
	s.invalidator = inv
}

// AutoMigrate creates or updates the fixtures and fixture_versions tables.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Fixture{}); err != nil {
		return fmt.Errorf("auto-migrate fixtures: %w", err)
	}
	if err := s.db.AutoMigrate(&FixtureVersion{}); err != nil {
		return fmt.Errorf("auto-migrate fixture_versions: %w", err)
	}
	return nil
}

// Propose validates and stores a fixture proposal, deduplicating on the
// content hash. Returns the fixture and whether a new row was created
// (false means the proposal matched an existing fixture and its version was
// attached instead). Dedup is a single upsert: the insert carries ON
// CONFLICT DO NOTHING, and zero rows affected means another row already
// holds the content, so the version is attached to that row instead. The
// caller never sees the conflict, even when a concurrent proposal wins the
// insert.
func (s *Store) Propose(ctx context.Context, tenant string, p Proposal) (*Fixture, bool, error) {
	if tenant == "" {
		tenant = "default"
	}

	if p.Service == "" {
		return nil, false, &ValidationError{Message: "service is required"}
	}
	if p.Operation == "" {
		return nil, false, &ValidationError{Message: "operation is required"}
	}
	if p.Version == "" {
		return nil, false, &ValidationError{Message: "version is required"}
	}
	if err := ValidateData(p.Data); err != nil {
		return nil, false, &ValidationError{Message: err.Error()}
	}

	svc, err := s.registry.GetService(tenant, p.Service)
	if err != nil {
		return nil, false, err
	}
	if svc == nil {
		return nil, false, &ValidationError{Message: fmt.Sprintf("service %q is not registered", p.Service)}
	}
	if svc.SpecType == "" {
		return nil, false, &ValidationError{Message: fmt.Sprintf("service %q has no detected spec type, upload a spec first", p.Service)}
	}

	version, err := s.registry.EnsureVersion(tenant, p.Service, p.Version, registry.VersionMeta{})
	if err != nil {
		return nil, false, err
	}

	hash, err := ContentHash(p.Operation, p.Data)
	if err != nil {
		return nil, false, err
	}

	dataJSON, err := canonicalData(p.Data)
	if err != nil {
		return nil, false, err
	}

	var result *Fixture
	created := false

	err = s.db.Transaction(func(tx *gorm.DB) error {
		priority := p.Priority
		if priority <= 0 {
			priority = 1
		}
		source := p.Source
		if source == "" {
			source = SourceManual
		}

		fixture := &Fixture{
			ID:             uuid.New().String(),
			Tenant:         tenant,
			Service:        p.Service,
			Operation:      p.Operation,
			Status:         StatusDraft,
			Source:         source,
			Priority:       priority,
			Data:           dataJSON,
			Hash:           hash,
			SpecType:       svc.SpecType,
			CreatedFrom:    p.CreatedFrom,
			Notes:          p.Notes,
			ServiceVersion: version.ID,
		}
		// DO NOTHING keeps the transaction healthy on duplicate content:
		// a plain insert failure would abort the whole transaction on
		// postgres, killing the attach that has to follow.
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(fixture)
		if res.Error != nil {
			return fmt.Errorf("create fixture: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Matched existing content, possibly inserted by a concurrent
			// proposal: attach this version to the winner's row.
			var existing Fixture
			if err := tx.Where("tenant = ? AND hash = ?", tenant, hash).First(&existing).Error; err != nil {
				return fmt.Errorf("lookup fixture by hash: %w", err)
			}
			if err := s.attachVersion(tx, &existing, version.ID); err != nil {
				return err
			}
			result = &existing
			return nil
		}

		link := &FixtureVersion{
			ID:        uuid.New().String(),
			FixtureID: fixture.ID,
			VersionID: version.ID,
		}
		if err := tx.Create(link).Error; err != nil {
			return fmt.Errorf("attach fixture version: %w", err)
		}

		result = fixture
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	eventType := events.TypeFixtureMatched
	if created {
		eventType = events.TypeFixtureProposed
	}
	s.sink.Notify(ctx, tenant, eventType, map[string]any{
		"id":        result.ID,
		"service":   result.Service,
		"operation": result.Operation,
		"version":   version.ID,
	})

	return result, created, nil
}

// attachVersion links a fixture to a version, idempotently, and bumps the
// legacy singular serviceVersion field to the newest attachment.
func (s *Store) attachVersion(tx *gorm.DB, fixture *Fixture, versionID string) error {
	link := FixtureVersion{
		ID:        uuid.New().String(),
		FixtureID: fixture.ID,
		VersionID: versionID,
	}
	// The pair is unique; attaching an already-linked version is a no-op.
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
		return fmt.Errorf("attach fixture version: %w", err)
	}

	if fixture.ServiceVersion != versionID {
		if err := tx.Model(&Fixture{}).Where("id = ?", fixture.ID).
			Update("service_version", versionID).Error; err != nil {
			return fmt.Errorf("update legacy service version: %w", err)
		}
		fixture.ServiceVersion = versionID
	}
	return nil
}

// Get retrieves a fixture by id within a tenant. Returns nil, nil if no
// record exists.
func (s *Store) Get(tenant, id string) (*Fixture, error) {
	var fixture Fixture
	err := s.db.Where("tenant = ? AND id = ?", tenant, id).First(&fixture).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get fixture: %w", err)
	}
	return &fixture, nil
}

// VersionIDs returns every version id attached to a fixture, oldest first.
// This derives the legacy serviceVersions array at the serialization
// boundary; the join table stays the single source of truth.
func (s *Store) VersionIDs(fixtureID string) ([]string, error) {
	var links []FixtureVersion
	if err := s.db.Where("fixture_id = ?", fixtureID).
		Order("created_at ASC").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("list fixture versions: %w", err)
	}
	ids := make([]string, len(links))
	for i, l := range links {
		ids[i] = l.VersionID
	}
	return ids, nil
}

// Approve transitions a fixture to approved, stamping the approver and
// timestamp. The transition is unconditional.
func (s *Store) Approve(ctx context.Context, tenant, id, approvedBy, notes string) (*Fixture, error) {
	fixture, err := s.Get(tenant, id)
	if err != nil {
		return nil, err
	}
	if fixture == nil {
		return nil, &NotFoundError{ID: id}
	}

	now := time.Now()
	updates := map[string]any{
		"status":      StatusApproved,
		"approved_by": approvedBy,
		"approved_at": now,
	}
	if notes != "" {
		updates["notes"] = notes
	}
	if err := s.db.Model(&Fixture{}).Where("id = ?", fixture.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("approve fixture: %w", err)
	}
	fixture.Status = StatusApproved
	fixture.ApprovedBy = approvedBy
	fixture.ApprovedAt = &now
	if notes != "" {
		fixture.Notes = notes
	}

	s.sink.Notify(ctx, tenant, events.TypeFixtureApproved, map[string]any{
		"id":        fixture.ID,
		"service":   fixture.Service,
		"operation": fixture.Operation,
	})
	s.invalidateMocks(tenant, fixture)

	return fixture, nil
}

// Reject transitions a fixture from draft to rejected. Fails with a
// TransitionError if the fixture is not currently draft.
func (s *Store) Reject(ctx context.Context, tenant, id, rejectedBy, notes string) (*Fixture, error) {
	return s.conditionalTransition(ctx, tenant, id, rejectedBy, notes,
		StatusDraft, "rejected", events.TypeFixtureRejected)
}

// Revoke transitions a fixture from approved back to rejected. Fails with a
// TransitionError if the fixture is not currently approved.
func (s *Store) Revoke(ctx context.Context, tenant, id, revokedBy, notes string) (*Fixture, error) {
	return s.conditionalTransition(ctx, tenant, id, revokedBy, notes,
		StatusApproved, "revoked", events.TypeFixtureRevoked)
}

// conditionalTransition moves a fixture to rejected, guarded on the required
// source status via a conditional update. RowsAffected distinguishes "not
// found" from "wrong state".
func (s *Store) conditionalTransition(ctx context.Context, tenant, id, by, notes string, required FixtureStatus, action, eventType string) (*Fixture, error) {
	now := time.Now()
	updates := map[string]any{
		"status":      StatusRejected,
		"rejected_by": by,
		"rejected_at": now,
	}
	if notes != "" {
		updates["notes"] = notes
	}

	result := s.db.Model(&Fixture{}).
		Where("tenant = ? AND id = ? AND status = ?", tenant, id, required).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("%s fixture: %w", action, result.Error)
	}
	if result.RowsAffected == 0 {
		fixture, err := s.Get(tenant, id)
		if err != nil {
			return nil, err
		}
		if fixture == nil {
			return nil, &NotFoundError{ID: id}
		}
		return nil, &TransitionError{ID: id, Status: fixture.Status, Required: required, Action: action}
	}

	fixture, err := s.Get(tenant, id)
	if err != nil {
		return nil, err
	}

	s.sink.Notify(ctx, tenant, eventType, map[string]any{
		"id":        fixture.ID,
		"service":   fixture.Service,
		"operation": fixture.Operation,
	})
	s.invalidateMocks(tenant, fixture)

	return fixture, nil
}

// invalidateMocks drops cached mock handler sets for every version the
// fixture is attached to.
func (s *Store) invalidateMocks(tenant string, fixture *Fixture) {
	if s.invalidator == nil {
		return
	}
	ids, err := s.VersionIDs(fixture.ID)
	if err != nil {
		return
	}
	for _, versionID := range ids {
		s.invalidator.Invalidate(tenant, fixture.Service, versionID)
	}
}

// ListForMock returns fixtures associated with a version through the join
// table, ordered by descending priority, then descending creation time.
// This ordering is the tie-break the mock synthesizer relies on: higher
// priority wins, newer wins among equal priority.
func (s *Store) ListForMock(tenant, service, versionID string, status FixtureStatus) ([]Fixture, error) {
	if status == "" {
		status = StatusApproved
	}

	var records []Fixture
	err := s.db.
		Joins("JOIN fixture_versions ON fixture_versions.fixture_id = fixtures.id").
		Where("fixtures.tenant = ? AND fixtures.service = ? AND fixture_versions.version_id = ? AND fixtures.status = ?",
			tenant, service, versionID, status).
		Order("fixtures.priority DESC, fixtures.created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list fixtures for mock: %w", err)
	}
	return records, nil
}

// ListFilter defines filters for listing fixtures.
type ListFilter struct {
	Service   string
	Operation string
	Status    FixtureStatus
}

// List returns paginated fixtures matching the filter, newest first.
// pageToken is an RFC3339Nano timestamp.
func (s *Store) List(tenant string, filter ListFilter, pageSize int, pageToken string) ([]Fixture, string, int, error) {
	if tenant == "" {
		tenant = "default"
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	buildQuery := func(base *gorm.DB) *gorm.DB {
		q := base.Model(&Fixture{}).Where("tenant = ?", tenant)
		if filter.Service != "" {
			q = q.Where("service = ?", filter.Service)
		}
		if filter.Operation != "" {
			q = q.Where("operation = ?", filter.Operation)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		return q
	}

	var totalSize int64
	if err := buildQuery(s.db).Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count fixtures: %w", err)
	}

	query := buildQuery(s.db).Order("created_at DESC").Limit(pageSize + 1)
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", 0, fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("created_at < ?", t)
	}

	var records []Fixture
	if err := query.Find(&records).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list fixtures: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].CreatedAt.Format(time.RFC3339Nano)
		records = records[:pageSize]
	}

	return records, nextToken, int(totalSize), nil
}
