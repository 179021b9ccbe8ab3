package fixtures

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/contracthub/contract-registry/pkg/registry"
)

const openapiDoc = `{"swagger": "2.0", "info": {"title": "orders", "version": "1.0.0"}, "paths": {}}`

func setupStores(t *testing.T) (*Store, *registry.Store, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	reg := registry.NewStore(db)
	require.NoError(t, reg.AutoMigrate())
	store := NewStore(db, reg, nil)
	require.NoError(t, store.AutoMigrate())

	// Register the provider with a spec so its spec type is detected.
	_, err = reg.EnsureVersion("acme", "orders", "1.0.0", registry.VersionMeta{Spec: openapiDoc})
	require.NoError(t, err)

	return store, reg, db
}

// fixtureData decodes a JSON literal so nested values carry the types a real
// request body would.
func fixtureData(t *testing.T, raw string) map[string]any {
	t.Helper()
	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &data))
	return data
}

func sampleData(t *testing.T) map[string]any {
	return fixtureData(t, `{
		"request": {"method": "GET", "path": "/orders/42"},
		"response": {"status": 200, "body": {"id": 42, "total": 10.5}}
	}`)
}

func sampleProposal(t *testing.T) Proposal {
	return Proposal{
		Service:     "orders",
		Operation:   "getOrder",
		Version:     "1.0.0",
		Data:        sampleData(t),
		Source:      SourceConsumer,
		CreatedFrom: "interaction-recording",
	}
}

func TestProposeCreatesDraftFixture(t *testing.T) {
	store, _, _ := setupStores(t)

	fixture, created, err := store.Propose(context.Background(), "acme", sampleProposal(t))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, StatusDraft, fixture.Status)
	assert.Equal(t, 1, fixture.Priority, "priority should default to 1")
	assert.Equal(t, "openapi", fixture.SpecType)
	assert.NotEmpty(t, fixture.Hash)
	assert.NotEmpty(t, fixture.ServiceVersion)
}

func TestProposeValidationErrors(t *testing.T) {
	store, _, _ := setupStores(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*Proposal)
	}{
		{"missing service", func(p *Proposal) { p.Service = "" }},
		{"missing operation", func(p *Proposal) { p.Operation = "" }},
		{"missing version", func(p *Proposal) { p.Version = "" }},
		{"nil data", func(p *Proposal) { p.Data = nil }},
	}
	for _, tc := range cases {
		p := sampleProposal(t)
		tc.mutate(&p)
		_, _, err := store.Propose(ctx, "acme", p)
		var validation *ValidationError
		assert.ErrorAs(t, err, &validation, tc.name)
	}
}

func TestProposeRejectsMalformedData(t *testing.T) {
	store, _, _ := setupStores(t)

	p := sampleProposal(t)
	p.Data = fixtureData(t, `{"request": {}, "response": {}}`)

	_, _, err := store.Propose(context.Background(), "acme", p)
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Error(), "fixture data is invalid")
}

func TestProposeRequiresDetectedSpecType(t *testing.T) {
	store, reg, _ := setupStores(t)

	// A service registered with no spec has no detected spec type.
	_, err := reg.EnsureService("acme", "billing")
	require.NoError(t, err)

	p := sampleProposal(t)
	p.Service = "billing"

	_, _, err = store.Propose(context.Background(), "acme", p)
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Error(), "no detected spec type")
}

func TestProposeUnregisteredService(t *testing.T) {
	store, _, _ := setupStores(t)

	p := sampleProposal(t)
	p.Service = "ghost"

	_, _, err := store.Propose(context.Background(), "acme", p)
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Error(), "not registered")
}

func TestProposeDeduplicatesOnContentHash(t *testing.T) {
	store, reg, _ := setupStores(t)
	ctx := context.Background()

	first, created, err := store.Propose(ctx, "acme", sampleProposal(t))
	require.NoError(t, err)
	require.True(t, created)

	// Same (operation, data) observed against a different version.
	_, err = reg.EnsureVersion("acme", "orders", "1.1.0", registry.VersionMeta{})
	require.NoError(t, err)
	p := sampleProposal(t)
	p.Version = "1.1.0"

	second, created, err := store.Propose(ctx, "acme", p)
	require.NoError(t, err)
	assert.False(t, created, "duplicate content should match, not create")
	assert.Equal(t, first.ID, second.ID)

	// The associated-version set is the union of both calls, no duplicates.
	versionIDs, err := store.VersionIDs(first.ID)
	require.NoError(t, err)
	assert.Len(t, versionIDs, 2)

	// The legacy singular field tracks the newest attachment.
	v110, err := reg.GetVersion("acme", "orders", "1.1.0")
	require.NoError(t, err)
	assert.Equal(t, v110.ID, second.ServiceVersion)
}

func TestProposeAttachesToConcurrentWinnerRow(t *testing.T) {
	store, reg, db := setupStores(t)
	ctx := context.Background()

	data := sampleData(t)
	hash, err := ContentHash("getOrder", data)
	require.NoError(t, err)
	dataJSON, err := canonicalData(data)
	require.NoError(t, err)

	// Another proposer's insert lands first: write the winning row directly,
	// bypassing Propose, so our insert hits the (tenant, hash) conflict.
	winner := &Fixture{
		ID:        "winner-fixture",
		Tenant:    "acme",
		Service:   "orders",
		Operation: "getOrder",
		Status:    StatusDraft,
		Source:    SourceConsumer,
		Priority:  1,
		Data:      dataJSON,
		Hash:      hash,
		SpecType:  "openapi",
	}
	require.NoError(t, db.Create(winner).Error)

	fixture, created, err := store.Propose(ctx, "acme", sampleProposal(t))
	require.NoError(t, err, "losing the insert race must not surface an error")
	assert.False(t, created, "conflict should report matched, not created")
	assert.Equal(t, "winner-fixture", fixture.ID)

	// The loser's version still gets attached to the winner's row.
	v100, err := reg.GetVersion("acme", "orders", "1.0.0")
	require.NoError(t, err)
	versionIDs, err := store.VersionIDs("winner-fixture")
	require.NoError(t, err)
	assert.Equal(t, []string{v100.ID}, versionIDs)
	assert.Equal(t, v100.ID, fixture.ServiceVersion)

	var count int64
	require.NoError(t, db.Model(&Fixture{}).Where("tenant = ? AND hash = ?", "acme", hash).Count(&count).Error)
	assert.EqualValues(t, 1, count, "at most one row per (tenant, hash)")
}

func TestProposeAttachSameVersionTwiceIsNoop(t *testing.T) {
	store, _, _ := setupStores(t)
	ctx := context.Background()

	first, _, err := store.Propose(ctx, "acme", sampleProposal(t))
	require.NoError(t, err)
	_, created, err := store.Propose(ctx, "acme", sampleProposal(t))
	require.NoError(t, err)
	assert.False(t, created)

	versionIDs, err := store.VersionIDs(first.ID)
	require.NoError(t, err)
	assert.Len(t, versionIDs, 1)
}

func TestProposeDifferentDataCreatesDistinctFixtures(t *testing.T) {
	store, _, _ := setupStores(t)
	ctx := context.Background()

	first, _, err := store.Propose(ctx, "acme", sampleProposal(t))
	require.NoError(t, err)

	p := sampleProposal(t)
	p.Data = fixtureData(t, `{
		"request": {"method": "GET", "path": "/orders/43"},
		"response": {"status": 404}
	}`)
	second, created, err := store.Propose(ctx, "acme", p)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestProposeTenantScopedHash(t *testing.T) {
	store, reg, _ := setupStores(t)
	ctx := context.Background()

	_, err := reg.EnsureVersion("globex", "orders", "1.0.0", registry.VersionMeta{Spec: openapiDoc})
	require.NoError(t, err)

	first, _, err := store.Propose(ctx, "acme", sampleProposal(t))
	require.NoError(t, err)
	second, created, err := store.Propose(ctx, "globex", sampleProposal(t))
	require.NoError(t, err)

	assert.True(t, created, "hash uniqueness is per tenant")
	assert.NotEqual(t, first.ID, second.ID)
}

func TestApproveStampsApprover(t *testing.T) {
	store, _, _ := setupStores(t)
	ctx := context.Background()

	fixture, _, err := store.Propose(ctx, "acme", sampleProposal(t))
	require.NoError(t, err)

	approved, err := store.Approve(ctx, "acme", fixture.ID, "reviewer", "looks right")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	assert.Equal(t, "reviewer", approved.ApprovedBy)
	assert.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, "looks right", approved.Notes)
}

func TestApproveMissingFixture(t *testing.T) {
	store, _, _ := setupStores(t)

	_, err := store.Approve(context.Background(), "acme", "nope", "reviewer", "")
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestRejectOnlyFromDraft(t *testing.T) {
	store, _, _ := setupStores(t)
	ctx := context.Background()

	fixture, _, err := store.Propose(ctx, "acme", sampleProposal(t))
	require.NoError(t, err)
	_, err = store.Approve(ctx, "acme", fixture.ID, "reviewer", "")
	require.NoError(t, err)

	// Rejecting an approved fixture fails.
	_, err = store.Reject(ctx, "acme", fixture.ID, "reviewer", "")
	var transition *TransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, StatusApproved, transition.Status)
}

func TestRejectFromDraft(t *testing.T) {
	store, _, _ := setupStores(t)
	ctx := context.Background()

	fixture, _, err := store.Propose(ctx, "acme", sampleProposal(t))
	require.NoError(t, err)

	rejected, err := store.Reject(ctx, "acme", fixture.ID, "reviewer", "not canonical")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Equal(t, "reviewer", rejected.RejectedBy)
}

func TestRevokeOnlyFromApproved(t *testing.T) {
	store, _, _ := setupStores(t)
	ctx := context.Background()

	fixture, _, err := store.Propose(ctx, "acme", sampleProposal(t))
	require.NoError(t, err)

	// Revoking a draft fixture fails.
	_, err = store.Revoke(ctx, "acme", fixture.ID, "reviewer", "")
	var transition *TransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, StatusDraft, transition.Status)

	// Approve, then revoke succeeds.
	_, err = store.Approve(ctx, "acme", fixture.ID, "reviewer", "")
	require.NoError(t, err)
	revoked, err := store.Revoke(ctx, "acme", fixture.ID, "reviewer", "stale example")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, revoked.Status)
}

func TestTransitionMissingFixtureIsNotFound(t *testing.T) {
	store, _, _ := setupStores(t)

	_, err := store.Reject(context.Background(), "acme", "nope", "reviewer", "")
	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestListForMockOrdering(t *testing.T) {
	store, reg, db := setupStores(t)
	ctx := context.Background()

	v, err := reg.GetVersion("acme", "orders", "1.0.0")
	require.NoError(t, err)

	propose := func(path string, priority int) *Fixture {
		p := sampleProposal(t)
		p.Priority = priority
		p.Data = fixtureData(t, `{
			"request": {"method": "GET", "path": "`+path+`"},
			"response": {"status": 200}
		}`)
		fixture, _, err := store.Propose(ctx, "acme", p)
		require.NoError(t, err)
		_, err = store.Approve(ctx, "acme", fixture.ID, "reviewer", "")
		require.NoError(t, err)
		return fixture
	}

	low := propose("/a", 1)
	high := propose("/b", 5)
	newer := propose("/c", 1)

	// Make creation order deterministic for the equal-priority tie-break.
	base := time.Now().Add(-time.Hour)
	for i, f := range []*Fixture{low, high, newer} {
		require.NoError(t, db.Model(&Fixture{}).Where("id = ?", f.ID).
			Update("created_at", base.Add(time.Duration(i)*time.Minute)).Error)
	}

	records, err := store.ListForMock("acme", "orders", v.ID, StatusApproved)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Higher priority first; newer wins among equal priority.
	assert.Equal(t, high.ID, records[0].ID)
	assert.Equal(t, newer.ID, records[1].ID)
	assert.Equal(t, low.ID, records[2].ID)
}

func TestListForMockOnlyApproved(t *testing.T) {
	store, reg, _ := setupStores(t)
	ctx := context.Background()

	v, err := reg.GetVersion("acme", "orders", "1.0.0")
	require.NoError(t, err)

	_, _, err = store.Propose(ctx, "acme", sampleProposal(t))
	require.NoError(t, err)

	records, err := store.ListForMock("acme", "orders", v.ID, StatusApproved)
	require.NoError(t, err)
	assert.Empty(t, records, "draft fixtures must not feed mocks")
}

type recordingInvalidator struct {
	keys []string
}

func (r *recordingInvalidator) Invalidate(tenant, service, versionID string) {
	r.keys = append(r.keys, tenant+"/"+service+":"+versionID)
}

func TestApproveInvalidatesMockCache(t *testing.T) {
	store, reg, _ := setupStores(t)
	ctx := context.Background()

	inv := &recordingInvalidator{}
	store.SetInvalidator(inv)

	fixture, _, err := store.Propose(ctx, "acme", sampleProposal(t))
	require.NoError(t, err)
	_, err = store.Approve(ctx, "acme", fixture.ID, "reviewer", "")
	require.NoError(t, err)

	v, err := reg.GetVersion("acme", "orders", "1.0.0")
	require.NoError(t, err)
	require.Len(t, inv.keys, 1)
	assert.Equal(t, "acme/orders:"+v.ID, inv.keys[0])
}

func TestListPaginationAndFilters(t *testing.T) {
	store, _, _ := setupStores(t)
	ctx := context.Background()

	for _, path := range []string{"/a", "/b", "/c"} {
		p := sampleProposal(t)
		p.Data = fixtureData(t, `{
			"request": {"method": "GET", "path": "`+path+`"},
			"response": {"status": 200}
		}`)
		_, _, err := store.Propose(ctx, "acme", p)
		require.NoError(t, err)
	}

	records, _, total, err := store.List("acme", ListFilter{Service: "orders", Status: StatusDraft}, 2, "")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, records, 2)

	records, _, total, err = store.List("acme", ListFilter{Status: StatusApproved}, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, records)
}
