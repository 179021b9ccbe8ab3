package registry

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store := NewStore(db)
	require.NoError(t, store.AutoMigrate())
	return db
}

const openapiDoc = `{"swagger": "2.0", "info": {"title": "orders", "version": "1.0.0"}, "paths": {}}`

func TestEnsureServiceCreatesStub(t *testing.T) {
	store := NewStore(setupTestDB(t))

	svc, err := store.EnsureService("acme", "orders")
	require.NoError(t, err)
	assert.NotEmpty(t, svc.ID)
	assert.Equal(t, "acme", svc.Tenant)
	assert.Equal(t, "orders", svc.Name)
	assert.Contains(t, svc.Description, "orders")
}

func TestEnsureServiceIsIdempotent(t *testing.T) {
	store := NewStore(setupTestDB(t))

	first, err := store.EnsureService("acme", "orders")
	require.NoError(t, err)
	second, err := store.EnsureService("acme", "orders")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestEnsureServiceTenantIsolation(t *testing.T) {
	store := NewStore(setupTestDB(t))

	a, err := store.EnsureService("acme", "orders")
	require.NoError(t, err)
	b, err := store.EnsureService("globex", "orders")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestEnsureVersionCreatesServiceAndVersion(t *testing.T) {
	store := NewStore(setupTestDB(t))

	v, err := store.EnsureVersion("acme", "orders", "1.0.0", VersionMeta{
		Spec:      openapiDoc,
		GitSHA:    "abc123",
		CreatedBy: "ci",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, v.ID)
	assert.Equal(t, "1.0.0", v.Version)
	assert.Equal(t, "openapi", v.SpecType)
	assert.Equal(t, "abc123", v.GitSHA)

	svc, err := store.GetService("acme", "orders")
	require.NoError(t, err)
	require.NotNil(t, svc)
	assert.Equal(t, "openapi", svc.SpecType, "detected spec type should propagate to the service")
}

func TestEnsureVersionIsIdempotent(t *testing.T) {
	store := NewStore(setupTestDB(t))

	first, err := store.EnsureVersion("acme", "orders", "1.0.0", VersionMeta{Spec: openapiDoc})
	require.NoError(t, err)
	second, err := store.EnsureVersion("acme", "orders", "1.0.0", VersionMeta{Spec: openapiDoc})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestEnsureVersionSpecFillOnce(t *testing.T) {
	store := NewStore(setupTestDB(t))

	// First call records the version without a spec.
	v, err := store.EnsureVersion("acme", "orders", "1.0.0", VersionMeta{CreatedBy: "recorder"})
	require.NoError(t, err)
	assert.Empty(t, v.Spec)

	// A later spec upload fills it in place.
	filled, err := store.EnsureVersion("acme", "orders", "1.0.0", VersionMeta{Spec: openapiDoc})
	require.NoError(t, err)
	assert.Equal(t, v.ID, filled.ID)
	assert.Equal(t, openapiDoc, filled.Spec)
	assert.Equal(t, "openapi", filled.SpecType)

	// A third call with a different spec does not overwrite.
	other, err := store.EnsureVersion("acme", "orders", "1.0.0", VersionMeta{Spec: `{"openapi": "3.0.0"}`})
	require.NoError(t, err)
	assert.Equal(t, openapiDoc, other.Spec)
}

func TestGetVersionAbsent(t *testing.T) {
	store := NewStore(setupTestDB(t))

	v, err := store.GetVersion("acme", "orders", "1.0.0")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestListServicesPagination(t *testing.T) {
	store := NewStore(setupTestDB(t))
	for _, name := range []string{"alpha", "bravo", "charlie"} {
		_, err := store.EnsureService("acme", name)
		require.NoError(t, err)
	}

	page1, token, err := store.ListServices("acme", 2, "")
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotEmpty(t, token)

	page2, token2, err := store.ListServices("acme", 2, token)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Empty(t, token2)
	assert.Equal(t, "charlie", page2[0].Name)
}

func testVersions(t *testing.T, store *Store) []ServiceVersion {
	t.Helper()
	for i, ver := range []string{"1.0.0", "1.2.0", "2.0.0"} {
		v, err := store.EnsureVersion("acme", "orders", ver, VersionMeta{})
		require.NoError(t, err)
		// Make creation timestamps strictly increasing for "latest".
		require.NoError(t, store.db.Model(&ServiceVersion{}).Where("id = ?", v.ID).
			Update("created_at", time.Now().Add(time.Duration(i)*time.Second)).Error)
	}
	svc, err := store.GetService("acme", "orders")
	require.NoError(t, err)
	versions, err := store.ListVersions("acme", svc.ID)
	require.NoError(t, err)
	return versions
}

func TestResolveVersionLatest(t *testing.T) {
	store := NewStore(setupTestDB(t))
	versions := testVersions(t, store)

	resolved, err := ResolveVersion("orders", "latest", versions)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", resolved.Version)
}

func TestResolveVersionExactMatchWinsOverRange(t *testing.T) {
	store := NewStore(setupTestDB(t))
	versions := testVersions(t, store)

	// Exact "1.0.0" returns 1.0.0 even though 1.2.0 is a higher compatible version.
	resolved, err := ResolveVersion("orders", "1.0.0", versions)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", resolved.Version)
}

func TestResolveVersionSemverRange(t *testing.T) {
	store := NewStore(setupTestDB(t))
	versions := testVersions(t, store)

	resolved, err := ResolveVersion("orders", "^1.0.0", versions)
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", resolved.Version)
}

func TestResolveVersionNotFoundListsAvailable(t *testing.T) {
	store := NewStore(setupTestDB(t))
	versions := testVersions(t, store)

	_, err := ResolveVersion("orders", "3.0.0", versions)
	require.Error(t, err)

	notFound, ok := err.(*VersionNotFoundError)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"1.0.0", "1.2.0", "2.0.0"}, notFound.Available)
	assert.Contains(t, notFound.Error(), "available:")
}
