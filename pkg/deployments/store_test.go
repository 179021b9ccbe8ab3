package deployments

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/contracthub/contract-registry/pkg/registry"
)

func setupStores(t *testing.T) (*Store, *registry.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	reg := registry.NewStore(db)
	require.NoError(t, reg.AutoMigrate())
	store := NewStore(db, reg, nil)
	require.NoError(t, store.AutoMigrate())

	_, err = reg.EnsureVersion("acme", "orders", "1.0.0", registry.VersionMeta{})
	require.NoError(t, err)
	_, err = reg.EnsureVersion("acme", "orders", "1.1.0", registry.VersionMeta{})
	require.NoError(t, err)
	return store, reg
}

func TestDeployRecordsActiveDeployment(t *testing.T) {
	store, _ := setupStores(t)

	dep, err := store.Deploy(context.Background(), "acme", DeploySpec{
		Service:     "orders",
		Version:     "1.0.0",
		Environment: "production",
		GitSHA:      "abc123",
		DeployedBy:  "ci-bot",
	})
	require.NoError(t, err)
	assert.True(t, dep.Active)
	assert.Equal(t, StatusSuccessful, dep.Status)
	assert.NotEmpty(t, dep.VersionID)
}

func TestDeployNeverCreatesServices(t *testing.T) {
	store, _ := setupStores(t)

	_, err := store.Deploy(context.Background(), "acme", DeploySpec{
		Service:     "ghost",
		Version:     "1.0.0",
		Environment: "production",
	})
	var notFound *registry.ServiceNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestDeployUnknownVersionHintsAvailable(t *testing.T) {
	store, _ := setupStores(t)

	_, err := store.Deploy(context.Background(), "acme", DeploySpec{
		Service:     "orders",
		Version:     "9.9.9",
		Environment: "production",
	})
	var notFound *registry.VersionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.ElementsMatch(t, []string{"1.0.0", "1.1.0"}, notFound.Available)
}

func TestDeploySingleActivePerEnvironment(t *testing.T) {
	store, _ := setupStores(t)
	ctx := context.Background()

	for _, version := range []string{"1.0.0", "1.1.0", "1.0.0"} {
		_, err := store.Deploy(ctx, "acme", DeploySpec{
			Service:     "orders",
			Version:     version,
			Environment: "production",
		})
		require.NoError(t, err)
	}

	active, err := store.ListActive("acme", "production", false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "1.0.0", active[0].Version)

	all, err := store.ListActive("acme", "production", true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeployDefaultsEmptyTenant(t *testing.T) {
	store, reg := setupStores(t)

	_, err := reg.EnsureVersion("", "billing", "2.0.0", registry.VersionMeta{})
	require.NoError(t, err)

	dep, err := store.Deploy(context.Background(), "", DeploySpec{
		Service:     "billing",
		Version:     "2.0.0",
		Environment: "production",
	})
	require.NoError(t, err)
	assert.Equal(t, "default", dep.Tenant)

	active, err := store.ListActive("", "production", false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "2.0.0", active[0].Version)
}

func TestDeployEnvironmentsAreIndependent(t *testing.T) {
	store, _ := setupStores(t)
	ctx := context.Background()

	_, err := store.Deploy(ctx, "acme", DeploySpec{
		Service: "orders", Version: "1.0.0", Environment: "staging",
	})
	require.NoError(t, err)
	_, err = store.Deploy(ctx, "acme", DeploySpec{
		Service: "orders", Version: "1.1.0", Environment: "production",
	})
	require.NoError(t, err)

	staging, err := store.ListActive("acme", "staging", false)
	require.NoError(t, err)
	require.Len(t, staging, 1)
	assert.Equal(t, "1.0.0", staging[0].Version)

	production, err := store.ListActive("acme", "production", false)
	require.NoError(t, err)
	require.Len(t, production, 1)
	assert.Equal(t, "1.1.0", production[0].Version)
}

func TestHistoryNewestFirst(t *testing.T) {
	store, _ := setupStores(t)
	ctx := context.Background()

	for _, version := range []string{"1.0.0", "1.1.0"} {
		_, err := store.Deploy(ctx, "acme", DeploySpec{
			Service: "orders", Version: version, Environment: "production",
		})
		require.NoError(t, err)
	}

	history, nextToken, err := store.History("acme", "orders", "production", 10, "")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Empty(t, nextToken)
	assert.Equal(t, "1.1.0", history[0].Version)
	assert.False(t, history[1].Active)
}
