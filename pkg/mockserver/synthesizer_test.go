package mockserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/contracthub/contract-registry/pkg/apispec"
	"github.com/contracthub/contract-registry/pkg/cache"
	"github.com/contracthub/contract-registry/pkg/fixtures"
	"github.com/contracthub/contract-registry/pkg/registry"
)

const petstoreSpec = `{
	"swagger": "2.0",
	"info": {"title": "petstore", "version": "1.0.0"},
	"paths": {
		"/pets": {
			"get": {
				"operationId": "listPets",
				"responses": {
					"200": {
						"description": "pets",
						"schema": {
							"type": "array",
							"items": {
								"type": "object",
								"properties": {
									"id": {"type": "integer"},
									"name": {"type": "string", "example": "rex"}
								}
							}
						}
					}
				}
			}
		},
		"/pets/{petId}": {
			"get": {
				"operationId": "getPet",
				"responses": {
					"200": {
						"description": "a pet",
						"schema": {
							"type": "object",
							"properties": {
								"id": {"type": "integer"},
								"name": {"type": "string"}
							}
						}
					}
				}
			}
		}
	}
}`

func setupSynthesizer(t *testing.T) (*Synthesizer, *fixtures.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	reg := registry.NewStore(db)
	require.NoError(t, reg.AutoMigrate())
	fx := fixtures.NewStore(db, reg, nil)
	require.NoError(t, fx.AutoMigrate())

	_, err = reg.EnsureVersion("acme", "petstore", "1.0.0", registry.VersionMeta{Spec: petstoreSpec})
	require.NoError(t, err)

	synth := NewSynthesizer(fx, reg, apispec.NewParser(), cache.New[*HandlerSet](32, time.Hour))
	fx.SetInvalidator(synth)
	return synth, fx
}

func fixtureBody(t *testing.T, raw string) map[string]any {
	t.Helper()
	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &data))
	return data
}

func approveFixture(t *testing.T, fx *fixtures.Store, operation string, priority int, data map[string]any) *fixtures.Fixture {
	t.Helper()
	ctx := context.Background()
	fixture, _, err := fx.Propose(ctx, "acme", fixtures.Proposal{
		Service:   "petstore",
		Operation: operation,
		Version:   "1.0.0",
		Data:      data,
		Source:    fixtures.SourceConsumer,
		Priority:  priority,
	})
	require.NoError(t, err)
	approved, err := fx.Approve(ctx, "acme", fixture.ID, "reviewer", "")
	require.NoError(t, err)
	return approved
}

func TestSyntheticFallbackWhenNoFixtures(t *testing.T) {
	synth, _ := setupSynthesizer(t)

	set, err := synth.Handlers(context.Background(), "acme", "petstore", "1.0.0")
	require.NoError(t, err)

	resp := Handle(http.MethodGet, "/pets", set)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "synthetic", resp.Headers[MatchHeader])

	items, ok := resp.Body.([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "rex", items[0].(map[string]any)["name"])
}

func TestFixtureResponseBeatsSynthetic(t *testing.T) {
	synth, fx := setupSynthesizer(t)

	approveFixture(t, fx, "listPets", 1, fixtureBody(t, `{
		"request": {"method": "GET", "path": "/pets"},
		"response": {"status": 200, "body": [{"id": 7, "name": "bella"}]}
	}`))

	set, err := synth.Handlers(context.Background(), "acme", "petstore", "1.0.0")
	require.NoError(t, err)

	resp := Handle(http.MethodGet, "/pets", set)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "fixture", resp.Headers[MatchHeader])

	items, ok := resp.Body.([]any)
	require.True(t, ok)
	assert.Equal(t, "bella", items[0].(map[string]any)["name"])
}

func TestHigherPriorityFixtureWins(t *testing.T) {
	synth, fx := setupSynthesizer(t)

	approveFixture(t, fx, "listPets", 1, fixtureBody(t, `{
		"request": {"method": "GET", "path": "/pets"},
		"response": {"status": 200, "body": [{"name": "low"}]}
	}`))
	approveFixture(t, fx, "listPets", 5, fixtureBody(t, `{
		"request": {"method": "GET", "path": "/pets"},
		"response": {"status": 200, "body": [{"name": "high"}]}
	}`))

	set, err := synth.Handlers(context.Background(), "acme", "petstore", "1.0.0")
	require.NoError(t, err)

	resp := Handle(http.MethodGet, "/pets", set)
	items := resp.Body.([]any)
	assert.Equal(t, "high", items[0].(map[string]any)["name"])
}

func TestEqualPriorityNewerFixtureWins(t *testing.T) {
	synth, fx := setupSynthesizer(t)

	approveFixture(t, fx, "listPets", 3, fixtureBody(t, `{
		"request": {"method": "GET", "path": "/pets"},
		"response": {"status": 200, "body": [{"name": "older"}]}
	}`))
	time.Sleep(5 * time.Millisecond)
	approveFixture(t, fx, "listPets", 3, fixtureBody(t, `{
		"request": {"method": "GET", "path": "/pets"},
		"response": {"status": 200, "body": [{"name": "newer"}]}
	}`))

	set, err := synth.Handlers(context.Background(), "acme", "petstore", "1.0.0")
	require.NoError(t, err)

	resp := Handle(http.MethodGet, "/pets", set)
	items := resp.Body.([]any)
	assert.Equal(t, "newer", items[0].(map[string]any)["name"])
}

func TestPathTemplateMatching(t *testing.T) {
	synth, fx := setupSynthesizer(t)

	approveFixture(t, fx, "getPet", 1, fixtureBody(t, `{
		"request": {"method": "GET", "path": "/pets/42"},
		"response": {"status": 200, "body": {"id": 42, "name": "bella"}}
	}`))

	set, err := synth.Handlers(context.Background(), "acme", "petstore", "1.0.0")
	require.NoError(t, err)

	resp := Handle(http.MethodGet, "/pets/42", set)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "fixture", resp.Headers[MatchHeader])
	body := resp.Body.(map[string]any)
	assert.Equal(t, "bella", body["name"])
}

func TestUnmatchedRequestIsMockMiss(t *testing.T) {
	synth, _ := setupSynthesizer(t)

	set, err := synth.Handlers(context.Background(), "acme", "petstore", "1.0.0")
	require.NoError(t, err)

	resp := Handle(http.MethodDelete, "/warehouses/9", set)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, "none", resp.Headers[MatchHeader])
}

func TestFixtureOnlyOperationGetsHandler(t *testing.T) {
	synth, fx := setupSynthesizer(t)

	approveFixture(t, fx, "pingAdmin", 1, fixtureBody(t, `{
		"request": {"method": "GET", "path": "/admin/ping"},
		"response": {"status": 200, "body": {"ok": true}}
	}`))

	set, err := synth.Handlers(context.Background(), "acme", "petstore", "1.0.0")
	require.NoError(t, err)

	resp := Handle(http.MethodGet, "/admin/ping", set)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "fixture", resp.Headers[MatchHeader])
}

func TestApprovalInvalidatesCachedHandlers(t *testing.T) {
	synth, fx := setupSynthesizer(t)
	ctx := context.Background()

	// Prime the cache with the synthetic-only handler set.
	set, err := synth.Handlers(ctx, "acme", "petstore", "1.0.0")
	require.NoError(t, err)
	resp := Handle(http.MethodGet, "/pets", set)
	require.Equal(t, "synthetic", resp.Headers[MatchHeader])

	approveFixture(t, fx, "listPets", 1, fixtureBody(t, `{
		"request": {"method": "GET", "path": "/pets"},
		"response": {"status": 200, "body": [{"name": "fresh"}]}
	}`))

	set, err = synth.Handlers(ctx, "acme", "petstore", "1.0.0")
	require.NoError(t, err)
	resp = Handle(http.MethodGet, "/pets", set)
	assert.Equal(t, "fixture", resp.Headers[MatchHeader])
}

func TestHandlersResolvesVersionRanges(t *testing.T) {
	synth, _ := setupSynthesizer(t)

	for _, requested := range []string{"latest", "^1.0.0", "1.0.0"} {
		set, err := synth.Handlers(context.Background(), "acme", "petstore", requested)
		require.NoError(t, err, fmt.Sprintf("requested %s", requested))
		assert.Equal(t, "1.0.0", set.Version)
	}
}

func TestHandlersUnknownVersionListsAvailable(t *testing.T) {
	synth, _ := setupSynthesizer(t)

	_, err := synth.Handlers(context.Background(), "acme", "petstore", "9.9.9")
	var notFound *registry.VersionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, []string{"1.0.0"}, notFound.Available)
}
