package fixtures

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contracthub/contract-registry/pkg/tenancy"
)

func serveFixtures(t *testing.T, store *Store, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	r = r.WithContext(tenancy.WithTenant(r.Context(), tenancy.TenantContext{Tenant: "acme", User: "alice"}))
	w := httptest.NewRecorder()
	Router(store).ServeHTTP(w, r)
	return w
}

const proposalBody = `{
	"service": "orders",
	"operation": "getOrder",
	"version": "1.0.0",
	"data": {
		"request": {"method": "GET", "path": "/orders/42"},
		"response": {"status": 200, "body": {"id": 42}}
	},
	"source": "consumer",
	"createdFrom": "interaction-recording"
}`

func TestProposeHandlerCreatedVsMatched(t *testing.T) {
	store, _, _ := setupStores(t)

	// First proposal creates: 201.
	w := serveFixtures(t, store, http.MethodPost, "/fixtures", proposalBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var first fixtureResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, "draft", first.Status)

	// Identical proposal matches: 200, same fixture id.
	w = serveFixtures(t, store, http.MethodPost, "/fixtures", proposalBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var second fixtureResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, first.ID, second.ID)
}

func TestProposeHandlerValidationError(t *testing.T) {
	store, _, _ := setupStores(t)

	w := serveFixtures(t, store, http.MethodPost, "/fixtures", `{"service": "orders"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApproveRejectRevokeEndpoints(t *testing.T) {
	store, _, _ := setupStores(t)

	w := serveFixtures(t, store, http.MethodPost, "/fixtures", proposalBody)
	require.Equal(t, http.StatusCreated, w.Code)
	var fixture fixtureResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fixture))

	// Approve defaults the approver to the caller identity.
	w = serveFixtures(t, store, http.MethodPost, "/fixtures/"+fixture.ID+":approve", `{"notes": "ok"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var approved fixtureResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &approved))
	assert.Equal(t, "approved", approved.Status)
	assert.Equal(t, "alice", approved.ApprovedBy)

	// Rejecting an approved fixture is a 404-style failure.
	w = serveFixtures(t, store, http.MethodPost, "/fixtures/"+fixture.ID+":reject", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Revoking the approved fixture succeeds.
	w = serveFixtures(t, store, http.MethodPost, "/fixtures/"+fixture.ID+":revoke", `{"notes": "stale"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var revoked fixtureResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &revoked))
	assert.Equal(t, "rejected", revoked.Status)
}

func TestGetFixtureHandlerNotFound(t *testing.T) {
	store, _, _ := setupStores(t)

	w := serveFixtures(t, store, http.MethodGet, "/fixtures/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListFixturesHandler(t *testing.T) {
	store, _, _ := setupStores(t)

	w := serveFixtures(t, store, http.MethodPost, "/fixtures", proposalBody)
	require.Equal(t, http.StatusCreated, w.Code)

	w = serveFixtures(t, store, http.MethodGet, "/fixtures?status=draft", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Fixtures  []fixtureResponse `json:"fixtures"`
		TotalSize int               `json:"totalSize"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.TotalSize)
	require.Len(t, resp.Fixtures, 1)
}
