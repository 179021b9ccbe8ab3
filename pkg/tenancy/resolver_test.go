package tenancy

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleTenantResolverDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/registry/v1alpha1/services", nil)
	r.Header.Set(UserHeader, "alice")

	tc, err := SingleTenantResolver{}.Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, "default", tc.Tenant)
	assert.Equal(t, "alice", tc.User)
}

func TestHeaderTenantResolverQueryParam(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/registry/v1alpha1/services?tenant=acme", nil)

	tc, err := HeaderTenantResolver{}.Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, "acme", tc.Tenant)
}

func TestHeaderTenantResolverHeaderFallback(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/registry/v1alpha1/services", nil)
	r.Header.Set(TenantHeader, "acme-corp")

	tc, err := HeaderTenantResolver{}.Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, "acme-corp", tc.Tenant)
}

func TestHeaderTenantResolverQueryParamWins(t *testing.T) {
	r := httptest.NewRequest("GET", "/?tenant=from-query", nil)
	r.Header.Set(TenantHeader, "from-header")

	tc, err := HeaderTenantResolver{}.Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, "from-query", tc.Tenant)
}

func TestHeaderTenantResolverMissingTenant(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)

	_, err := HeaderTenantResolver{}.Resolve(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenant is required")
}

func TestHeaderTenantResolverInvalidTenant(t *testing.T) {
	cases := []string{"UPPER", "-leading", "trailing-", "has_underscore", "has.dot"}
	for _, tenant := range cases {
		r := httptest.NewRequest("GET", "/?tenant="+tenant, nil)
		_, err := HeaderTenantResolver{}.Resolve(r)
		assert.Error(t, err, "tenant %q should be rejected", tenant)
	}
}

func TestHeaderTenantResolverTooLong(t *testing.T) {
	long := make([]byte, maxTenantLen+1)
	for i := range long {
		long[i] = 'a'
	}
	r := httptest.NewRequest("GET", "/?tenant="+string(long), nil)

	_, err := HeaderTenantResolver{}.Resolve(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum length")
}
