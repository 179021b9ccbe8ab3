package tenancy

import (
	"fmt"
	"net/http"
	"regexp"
)

// maxTenantLen is the maximum length for a tenant slug.
const maxTenantLen = 63

// tenantRe validates tenant slug format: lowercase alphanumeric and hyphens,
// must start and end with an alphanumeric character.
var tenantRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// TenantQueryParam is the query parameter name used for tenant resolution.
const TenantQueryParam = "tenant"

// TenantHeader is the HTTP header used for tenant resolution.
const TenantHeader = "X-Tenant"

// UserHeader is the HTTP header carrying the authenticated caller identity.
// The auth layer in front of this service is expected to set it.
const UserHeader = "X-Remote-User"

// TenantResolver resolves the tenant context from an HTTP request.
type TenantResolver interface {
	Resolve(r *http.Request) (TenantContext, error)
}

// SingleTenantResolver always returns the "default" tenant.
type SingleTenantResolver struct{}

// Resolve always returns a TenantContext with Tenant "default".
func (s SingleTenantResolver) Resolve(r *http.Request) (TenantContext, error) {
	return TenantContext{Tenant: "default", User: r.Header.Get(UserHeader)}, nil
}

// HeaderTenantResolver reads the tenant from the request query parameter or
// header. In multi-tenant mode a tenant is always required.
type HeaderTenantResolver struct{}

// Resolve extracts the tenant from the request. It checks the query parameter
// first, then falls back to the X-Tenant header. Returns an error if the
// tenant is missing or invalid.
func (h HeaderTenantResolver) Resolve(r *http.Request) (TenantContext, error) {
	tenant := r.URL.Query().Get(TenantQueryParam)
	if tenant == "" {
		tenant = r.Header.Get(TenantHeader)
	}

	if tenant == "" {
		return TenantContext{}, fmt.Errorf("tenant is required in multi-tenant mode (use ?tenant= query param or X-Tenant header)")
	}

	if err := validateTenant(tenant); err != nil {
		return TenantContext{}, err
	}

	return TenantContext{Tenant: tenant, User: r.Header.Get(UserHeader)}, nil
}

// validateTenant checks that a tenant slug consists of lowercase alphanumeric
// characters or hyphens, is 1-63 characters, and starts and ends with an
// alphanumeric character.
func validateTenant(tenant string) error {
	if len(tenant) > maxTenantLen {
		return fmt.Errorf("tenant %q exceeds maximum length of %d characters", tenant, maxTenantLen)
	}
	if !tenantRe.MatchString(tenant) {
		return fmt.Errorf("tenant %q is invalid: must consist of lowercase alphanumeric characters or hyphens, and must start and end with an alphanumeric character", tenant)
	}
	return nil
}
