package registry

import (
	"fmt"
	"strings"
)

// ServiceNotFoundError indicates a lookup for a service that is not
// registered in the tenant.
type ServiceNotFoundError struct {
	Tenant string
	Name   string
}

func (e *ServiceNotFoundError) Error() string {
	return fmt.Sprintf("service %q not found", e.Name)
}

// VersionNotFoundError indicates that no stored version satisfied the
// requested version or range. Available carries every version string the
// service currently has, so callers can surface a remediation hint.
type VersionNotFoundError struct {
	Service   string
	Requested string
	Available []string
}

func (e *VersionNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("no versions found for service %q", e.Service)
	}
	return fmt.Sprintf("version %q not found for service %q (available: %s)",
		e.Requested, e.Service, strings.Join(e.Available, ", "))
}
