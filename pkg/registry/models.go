package registry

import (
	"time"
)

// Service is the GORM model for a named consumer or provider application.
// Services are created lazily by whichever component first references them
// by name.
type Service struct {
	ID          string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	Tenant      string    `gorm:"column:tenant;uniqueIndex:idx_service_tenant_name,priority:1;not null;default:default"`
	Name        string    `gorm:"column:name;uniqueIndex:idx_service_tenant_name,priority:2;not null"`
	Description string    `gorm:"column:description"`
	SpecType    string    `gorm:"column:spec_type"`
	GitRepo     string    `gorm:"column:git_repo"`
	GitBranch   string    `gorm:"column:git_branch"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

// TableName returns the GORM table name.
func (Service) TableName() string { return "services" }

// ServiceVersion is the GORM model for an immutable snapshot of a service's
// spec and metadata at a version string. The spec document is "fill once":
// it is only overwritten if previously empty.
type ServiceVersion struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	Tenant    string    `gorm:"column:tenant;uniqueIndex:idx_version_tenant_svc_ver,priority:1;not null;default:default"`
	ServiceID string    `gorm:"column:service_id;uniqueIndex:idx_version_tenant_svc_ver,priority:2;index:idx_version_service;not null"`
	Version   string    `gorm:"column:version;uniqueIndex:idx_version_tenant_svc_ver,priority:3;not null"`
	Spec      string    `gorm:"column:spec;type:text"`
	SpecType  string    `gorm:"column:spec_type"`
	GitSHA    string    `gorm:"column:git_sha"`
	CreatedBy string    `gorm:"column:created_by"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName returns the GORM table name.
func (ServiceVersion) TableName() string { return "service_versions" }

// VersionMeta carries the optional metadata a caller can supply when
// ensuring a version exists.
type VersionMeta struct {
	Spec      string
	SpecType  string
	GitSHA    string
	CreatedBy string
}
