package deployments

import "time"

// DeploymentStatus is the recorded outcome of a deployment attempt.
type DeploymentStatus string

const (
	StatusSuccessful DeploymentStatus = "successful"
	StatusFailed     DeploymentStatus = "failed"
)

// Deployment is the GORM model for one deployment of a service version to an
// environment. Rows are immutable once written except for the active flag,
// which is cleared when a newer deployment supersedes them.
type Deployment struct {
	ID          string           `gorm:"primaryKey;column:id;type:varchar(36)"`
	Tenant      string           `gorm:"column:tenant;index:idx_deployment_tenant_env,priority:1;not null;default:default"`
	ServiceID   string           `gorm:"column:service_id;index:idx_deployment_service;not null"`
	Service     string           `gorm:"column:service;not null"`
	VersionID   string           `gorm:"column:version_id;not null"`
	Version     string           `gorm:"column:version;not null"`
	Environment string           `gorm:"column:environment;index:idx_deployment_tenant_env,priority:2;not null"`
	GitSHA      string           `gorm:"column:git_sha"`
	DeployedBy  string           `gorm:"column:deployed_by"`
	Active      bool             `gorm:"column:active;index:idx_deployment_active;not null;default:false"`
	Status      DeploymentStatus `gorm:"column:status;not null;default:successful"`
	DeployedAt  time.Time        `gorm:"column:deployed_at"`
}

// TableName returns the GORM table name.
func (Deployment) TableName() string { return "deployments" }

// DeploySpec is the input for recording a deployment.
type DeploySpec struct {
	Service     string
	Version     string
	Environment string
	GitSHA      string
	DeployedBy  string
}
