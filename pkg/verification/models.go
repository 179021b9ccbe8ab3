package verification

import "time"

// DependencyStatus is the compatibility status of a consumer-provider
// dependency, recomputed from the latest verification result.
type DependencyStatus string

const (
	DependencyPending  DependencyStatus = "pending"
	DependencyVerified DependencyStatus = "verified"
	DependencyFailed   DependencyStatus = "failed"
)

// VerificationTask is the GORM model for an assignment of recorded consumer
// interactions that a specific provider version must replay.
type VerificationTask struct {
	ID              string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	Tenant          string    `gorm:"column:tenant;index:idx_task_tenant_provider,priority:1;not null;default:default"`
	Consumer        string    `gorm:"column:consumer;not null"`
	Provider        string    `gorm:"column:provider;index:idx_task_tenant_provider,priority:2;not null"`
	ProviderVersion string    `gorm:"column:provider_version"`
	DependencyID    string    `gorm:"column:dependency_id;index:idx_task_dependency"`
	Interactions    string    `gorm:"column:interactions;type:text"`
	CreatedBy       string    `gorm:"column:created_by"`
	CreatedAt       time.Time `gorm:"column:created_at"`
}

// TableName returns the GORM table name.
func (VerificationTask) TableName() string { return "verification_tasks" }

// VerificationResult is the GORM model for the outcome of running a task.
// Rows are append-only; re-submission simply adds another row.
type VerificationResult struct {
	ID              string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	Tenant          string    `gorm:"column:tenant;not null;default:default"`
	TaskID          string    `gorm:"column:task_id;index:idx_result_task;not null"`
	ProviderVersion string    `gorm:"column:provider_version"`
	Results         string    `gorm:"column:results;type:text"`
	Total           int       `gorm:"column:total"`
	Passed          int       `gorm:"column:passed"`
	Failed          int       `gorm:"column:failed"`
	SubmittedAt     time.Time `gorm:"column:submitted_at;index:idx_result_submitted"`
}

// TableName returns the GORM table name.
func (VerificationResult) TableName() string { return "verification_results" }

// ServiceDependency is the GORM model tracking a consumer's use of a
// provider. Its status is a pure function of the newest result for tasks
// derived from it.
type ServiceDependency struct {
	ID             string           `gorm:"primaryKey;column:id;type:varchar(36)"`
	Tenant         string           `gorm:"column:tenant;uniqueIndex:idx_dep_tenant_pair,priority:1;not null;default:default"`
	Consumer       string           `gorm:"column:consumer;uniqueIndex:idx_dep_tenant_pair,priority:2;not null"`
	Provider       string           `gorm:"column:provider;uniqueIndex:idx_dep_tenant_pair,priority:3;not null"`
	Status         DependencyStatus `gorm:"column:status;not null;default:pending"`
	LastVerifiedAt *time.Time       `gorm:"column:last_verified_at"`
	CreatedAt      time.Time        `gorm:"column:created_at"`
	UpdatedAt      time.Time        `gorm:"column:updated_at"`
}

// TableName returns the GORM table name.
func (ServiceDependency) TableName() string { return "service_dependencies" }

// Interaction is one recorded consumer interaction a provider must replay.
type Interaction struct {
	ID          string         `json:"interactionId"`
	Description string         `json:"description,omitempty"`
	Operation   string         `json:"operation,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// ResultEntry is the per-interaction outcome of a verification run.
type ResultEntry struct {
	InteractionID string `json:"interactionId"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
}

// Summary aggregates the per-interaction outcomes of one submission.
type Summary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// TaskSpec is the input for creating a verification task.
type TaskSpec struct {
	Consumer        string
	Provider        string
	ProviderVersion string
	Interactions    []Interaction
	CreatedBy       string
}
