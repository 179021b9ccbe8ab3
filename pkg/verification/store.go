package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/contracthub/contract-registry/pkg/events"
	"github.com/contracthub/contract-registry/pkg/registry"
)

// Store coordinates verification tasks, results, and dependency status.
type Store struct {
	db       *gorm.DB
	registry *registry.Store
	sink     events.Sink
}

// NewStore creates a new Store. sink may be nil.
func NewStore(db *gorm.DB, reg *registry.Store, sink events.Sink) *Store {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Store{db: db, registry: reg, sink: sink}
}

// AutoMigrate creates or updates the verification tables.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&VerificationTask{}); err != nil {
		return fmt.Errorf("auto-migrate verification_tasks: %w", err)
	}
	if err := s.db.AutoMigrate(&VerificationResult{}); err != nil {
		return fmt.Errorf("auto-migrate verification_results: %w", err)
	}
	if err := s.db.AutoMigrate(&ServiceDependency{}); err != nil {
		return fmt.Errorf("auto-migrate service_dependencies: %w", err)
	}
	return nil
}

// CreateTask records a verification task for a consumer-provider pair,
// lazily creating the dependency row the task derives from. Both services
// must already be registered.
func (s *Store) CreateTask(ctx context.Context, tenant string, spec TaskSpec) (*VerificationTask, error) {
	if tenant == "" {
		tenant = "default"
	}

	for _, name := range []string{spec.Consumer, spec.Provider} {
		svc, err := s.registry.GetService(tenant, name)
		if err != nil {
			return nil, err
		}
		if svc == nil {
			return nil, &NotFoundError{Kind: "service", Name: name}
		}
	}

	dep, err := s.ensureDependency(tenant, spec.Consumer, spec.Provider)
	if err != nil {
		return nil, err
	}

	interactions, err := json.Marshal(spec.Interactions)
	if err != nil {
		return nil, fmt.Errorf("encode interactions: %w", err)
	}

	task := &VerificationTask{
		ID:              uuid.New().String(),
		Tenant:          tenant,
		Consumer:        spec.Consumer,
		Provider:        spec.Provider,
		ProviderVersion: spec.ProviderVersion,
		DependencyID:    dep.ID,
		Interactions:    string(interactions),
		CreatedBy:       spec.CreatedBy,
	}
	if err := s.db.Create(task).Error; err != nil {
		return nil, fmt.Errorf("create verification task: %w", err)
	}
	return task, nil
}

// ensureDependency returns the dependency row for (consumer, provider),
// creating a pending one if none exists. A unique-violation race on create
// falls back to a lookup.
func (s *Store) ensureDependency(tenant, consumer, provider string) (*ServiceDependency, error) {
	var dep ServiceDependency
	err := s.db.Where("tenant = ? AND consumer = ? AND provider = ?", tenant, consumer, provider).
		First(&dep).Error
	if err == nil {
		return &dep, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("get dependency: %w", err)
	}

	dep = ServiceDependency{
		ID:       uuid.New().String(),
		Tenant:   tenant,
		Consumer: consumer,
		Provider: provider,
		Status:   DependencyPending,
	}
	if err := s.db.Create(&dep).Error; err != nil {
		var raceExisting ServiceDependency
		lookupErr := s.db.Where("tenant = ? AND consumer = ? AND provider = ?", tenant, consumer, provider).
			First(&raceExisting).Error
		if lookupErr == nil {
			return &raceExisting, nil
		}
		return nil, fmt.Errorf("create dependency: %w", err)
	}
	return &dep, nil
}

// GetTask retrieves a task by id within a tenant. Returns nil, nil if no
// record exists.
func (s *Store) GetTask(tenant, id string) (*VerificationTask, error) {
	var task VerificationTask
	err := s.db.Where("tenant = ? AND id = ?", tenant, id).First(&task).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &task, nil
}

// ListPendingTasks returns tasks that no result references yet: an
// anti-join of tasks against results on task id. When provider is
// non-empty only that provider's tasks are returned. Environment is
// deliberately not part of the match.
func (s *Store) ListPendingTasks(tenant, provider string) ([]VerificationTask, error) {
	if tenant == "" {
		tenant = "default"
	}

	query := s.db.Model(&VerificationTask{}).
		Joins("LEFT JOIN verification_results ON verification_results.task_id = verification_tasks.id").
		Where("verification_tasks.tenant = ? AND verification_results.id IS NULL", tenant)
	if provider != "" {
		query = query.Where("verification_tasks.provider = ?", provider)
	}

	var tasks []VerificationTask
	if err := query.Order("verification_tasks.created_at ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	return tasks, nil
}

// GetDependency retrieves the dependency row for (consumer, provider).
// Returns nil, nil if no record exists.
func (s *Store) GetDependency(tenant, consumer, provider string) (*ServiceDependency, error) {
	var dep ServiceDependency
	err := s.db.Where("tenant = ? AND consumer = ? AND provider = ?", tenant, consumer, provider).
		First(&dep).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get dependency: %w", err)
	}
	return &dep, nil
}

// ListDependencies returns every dependency involving the given service,
// as consumer or provider.
func (s *Store) ListDependencies(tenant, service string) ([]ServiceDependency, error) {
	if tenant == "" {
		tenant = "default"
	}
	query := s.db.Where("tenant = ?", tenant)
	if service != "" {
		query = query.Where("consumer = ? OR provider = ?", service, service)
	}
	var deps []ServiceDependency
	if err := query.Order("created_at ASC").Find(&deps).Error; err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	return deps, nil
}

// SubmitResult ingests the outcome of running a task. The task id must be a
// valid UUID referencing an existing task, and both the task's consumer and
// the submitting provider must be registered services. A task with zero
// interactions is a vacuous pass. Re-submission is permitted and appends
// another result row; dependency status reflects the newest submission.
func (s *Store) SubmitResult(ctx context.Context, tenant, provider, taskID, providerVersion string, entries []ResultEntry) (*Summary, bool, error) {
	if tenant == "" {
		tenant = "default"
	}

	if _, err := uuid.Parse(taskID); err != nil {
		return nil, false, &InvalidIdentifierError{ID: taskID}
	}

	task, err := s.GetTask(tenant, taskID)
	if err != nil {
		return nil, false, err
	}
	if task == nil {
		return nil, false, &NotFoundError{Kind: "verification task", Name: taskID}
	}

	for _, name := range []string{task.Consumer, provider} {
		svc, err := s.registry.GetService(tenant, name)
		if err != nil {
			return nil, false, err
		}
		if svc == nil {
			return nil, false, &NotFoundError{Kind: "service", Name: name}
		}
	}

	summary := Summary{Total: len(entries)}
	for _, e := range entries {
		if e.Success {
			summary.Passed++
		}
	}
	summary.Failed = summary.Total - summary.Passed

	encoded, err := json.Marshal(entries)
	if err != nil {
		return nil, false, fmt.Errorf("encode results: %w", err)
	}

	now := time.Now()
	record := &VerificationResult{
		ID:              uuid.New().String(),
		Tenant:          tenant,
		TaskID:          task.ID,
		ProviderVersion: providerVersion,
		Results:         string(encoded),
		Total:           summary.Total,
		Passed:          summary.Passed,
		Failed:          summary.Failed,
		SubmittedAt:     now,
	}
	if err := s.db.Create(record).Error; err != nil {
		return nil, false, fmt.Errorf("create verification result: %w", err)
	}

	dependencyUpdated := false
	if task.DependencyID != "" {
		status := DependencyFailed
		if summary.Passed == summary.Total {
			status = DependencyVerified
		}
		err := s.db.Model(&ServiceDependency{}).Where("id = ?", task.DependencyID).
			Updates(map[string]any{
				"status":           status,
				"last_verified_at": now,
			}).Error
		if err != nil {
			return nil, false, fmt.Errorf("update dependency status: %w", err)
		}
		dependencyUpdated = true

		s.sink.Notify(ctx, tenant, events.TypeDependencyUpdated, map[string]any{
			"id":       task.DependencyID,
			"service":  task.Provider,
			"consumer": task.Consumer,
			"status":   string(status),
		})
	}

	s.sink.Notify(ctx, tenant, events.TypeVerificationResult, map[string]any{
		"id":      record.ID,
		"service": task.Provider,
		"taskId":  task.ID,
		"total":   summary.Total,
		"passed":  summary.Passed,
		"failed":  summary.Failed,
	})

	return &summary, dependencyUpdated, nil
}

// ListResults returns every result for a task, newest first.
func (s *Store) ListResults(tenant, taskID string) ([]VerificationResult, error) {
	var records []VerificationResult
	err := s.db.Where("tenant = ? AND task_id = ?", tenant, taskID).
		Order("submitted_at DESC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return records, nil
}
