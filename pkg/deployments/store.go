package deployments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/contracthub/contract-registry/pkg/events"
	"github.com/contracthub/contract-registry/pkg/registry"
)

// Store tracks which service version is running in which environment.
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

// AutoMigrate creates or updates the deployments table.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Deployment{})
}

// Deploy records that a version of a service has been deployed to an
// environment. The service and the exact version must already be registered;
// deployment never creates either. The previous active deployment for the
// same service and environment is deactivated in the same transaction, so at
// most one row per (tenant, service, environment) is active at any time.
func (s *Store) Deploy(ctx context.Context, tenant string, spec DeploySpec) (*Deployment, error) {
	if tenant == "" {
		tenant = "default"
	}
	if spec.Environment == "" {
		return nil, fmt.Errorf("environment is required")
	}

	svc, err := s.registry.GetService(tenant, spec.Service)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, &registry.ServiceNotFoundError{Tenant: tenant, Name: spec.Service}
	}

	ver, err := s.registry.GetVersion(tenant, spec.Service, spec.Version)
	if err != nil {
		return nil, err
	}
	if ver == nil {
		available, err := s.availableVersions(tenant, svc.ID)
		if err != nil {
			return nil, err
		}
		return nil, &registry.VersionNotFoundError{
			Service:   spec.Service,
			Requested: spec.Version,
			Available: available,
		}
	}

	dep := &Deployment{
		ID:          uuid.New().String(),
		Tenant:      tenant,
		ServiceID:   svc.ID,
		Service:     svc.Name,
		VersionID:   ver.ID,
		Version:     ver.Version,
		Environment: spec.Environment,
		GitSHA:      spec.GitSHA,
		DeployedBy:  spec.DeployedBy,
		Active:      true,
		Status:      StatusSuccessful,
		DeployedAt:  time.Now().UTC(),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Deployment{}).
			Where("tenant = ? AND service_id = ? AND environment = ? AND active = ?",
				tenant, svc.ID, spec.Environment, true).
			Update("active", false).Error; err != nil {
			return fmt.Errorf("deactivate previous deployments: %w", err)
		}
		if err := tx.Create(dep).Error; err != nil {
			return fmt.Errorf("create deployment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sink.Notify(ctx, tenant, events.TypeDeploymentCreated, map[string]any{
		"id":          dep.ID,
		"service":     dep.Service,
		"version":     dep.Version,
		"environment": dep.Environment,
		"deployedBy":  dep.DeployedBy,
	})
	return dep, nil
}

func (s *Store) availableVersions(tenant, serviceID string) ([]string, error) {
	versions, err := s.registry.ListVersions(tenant, serviceID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(versions))
	for _, v := range versions {
		out = append(out, v.Version)
	}
	return out, nil
}

// ListActive returns the current deployment of every service in an
// environment. Unless includeInactive is set, only active rows with a
// successful status are returned.
func (s *Store) ListActive(tenant, environment string, includeInactive bool) ([]Deployment, error) {
	if tenant == "" {
		tenant = "default"
	}
	query := s.db.Where("tenant = ? AND environment = ?", tenant, environment)
	if !includeInactive {
		query = query.Where("active = ? AND status = ?", true, StatusSuccessful)
	}
	var records []Deployment
	if err := query.Order("deployed_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list active deployments: %w", err)
	}
	return records, nil
}

// History returns the deployment log for a service, newest first. An empty
// environment matches all environments.
func (s *Store) History(tenant, service, environment string, pageSize int, pageToken string) ([]Deployment, string, error) {
	if tenant == "" {
		tenant = "default"
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	query := s.db.Where("tenant = ? AND service = ?", tenant, service)
	if environment != "" {
		query = query.Where("environment = ?", environment)
	}
	query = query.Order("deployed_at DESC").Limit(pageSize + 1)
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("deployed_at < ?", t)
	}

	var records []Deployment
	if err := query.Find(&records).Error; err != nil {
		return nil, "", fmt.Errorf("list deployment history: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].DeployedAt.Format(time.RFC3339Nano)
		records = records[:pageSize]
	}
	return records, nextToken, nil
}
