package registry

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/contracthub/contract-registry/pkg/apispec"
)

// Store provides database operations for services and service versions.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the services and service_versions tables.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Service{}); err != nil {
		return fmt.Errorf("auto-migrate services: %w", err)
	}
	if err := s.db.AutoMigrate(&ServiceVersion{}); err != nil {
		return fmt.Errorf("auto-migrate service_versions: %w", err)
	}
	return nil
}

// GetService retrieves a service by tenant and name.
// Returns nil, nil if no record exists.
func (s *Store) GetService(tenant, name string) (*Service, error) {
	if tenant == "" {
		tenant = "default"
	}
	var svc Service
	err := s.db.Where("tenant = ? AND name = ?", tenant, name).First(&svc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get service: %w", err)
	}
	return &svc, nil
}

// GetServiceByID retrieves a service by its id within a tenant.
// Returns nil, nil if no record exists.
func (s *Store) GetServiceByID(tenant, id string) (*Service, error) {
	var svc Service
	err := s.db.Where("tenant = ? AND id = ?", tenant, id).First(&svc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get service by id: %w", err)
	}
	return &svc, nil
}

// ListServices returns paginated services for a tenant, ordered by name.
// pageToken is the name of the last record from the previous page.
func (s *Store) ListServices(tenant string, pageSize int, pageToken string) ([]Service, string, error) {
	if tenant == "" {
		tenant = "default"
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	query := s.db.Where("tenant = ?", tenant).Order("name ASC").Limit(pageSize + 1)
	if pageToken != "" {
		query = query.Where("name > ?", pageToken)
	}

	var records []Service
	if err := query.Find(&records).Error; err != nil {
		return nil, "", fmt.Errorf("list services: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].Name
		records = records[:pageSize]
	}

	return records, nextToken, nil
}

// EnsureService returns the existing service for (tenant, name), creating a
// stub record if none exists. Safe to call concurrently: a unique-violation
// on create falls back to a lookup of the winner's row.
func (s *Store) EnsureService(tenant, name string) (*Service, error) {
	if tenant == "" {
		tenant = "default"
	}

	existing, err := s.GetService(tenant, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	svc := &Service{
		ID:          uuid.New().String(),
		Tenant:      tenant,
		Name:        name,
		Description: fmt.Sprintf("Auto-registered service %s", name),
	}
	if err := s.db.Create(svc).Error; err != nil {
		// Concurrent ensure may have created it first.
		raceExisting, lookupErr := s.GetService(tenant, name)
		if lookupErr == nil && raceExisting != nil {
			return raceExisting, nil
		}
		return nil, fmt.Errorf("create service: %w", err)
	}
	return svc, nil
}

// UpdateServiceMetadata fills spec type and git metadata on a service where
// the fields are currently empty. Existing values are never overwritten.
func (s *Store) UpdateServiceMetadata(svc *Service, specType, gitRepo, gitBranch string) error {
	updates := map[string]any{}
	if specType != "" && svc.SpecType == "" {
		updates["spec_type"] = specType
		svc.SpecType = specType
	}
	if gitRepo != "" && svc.GitRepo == "" {
		updates["git_repo"] = gitRepo
		svc.GitRepo = gitRepo
	}
	if gitBranch != "" && svc.GitBranch == "" {
		updates["git_branch"] = gitBranch
		svc.GitBranch = gitBranch
	}
	if len(updates) == 0 {
		return nil
	}
	if err := s.db.Model(&Service{}).Where("id = ?", svc.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update service metadata: %w", err)
	}
	return nil
}

// EnsureVersion materializes (tenant, serviceName, version), creating the
// service stub and the version record as needed. If the version exists but
// has no spec and meta now supplies one, the spec is filled in place.
// Idempotent: every producer of a version calls this independently.
func (s *Store) EnsureVersion(tenant, serviceName, version string, meta VersionMeta) (*ServiceVersion, error) {
	if tenant == "" {
		tenant = "default"
	}

	svc, err := s.EnsureService(tenant, serviceName)
	if err != nil {
		return nil, err
	}

	specType := meta.SpecType
	if specType == "" && meta.Spec != "" {
		specType = string(apispec.Detect([]byte(meta.Spec)))
	}

	// Propagate a detected spec type onto the service if it has none yet.
	if specType != "" && svc.SpecType == "" {
		if err := s.db.Model(&Service{}).Where("id = ?", svc.ID).
			Update("spec_type", specType).Error; err != nil {
			return nil, fmt.Errorf("update service spec type: %w", err)
		}
		svc.SpecType = specType
	}

	var existing ServiceVersion
	err = s.db.Where("tenant = ? AND service_id = ? AND version = ?", tenant, svc.ID, version).
		First(&existing).Error
	if err == nil {
		// Spec is fill-once: only write it if previously empty.
		if existing.Spec == "" && meta.Spec != "" {
			updates := map[string]any{
				"spec":      meta.Spec,
				"spec_type": specType,
			}
			if meta.GitSHA != "" {
				updates["git_sha"] = meta.GitSHA
			}
			if err := s.db.Model(&ServiceVersion{}).Where("id = ?", existing.ID).
				Updates(updates).Error; err != nil {
				return nil, fmt.Errorf("fill version spec: %w", err)
			}
			existing.Spec = meta.Spec
			existing.SpecType = specType
			if meta.GitSHA != "" {
				existing.GitSHA = meta.GitSHA
			}
		}
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("get version: %w", err)
	}

	record := &ServiceVersion{
		ID:        uuid.New().String(),
		Tenant:    tenant,
		ServiceID: svc.ID,
		Version:   version,
		Spec:      meta.Spec,
		SpecType:  specType,
		GitSHA:    meta.GitSHA,
		CreatedBy: meta.CreatedBy,
	}
	if err := s.db.Create(record).Error; err != nil {
		// Concurrent ensure may have created the same version first.
		var raceExisting ServiceVersion
		lookupErr := s.db.Where("tenant = ? AND service_id = ? AND version = ?", tenant, svc.ID, version).
			First(&raceExisting).Error
		if lookupErr == nil {
			return &raceExisting, nil
		}
		return nil, fmt.Errorf("create version: %w", err)
	}
	return record, nil
}

// GetVersion retrieves a version record by tenant, service name, and exact
// version string. Returns nil, nil if either the service or version is absent.
func (s *Store) GetVersion(tenant, serviceName, version string) (*ServiceVersion, error) {
	svc, err := s.GetService(tenant, serviceName)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, nil
	}

	var record ServiceVersion
	err = s.db.Where("tenant = ? AND service_id = ? AND version = ?", tenant, svc.ID, version).
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get version: %w", err)
	}
	return &record, nil
}

// GetVersionByID retrieves a version record by its id within a tenant.
// Returns nil, nil if no record exists.
func (s *Store) GetVersionByID(tenant, id string) (*ServiceVersion, error) {
	var record ServiceVersion
	err := s.db.Where("tenant = ? AND id = ?", tenant, id).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get version by id: %w", err)
	}
	return &record, nil
}

// ListVersions returns every version of a service, newest first.
func (s *Store) ListVersions(tenant, serviceID string) ([]ServiceVersion, error) {
	var records []ServiceVersion
	err := s.db.Where("tenant = ? AND service_id = ?", tenant, serviceID).
		Order("created_at DESC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return records, nil
}

// ResolveVersion finds the best match for a requested version among the
// given candidates. "latest" picks the newest by creation time; an exact
// string match wins next; otherwise requested is treated as a semver range
// and the highest satisfying version is returned. Fails with
// VersionNotFoundError carrying the available version list when nothing
// satisfies.
func ResolveVersion(serviceName, requested string, versions []ServiceVersion) (*ServiceVersion, error) {
	available := make([]string, len(versions))
	for i, v := range versions {
		available[i] = v.Version
	}

	if len(versions) == 0 {
		return nil, &VersionNotFoundError{Service: serviceName, Requested: requested}
	}

	if requested == "" || requested == "latest" {
		newest := versions[0]
		for _, v := range versions[1:] {
			if v.CreatedAt.After(newest.CreatedAt) {
				newest = v
			}
		}
		return &newest, nil
	}

	for i := range versions {
		if versions[i].Version == requested {
			return &versions[i], nil
		}
	}

	constraint, err := semver.NewConstraint(requested)
	if err != nil {
		return nil, &VersionNotFoundError{Service: serviceName, Requested: requested, Available: available}
	}

	type candidate struct {
		parsed *semver.Version
		record *ServiceVersion
	}
	var satisfying []candidate
	for i := range versions {
		parsed, err := semver.NewVersion(versions[i].Version)
		if err != nil {
			continue
		}
		if constraint.Check(parsed) {
			satisfying = append(satisfying, candidate{parsed: parsed, record: &versions[i]})
		}
	}

	if len(satisfying) == 0 {
		return nil, &VersionNotFoundError{Service: serviceName, Requested: requested, Available: available}
	}

	sort.Slice(satisfying, func(i, j int) bool {
		return satisfying[i].parsed.GreaterThan(satisfying[j].parsed)
	})
	return satisfying[0].record, nil
}
