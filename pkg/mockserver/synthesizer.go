package mockserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/contracthub/contract-registry/pkg/apispec"
	"github.com/contracthub/contract-registry/pkg/cache"
	"github.com/contracthub/contract-registry/pkg/fixtures"
	"github.com/contracthub/contract-registry/pkg/registry"
)

// Synthesizer builds and caches mock handler sets. The cache is bounded and
// TTL'd, and entries are dropped when the approved-fixture set of a service
// changes. Concurrent first requests for the same key share a single build.
type Synthesizer struct {
	fixtures *fixtures.Store
	registry *registry.Store
	parser   apispec.Parser
	cache    *cache.Cache[*HandlerSet]
	group    singleflight.Group
}

// NewSynthesizer creates a Synthesizer backed by the given stores and
// handler-set cache.
func NewSynthesizer(fx *fixtures.Store, reg *registry.Store, parser apispec.Parser, c *cache.Cache[*HandlerSet]) *Synthesizer {
	return &Synthesizer{fixtures: fx, registry: reg, parser: parser, cache: c}
}

func cacheKey(tenant, service, version string) string {
	return tenant + "/" + service + ":" + version
}

// Handlers returns the handler set for a service version, building it on
// cache miss. version accepts the same forms as version resolution
// elsewhere: "latest", an exact version, or a semver range.
func (s *Synthesizer) Handlers(ctx context.Context, tenant, service, version string) (*HandlerSet, error) {
	key := cacheKey(tenant, service, version)
	if set, ok := s.cache.Get(key); ok {
		return set, nil
	}

	result, err, _ := s.group.Do(key, func() (any, error) {
		if set, ok := s.cache.Get(key); ok {
			return set, nil
		}
		set, err := s.build(tenant, service, version)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, set)
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*HandlerSet), nil
}

// Invalidate drops every cached handler set for a service. Implements the
// invalidation hook the fixture store calls on approval and revocation.
func (s *Synthesizer) Invalidate(tenant, service, versionID string) {
	s.cache.InvalidatePrefix(tenant + "/" + service + ":")
}

func (s *Synthesizer) build(tenant, service, version string) (*HandlerSet, error) {
	svc, err := s.registry.GetService(tenant, service)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, &registry.ServiceNotFoundError{Tenant: tenant, Name: service}
	}

	versions, err := s.registry.ListVersions(tenant, svc.ID)
	if err != nil {
		return nil, err
	}
	ver, err := registry.ResolveVersion(service, version, versions)
	if err != nil {
		return nil, err
	}

	var ops []apispec.Operation
	if raw := []byte(ver.Spec); len(raw) > 0 && s.parser.Detect(raw) == apispec.SpecTypeOpenAPI {
		ops, err = s.parser.Operations(raw)
		if err != nil {
			return nil, fmt.Errorf("parse spec for %s@%s: %w", service, ver.Version, err)
		}
	}

	approved, err := s.fixtures.ListForMock(tenant, service, ver.ID, fixtures.StatusApproved)
	if err != nil {
		return nil, err
	}

	set := &HandlerSet{Service: service, Version: ver.Version, VersionID: ver.ID}
	claimed := make([]bool, len(approved))

	for _, op := range ops {
		handler := OperationHandler{
			Method:   op.Method,
			Path:     op.Path,
			segments: splitPath(op.Path),
		}
		for i := range approved {
			if fixtureMatchesOperation(&approved[i], op) {
				claimed[i] = true
				if canned, ok := cannedFromFixture(&approved[i]); ok {
					handler.responses = append(handler.responses, canned)
				}
			}
		}
		if syn, err := s.parser.Synthesize(op); err == nil {
			handler.synthetic = &MockResponse{
				Status:  op.Status,
				Headers: map[string]string{"Content-Type": "application/json"},
				Body:    syn,
			}
		}
		set.handlers = append(set.handlers, handler)
	}

	// Fixtures for operations the spec does not declare still get served:
	// their recorded request shape defines the route.
	extra := map[string]*OperationHandler{}
	var extraOrder []string
	for i := range approved {
		if claimed[i] {
			continue
		}
		canned, ok := cannedFromFixture(&approved[i])
		if !ok {
			continue
		}
		method, path := fixtureRoute(&approved[i])
		if path == "" {
			continue
		}
		key := method + " " + path
		handler, seen := extra[key]
		if !seen {
			handler = &OperationHandler{Method: method, Path: path, segments: splitPath(path)}
			extra[key] = handler
			extraOrder = append(extraOrder, key)
		}
		handler.responses = append(handler.responses, canned)
	}
	sort.Strings(extraOrder)
	for _, key := range extraOrder {
		set.handlers = append(set.handlers, *extra[key])
	}

	return set, nil
}

// fixtureMatchesOperation reports whether a fixture's operation field refers
// to a spec operation, either by operationId or by "METHOD /path".
func fixtureMatchesOperation(fx *fixtures.Fixture, op apispec.Operation) bool {
	if op.ID != "" && fx.Operation == op.ID {
		return true
	}
	return strings.EqualFold(fx.Operation, op.Method+" "+op.Path)
}

type fixtureData struct {
	Request struct {
		Method string `json:"method"`
		Path   string `json:"path"`
	} `json:"request"`
	Response struct {
		Status  int            `json:"status"`
		Headers map[string]any `json:"headers"`
		Body    any            `json:"body"`
	} `json:"response"`
}

func parseFixtureData(fx *fixtures.Fixture) (fixtureData, bool) {
	var data fixtureData
	if err := json.Unmarshal([]byte(fx.Data), &data); err != nil {
		return data, false
	}
	return data, true
}

func cannedFromFixture(fx *fixtures.Fixture) (cannedResponse, bool) {
	data, ok := parseFixtureData(fx)
	if !ok || data.Response.Status == 0 {
		return cannedResponse{}, false
	}

	headers := make(map[string]string, len(data.Response.Headers)+1)
	for k, v := range data.Response.Headers {
		headers[k] = fmt.Sprint(v)
	}
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = "application/json"
	}

	return cannedResponse{
		fixtureID: fx.ID,
		priority:  fx.Priority,
		createdAt: fx.CreatedAt,
		reqPath:   stripQuery(data.Request.Path),
		response: MockResponse{
			Status:  data.Response.Status,
			Headers: headers,
			Body:    data.Response.Body,
		},
	}, true
}

func fixtureRoute(fx *fixtures.Fixture) (method, path string) {
	data, ok := parseFixtureData(fx)
	if !ok {
		return "", ""
	}
	method = strings.ToUpper(data.Request.Method)
	if method == "" {
		method = http.MethodGet
	}
	return method, stripQuery(data.Request.Path)
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
