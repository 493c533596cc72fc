package discovery

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/kbukum/agentmesh/errors"
	"github.com/kbukum/agentmesh/httpclient"
	"github.com/kbukum/agentmesh/logger"
	"github.com/kbukum/agentmesh/observability"
	"github.com/kbukum/agentmesh/registry"
	"github.com/kbukum/agentmesh/resilience"
)

// DefaultRegistryURL is the registry SetDefaultRegistry uses when given "".
const DefaultRegistryURL = "http://localhost:8888"

// Service finds agents through registries and directly known endpoints
// and caches the cards it fetches. A Service is safe for concurrent use.
type Service struct {
	cfg     Config
	now     func() time.Time
	log     *logger.Logger
	metrics *observability.Metrics
	tokens  httpclient.TokenFunc

	agents   *httpclient.Client
	cache    *cardCache
	flights  singleflight.Group
	bulkhead *resilience.Bulkhead

	mu         sync.RWMutex
	registries []*registrySource
	known      map[string]string
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the clock used for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithMetrics records per-source query latency and outcome.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTokenSource attaches a bearer token to registry requests, typically
// auth.TokenCache.TokenSource(provider, scope).
func WithTokenSource(fn httpclient.TokenFunc) Option {
	return func(s *Service) { s.tokens = fn }
}

// NewService creates a Service and adds the registries and known agents
// listed in cfg.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{cfg: cfg, now: time.Now, known: make(map[string]string)}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.GetGlobalLogger()
	}
	s.log = s.log.WithComponent("discovery")
	s.cache = newCardCache(cfg.ttl(), s.now)
	s.bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{
		Name:          "discovery",
		MaxConcurrent: cfg.MaxConcurrency,
		MaxWait:       -1,
	})

	agents, err := httpclient.New(httpclient.Config{
		Timeout:   cfg.httpTimeout(),
		TLS:       cfg.TLS,
		UserAgent: "agentmesh-discovery",
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: agent client: %w", err)
	}
	s.agents = agents

	for _, u := range cfg.Registries {
		if err := s.AddRegistry(u); err != nil {
			return nil, err
		}
	}
	for id, u := range cfg.KnownAgents {
		s.AddKnownAgent(id, u)
	}
	return s, nil
}

// AddRegistry appends a registry. Adding a URL twice is a no-op.
func (s *Service) AddRegistry(registryURL string) error {
	registryURL = strings.TrimRight(strings.TrimSpace(registryURL), "/")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(registryURL) >= 0 {
		return nil
	}
	src, err := s.newSource(registryURL)
	if err != nil {
		return err
	}
	s.registries = append(s.registries, src)
	s.log.Info("Added agent registry", logger.Fields(logger.FieldRegistry, registryURL))
	return nil
}

// SetDefaultRegistry moves registryURL to the front of the query order,
// adding it if needed. An empty URL means DefaultRegistryURL.
func (s *Service) SetDefaultRegistry(registryURL string) error {
	if strings.TrimSpace(registryURL) == "" {
		registryURL = DefaultRegistryURL
	}
	registryURL = strings.TrimRight(strings.TrimSpace(registryURL), "/")

	s.mu.Lock()
	defer s.mu.Unlock()
	var src *registrySource
	if i := s.indexOf(registryURL); i >= 0 {
		src = s.registries[i]
		s.registries = slices.Delete(s.registries, i, i+1)
	} else {
		var err error
		if src, err = s.newSource(registryURL); err != nil {
			return err
		}
	}
	s.registries = slices.Insert(s.registries, 0, src)
	s.log.Info("Set default registry", logger.Fields(logger.FieldRegistry, registryURL))
	return nil
}

// Registries returns the registry URLs in query order.
func (s *Service) Registries() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.registries))
	for i, r := range s.registries {
		out[i] = r.url
	}
	return out
}

// AddKnownAgent maps id to a base URL that serves the agent's card.
func (s *Service) AddKnownAgent(id, baseURL string) {
	s.mu.Lock()
	s.known[id] = strings.TrimRight(baseURL, "/")
	s.mu.Unlock()
	s.log.Info("Added known agent", logger.Fields(logger.FieldAgentID, id, "base_url", baseURL))
}

// RemoveKnownAgent forgets a known agent and its cached card.
func (s *Service) RemoveKnownAgent(id string) {
	s.mu.Lock()
	delete(s.known, id)
	s.mu.Unlock()
	s.cache.invalidate(id)
}

// Invalidate drops the cached card for id.
func (s *Service) Invalidate(id string) {
	s.cache.invalidate(id)
}

// ClearCache drops every cached card.
func (s *Service) ClearCache() {
	s.cache.clear()
}

// CacheLen returns the number of cached cards, expired ones included until
// they are next read.
func (s *Service) CacheLen() int {
	return s.cache.len()
}

// DiscoverAgent returns the card for id. A cached card younger than the
// TTL is returned without any network call. Otherwise registries are asked
// in order, then the known-agent entry. Concurrent misses for one id share
// a single lookup.
func (s *Service) DiscoverAgent(ctx context.Context, id string) (_ registry.AgentCard, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanDiscoverAgent, attribute.String(observability.AttrAgentID, id))
	defer func() { observability.EndSpan(span, err) }()

	if e, ok := s.cache.get(id); ok {
		span.SetAttributes(attribute.Bool(observability.AttrCacheHit, true))
		s.log.Debug("Using cached agent card", logger.Fields(logger.FieldAgentID, id, "source", e.source))
		return e.card, nil
	}
	span.SetAttributes(attribute.Bool(observability.AttrCacheHit, false))

	// The lookup runs detached from any one caller so a cancelled waiter
	// does not fail the others; each caller still stops waiting on its own ctx.
	ch := s.flights.DoChan(id, func() (interface{}, error) {
		if e, ok := s.cache.get(id); ok {
			return e.card, nil
		}
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.queryTimeout())
		defer cancel()
		return s.resolve(qctx, id)
	})

	select {
	case <-ctx.Done():
		return registry.AgentCard{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return registry.AgentCard{}, res.Err
		}
		return res.Val.(registry.AgentCard).Clone(), nil
	}
}

// resolve queries every source for id and caches the first hit.
func (s *Service) resolve(ctx context.Context, id string) (registry.AgentCard, error) {
	s.log.Info("Discovering agent", logger.Fields(logger.FieldAgentID, id))
	attempts := make(map[string]string)

	for _, src := range s.snapshotRegistries() {
		card, baseURL, err := s.queryRegistry(ctx, src, id)
		if err == nil {
			s.store(id, src.name(), card, baseURL)
			return card, nil
		}
		attempts[src.name()] = err.Error()
		if !errors.Is(err, errNotListed) {
			s.log.Warn("Failed to discover from registry", logger.Fields(
				logger.FieldRegistry, src.url, logger.FieldAgentID, id, logger.FieldError, err.Error(),
			))
		}
		if ctx.Err() != nil {
			break
		}
	}

	if baseURL, ok := s.knownURL(id); ok && ctx.Err() == nil {
		source := "known:" + id
		card, err := s.fetchKnown(ctx, source, baseURL)
		if err == nil {
			s.store(id, source, card, baseURL)
			return card, nil
		}
		attempts[source] = err.Error()
		s.log.Warn("Failed to fetch known agent card", logger.Fields(
			logger.FieldAgentID, id, "base_url", baseURL, logger.FieldError, err.Error(),
		))
	}

	if len(attempts) == 0 {
		attempts["sources"] = "no registries or known agents configured"
	}
	return registry.AgentCard{}, apperrors.DiscoveryExhausted(id, attempts)
}

// queryRegistry resolves id on one registry, following a URL-only answer
// to the agent's own card.
func (s *Service) queryRegistry(ctx context.Context, src *registrySource, id string) (_ registry.AgentCard, _ string, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanSourceQuery, attribute.String(observability.AttrSource, src.name()))
	start := time.Now()
	defer func() {
		s.metrics.RecordDiscoveryQuery(ctx, src.name(), time.Since(start), ignoreNotListed(err))
		observability.EndSpan(span, ignoreNotListed(err))
	}()

	rec, err := src.lookup(ctx, id)
	if err != nil {
		return registry.AgentCard{}, "", err
	}
	if card, ok := rec.inlineCard(); ok {
		return card, rec.baseURL(), nil
	}
	card, err := fetchCard(ctx, s.agents, rec.baseURL())
	if err != nil {
		return registry.AgentCard{}, "", err
	}
	return card, rec.baseURL(), nil
}

func (s *Service) fetchKnown(ctx context.Context, source, baseURL string) (_ registry.AgentCard, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanSourceQuery, attribute.String(observability.AttrSource, source))
	start := time.Now()
	defer func() {
		s.metrics.RecordDiscoveryQuery(ctx, "known", time.Since(start), err)
		observability.EndSpan(span, err)
	}()
	return fetchCard(ctx, s.agents, baseURL)
}

func (s *Service) store(id, source string, card registry.AgentCard, baseURL string) {
	s.cache.put(id, cacheEntry{source: source, card: card, baseURL: baseURL, fetchedAt: s.now()})
	s.log.Info("Discovered agent", logger.Fields(
		logger.FieldAgentID, id, "source", source, "agent_name", card.Name, "skills_count", len(card.Skills),
	))
}

func (s *Service) newSource(registryURL string) (*registrySource, error) {
	breaker := httpclient.DefaultCircuitBreakerConfig("registry:" + registryURL)
	breaker.OnStateChange = func(name string, from, to resilience.State) {
		fields := logger.Fields("source", name, "from", from.String(), "to", to.String())
		if to == resilience.StateOpen {
			s.log.Warn("Registry circuit opened; skipping it until it recovers", fields)
			return
		}
		s.log.Info("Registry circuit state changed", fields)
	}
	cfg := httpclient.Config{
		BaseURL:        registryURL,
		Timeout:        s.cfg.httpTimeout(),
		TLS:            s.cfg.TLS,
		UserAgent:      "agentmesh-discovery",
		CircuitBreaker: breaker,
	}
	if s.tokens != nil {
		cfg.Auth = httpclient.BearerSource(s.tokens)
	}
	client, err := httpclient.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("discovery: registry %s: %w", registryURL, err)
	}
	return &registrySource{url: registryURL, client: client}, nil
}

// indexOf finds a registry by URL. Callers hold mu.
func (s *Service) indexOf(registryURL string) int {
	return slices.IndexFunc(s.registries, func(r *registrySource) bool { return r.url == registryURL })
}

func (s *Service) snapshotRegistries() []*registrySource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.registries)
}

func (s *Service) snapshotKnown() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.known))
	for k, v := range s.known {
		out[k] = v
	}
	return out
}

func (s *Service) knownURL(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.known[id]
	return u, ok
}

func ignoreNotListed(err error) error {
	if errors.Is(err, errNotListed) {
		return nil
	}
	return err
}
