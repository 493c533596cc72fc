package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/agentmesh/errors"
	"github.com/kbukum/agentmesh/logger"
	"github.com/kbukum/agentmesh/registry"
	"github.com/kbukum/agentmesh/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func card(name string, skills ...string) registry.AgentCard {
	c := registry.AgentCard{Name: name, Description: name + " agent"}
	for _, s := range skills {
		c.Skills = append(c.Skills, registry.Skill{ID: s, Name: s})
	}
	return c
}

// startRegistry serves a real registry over httptest with the given agents.
func startRegistry(t *testing.T, agents map[string]registry.AgentCard) (*httptest.Server, *registry.Store) {
	t.Helper()
	store := registry.NewStore(registry.WithLogger(logger.Nop()))
	for id, c := range agents {
		if _, err := store.Register(context.Background(), id, c, "http://"+id+".agents.local:8080"); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	engine := gin.New()
	registry.NewHandler("agent-registry", store).RegisterRoutes(engine)
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv, store
}

// countingHandler wraps h and counts requests per path.
type countingHandler struct {
	h     http.Handler
	mu    sync.Mutex
	paths map[string]int
	total atomic.Int64
}

func counting(h http.Handler) *countingHandler {
	return &countingHandler{h: h, paths: make(map[string]int)}
}

func (c *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.total.Add(1)
	c.mu.Lock()
	c.paths[r.URL.Path]++
	c.mu.Unlock()
	c.h.ServeHTTP(w, r)
}

func (c *countingHandler) count(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paths[path]
}

// unreachableURL returns the URL of a server that has already shut down.
func unreachableURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()
	return u
}

func newTestService(t *testing.T, cfg Config, opts ...Option) *Service {
	t.Helper()
	cfg.HTTPTimeout = 2
	cfg.QueryTimeout = 5
	cfg.HealthTimeout = 2
	svc, err := NewService(cfg, append([]Option{WithLogger(logger.Nop())}, opts...)...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestDiscoverAgentFromRegistry(t *testing.T) {
	srv, _ := startRegistry(t, map[string]registry.AgentCard{
		"tr": card("Translator", "translate"),
	})
	svc := newTestService(t, Config{Registries: []string{srv.URL}})

	got, err := svc.DiscoverAgent(context.Background(), "tr")
	if err != nil {
		t.Fatalf("DiscoverAgent: %v", err)
	}
	if got.Name != "Translator" || !got.HasSkill("translate") {
		t.Errorf("unexpected card %+v", got)
	}
}

func TestDiscoverCacheWithinTTL(t *testing.T) {
	clock := testutil.NewClock()
	store := registry.NewStore(registry.WithLogger(logger.Nop()))
	_, _ = store.Register(context.Background(), "calc", card("Calculator", "add"), "http://calc.local:8080")
	engine := gin.New()
	registry.NewHandler("agent-registry", store).RegisterRoutes(engine)
	counter := counting(engine)
	srv := httptest.NewServer(counter)
	defer srv.Close()

	svc := newTestService(t, Config{Registries: []string{srv.URL}, CacheTTL: 60}, WithClock(clock.Now))
	ctx := context.Background()

	first, err := svc.DiscoverAgent(ctx, "calc")
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance(30 * time.Second)
	second, err := svc.DiscoverAgent(ctx, "calc")
	if err != nil {
		t.Fatal(err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if !bytes.Equal(a, b) {
		t.Errorf("cached card differs:\n%s\n%s", a, b)
	}
	if n := counter.count("/agents/calc"); n != 1 {
		t.Fatalf("expected one upstream query within ttl, got %d", n)
	}

	clock.Advance(31 * time.Second)
	if _, err := svc.DiscoverAgent(ctx, "calc"); err != nil {
		t.Fatal(err)
	}
	if n := counter.count("/agents/calc"); n != 2 {
		t.Errorf("expected a re-query after ttl, got %d queries", n)
	}
}

func TestDiscoverReturnsCopies(t *testing.T) {
	srv, _ := startRegistry(t, map[string]registry.AgentCard{"calc": card("Calculator", "add")})
	svc := newTestService(t, Config{Registries: []string{srv.URL}})
	ctx := context.Background()

	got, _ := svc.DiscoverAgent(ctx, "calc")
	got.Skills[0].Name = "mutated"
	again, _ := svc.DiscoverAgent(ctx, "calc")
	if again.Skills[0].Name != "add" {
		t.Errorf("cache was aliased: %+v", again.Skills)
	}
}

func TestDiscoverConcurrentMissesShareOneQuery(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agents/slow" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"agent_id": "slow", "agent_card": card("Slow", "wait")})
	}))
	defer srv.Close()

	svc := newTestService(t, Config{Registries: []string{srv.URL}})
	ctx := context.Background()

	const callers = 10
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.DiscoverAgent(ctx, "slow")
			errs <- err
		}()
	}

	deadline := time.Now().Add(2 * time.Second)
	for hits.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("DiscoverAgent: %v", err)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("expected one upstream query, got %d", n)
	}
}

func TestDiscoverSkipsUnreachableRegistry(t *testing.T) {
	srv, _ := startRegistry(t, map[string]registry.AgentCard{"tr": card("Translator", "translate")})
	svc := newTestService(t, Config{Registries: []string{unreachableURL(t), srv.URL}})

	got, err := svc.DiscoverAgent(context.Background(), "tr")
	if err != nil {
		t.Fatalf("DiscoverAgent: %v", err)
	}
	if got.Name != "Translator" {
		t.Errorf("unexpected card %+v", got)
	}
}

func TestListWithUnreachableRegistry(t *testing.T) {
	srv, _ := startRegistry(t, map[string]registry.AgentCard{"tr": card("Translator", "translate")})
	dead := unreachableURL(t)
	svc := newTestService(t, Config{Registries: []string{dead, srv.URL}})

	res, err := svc.ListAvailableAgents(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("ListAvailableAgents: %v", err)
	}
	if len(res.Agents) != 1 || res.Agents[0].AgentID != "tr" || res.Agents[0].Card.Name != "Translator" {
		t.Fatalf("expected tr only, got %+v", res.Agents)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", res.Warnings)
	}
	appErr, ok := apperrors.AsAppError(res.Warnings[0])
	if !ok || appErr.Code != apperrors.ErrCodeDiscoveryUnreachable || appErr.Details["source"] != "registry:"+dead {
		t.Errorf("unexpected warning %v", res.Warnings[0])
	}
}

func TestListMergesAndFilters(t *testing.T) {
	clock := testutil.NewClock()
	first, _ := startRegistry(t, map[string]registry.AgentCard{
		"calc": card("Calculator (first)", "add"),
		"tr":   card("Translator", "translate"),
	})
	second, _ := startRegistry(t, map[string]registry.AgentCard{
		"calc": card("Calculator (second)", "add", "mul"),
	})
	svc := newTestService(t, Config{Registries: []string{first.URL, second.URL}}, WithClock(clock.Now))
	ctx := context.Background()

	res, err := svc.ListAvailableAgents(ctx, ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Agents) != 2 || len(res.Warnings) != 0 {
		t.Fatalf("expected two merged agents, got %+v (warnings %v)", res.Agents, res.Warnings)
	}
	if res.Agents[0].AgentID != "calc" || res.Agents[0].Card.Name != "Calculator (second)" {
		t.Errorf("equal fetch times should resolve to the later registry, got %+v", res.Agents[0])
	}

	res, _ = svc.ListAvailableAgents(ctx, ListFilter{Skill: "translate"})
	if len(res.Agents) != 1 || res.Agents[0].AgentID != "tr" {
		t.Errorf("expected exactly [tr], got %+v", res.Agents)
	}
}

func TestListPopulatesCache(t *testing.T) {
	reg, _ := startRegistry(t, map[string]registry.AgentCard{"tr": card("Translator", "translate")})
	counter := counting(reg.Config.Handler)
	srv := httptest.NewServer(counter)
	defer srv.Close()
	svc := newTestService(t, Config{Registries: []string{srv.URL}})
	ctx := context.Background()

	if _, err := svc.ListAvailableAgents(ctx, ListFilter{}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.DiscoverAgent(ctx, "tr"); err != nil {
		t.Fatal(err)
	}
	if n := counter.count("/agents/tr"); n != 0 {
		t.Errorf("expected the listing to satisfy discovery, got %d lookups", n)
	}
}

func TestDiscoverFallsBackToKnownAgent(t *testing.T) {
	regSrv, _ := startRegistry(t, nil)
	agent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/agent-card" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(card("Weather", "forecast"))
	}))
	defer agent.Close()

	svc := newTestService(t, Config{Registries: []string{regSrv.URL}})
	svc.AddKnownAgent("weather", agent.URL)

	got, err := svc.DiscoverAgent(context.Background(), "weather")
	if err != nil {
		t.Fatalf("DiscoverAgent: %v", err)
	}
	if got.Name != "Weather" {
		t.Errorf("unexpected card %+v", got)
	}
}

func TestDiscoverFollowsURLPointer(t *testing.T) {
	agent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agent-card" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(card("Pointer", "follow"))
	}))
	defer agent.Close()

	reg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/agents/ptr" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"agent_url": agent.URL})
	}))
	defer reg.Close()

	svc := newTestService(t, Config{Registries: []string{reg.URL}})
	got, err := svc.DiscoverAgent(context.Background(), "ptr")
	if err != nil {
		t.Fatalf("DiscoverAgent: %v", err)
	}
	if got.Name != "Pointer" {
		t.Errorf("unexpected card %+v", got)
	}
}

func TestDiscoverExhausted(t *testing.T) {
	regSrv, _ := startRegistry(t, nil)
	dead := unreachableURL(t)
	svc := newTestService(t, Config{Registries: []string{regSrv.URL, dead}})

	_, err := svc.DiscoverAgent(context.Background(), "ghost")
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeDiscoveryExhausted {
		t.Fatalf("expected DISCOVERY_EXHAUSTED, got %v", err)
	}
	attempts, _ := appErr.Details["attempts"].(map[string]string)
	if len(attempts) != 2 {
		t.Errorf("expected both registries in attempts, got %v", appErr.Details)
	}
	if appErr.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected 404 semantics, got %d", appErr.HTTPStatus)
	}
}

func TestDiscoverHonoursCallerCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		http.NotFound(w, r)
	}))
	defer srv.Close()
	defer close(release)

	svc := newTestService(t, Config{Registries: []string{srv.URL}})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := svc.DiscoverAgent(ctx, "calc")
	if err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("caller waited past its own deadline")
	}
}

func TestInvalidateAndClear(t *testing.T) {
	srv, _ := startRegistry(t, map[string]registry.AgentCard{"calc": card("Calculator", "add"), "tr": card("Translator", "translate")})
	svc := newTestService(t, Config{Registries: []string{srv.URL}})
	ctx := context.Background()

	_, _ = svc.DiscoverAgent(ctx, "calc")
	_, _ = svc.DiscoverAgent(ctx, "tr")
	if svc.CacheLen() != 2 {
		t.Fatalf("expected two cached cards, got %d", svc.CacheLen())
	}
	svc.Invalidate("calc")
	if svc.CacheLen() != 1 {
		t.Errorf("expected one cached card after invalidate, got %d", svc.CacheLen())
	}
	svc.ClearCache()
	if svc.CacheLen() != 0 {
		t.Errorf("expected empty cache, got %d", svc.CacheLen())
	}
}

func TestRegistryOrdering(t *testing.T) {
	svc := newTestService(t, Config{})

	_ = svc.AddRegistry("http://a.local:8888")
	_ = svc.AddRegistry("http://b.local:8888/")
	_ = svc.AddRegistry("http://a.local:8888")
	if got := svc.Registries(); len(got) != 2 || got[0] != "http://a.local:8888" || got[1] != "http://b.local:8888" {
		t.Fatalf("unexpected registries %v", got)
	}

	_ = svc.SetDefaultRegistry("http://b.local:8888")
	if got := svc.Registries(); len(got) != 2 || got[0] != "http://b.local:8888" {
		t.Errorf("expected b first without duplication, got %v", got)
	}

	_ = svc.SetDefaultRegistry("")
	if got := svc.Registries(); len(got) != 3 || got[0] != DefaultRegistryURL {
		t.Errorf("expected default registry first, got %v", got)
	}
}

func TestHealthCheckAgent(t *testing.T) {
	agent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/agent-card" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(card("Calculator", "add", "mul"))
	}))
	defer agent.Close()
	svc := newTestService(t, Config{})
	ctx := context.Background()

	report := svc.HealthCheckAgent(ctx, agent.URL)
	if !report.Healthy || !report.CardAvailable || report.AgentName != "Calculator" || report.SkillsCount != 2 {
		t.Errorf("unexpected healthy report %+v", report)
	}
	if report.ResponseTimeMS < 0 {
		t.Errorf("negative response time %v", report.ResponseTimeMS)
	}

	report = svc.HealthCheckAgent(ctx, unreachableURL(t))
	if report.Healthy || report.CardAvailable || report.Error == "" {
		t.Errorf("unexpected unhealthy report %+v", report)
	}
}

func TestHealthCheckTimeout(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer slow.Close()
	defer close(release)

	svc := newTestService(t, Config{})
	svc.cfg.HealthTimeout = 1

	start := time.Now()
	report := svc.HealthCheckAgent(context.Background(), slow.URL)
	if report.Healthy {
		t.Error("a hanging agent must not be healthy")
	}
	if time.Since(start) > 3*time.Second {
		t.Errorf("probe exceeded its timeout: %v", time.Since(start))
	}
}

func TestConfigValidate(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.CacheTTL != 300 || cfg.HTTPTimeout != 10 || cfg.MaxConcurrency != 8 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad registry url", func(c *Config) { c.Registries = []string{"localhost:8888"} }},
		{"bad known agent url", func(c *Config) { c.KnownAgents = map[string]string{"calc": "ftp://calc"} }},
		{"negative ttl", func(c *Config) { c.CacheTTL = -1 }},
		{"zero concurrency", func(c *Config) { c.MaxConcurrency = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
