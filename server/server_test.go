package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/agentmesh/component"
	apperrors "github.com/kbukum/agentmesh/errors"
	"github.com/kbukum/agentmesh/logger"
	"github.com/kbukum/agentmesh/security"
	"github.com/kbukum/agentmesh/security/tlstest"
)

func testConfig() Config {
	cfg := Config{Host: "127.0.0.1"}
	cfg.ApplyDefaults()
	cfg.Port = 0
	return cfg
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Port != 8888 || cfg.Host != "0.0.0.0" {
		t.Errorf("unexpected defaults %s:%d", cfg.Host, cfg.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	bad := cfg
	bad.Port = 70000
	if err := bad.Validate(); err == nil {
		t.Error("expected port range error")
	}
	bad = cfg
	bad.TLS = security.ServerTLSConfig{CertFile: "cert.pem"}
	if err := bad.Validate(); err == nil {
		t.Error("expected TLS pair error")
	}
}

func TestRespondWithError(t *testing.T) {
	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)
	RespondWithError(c, apperrors.NotFound("agent", "calc"))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	var resp apperrors.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error.Code != apperrors.ErrCodeNotFound {
		t.Errorf("unexpected code %s", resp.Error.Code)
	}

	rr = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rr)
	RespondWithError(c, errors.New("boom"))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("plain errors become 500, got %d", rr.Code)
	}
}

func TestServerLifecycle(t *testing.T) {
	s := New(testConfig(), logger.Nop())
	s.ApplyMiddleware(nil)
	s.RegisterProbes("agent-registry", func(ctx context.Context) []component.Health {
		return []component.Health{{Name: "monitor", Status: component.StatusHealthy}}
	})

	comp := NewComponent(s)
	if h := comp.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before start, got %s", h.Status)
	}
	if err := comp.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer func() { _ = comp.Stop(context.Background()) }()

	for _, path := range []string{"/livez", "/readyz", "/version"} {
		resp, err := http.Get("http://" + s.Addr() + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, resp.StatusCode)
		}
		if resp.Header.Get("X-Request-Id") == "" {
			t.Errorf("GET %s: expected request id header", path)
		}
	}

	if h := comp.Health(context.Background()); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy while serving, got %s", h.Status)
	}
}

func TestReadinessReportsUnhealthy(t *testing.T) {
	s := New(testConfig(), logger.Nop())
	s.RegisterProbes("agent-registry", func(ctx context.Context) []component.Health {
		return []component.Health{{Name: "monitor", Status: component.StatusUnhealthy}}
	})
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rr.Code)
	}
}

func TestServerTLS(t *testing.T) {
	certs := tlstest.Generate(t)
	cfg := testConfig()
	cfg.TLS = security.ServerTLSConfig{CertFile: certs.CertFile, KeyFile: certs.KeyFile}

	s := New(cfg, logger.Nop())
	s.RegisterProbes("agent-registry", nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer func() { _ = s.Stop(context.Background()) }()

	client := &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: certs.Pool}}}
	resp, err := client.Get("https://" + s.Addr() + "/livez")
	if err != nil {
		t.Fatalf("TLS request failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.TLS == nil {
		t.Errorf("expected 200 over TLS, got %d", resp.StatusCode)
	}
	if !s.TLSEnabled() {
		t.Error("expected TLSEnabled")
	}
}
