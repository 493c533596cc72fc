package testutil

import (
	"bufio"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/agentmesh/auth/jwt"
	"github.com/kbukum/agentmesh/component"
)

func TestClock(t *testing.T) {
	c := NewClock()
	if !c.Now().Equal(Epoch) {
		t.Fatalf("expected epoch, got %v", c.Now())
	}
	c.Advance(90 * time.Second)
	if got := c.Now().Sub(Epoch); got != 90*time.Second {
		t.Errorf("expected +90s, got %v", got)
	}
	c.Set(Epoch.Add(-time.Hour))
	if !c.Now().Before(Epoch) {
		t.Error("Set should allow moving backwards")
	}
}

type recordingComponent struct {
	started, stopped bool
}

func (r *recordingComponent) Name() string { return "recording" }

func (r *recordingComponent) Start(context.Context) error {
	r.started = true
	return nil
}

func (r *recordingComponent) Stop(context.Context) error {
	r.stopped = true
	return nil
}

func (r *recordingComponent) Health(context.Context) component.Health {
	return component.Health{Name: r.Name(), Status: component.StatusHealthy}
}

func TestStartStopsOnCleanup(t *testing.T) {
	c := &recordingComponent{}
	t.Run("inner", func(t *testing.T) {
		Start(t, c)
		if !c.started || c.stopped {
			t.Fatalf("unexpected state %+v", c)
		}
	})
	if !c.stopped {
		t.Error("component was not stopped after the subtest")
	}
}

func TestToken(t *testing.T) {
	cfg := jwt.SignerConfig{Secret: "testutil-secret-0123456789abcdef", Issuer: "agentmesh-test", Audience: "agent-registry"}
	tok := Token(t, cfg, "agent-ci", []string{"agentic_ai_solution"}, time.Minute)

	v, err := jwt.NewValidator(jwt.Config{Secret: cfg.Secret, Issuer: cfg.Issuer, Audience: cfg.Audience})
	if err != nil {
		t.Fatal(err)
	}
	claims, err := v.Validate(context.Background(), tok, "agentic_ai_solution")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.PrincipalID != "agent-ci" {
		t.Errorf("unexpected principal %q", claims.PrincipalID)
	}
}

func TestReadFrame(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("event: a\ndata: 1\n\nevent: b\ndata: 2\n\n"))
	if got := ReadFrame(t, r); got != "event: a\ndata: 1\n" {
		t.Errorf("unexpected first frame %q", got)
	}
	if got := ReadFrame(t, r); got != "event: b\ndata: 2\n" {
		t.Errorf("unexpected second frame %q", got)
	}
}
