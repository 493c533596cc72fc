package registry

import (
	"context"

	"github.com/kbukum/agentmesh/auth"
	"github.com/kbukum/agentmesh/auth/authctx"
	"github.com/kbukum/agentmesh/auth/jwt"
	apperrors "github.com/kbukum/agentmesh/errors"
	"github.com/kbukum/agentmesh/logger"
	"github.com/kbukum/agentmesh/observability"
)

// Policy decides which operations need a token and which scope it must carry.
type Policy struct {
	RequiredScope string
	// GateReads extends the token check to Get, List and Stats.
	GateReads bool
}

// Gate checks the bearer token carried in the context before delegating to
// the wrapped Registry. A rejected call never reaches the Registry.
type Gate struct {
	next      Registry
	validator auth.TokenValidator
	policy    Policy
	log       *logger.Logger
	metrics   *observability.Metrics
}

// GateOption customizes a Gate.
type GateOption func(*Gate)

// WithGateLogger sets the gate logger.
func WithGateLogger(l *logger.Logger) GateOption {
	return func(g *Gate) { g.log = l }
}

// WithGateMetrics records rejected calls.
func WithGateMetrics(m *observability.Metrics) GateOption {
	return func(g *Gate) { g.metrics = m }
}

// NewGate wraps next with token validation.
func NewGate(next Registry, validator auth.TokenValidator, policy Policy, opts ...GateOption) *Gate {
	g := &Gate{next: next, validator: validator, policy: policy}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logger.GetGlobalLogger()
	}
	g.log = g.log.WithComponent("registry-gate")
	return g
}

// Register validates the caller and delegates.
func (g *Gate) Register(ctx context.Context, id string, card AgentCard, baseURL string) (Registration, error) {
	ctx, err := g.authorize(ctx, "register", id)
	if err != nil {
		return Registration{}, err
	}
	return g.next.Register(ctx, id, card, baseURL)
}

// Heartbeat validates the caller and delegates.
func (g *Gate) Heartbeat(ctx context.Context, id string) (Registration, error) {
	ctx, err := g.authorize(ctx, "heartbeat", id)
	if err != nil {
		return Registration{}, err
	}
	return g.next.Heartbeat(ctx, id)
}

// Unregister validates the caller and delegates.
func (g *Gate) Unregister(ctx context.Context, id string) error {
	ctx, err := g.authorize(ctx, "unregister", id)
	if err != nil {
		return err
	}
	return g.next.Unregister(ctx, id)
}

// Get delegates, validating first when reads are gated.
func (g *Gate) Get(ctx context.Context, id string) (Registration, error) {
	if g.policy.GateReads {
		var err error
		if ctx, err = g.authorize(ctx, "get", id); err != nil {
			return Registration{}, err
		}
	}
	return g.next.Get(ctx, id)
}

// List delegates, validating first when reads are gated.
func (g *Gate) List(ctx context.Context, filter Filter) ([]Registration, error) {
	if g.policy.GateReads {
		var err error
		if ctx, err = g.authorize(ctx, "list", ""); err != nil {
			return nil, err
		}
	}
	return g.next.List(ctx, filter)
}

// Stats delegates, validating first when reads are gated.
func (g *Gate) Stats(ctx context.Context) (Stats, error) {
	if g.policy.GateReads {
		var err error
		if ctx, err = g.authorize(ctx, "stats", ""); err != nil {
			return Stats{}, err
		}
	}
	return g.next.Stats(ctx)
}

// AuthorizeRead checks the caller for a read that does not go through a
// Registry method, such as the event stream.
func (g *Gate) AuthorizeRead(ctx context.Context) error {
	if !g.policy.GateReads {
		return nil
	}
	_, err := g.authorize(ctx, "events", "")
	return err
}

// Identify returns the claims of the token in ctx without requiring a
// scope. It returns nil when no token is present or it does not validate.
func (g *Gate) Identify(ctx context.Context) *jwt.Claims {
	if claims, ok := authctx.Get[*jwt.Claims](ctx); ok {
		return claims
	}
	token, ok := authctx.Token(ctx)
	if !ok {
		return nil
	}
	claims, err := g.validator.Validate(ctx, token, "")
	if err != nil {
		return nil
	}
	return claims
}

func (g *Gate) authorize(ctx context.Context, op, id string) (context.Context, error) {
	token, ok := authctx.Token(ctx)
	if !ok {
		err := apperrors.Unauthorized("missing bearer token")
		g.reject(ctx, op, id, err)
		return ctx, err
	}

	claims, err := g.validator.Validate(ctx, token, g.policy.RequiredScope)
	if err != nil {
		g.reject(ctx, op, id, err)
		return ctx, err
	}

	ctx = authctx.Set(ctx, claims)
	ctx = logger.ContextWithPrincipal(ctx, claims.PrincipalID)
	g.log.Debug("Request authorized", logger.Fields(
		logger.FieldOperation, op,
		logger.FieldAgentID, id,
		logger.FieldPrincipal, claims.PrincipalID,
	))
	return ctx, nil
}

func (g *Gate) reject(ctx context.Context, op, id string, err error) {
	appErr := apperrors.Wrap(err)
	g.metrics.RecordAuthFailure(ctx, string(appErr.Code))
	g.log.Warn("Request rejected", logger.Fields(
		logger.FieldOperation, op,
		logger.FieldAgentID, id,
		logger.FieldScope, g.policy.RequiredScope,
		"code", string(appErr.Code),
	))
}
