package registry

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/agentmesh/auth/jwt"
	apperrors "github.com/kbukum/agentmesh/errors"
	"github.com/kbukum/agentmesh/server"
	"github.com/kbukum/agentmesh/sse"
)

// Identifier resolves the caller of an ungated request, if any.
type Identifier interface {
	Identify(ctx context.Context) *jwt.Claims
}

// Handler serves the registry over HTTP.
type Handler struct {
	service     string
	reg         Registry
	identifier  Identifier
	authEnabled bool
	hub         *sse.Hub
}

// readAuthorizer is implemented by registries that may refuse reads.
type readAuthorizer interface {
	AuthorizeRead(ctx context.Context) error
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithIdentifier reports authentication state in the banner and adds
// authenticated_as to /stats when a valid token is presented.
func WithIdentifier(id Identifier) HandlerOption {
	return func(h *Handler) {
		h.identifier = id
		h.authEnabled = id != nil
	}
}

// WithEventStream serves lifecycle events from hub on GET /events.
func WithEventStream(hub *sse.Hub) HandlerOption {
	return func(h *Handler) { h.hub = hub }
}

// NewHandler creates a handler over reg, which is either a Store or a Gate.
func NewHandler(service string, reg Registry, opts ...HandlerOption) *Handler {
	h := &Handler{service: service, reg: reg}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts the registry routes on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/", h.banner)
	r.GET("/health", h.health)
	r.GET("/stats", h.stats)
	if h.hub != nil {
		r.GET("/events", h.events)
	}

	agents := r.Group("/agents")
	agents.GET("", h.list)
	agents.GET("/:id", h.get)
	agents.DELETE("/:id", h.unregister)
	agents.POST("/:id/register", h.register)
	agents.POST("/:id/heartbeat", h.heartbeat)
}

type registerRequest struct {
	AgentCard *AgentCard `json:"agent_card"`
	BaseURL   string     `json:"base_url"`
}

func (h *Handler) register(c *gin.Context) {
	id := c.Param("id")
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, apperrors.InvalidDescriptor("request body is not valid JSON").WithCause(err))
		return
	}
	if req.AgentCard == nil {
		server.RespondWithError(c, apperrors.InvalidDescriptor("agent_card is required").WithDetail("field", "agent_card"))
		return
	}

	reg, err := h.reg.Register(c.Request.Context(), id, *req.AgentCard, req.BaseURL)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "registered", "agent_id": reg.AgentID})
}

func (h *Handler) heartbeat(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.reg.Heartbeat(c.Request.Context(), id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "heartbeat_updated", "agent_id": id})
}

func (h *Handler) unregister(c *gin.Context) {
	id := c.Param("id")
	if err := h.reg.Unregister(c.Request.Context(), id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unregistered", "agent_id": id})
}

func (h *Handler) get(c *gin.Context) {
	reg, err := h.reg.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

func (h *Handler) list(c *gin.Context) {
	filter := Filter{Skill: strings.TrimSpace(c.Query("skill")), HealthyOnly: true}
	if raw := c.Query("healthy_only"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			server.RespondWithError(c, apperrors.InvalidInput("healthy_only", "must be true or false"))
			return
		}
		filter.HealthyOnly = v
	}

	agents, err := h.reg.List(c.Request.Context(), filter)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents, "count": len(agents)})
}

type statsResponse struct {
	Stats
	AuthenticatedAs *jwt.Claims `json:"authenticated_as,omitempty"`
}

func (h *Handler) stats(c *gin.Context) {
	st, err := h.reg.Stats(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	resp := statsResponse{Stats: st}
	if h.identifier != nil {
		resp.AuthenticatedAs = h.identifier.Identify(c.Request.Context())
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) health(c *gin.Context) {
	st, err := h.reg.Stats(c.Request.Context())
	if err != nil {
		// Gated reads without a token still get a liveness answer.
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "stats": st})
}

func (h *Handler) banner(c *gin.Context) {
	authState := "disabled"
	if h.authEnabled {
		authState = "enabled"
	}
	c.JSON(http.StatusOK, gin.H{
		"service":        h.service,
		"status":         "running",
		"authentication": authState,
	})
}

// events streams lifecycle events; ?agent= takes a glob over agent ids.
func (h *Handler) events(c *gin.Context) {
	if a, ok := h.reg.(readAuthorizer); ok {
		if err := a.AuthorizeRead(c.Request.Context()); err != nil {
			server.RespondWithError(c, err)
			return
		}
	}
	err := sse.Serve(h.hub, c.Writer, c.Request, c.Query("agent"))
	switch {
	case err == nil:
	case errors.Is(err, sse.ErrHubStopped):
		server.RespondWithError(c, apperrors.ServiceUnavailable("event stream"))
	case errors.Is(err, sse.ErrStreamingUnsupported):
		server.RespondWithError(c, apperrors.Internal(err))
	default:
		server.RespondWithError(c, apperrors.InvalidInput("agent", err.Error()))
	}
}
