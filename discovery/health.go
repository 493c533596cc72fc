package discovery

import (
	"context"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/agentmesh/logger"
	"github.com/kbukum/agentmesh/observability"
)

// HealthReport is the outcome of probing one agent.
type HealthReport struct {
	URL            string  `json:"url"`
	Healthy        bool    `json:"healthy"`
	ResponseTimeMS float64 `json:"response_time_ms"`
	CardAvailable  bool    `json:"card_available"`
	AgentName      string  `json:"agent_name,omitempty"`
	SkillsCount    int     `json:"skills_count,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// HealthCheckAgent fetches the agent's card directly, bypassing the cache,
// within the configured health timeout. Failures are reported in the
// result, never returned.
func (s *Service) HealthCheckAgent(ctx context.Context, baseURL string) HealthReport {
	ctx, span := observability.StartSpan(ctx, observability.SpanHealthProbe, attribute.String("agent.url", baseURL))
	ctx, cancel := context.WithTimeout(ctx, s.cfg.healthTimeout())
	defer cancel()

	report := HealthReport{URL: baseURL}
	start := time.Now()
	card, err := fetchCard(ctx, s.agents, baseURL)
	report.ResponseTimeMS = math.Round(float64(time.Since(start).Microseconds())/10) / 100

	if err != nil {
		report.Error = err.Error()
		s.log.Debug("Agent health probe failed", logger.Fields("base_url", baseURL, logger.FieldError, err.Error()))
	} else {
		report.Healthy = true
		report.CardAvailable = true
		report.AgentName = card.Name
		report.SkillsCount = len(card.Skills)
	}

	span.SetAttributes(attribute.Bool("healthy", report.Healthy))
	observability.EndSpan(span, nil)
	return report
}
