package discovery

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/kbukum/agentmesh/errors"
	"github.com/kbukum/agentmesh/logger"
	"github.com/kbukum/agentmesh/observability"
	"github.com/kbukum/agentmesh/registry"
	"github.com/kbukum/agentmesh/resilience"
)

// Agent is one entry of a merged listing.
type Agent struct {
	AgentID   string             `json:"agent_id"`
	Card      registry.AgentCard `json:"agent_card"`
	URL       string             `json:"url"`
	Healthy   bool               `json:"healthy"`
	Source    string             `json:"source"`
	FetchedAt time.Time          `json:"fetched_at"`
}

// ListFilter narrows a listing.
type ListFilter struct {
	Skill       string
	HealthyOnly bool
}

func (f ListFilter) matches(a Agent) bool {
	if f.HealthyOnly && !a.Healthy {
		return false
	}
	return f.Skill == "" || a.Card.HasSkill(f.Skill)
}

// ListResult holds merged agents and one warning per source that failed.
type ListResult struct {
	Agents   []Agent
	Warnings []error
}

// listSource is a registry or a known agent queried during a listing.
type listSource struct {
	name    string
	reg     *registrySource
	agentID string
	baseURL string
}

// ListAvailableAgents queries every registry and known agent concurrently
// and merges the answers by agent id; the most recent fetch wins and ties
// go to the source added last. A failed source becomes a
// DISCOVERY_UNREACHABLE warning and never fails the call. The only error
// returned is a cancelled ctx.
func (s *Service) ListAvailableAgents(ctx context.Context, filter ListFilter) (_ ListResult, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanListAgents)
	defer func() { observability.EndSpan(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.queryTimeout())
	defer cancel()

	var sources []listSource
	for _, r := range s.snapshotRegistries() {
		sources = append(sources, listSource{name: r.name(), reg: r})
	}
	known := s.snapshotKnown()
	for _, id := range slices.Sorted(maps.Keys(known)) {
		sources = append(sources, listSource{name: "known:" + id, agentID: id, baseURL: known[id]})
	}

	batches, errs := resilience.FanOut(ctx, s.bulkhead, sources, s.listOne)

	merged := make(map[string]Agent)
	var res ListResult
	for i, src := range sources {
		if errs[i] != nil {
			warn := apperrors.DiscoveryUnreachable(src.name, errs[i])
			res.Warnings = append(res.Warnings, warn)
			s.log.Warn("Failed to list agents from source", logger.Fields(
				"source", src.name, logger.FieldError, errs[i].Error(),
			))
			continue
		}
		for _, a := range batches[i] {
			if cur, ok := merged[a.AgentID]; ok && cur.FetchedAt.After(a.FetchedAt) {
				continue
			}
			merged[a.AgentID] = a
		}
	}

	res.Agents = make([]Agent, 0, len(merged))
	for _, a := range merged {
		if a.Healthy {
			s.cache.put(a.AgentID, cacheEntry{source: a.Source, card: a.Card, baseURL: a.URL, fetchedAt: a.FetchedAt})
		}
		if filter.matches(a) {
			res.Agents = append(res.Agents, a)
		}
	}
	slices.SortFunc(res.Agents, func(a, b Agent) int { return strings.Compare(a.AgentID, b.AgentID) })

	span.SetAttributes(
		attribute.Int("agents", len(res.Agents)),
		attribute.Int("warnings", len(res.Warnings)),
	)
	if err := ctx.Err(); errors.Is(err, context.Canceled) {
		return res, err
	}
	return res, nil
}

func (s *Service) listOne(ctx context.Context, src listSource) (_ []Agent, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanSourceQuery, attribute.String(observability.AttrSource, src.name))
	start := time.Now()
	defer func() {
		metricSource := src.name
		if src.reg == nil {
			metricSource = "known"
		}
		s.metrics.RecordDiscoveryQuery(ctx, metricSource, time.Since(start), err)
		observability.EndSpan(span, err)
	}()

	if src.reg == nil {
		card, err := fetchCard(ctx, s.agents, src.baseURL)
		if err != nil {
			return nil, err
		}
		return []Agent{{
			AgentID:   src.agentID,
			Card:      card,
			URL:       src.baseURL,
			Healthy:   true,
			Source:    src.name,
			FetchedAt: s.now(),
		}}, nil
	}

	records, err := src.reg.list(ctx)
	if err != nil {
		return nil, err
	}
	fetchedAt := s.now()
	out := make([]Agent, 0, len(records))
	for _, rec := range records {
		id := rec.id()
		card, ok := rec.inlineCard()
		if id == "" || !ok {
			s.log.Debug("Skipping unrecognised registry entry", logger.Fields(logger.FieldRegistry, src.reg.url))
			continue
		}
		out = append(out, Agent{
			AgentID:   id,
			Card:      card,
			URL:       rec.baseURL(),
			Healthy:   rec.healthy(),
			Source:    src.name,
			FetchedAt: fetchedAt,
		})
	}
	return out, nil
}
