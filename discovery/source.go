package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/kbukum/agentmesh/httpclient"
	"github.com/kbukum/agentmesh/registry"
)

// Paths tried, in order, when looking up one agent on a registry.
var lookupPaths = []string{
	"/agents/%s",
	"/api/agents/%s",
	"/registry/agents/%s",
	"/discover/%s",
}

// Paths tried, in order, when listing a registry.
var listPaths = []string{
	"/agents",
	"/api/agents",
	"/registry/agents",
	"/list",
}

// Paths an agent may serve its own card on.
var cardPaths = []string{
	"/.well-known/agent-card",
	"/agent-card",
	"/.well-known/a2a/agent-card",
}

// errNotListed means the registry answered but does not know the agent.
var errNotListed = errors.New("agent not listed")

// agentRecord is the union of the shapes registries answer with: a
// registration carrying agent_card, a pointer to the agent's URL, or a
// bare card.
type agentRecord struct {
	AgentID     string              `json:"agent_id"`
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	URL         string              `json:"url"`
	AgentURL    string              `json:"agent_url"`
	Version     string              `json:"version"`
	Skills      skillList           `json:"skills"`
	Healthy     *bool               `json:"healthy"`
	AgentCard   *registry.AgentCard `json:"agent_card"`
}

func (r agentRecord) id() string {
	if r.AgentID != "" {
		return r.AgentID
	}
	return r.ID
}

func (r agentRecord) baseURL() string {
	if r.AgentURL != "" {
		return r.AgentURL
	}
	if r.URL != "" {
		return r.URL
	}
	if r.AgentCard != nil {
		return r.AgentCard.URL
	}
	return ""
}

func (r agentRecord) healthy() bool {
	return r.Healthy == nil || *r.Healthy
}

// inlineCard returns the card carried by the record itself, if any.
func (r agentRecord) inlineCard() (registry.AgentCard, bool) {
	if r.AgentCard != nil {
		return r.AgentCard.Clone(), true
	}
	if r.Name == "" {
		return registry.AgentCard{}, false
	}
	return registry.AgentCard{
		Name:        r.Name,
		Description: r.Description,
		URL:         r.URL,
		Version:     r.Version,
		Skills:      []registry.Skill(r.Skills),
	}, true
}

// skillList accepts a list of skill objects or a list of skill names.
type skillList []registry.Skill

func (s *skillList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	var names []string
	if err := json.Unmarshal(data, &names); err == nil {
		out := make([]registry.Skill, len(names))
		for i, n := range names {
			out[i] = registry.Skill{ID: n, Name: n}
		}
		*s = out
		return nil
	}
	var skills []registry.Skill
	if err := json.Unmarshal(data, &skills); err != nil {
		return err
	}
	*s = skills
	return nil
}

// listDoc accepts {"agents": [...]} or a bare array.
type listDoc struct {
	Agents []agentRecord
	ok     bool
}

func (l *listDoc) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		l.ok = true
		return json.Unmarshal(data, &l.Agents)
	}
	var wrapped struct {
		Agents *[]agentRecord `json:"agents"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	if wrapped.Agents != nil {
		l.ok = true
		l.Agents = *wrapped.Agents
	}
	return nil
}

// registrySource is one remote registry with its own client and breaker.
type registrySource struct {
	url    string
	client *httpclient.Client
}

func (r *registrySource) name() string { return "registry:" + r.url }

// lookup walks the lookup paths. A 404 moves on to the next path; any
// other failure means the registry is unreachable.
func (r *registrySource) lookup(ctx context.Context, id string) (agentRecord, error) {
	for _, p := range lookupPaths {
		resp, err := httpclient.Get[agentRecord](r.client, ctx, fmt.Sprintf(p, url.PathEscape(id)))
		if err != nil {
			if httpclient.IsNotFound(err) {
				continue
			}
			return agentRecord{}, err
		}
		rec := resp.Data
		if _, ok := rec.inlineCard(); ok || rec.baseURL() != "" {
			return rec, nil
		}
	}
	return agentRecord{}, errNotListed
}

// list walks the list paths and returns the first recognisable answer.
func (r *registrySource) list(ctx context.Context) ([]agentRecord, error) {
	for _, p := range listPaths {
		resp, err := httpclient.Get[listDoc](r.client, ctx, p, httpclient.WithQueryParam("healthy_only", "false"))
		if err != nil {
			if httpclient.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if resp.Data.ok {
			return resp.Data.Agents, nil
		}
	}
	return nil, fmt.Errorf("no agent listing endpoint on %s", r.url)
}

// fetchCard reads an agent's card from its well-known paths.
func fetchCard(ctx context.Context, c *httpclient.Client, baseURL string) (registry.AgentCard, error) {
	base := strings.TrimRight(baseURL, "/")
	var failures []string
	for _, p := range cardPaths {
		resp, err := httpclient.Get[registry.AgentCard](c, ctx, base+p)
		if err != nil {
			if ctx.Err() != nil {
				return registry.AgentCard{}, ctx.Err()
			}
			if !httpclient.IsNotFound(err) {
				failures = append(failures, fmt.Sprintf("%s: %v", p, err))
			}
			continue
		}
		if strings.TrimSpace(resp.Data.Name) == "" {
			failures = append(failures, p+": card has no name")
			continue
		}
		return resp.Data, nil
	}
	if len(failures) > 0 {
		return registry.AgentCard{}, fmt.Errorf("fetch agent card from %s: %s", baseURL, strings.Join(failures, "; "))
	}
	return registry.AgentCard{}, fmt.Errorf("no agent card served by %s", baseURL)
}
