package registry

import (
	"encoding/json"
	"time"
)

// HealthState is the liveness classification of a registration.
type HealthState string

const (
	Healthy HealthState = "healthy"
	Stale   HealthState = "stale"
	// Removed is reported in logs and metrics only; removed records are
	// deleted from the store.
	Removed HealthState = "removed"
)

// Registration is a snapshot of a registered agent.
type Registration struct {
	AgentID       string
	Card          AgentCard
	BaseURL       string
	RegisteredAt  time.Time
	LastHeartbeat time.Time
	Health        HealthState
}

// Healthy reports whether the agent is in the Healthy state.
func (r Registration) Healthy() bool {
	return r.Health == Healthy
}

func (r Registration) clone() Registration {
	r.Card = r.Card.Clone()
	return r
}

type registrationJSON struct {
	AgentID       string      `json:"agent_id"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	URL           string      `json:"url"`
	Skills        []string    `json:"skills"`
	RegisteredAt  float64     `json:"registered_at"`
	LastHeartbeat float64     `json:"last_heartbeat"`
	Healthy       bool        `json:"healthy"`
	Health        HealthState `json:"health"`
	AgentCard     AgentCard   `json:"agent_card"`
}

// MarshalJSON renders timestamps as fractional Unix seconds.
func (r Registration) MarshalJSON() ([]byte, error) {
	return json.Marshal(registrationJSON{
		AgentID:       r.AgentID,
		Name:          r.Card.Name,
		Description:   r.Card.Description,
		URL:           r.BaseURL,
		Skills:        r.Card.SkillNames(),
		RegisteredAt:  unixSeconds(r.RegisteredAt),
		LastHeartbeat: unixSeconds(r.LastHeartbeat),
		Healthy:       r.Healthy(),
		Health:        r.Health,
		AgentCard:     r.Card,
	})
}

// UnmarshalJSON accepts the form produced by MarshalJSON.
func (r *Registration) UnmarshalJSON(data []byte) error {
	var raw registrationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Registration{
		AgentID:       raw.AgentID,
		Card:          raw.AgentCard,
		BaseURL:       raw.URL,
		RegisteredAt:  fromUnixSeconds(raw.RegisteredAt),
		LastHeartbeat: fromUnixSeconds(raw.LastHeartbeat),
		Health:        raw.Health,
	}
	if r.Health == "" {
		r.Health = Stale
		if raw.Healthy {
			r.Health = Healthy
		}
	}
	return nil
}

// Filter narrows List results.
type Filter struct {
	// Skill matches a skill name or id.
	Skill string
	// HealthyOnly drops stale registrations.
	HealthyOnly bool
}

// Matches reports whether reg passes the filter.
func (f Filter) Matches(reg Registration) bool {
	if f.HealthyOnly && !reg.Healthy() {
		return false
	}
	return f.Skill == "" || reg.Card.HasSkill(f.Skill)
}

// Stats summarizes store contents.
type Stats struct {
	TotalAgents   int            `json:"total_agents"`
	HealthyAgents int            `json:"healthy_agents"`
	StaleAgents   int            `json:"stale_agents"`
	SkillCounts   map[string]int `json:"skill_counts"`
	UptimeSeconds float64        `json:"uptime_seconds"`
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromUnixSeconds(s float64) time.Time {
	if s == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(s*float64(time.Second)))
}
