package registry

import (
	"github.com/kbukum/agentmesh/sse"
)

// EventType names a registry lifecycle change.
type EventType string

const (
	EventRegistered   EventType = "registered"
	EventUnregistered EventType = "unregistered"
	EventRecovered    EventType = "recovered"
	EventStale        EventType = "stale"
	EventRemoved      EventType = "removed"
)

// Event is published for every lifecycle change. Heartbeats that do not
// change health are not published.
type Event struct {
	Type      EventType   `json:"type"`
	AgentID   string      `json:"agent_id"`
	AgentName string      `json:"agent_name,omitempty"`
	Health    HealthState `json:"health"`
	Replaced  bool        `json:"replaced,omitempty"`
	At        float64     `json:"at"`
}

// WithEvents publishes lifecycle events, topic-keyed by agent id.
func WithEvents(p sse.Publisher) StoreOption {
	return func(s *Store) { s.events = p }
}

// emit publishes ev. Callers must not hold an entry lock.
func (s *Store) emit(ev Event) {
	if s.events == nil {
		return
	}
	ev.At = unixSeconds(s.now())
	s.events.Publish(sse.Event{Type: string(ev.Type), Topic: ev.AgentID, Data: ev})
}
