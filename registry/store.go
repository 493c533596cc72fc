package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "github.com/kbukum/agentmesh/errors"
	"github.com/kbukum/agentmesh/logger"
	"github.com/kbukum/agentmesh/observability"
	"github.com/kbukum/agentmesh/sse"
	"github.com/kbukum/agentmesh/validation"
)

// Registry is the set of operations served over HTTP. Store implements it
// directly; Gate adds token checks in front of a Store.
type Registry interface {
	Register(ctx context.Context, id string, card AgentCard, baseURL string) (Registration, error)
	Heartbeat(ctx context.Context, id string) (Registration, error)
	Unregister(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Registration, error)
	List(ctx context.Context, filter Filter) ([]Registration, error)
	Stats(ctx context.Context) (Stats, error)
}

var (
	_ Registry = (*Store)(nil)
	_ Registry = (*Gate)(nil)
)

// entry guards one registration. removed is set once the record has left
// the map so late lock holders do not resurrect it.
type entry struct {
	mu      sync.Mutex
	reg     Registration
	removed bool
}

// Store is the in-memory registration table. Writes to one id are
// serialized on that id's entry lock; the map lock is only held for
// lookups, inserts and deletes.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	now     func() time.Time
	started time.Time
	log     *logger.Logger
	metrics *observability.Metrics
	events  sse.Publisher
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithClock overrides the store clock.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the store logger.
func WithLogger(l *logger.Logger) StoreOption {
	return func(s *Store) { s.log = l }
}

// WithMetrics records lifecycle events and health transitions.
func WithMetrics(m *observability.Metrics) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{entries: make(map[string]*entry), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.GetGlobalLogger()
	}
	s.log = s.log.WithComponent("registry")
	s.started = s.now()
	return s
}

type registerInput struct {
	AgentID   string    `json:"agent_id" validate:"notblank"`
	AgentCard AgentCard `json:"agent_card"`
	BaseURL   string    `json:"base_url" validate:"httpurl"`
}

// Register creates or overwrites the registration for id.
func (s *Store) Register(ctx context.Context, id string, card AgentCard, baseURL string) (Registration, error) {
	baseURL = strings.TrimSpace(baseURL)
	if err := validation.Validate(registerInput{AgentID: id, AgentCard: card, BaseURL: baseURL}); err != nil {
		s.metrics.RecordLifecycle(ctx, "register", "invalid")
		return Registration{}, err
	}
	card = card.Clone()

	e, existed := s.lockOrCreate(id)
	now := s.now()
	heartbeat := now
	if existed {
		heartbeat = advance(e.reg.LastHeartbeat, now)
	}
	e.reg = Registration{
		AgentID:       id,
		Card:          card,
		BaseURL:       baseURL,
		RegisteredAt:  now,
		LastHeartbeat: heartbeat,
		Health:        Healthy,
	}
	out := e.reg.clone()
	e.mu.Unlock()

	fields := logger.Fields(logger.FieldAgentID, id, "agent_name", card.Name, "base_url", baseURL, "skills_count", len(card.Skills))
	if existed {
		s.log.Info("Agent re-registered; previous registration overwritten", fields)
	} else {
		s.log.Info("Agent registered", fields)
	}
	s.metrics.RecordLifecycle(ctx, "register", "ok")
	s.emit(Event{Type: EventRegistered, AgentID: id, AgentName: card.Name, Health: Healthy, Replaced: existed})
	return out, nil
}

// Heartbeat advances last_heartbeat for id and marks it Healthy.
func (s *Store) Heartbeat(ctx context.Context, id string) (Registration, error) {
	e := s.load(id)
	if e == nil {
		s.metrics.RecordLifecycle(ctx, "heartbeat", "not_found")
		return Registration{}, apperrors.NotFound("agent", id)
	}

	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		s.metrics.RecordLifecycle(ctx, "heartbeat", "not_found")
		return Registration{}, apperrors.NotFound("agent", id)
	}
	prev := e.reg.Health
	e.reg.LastHeartbeat = advance(e.reg.LastHeartbeat, s.now())
	e.reg.Health = Healthy
	out := e.reg.clone()
	e.mu.Unlock()

	if prev != Healthy {
		s.log.Info("Agent recovered", logger.Fields(logger.FieldAgentID, id, logger.FieldHealth, string(Healthy)))
		s.metrics.RecordHealthTransition(ctx, string(Healthy), 1)
		s.emit(Event{Type: EventRecovered, AgentID: id, AgentName: out.Card.Name, Health: Healthy})
	}
	s.metrics.RecordLifecycle(ctx, "heartbeat", "ok")
	return out, nil
}

// Unregister removes id. Unknown ids are ignored.
func (s *Store) Unregister(ctx context.Context, id string) error {
	e := s.load(id)
	if e == nil {
		s.log.Debug("Unregister of unknown agent ignored", logger.Fields(logger.FieldAgentID, id))
		s.metrics.RecordLifecycle(ctx, "unregister", "absent")
		return nil
	}

	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		s.metrics.RecordLifecycle(ctx, "unregister", "absent")
		return nil
	}
	name := e.reg.Card.Name
	s.evict(id, e)
	e.mu.Unlock()

	s.log.Info("Agent unregistered", logger.Fields(logger.FieldAgentID, id))
	s.metrics.RecordLifecycle(ctx, "unregister", "ok")
	s.emit(Event{Type: EventUnregistered, AgentID: id, AgentName: name, Health: Removed})
	return nil
}

// Get returns the registration for id.
func (s *Store) Get(_ context.Context, id string) (Registration, error) {
	if e := s.load(id); e != nil {
		e.mu.Lock()
		defer e.mu.Unlock()
		if !e.removed {
			return e.reg.clone(), nil
		}
	}
	return Registration{}, apperrors.NotFound("agent", id)
}

// List returns registrations matching filter in no particular order.
func (s *Store) List(_ context.Context, filter Filter) ([]Registration, error) {
	out := make([]Registration, 0)
	s.each(func(reg *Registration) {
		if filter.Matches(*reg) {
			out = append(out, reg.clone())
		}
	})
	return out, nil
}

// Stats counts registrations by health and skill.
func (s *Store) Stats(_ context.Context) (Stats, error) {
	st := Stats{SkillCounts: make(map[string]int)}
	s.each(func(reg *Registration) {
		st.TotalAgents++
		switch reg.Health {
		case Healthy:
			st.HealthyAgents++
		case Stale:
			st.StaleAgents++
		}
		for _, name := range reg.Card.SkillNames() {
			st.SkillCounts[name]++
		}
	})
	st.UptimeSeconds = s.now().Sub(s.started).Seconds()
	return st, nil
}

// Len returns the number of registrations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// SweepResult reports what a sweep changed.
type SweepResult struct {
	Checked int
	Stale   int
	Removed int
	Errors  int
}

// Sweep applies the health transition rule to every record. Each record
// is judged against its own last_heartbeat read under its lock, so a
// heartbeat that lands mid-sweep is never evicted. A failure on one record
// is logged and skipped.
func (s *Store) Sweep(ctx context.Context, staleAfter, removeAfter time.Duration) SweepResult {
	var res SweepResult
	for _, id := range s.ids() {
		if ctx.Err() != nil {
			break
		}
		state, name, err := s.sweepOne(id, staleAfter, removeAfter)
		if err != nil {
			res.Errors++
			s.log.WithError(err).Error("Sweep failed for agent", logger.Fields(logger.FieldAgentID, id))
			continue
		}
		res.Checked++
		switch state {
		case Stale:
			res.Stale++
			s.emit(Event{Type: EventStale, AgentID: id, AgentName: name, Health: Stale})
		case Removed:
			res.Removed++
			s.emit(Event{Type: EventRemoved, AgentID: id, AgentName: name, Health: Removed})
		}
	}

	if res.Stale > 0 {
		s.metrics.RecordHealthTransition(ctx, string(Stale), res.Stale)
	}
	if res.Removed > 0 {
		s.metrics.RecordHealthTransition(ctx, string(Removed), res.Removed)
	}
	return res
}

// sweepOne returns the state id moved into, or "" when unchanged, along
// with the agent name.
func (s *Store) sweepOne(id string, staleAfter, removeAfter time.Duration) (changed HealthState, name string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during sweep: %v", r)
		}
	}()

	e := s.load(id)
	if e == nil {
		return "", "", nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return "", "", nil
	}
	name = e.reg.Card.Name

	age := s.now().Sub(e.reg.LastHeartbeat)
	fields := logger.Fields(logger.FieldAgentID, id, "last_heartbeat", e.reg.LastHeartbeat, "age_s", age.Seconds())
	switch {
	case age > removeAfter:
		s.evict(id, e)
		s.log.Info("Removed stale agent registration", fields)
		return Removed, name, nil
	case age > staleAfter && e.reg.Health == Healthy:
		e.reg.Health = Stale
		s.log.Warn("Marked agent as stale", fields)
		return Stale, name, nil
	}
	return "", name, nil
}

// evict deletes e from the map. Callers hold e.mu.
func (s *Store) evict(id string, e *entry) {
	e.removed = true
	s.mu.Lock()
	if s.entries[id] == e {
		delete(s.entries, id)
	}
	s.mu.Unlock()
}

func (s *Store) load(id string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[id]
}

// lockOrCreate returns the live entry for id with its lock held, inserting
// a new one when absent. A fresh entry is locked before it becomes visible.
func (s *Store) lockOrCreate(id string) (*entry, bool) {
	for {
		s.mu.Lock()
		e, ok := s.entries[id]
		if !ok {
			e = &entry{}
			e.mu.Lock()
			s.entries[id] = e
			s.mu.Unlock()
			return e, false
		}
		s.mu.Unlock()

		e.mu.Lock()
		if !e.removed {
			return e, true
		}
		// Evicted between lookup and lock.
		e.mu.Unlock()
	}
}

func (s *Store) ids() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

// each calls fn with every live registration while holding its lock.
func (s *Store) each(fn func(*Registration)) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		if !e.removed {
			fn(&e.reg)
		}
		e.mu.Unlock()
	}
}

// advance returns now, or prev plus one nanosecond when the clock has not
// moved past prev.
func advance(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Nanosecond)
}
