package sse

import (
	"errors"
	"fmt"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/agentmesh/logger"
)

// ErrHubStopped is returned by Subscribe once the hub has shut down.
var ErrHubStopped = errors.New("sse: hub stopped")

// Subscriber is one connected stream.
type Subscriber struct {
	id      string
	pattern string
	events  chan []byte
	dropped atomic.Uint64
}

// ID returns the subscriber id.
func (s *Subscriber) ID() string { return s.id }

// Pattern returns the topic pattern the subscriber follows.
func (s *Subscriber) Pattern() string { return s.pattern }

// Events returns encoded events. The channel is closed on unsubscribe or
// hub shutdown.
func (s *Subscriber) Events() <-chan []byte { return s.events }

// Dropped returns how many events were discarded because the subscriber
// fell behind.
func (s *Subscriber) Dropped() uint64 { return s.dropped.Load() }

func (s *Subscriber) matches(topic string) bool {
	ok, _ := path.Match(s.pattern, topic)
	return ok
}

// HubOption customizes a Hub.
type HubOption func(*Hub)

// WithBufferSize sets the per-subscriber queue length. Default: 64.
func WithBufferSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// WithKeepAlive sets the interval between keep-alive comments. Default: 30s.
func WithKeepAlive(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.keepAlive = d
		}
	}
}

// Hub routes published events to matching subscribers. All subscriber
// bookkeeping happens on the Run goroutine.
type Hub struct {
	log        *logger.Logger
	bufferSize int
	keepAlive  time.Duration

	subscribers map[string]*Subscriber
	register    chan *Subscriber
	unregister  chan *Subscriber
	broadcast   chan Event
	done        chan struct{}
	stopOnce    sync.Once

	mu  sync.RWMutex
	seq atomic.Uint64
}

var _ Publisher = (*Hub)(nil)

// NewHub creates a hub. Call Run before subscribing.
func NewHub(log *logger.Logger, opts ...HubOption) *Hub {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	h := &Hub{
		log:         log.WithComponent("sse"),
		bufferSize:  64,
		keepAlive:   30 * time.Second,
		subscribers: make(map[string]*Subscriber),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		broadcast:   make(chan Event, 256),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run processes subscriptions and deliveries until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case sub := <-h.register:
			h.mu.Lock()
			if old, ok := h.subscribers[sub.id]; ok {
				close(old.events)
			}
			h.subscribers[sub.id] = sub
			n := len(h.subscribers)
			h.mu.Unlock()
			h.log.Debug("Subscriber connected", logger.Fields("subscriber", sub.id, "pattern", sub.pattern, "subscribers", n))

		case sub := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.subscribers[sub.id]; ok && cur == sub {
				delete(h.subscribers, sub.id)
				close(sub.events)
			}
			n := len(h.subscribers)
			h.mu.Unlock()
			h.log.Debug("Subscriber disconnected", logger.Fields("subscriber", sub.id, "subscribers", n))

		case e := <-h.broadcast:
			h.deliver(e)
		}
	}
}

// Stop shuts the hub down and closes every subscriber. It is safe to call
// more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Subscribe adds a subscriber following topics that match pattern. An
// empty pattern follows everything.
func (h *Hub) Subscribe(id, pattern string) (*Subscriber, error) {
	if pattern == "" {
		pattern = "*"
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("sse: invalid pattern %q: %w", pattern, err)
	}
	sub := &Subscriber{id: id, pattern: pattern, events: make(chan []byte, h.bufferSize)}
	select {
	case h.register <- sub:
		return sub, nil
	case <-h.done:
		return nil, ErrHubStopped
	}
}

// Unsubscribe removes sub and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	select {
	case h.unregister <- sub:
	case <-h.done:
	}
}

// Publish queues e for delivery and stamps it with the next sequence
// number. It never blocks; when the queue is full the event is dropped.
func (h *Hub) Publish(e Event) {
	e.ID = h.seq.Add(1)
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- e:
	default:
		h.log.Warn("Event queue full, dropping event", logger.Fields("type", e.Type, "topic", e.Topic))
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

func (h *Hub) deliver(e Event) {
	data, err := encode(e)
	if err != nil {
		h.log.WithError(err).Error("Dropping unencodable event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subscribers {
		if !sub.matches(e.Topic) {
			continue
		}
		select {
		case sub.events <- data:
		default:
			sub.dropped.Add(1)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subscribers {
		close(sub.events)
		delete(h.subscribers, id)
	}
}
