package sse

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/agentmesh/component"
)

// Component runs a Hub for the lifetime of the process.
type Component struct {
	hub *Hub

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

var _ component.Component = (*Component)(nil)

// NewComponent wraps hub.
func NewComponent(hub *Hub) *Component {
	return &Component{hub: hub}
}

// Name implements component.Component.
func (c *Component) Name() string { return "event-stream" }

// Start runs the hub loop in the background.
func (c *Component) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("sse: hub already running")
	}
	c.running = true
	c.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		c.hub.Run()
	}(c.done)
	return nil
}

// Stop shuts the hub down and waits for its loop to exit.
func (c *Component) Stop(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.running = false
	c.mu.Unlock()

	c.hub.Stop()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health implements component.Component.
func (c *Component) Health(_ context.Context) component.Health {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if !running {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "not running"}
	}
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d subscribers", c.hub.Len()),
	}
}
