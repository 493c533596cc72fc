package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Event types the stream itself emits.
const (
	EventTypeConnected = "connected"
	EventTypeDropped   = "dropped"
)

// Event is one message on the stream. Topic is what subscriber patterns
// match against; it is not sent to the client.
type Event struct {
	ID    uint64
	Type  string
	Topic string
	Data  any
}

// Publisher accepts events for delivery.
type Publisher interface {
	Publish(e Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

// Publish implements Publisher.
func (f PublisherFunc) Publish(e Event) { f(e) }

// encode renders e in the text/event-stream wire format.
func encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("sse: encode %s event: %w", e.Type, err)
	}
	var b []byte
	if e.ID > 0 {
		b = fmt.Appendf(b, "id: %d\n", e.ID)
	}
	if e.Type != "" {
		b = fmt.Appendf(b, "event: %s\n", e.Type)
	}
	b = fmt.Appendf(b, "data: %s\n\n", data)
	return b, nil
}

func writeKeepAlive(w io.Writer, now time.Time) error {
	_, err := fmt.Fprintf(w, ": keepalive %d\n\n", now.Unix())
	return err
}
