package sse

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/agentmesh/logger"
)

// ErrStreamingUnsupported means the response writer cannot flush.
var ErrStreamingUnsupported = errors.New("sse: streaming not supported")

type connectedEvent struct {
	SubscriberID string `json:"subscriber_id"`
	Pattern      string `json:"pattern"`
}

type droppedEvent struct {
	Dropped uint64 `json:"dropped"`
}

// Serve streams events matching pattern to w until the client goes away or
// the hub stops. An error is returned only when the stream could not be
// opened, before anything has been written.
func Serve(hub *Hub, w http.ResponseWriter, r *http.Request, pattern string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return ErrStreamingUnsupported
	}

	sub, err := hub.Subscribe(uuid.NewString(), pattern)
	if err != nil {
		return err
	}
	defer hub.Unsubscribe(sub)

	// Long-lived stream; the server WriteTimeout must not apply.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	hello, err := encode(Event{Type: EventTypeConnected, Data: connectedEvent{SubscriberID: sub.ID(), Pattern: sub.Pattern()}})
	if err != nil {
		return err
	}
	if _, err := w.Write(hello); err != nil {
		return nil
	}
	flusher.Flush()

	log := hub.log.WithFields(logger.Fields("subscriber", sub.ID(), "remote_addr", r.RemoteAddr))
	keepAlive := time.NewTicker(hub.keepAlive)
	defer keepAlive.Stop()

	var reported uint64
	for {
		select {
		case <-r.Context().Done():
			log.Debug("Stream closed by client")
			return nil

		case data, ok := <-sub.Events():
			if !ok {
				log.Debug("Stream closed by hub")
				return nil
			}
			if n := sub.Dropped(); n > reported {
				reported = n
				if notice, err := encode(Event{Type: EventTypeDropped, Data: droppedEvent{Dropped: n}}); err == nil {
					_, _ = w.Write(notice)
				}
			}
			if _, err := w.Write(data); err != nil {
				log.Debug("Stream write failed", logger.Fields(logger.FieldError, err.Error()))
				return nil
			}
			flusher.Flush()

		case now := <-keepAlive.C:
			if err := writeKeepAlive(w, now); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}
