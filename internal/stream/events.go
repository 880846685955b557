package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Event types sent on a live stream.
const (
	EventOpen    = "open"
	EventMessage = "message"
)

// DefaultHeartbeatInterval is how often an idle or busy stream sends a
// heartbeat comment.
const DefaultHeartbeatInterval = 30 * time.Second

// Event is the payload of a data frame.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

var heartbeatFrame = []byte(":heartbeat\n\n")

// EventStream writes Server-Sent Events. Writes from different goroutines
// are serialized, and every frame is flushed as soon as it is written.
type EventStream struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	rc     *http.ResponseController
	closed bool
}

// NewEventStream writes the event stream headers and returns the stream.
func NewEventStream(w http.ResponseWriter) (*EventStream, error) {
	h := w.Header()
	h.Set("Content-Type", ContentTypeEvents)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s := &EventStream{w: w, rc: http.NewResponseController(w)}
	// Live streams outlive any server write timeout.
	_ = s.rc.SetWriteDeadline(time.Time{})
	if err := flush(s.rc); err != nil {
		return nil, err
	}
	return s, nil
}

// Send writes one data frame: data: {"type":eventType,"data":data}.
func (s *EventStream) Send(eventType string, data any) error {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}

	var buf bytes.Buffer
	buf.Grow(len(payload) + 8)
	buf.WriteString("data: ")
	buf.Write(payload)
	buf.WriteString("\n\n")
	return s.write(buf.Bytes())
}

// Heartbeat writes a :heartbeat comment frame.
func (s *EventStream) Heartbeat() error {
	return s.write(heartbeatFrame)
}

// KeepAlive sends a heartbeat every interval until ctx is done or a write
// fails. It returns nil when ctx is done.
func (s *EventStream) KeepAlive(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Heartbeat(); err != nil {
				return err
			}
		}
	}
}

// Close stops all further writes.
func (s *EventStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *EventStream) write(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.w.Write(frame); err != nil {
		return err
	}
	return flush(s.rc)
}
