package health

import (
	"context"
	"net/http"
	"time"

	"github.com/leapstack-labs/bridgeport/internal/stream"
)

const pingTimeout = 2 * time.Second

// Pinger checks a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Status is the health response body.
type Status struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Handlers provides the health handler.
type Handlers struct {
	pinger Pinger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(pinger Pinger) *Handlers {
	return &Handlers{pinger: pinger}
}

// Healthz answers 200 when the store responds to a ping, 503 otherwise.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := h.pinger.Ping(ctx); err != nil {
		stream.WriteJSON(w, http.StatusServiceUnavailable, Status{Status: "unavailable", Error: err.Error()})
		return
	}
	stream.WriteJSON(w, http.StatusOK, Status{Status: "ok"})
}
