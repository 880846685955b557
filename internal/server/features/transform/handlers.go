package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/leapstack-labs/bridgeport/internal/ledger"
	"github.com/leapstack-labs/bridgeport/internal/stream"
)

const maxBodyBytes = 1 << 20

// Actions understood by the transformer.
const (
	ActionProcess  = "process"
	ActionRollback = "rollback"
)

// Processor applies ledger records.
type Processor interface {
	Process(ctx context.Context, a ledger.Action) error
	Rollback(ctx context.Context, a ledger.Action) error
}

// Request is the transformer request body.
type Request struct {
	Action  string        `json:"action"`
	Payload ledger.Action `json:"payload"`
}

// Handlers provides the transformer handler.
type Handlers struct {
	processor Processor
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(processor Processor, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{processor: processor, logger: logger}
}

// Transform dispatches a record to the processor. A rejected record is
// logged by the processor and still acknowledged, so the ledger feed does
// not redeliver it.
func (h *Handlers) Transform(w http.ResponseWriter, r *http.Request) {
	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		stream.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	var err error
	switch req.Action {
	case ActionProcess:
		err = h.processor.Process(r.Context(), req.Payload)
	case ActionRollback:
		err = h.processor.Rollback(r.Context(), req.Payload)
	default:
		stream.WriteError(w, http.StatusBadRequest, fmt.Errorf("unknown action %q", req.Action))
		return
	}
	if err != nil {
		h.logger.Debug("record not applied", "action", req.Action, "tx", req.Payload.Tx.H, "error", err)
	}

	stream.WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
