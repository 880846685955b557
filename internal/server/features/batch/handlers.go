package batch

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/leapstack-labs/bridgeport/internal/bridge"
	"github.com/leapstack-labs/bridgeport/internal/metrics"
	"github.com/leapstack-labs/bridgeport/internal/server/features/common"
	"github.com/leapstack-labs/bridgeport/internal/stream"
	"github.com/leapstack-labs/bridgeport/pkg/query"
)

// FormatHeader selects the response format. "json" buffers the result into
// one array; anything else streams newline delimited JSON.
const FormatHeader = "format"

const (
	formatJSON   = "json"
	formatNDJSON = "ndjson"
)

// Handlers provides HTTP handlers for batch queries.
type Handlers struct {
	bridge         *bridge.Bridge
	reservedPrefix string
	logger         *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(b *bridge.Bridge, reservedPrefix string, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{bridge: b, reservedPrefix: reservedPrefix, logger: logger}
}

// Query decodes, validates and runs the envelope in the path.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	format := formatNDJSON
	if strings.EqualFold(strings.TrimSpace(r.Header.Get(FormatHeader)), formatJSON) {
		format = formatJSON
	}

	q, err := query.Parse(common.Param(r, common.QueryParam), query.ModeBatch, query.WithReservedPrefix(h.reservedPrefix))
	if err != nil {
		h.observe("unknown", format, err, start)
		stream.WriteError(w, http.StatusBadRequest, err)
		return
	}

	kind := "find"
	if q.IsAggregate() {
		kind = "aggregate"
	}
	logger := h.logger.With("collection", q.Collection(), "kind", kind, "format", format)

	cur, err := h.bridge.Execute(r.Context(), q)
	if err != nil {
		logger.Debug("query failed", "error", err)
		h.observe(kind, format, err, start)
		stream.WriteError(w, http.StatusBadRequest, err)
		return
	}
	defer func() {
		if err := cur.Close(context.WithoutCancel(r.Context())); err != nil {
			logger.Warn("failed to close cursor", "error", err)
		}
	}()

	var written int
	if format == formatJSON {
		written, err = stream.WriteJSONArray(r.Context(), w, cur)
	} else {
		written, err = stream.WriteLines(r.Context(), w, cur)
	}
	metrics.QueryDocuments.Add(float64(written))
	h.observe(kind, format, err, start)

	switch {
	case err == nil:
	case r.Context().Err() != nil:
		logger.Debug("client went away", "written", written)
	case format == formatJSON || written == 0:
		stream.WriteError(w, http.StatusBadRequest, &bridge.ExecutionError{Op: kind, Err: err})
	default:
		// The status line is gone; the client sees a short stream.
		logger.Error("query stream interrupted", "written", written, "error", err)
	}
}

func (h *Handlers) observe(kind, format string, err error, start time.Time) {
	metrics.QueriesTotal.WithLabelValues(kind, format, common.Outcome(err)).Inc()
	metrics.QueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
