package subscribe

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/bridgeport/internal/bridge"
	"github.com/leapstack-labs/bridgeport/internal/metrics"
	"github.com/leapstack-labs/bridgeport/internal/server/features/common"
	"github.com/leapstack-labs/bridgeport/internal/stream"
	"github.com/leapstack-labs/bridgeport/pkg/query"
)

// Handlers provides HTTP handlers for live queries.
type Handlers struct {
	bridge         *bridge.Bridge
	reservedPrefix string
	heartbeat      time.Duration
	logger         *slog.Logger
}

// NewHandlers creates a new Handlers instance. A zero heartbeat uses
// stream.DefaultHeartbeatInterval.
func NewHandlers(b *bridge.Bridge, reservedPrefix string, heartbeat time.Duration, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if heartbeat <= 0 {
		heartbeat = stream.DefaultHeartbeatInterval
	}
	return &Handlers{
		bridge:         b,
		reservedPrefix: reservedPrefix,
		heartbeat:      heartbeat,
		logger:         logger,
	}
}

// Subscribe opens a change stream for the envelope in the path and forwards
// its events until the client disconnects.
func (h *Handlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := query.Parse(common.Param(r, common.QueryParam), query.ModeSubscription, query.WithReservedPrefix(h.reservedPrefix))
	if err != nil {
		metrics.SubscriptionsTotal.WithLabelValues(common.Outcome(err)).Inc()
		stream.WriteError(w, http.StatusBadRequest, err)
		return
	}

	sub, err := h.bridge.Subscribe(ctx, q)
	if err != nil {
		metrics.SubscriptionsTotal.WithLabelValues(common.Outcome(err)).Inc()
		h.logger.Warn("failed to open change stream", "error", err)
		stream.WriteError(w, http.StatusBadRequest, err)
		return
	}
	logger := h.logger.With("subscription", sub.ID())
	defer func() {
		if err := sub.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to close change stream", "error", err)
		}
	}()

	events, err := stream.NewEventStream(w)
	if err != nil {
		logger.Error("failed to start event stream", "error", err)
		return
	}
	defer events.Close()

	metrics.SubscriptionsTotal.WithLabelValues(metrics.StatusOK).Inc()
	metrics.SubscriptionsActive.Inc()
	defer metrics.SubscriptionsActive.Dec()
	logger.Info("subscription opened")

	if err := events.Send(stream.EventOpen, []any{}); err != nil {
		logger.Debug("client went away before open", "error", err)
		return
	}

	eg, egctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return events.KeepAlive(egctx, h.heartbeat)
	})

	eg.Go(func() error {
		for {
			event, ok := sub.Next(egctx)
			if !ok {
				break
			}
			if err := events.Send(stream.EventMessage, event); err != nil {
				return err
			}
			metrics.SubscriptionEvents.Inc()
		}
		// The feed is gone; heartbeats continue until the client leaves.
		if err := sub.Err(); err != nil {
			logger.Error("change stream failed", "error", err)
		}
		return nil
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, stream.ErrClosed) {
		logger.Debug("event stream ended", "error", err)
	}
	logger.Info("subscription closed")
}
