// Package subscribe serves live queries as Server-Sent Events.
package subscribe

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/bridgeport/internal/bridge"
)

// SetupRoutes registers the live query route.
func SetupRoutes(
	router chi.Router,
	b *bridge.Bridge,
	reservedPrefix string,
	heartbeat time.Duration,
	logger *slog.Logger,
) error {
	handlers := NewHandlers(b, reservedPrefix, heartbeat, logger)

	router.Get("/s/{query}", handlers.Subscribe)

	return nil
}
