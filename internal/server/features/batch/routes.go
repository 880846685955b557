// Package batch serves batch queries.
package batch

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/bridgeport/internal/bridge"
)

// SetupRoutes registers the batch query route.
func SetupRoutes(router chi.Router, b *bridge.Bridge, reservedPrefix string, logger *slog.Logger) error {
	handlers := NewHandlers(b, reservedPrefix, logger)

	router.Get("/q/{query}", handlers.Query)

	return nil
}
