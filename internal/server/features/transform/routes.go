// Package transform receives ledger records for the transformer.
package transform

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes registers the transformer route.
func SetupRoutes(router chi.Router, processor Processor, logger *slog.Logger) error {
	handlers := NewHandlers(processor, logger)

	router.Post("/", handlers.Transform)

	return nil
}
