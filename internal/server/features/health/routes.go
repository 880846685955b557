// Package health reports whether the store is reachable.
package health

import (
	"github.com/go-chi/chi/v5"
)

// SetupRoutes registers the health route.
func SetupRoutes(router chi.Router, pinger Pinger) error {
	handlers := NewHandlers(pinger)

	router.Get("/healthz", handlers.Healthz)

	return nil
}
