// Package router sets up HTTP routes for the reader and the transformer.
package router

import (
	"log/slog"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/bridgeport/internal/bridge"
	batchFeature "github.com/leapstack-labs/bridgeport/internal/server/features/batch"
	healthFeature "github.com/leapstack-labs/bridgeport/internal/server/features/health"
	subscribeFeature "github.com/leapstack-labs/bridgeport/internal/server/features/subscribe"
	transformFeature "github.com/leapstack-labs/bridgeport/internal/server/features/transform"
	"github.com/leapstack-labs/bridgeport/internal/metrics"
)

// ReaderDeps are the dependencies of the reader routes.
type ReaderDeps struct {
	Bridge *bridge.Bridge
	Pinger healthFeature.Pinger
	// BridgeID, when set, prefixes the query routes with /{BridgeID}.
	BridgeID          string
	ReservedPrefix    string
	HeartbeatInterval time.Duration
	Logger            *slog.Logger
}

// SetupReaderRoutes configures all routes for the reader.
func SetupReaderRoutes(router chi.Router, deps ReaderDeps) error {
	if err := setupOperational(router, deps.Pinger); err != nil {
		return err
	}

	mount := func(r chi.Router) error {
		if err := batchFeature.SetupRoutes(r, deps.Bridge, deps.ReservedPrefix, deps.Logger); err != nil {
			return err
		}
		return subscribeFeature.SetupRoutes(r, deps.Bridge, deps.ReservedPrefix, deps.HeartbeatInterval, deps.Logger)
	}

	id := strings.Trim(deps.BridgeID, "/")
	if id == "" {
		return mount(router)
	}

	var err error
	router.Route("/"+id, func(r chi.Router) {
		err = mount(r)
	})
	return err
}

// TransformerDeps are the dependencies of the transformer routes.
type TransformerDeps struct {
	Processor transformFeature.Processor
	Pinger    healthFeature.Pinger
	Logger    *slog.Logger
}

// SetupTransformerRoutes configures all routes for the transformer.
func SetupTransformerRoutes(router chi.Router, deps TransformerDeps) error {
	if err := setupOperational(router, deps.Pinger); err != nil {
		return err
	}
	return transformFeature.SetupRoutes(router, deps.Processor, deps.Logger)
}

func setupOperational(router chi.Router, pinger healthFeature.Pinger) error {
	router.Handle("/metrics", metrics.Handler())

	if pinger == nil {
		return nil
	}
	return healthFeature.SetupRoutes(router, pinger)
}
