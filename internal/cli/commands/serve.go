package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/bridgeport/internal/bridge"
	"github.com/leapstack-labs/bridgeport/internal/server"
	"github.com/leapstack-labs/bridgeport/internal/server/router"
	"github.com/leapstack-labs/bridgeport/internal/store"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command, which runs the reader.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the reader HTTP server",
		Long: `Start the reader: batch queries on GET /q/{query} and live
subscriptions on GET /s/{query}, where {query} is a base64 encoded JSON
envelope. When a bridge id is configured the routes are served under
/{bridge-id}/.`,
		Example: `  # Serve on the default port
  bridgeport serve --mongo-uri mongodb://localhost:27017 --database planaria

  # Serve with a faster heartbeat
  bridgeport serve --port 8080 --heartbeat 10s`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	cmd.Flags().Int("port", 0, "Port to serve on (default: 3000)")
	cmd.Flags().String("bridge-id", "", "Serve query routes under /{bridge-id}")
	cmd.Flags().Duration("heartbeat", 0, "Interval between subscription heartbeats (default: 30s)")
	cmd.Flags().String("events", "", "Collection watched by subscriptions (default: bridgeport_events)")

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cc := NewCommandContext(cmd)
	if err := cc.Cfg.ValidateReader(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := cc.openStore(ctx, cc.Cfg.Mongo.ReaderURI())
	if err != nil {
		return err
	}
	defer closeStore(cc, st)

	return cc.readerServer(st).Serve(ctx)
}

// readerServer wires the reader routes over st.
func (c *CommandContext) readerServer(st store.Reader) *server.Server {
	b := bridge.New(bridge.Config{
		Store:            st,
		EventsCollection: c.Cfg.Subscription.Collection,
		Logger:           c.Logger,
	})

	return server.NewServer(server.Config{
		Name:   "reader",
		Port:   c.Cfg.Port,
		Logger: c.Logger,
		Routes: func(r chi.Router) error {
			return router.SetupReaderRoutes(r, router.ReaderDeps{
				Bridge:            b,
				Pinger:            st,
				BridgeID:          c.Cfg.Bridge.ID,
				ReservedPrefix:    c.Cfg.Query.ReservedPrefix,
				HeartbeatInterval: c.Cfg.Subscription.HeartbeatInterval,
				Logger:            c.Logger,
			})
		},
	})
}

func closeStore(c *CommandContext, st store.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := st.Close(ctx); err != nil {
		c.Logger.Warn("failed to close store", "error", err)
	}
}
