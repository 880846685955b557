package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/bridgeport/internal/ledger"
	"github.com/leapstack-labs/bridgeport/internal/server"
	"github.com/leapstack-labs/bridgeport/internal/server/router"
	"github.com/leapstack-labs/bridgeport/internal/store"
	"github.com/spf13/cobra"
)

// NewTransformerCommand creates the transformer command.
func NewTransformerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transformer",
		Short: "Start the ledger transformer HTTP server",
		Long: `Start the transformer. It accepts POST / with a body of
{"action": "process"|"rollback", "payload": <ledger action>} and mirrors
matching ledger records into the primary and events collections.`,
		Example: `  bridgeport transformer --ledger-port 3001 --database planaria`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTransformer(cmd)
		},
	}

	cmd.Flags().Int("ledger-port", 0, "Port to serve on (default: 3001)")
	cmd.Flags().String("events", "", "Collection receiving event copies (default: bridgeport_events)")

	return cmd
}

func runTransformer(cmd *cobra.Command) error {
	cc := NewCommandContext(cmd)
	if err := cc.Cfg.ValidateTransformer(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := cc.openStore(ctx, cc.Cfg.Mongo.TransformerURI())
	if err != nil {
		return err
	}
	defer closeStore(cc, st)

	return cc.transformerServer(st).Serve(ctx)
}

// transformerServer wires the transformer routes over st.
func (c *CommandContext) transformerServer(st store.Store) *server.Server {
	p := ledger.NewProcessor(st, ledger.Config{
		Namespace:         c.Cfg.Ledger.Namespace,
		PrimaryCollection: c.Cfg.Ledger.PrimaryCollection,
		EventsCollection:  c.Cfg.Subscription.Collection,
		MaxMessageBytes:   c.Cfg.Ledger.MaxMessageBytes,
		Logger:            c.Logger,
	})

	return server.NewServer(server.Config{
		Name:   "transformer",
		Port:   c.Cfg.Ledger.Port,
		Logger: c.Logger,
		Routes: func(r chi.Router) error {
			return router.SetupTransformerRoutes(r, router.TransformerDeps{
				Processor: p,
				Pinger:    st,
				Logger:    c.Logger,
			})
		},
	})
}
