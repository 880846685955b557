package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/leapstack-labs/bridgeport/internal/cli/config"
	"github.com/leapstack-labs/bridgeport/internal/store/mongostore"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// appName is reported to MongoDB by every connection.
const appName = "bridgeport"

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	return &CommandContext{
		Cfg:    getConfig(),
		Logger: config.GetLogger(cmd.Context()),
	}
}

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise loads defaults
// and the environment.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	cfg, err := config.LoadConfig("", nil)
	if err != nil {
		return &config.Config{
			Port: config.DefaultPort,
			Log:  config.LogConfig{Level: config.DefaultLogLevel, Format: config.DefaultLogFormat},
		}
	}
	return cfg
}

// openStore connects to MongoDB with the given URI.
func (c *CommandContext) openStore(ctx context.Context, uri string) (*mongostore.Store, error) {
	return mongostore.Open(ctx, mongostore.Config{
		URI:            uri,
		Database:       c.Cfg.Mongo.Database,
		AppName:        appName,
		ConnectTimeout: c.Cfg.Mongo.ConnectTimeout,
		Logger:         c.Logger,
	})
}

// isTerminal reports whether r is an interactive terminal. Anything that is
// not a file, such as a test buffer, counts as piped input.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
