package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// EnvPrefix prefixes Bridgeport environment variables. A double underscore
// separates nested keys: BRIDGEPORT_MONGO__URI sets mongo.uri.
const EnvPrefix = "BRIDGEPORT_"

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config // Stores the loaded config for access by commands
)

// legacyEnv maps the unprefixed deployment variables to config keys.
var legacyEnv = map[string]string{
	"PORT":                "port",
	"BRIDGE":              "bridge",
	"MONGODB_READ_CREDS":  "mongo.credentials",
	"MONGODB_WRITE_CREDS": "mongo.write_uri",
	"MONGODB_DATABASE":    "mongo.database",
}

// flagKeys maps command-line flags to config keys. Flags not listed here
// are not configuration.
var flagKeys = map[string]string{
	"port":        "port",
	"bridge-id":   "bridge.id",
	"mongo-uri":   "mongo.uri",
	"database":    "mongo.database",
	"heartbeat":   "subscription.heartbeat_interval",
	"events":      "subscription.collection",
	"ledger-port": "ledger.port",
	"log-level":   "log.level",
	"log-format":  "log.format",
}

func defaults() map[string]any {
	return map[string]any{
		"port":                            DefaultPort,
		"bridge.id":                       "",
		"mongo.connect_timeout":           DefaultConnectTimeout.String(),
		"query.reserved_prefix":           DefaultReservedPrefix,
		"subscription.collection":         DefaultEventsCollection,
		"subscription.heartbeat_interval": DefaultHeartbeatInterval.String(),
		"ledger.namespace":                DefaultNamespace,
		"ledger.primary_collection":       DefaultPrimaryCollection,
		"ledger.max_message_bytes":        DefaultMaxMessageBytes,
		"ledger.port":                     DefaultTransformerPort,
		"log.level":                       DefaultLogLevel,
		"log.format":                      DefaultLogFormat,
	}
}

// findConfigFile finds the config file to use.
// Priority: explicit path > bridgeport.yaml > bridgeport.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"bridgeport.yaml", "bridgeport.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from defaults, file, environment variables,
// and flags. Later sources override earlier ones.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// Reset koanf for fresh load
	k = koanf.New(".")

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load the unprefixed deployment variables
	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		target, ok := legacyEnv[key]
		if !ok || value == "" {
			return "", nil
		}
		return target, value
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load BRIDGEPORT_ environment variables
	// Transform: BRIDGEPORT_MONGO__CONNECT_TIMEOUT -> mongo.connect_timeout
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 5. Load flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 6. Unmarshal into Config struct
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       decodeHook(),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Store config for access by commands
	currentConfig = &cfg

	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() any {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// NewLogger builds the process logger described by cfg.
func NewLogger(cfg LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", cfg.Level)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want text or json)", cfg.Format)
	}
}
