// Package config provides configuration management for the Bridgeport CLI.
//
// Values are layered, lowest to highest: built-in defaults, a YAML file,
// the unprefixed deployment variables (PORT, BRIDGE,
// MONGODB_READ_CREDS, MONGODB_WRITE_CREDS, MONGODB_DATABASE), BRIDGEPORT_
// prefixed environment variables, and command-line flags.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	Port         int                `koanf:"port" yaml:"port"`
	Bridge       BridgeConfig       `koanf:"bridge" yaml:"bridge"`
	Mongo        MongoConfig        `koanf:"mongo" yaml:"mongo"`
	Query        QueryConfig        `koanf:"query" yaml:"query"`
	Subscription SubscriptionConfig `koanf:"subscription" yaml:"subscription"`
	Ledger       LedgerConfig       `koanf:"ledger" yaml:"ledger"`
	Log          LogConfig          `koanf:"log" yaml:"log"`
}

// BridgeConfig describes the deployment. It can also be given as one
// base64 encoded JSON object (the BRIDGE variable).
type BridgeConfig struct {
	ID   string `koanf:"id" json:"id" yaml:"id"`
	Name string `koanf:"name" json:"name" yaml:"name,omitempty"`
}

// MongoConfig holds the store connection settings.
type MongoConfig struct {
	// URI is used by both servers unless a more specific value is set.
	URI string `koanf:"uri" yaml:"uri,omitempty"`
	// Credentials is a base64 encoded connection URI for the reader.
	Credentials Base64String `koanf:"credentials" yaml:"credentials,omitempty"`
	// WriteURI is the connection URI for the transformer.
	WriteURI       string        `koanf:"write_uri" yaml:"write_uri,omitempty"`
	Database       string        `koanf:"database" yaml:"database"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" yaml:"connect_timeout"`
}

// ReaderURI returns the connection URI used by the reader.
func (m MongoConfig) ReaderURI() string {
	if m.Credentials != "" {
		return string(m.Credentials)
	}
	return m.URI
}

// TransformerURI returns the connection URI used by the transformer.
func (m MongoConfig) TransformerURI() string {
	if m.WriteURI != "" {
		return m.WriteURI
	}
	return m.URI
}

// QueryConfig holds batch query settings.
type QueryConfig struct {
	ReservedPrefix string `koanf:"reserved_prefix" yaml:"reserved_prefix"`
}

// SubscriptionConfig holds live query settings.
type SubscriptionConfig struct {
	Collection        string        `koanf:"collection" yaml:"collection"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval" yaml:"heartbeat_interval"`
}

// LedgerConfig holds transformer settings.
type LedgerConfig struct {
	Namespace         string `koanf:"namespace" yaml:"namespace"`
	PrimaryCollection string `koanf:"primary_collection" yaml:"primary_collection"`
	MaxMessageBytes   int    `koanf:"max_message_bytes" yaml:"max_message_bytes"`
	Port              int    `koanf:"port" yaml:"port"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// Base64String is a string configured in base64. It holds the decoded value.
type Base64String string

// Default configuration values.
const (
	DefaultPort              = 3000
	DefaultTransformerPort   = 3001
	DefaultConnectTimeout    = 10 * time.Second
	DefaultReservedPrefix    = "bridgeport_"
	DefaultEventsCollection  = "bridgeport_events"
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultNamespace         = "1He11omzQsAeYa2JUj52sFZRQEsSzPFNZx"
	DefaultPrimaryCollection = "hello"
	DefaultMaxMessageBytes   = 512
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)
