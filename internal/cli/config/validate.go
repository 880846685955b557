package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Validate checks the settings shared by every server.
func (c *Config) Validate() error {
	var errs []error

	if c.Mongo.Database == "" {
		errs = append(errs, errors.New("mongo.database is required (or MONGODB_DATABASE)"))
	}
	if c.Mongo.ConnectTimeout < 0 {
		errs = append(errs, errors.New("mongo.connect_timeout must not be negative"))
	}
	if strings.Contains(c.Bridge.ID, "/") {
		errs = append(errs, fmt.Errorf("bridge.id %q must not contain '/'", c.Bridge.ID))
	}
	if _, err := NewLogger(c.Log, io.Discard); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ValidateReader checks the settings of the reader server.
func (c *Config) ValidateReader() error {
	var errs []error
	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := validatePort("port", c.Port); err != nil {
		errs = append(errs, err)
	}
	if c.Mongo.ReaderURI() == "" {
		errs = append(errs, errors.New("a read connection is required: set mongo.uri, mongo.credentials or MONGODB_READ_CREDS"))
	}
	if c.Subscription.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("subscription.heartbeat_interval must be positive"))
	}
	if c.Subscription.Collection == "" {
		errs = append(errs, errors.New("subscription.collection is required"))
	}
	return errors.Join(errs...)
}

// ValidateTransformer checks the settings of the transformer server.
func (c *Config) ValidateTransformer() error {
	var errs []error
	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := validatePort("ledger.port", c.Ledger.Port); err != nil {
		errs = append(errs, err)
	}
	if c.Mongo.TransformerURI() == "" {
		errs = append(errs, errors.New("a write connection is required: set mongo.uri, mongo.write_uri or MONGODB_WRITE_CREDS"))
	}
	if c.Ledger.Namespace == "" {
		errs = append(errs, errors.New("ledger.namespace is required"))
	}
	if c.Ledger.MaxMessageBytes <= 0 {
		errs = append(errs, errors.New("ledger.max_message_bytes must be positive"))
	}
	return errors.Join(errs...)
}

func validatePort(key string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", key, port)
	}
	return nil
}

// Redacted returns a copy safe to print: connection strings are masked.
func (c Config) Redacted() Config {
	c.Mongo.URI = redact(c.Mongo.URI)
	c.Mongo.WriteURI = redact(c.Mongo.WriteURI)
	c.Mongo.Credentials = Base64String(redact(string(c.Mongo.Credentials)))
	return c
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
