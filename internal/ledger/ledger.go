// Package ledger turns ledger transaction records into documents.
//
// The transformer receives each confirmed (or newly seen, "live") record
// once and Process stores the message it carries. Rollback undoes Process
// when the record is reorganized out of the ledger.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/bridgeport/internal/metrics"
	"github.com/leapstack-labs/bridgeport/internal/store"
)

// Defaults for Config.
const (
	DefaultNamespace         = "1He11omzQsAeYa2JUj52sFZRQEsSzPFNZx"
	DefaultPrimaryCollection = "hello"
	DefaultEventsCollection  = "bridgeport_events"
	DefaultMaxMessageBytes   = 512
)

// Record rejections.
var (
	ErrMalformed      = errors.New("record is malformed")
	ErrNamespace      = errors.New("record has an invalid protocol namespace")
	ErrUnsignedSender = errors.New("sender did not sign at least one input to the transaction")
	ErrMessage        = errors.New("message is either missing or too long")
)

// Action is one ledger record as delivered to the transformer.
type Action struct {
	Tx   Tx       `json:"tx"`
	In   []Input  `json:"in"`
	Out  []Output `json:"out"`
	Live bool     `json:"live"`
}

// Tx identifies the transaction.
type Tx struct {
	H string `json:"h"`
}

// Input is a transaction input.
type Input struct {
	E InputEdge `json:"e"`
}

// InputEdge names the address that signed an input.
type InputEdge struct {
	A string `json:"a"`
}

// Output holds the push data of a transaction output. Sn are string
// pushes; Fn marks a push that was too large to inline.
type Output struct {
	S2 string `json:"s2"`
	S3 string `json:"s3"`
	S4 string `json:"s4"`
	F4 string `json:"f4"`
}

// Message is the document stored for an accepted record.
type Message struct {
	ID      string `bson:"_id" json:"_id"`
	Sender  string `bson:"sender" json:"sender"`
	Message string `bson:"message" json:"message"`
}

// Config configures a Processor.
type Config struct {
	Namespace         string
	PrimaryCollection string
	EventsCollection  string
	MaxMessageBytes   int
	Logger            *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.PrimaryCollection == "" {
		c.PrimaryCollection = DefaultPrimaryCollection
	}
	if c.EventsCollection == "" {
		c.EventsCollection = DefaultEventsCollection
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Processor applies ledger records to the store.
type Processor struct {
	store store.Writer
	cfg   Config
}

// NewProcessor creates a Processor writing through w.
func NewProcessor(w store.Writer, cfg Config) *Processor {
	return &Processor{store: w, cfg: cfg.withDefaults()}
}

// Check validates a record and returns the message it carries.
func (p *Processor) Check(a Action) (Message, error) {
	if a.Tx.H == "" || len(a.Out) == 0 {
		return Message{}, ErrMalformed
	}
	out := a.Out[0]

	if out.S2 != p.cfg.Namespace {
		return Message{}, ErrNamespace
	}

	signed := false
	for _, in := range a.In {
		if in.E.A == out.S3 {
			signed = true
			break
		}
	}
	if !signed {
		return Message{}, ErrUnsignedSender
	}

	if out.S4 == "" || out.F4 != "" || len(out.S4) > p.cfg.MaxMessageBytes {
		return Message{}, fmt.Errorf("%w: limit is %d bytes", ErrMessage, p.cfg.MaxMessageBytes)
	}

	return Message{ID: a.Tx.H, Sender: out.S3, Message: out.S4}, nil
}

// Process stores the record's message in the primary collection, and in the
// events collection for live records. Rejected records are logged and the
// error is returned.
func (p *Processor) Process(ctx context.Context, a Action) error {
	logger := p.cfg.Logger.With("tx", a.Tx.H, "live", a.Live)
	logger.Info("processing record")

	err := p.process(ctx, a)
	if err != nil {
		logger.Error("record rejected", "error", err)
		metrics.LedgerRecords.WithLabelValues("process", status(err)).Inc()
		return err
	}
	metrics.LedgerRecords.WithLabelValues("process", metrics.StatusOK).Inc()
	return nil
}

func (p *Processor) process(ctx context.Context, a Action) error {
	msg, err := p.Check(a)
	if err != nil {
		return err
	}

	if err := p.store.Upsert(ctx, p.cfg.PrimaryCollection, msg.ID, msg); err != nil {
		return err
	}
	if a.Live {
		if err := p.store.Upsert(ctx, p.cfg.EventsCollection, msg.ID, msg); err != nil {
			return err
		}
	}
	return nil
}

// Rollback deletes the record's message from the primary collection, and
// from the events collection for live records.
func (p *Processor) Rollback(ctx context.Context, a Action) error {
	logger := p.cfg.Logger.With("tx", a.Tx.H, "live", a.Live)
	logger.Info("rolling back record")

	err := p.rollback(ctx, a)
	if err != nil {
		logger.Error("rollback failed", "error", err)
		metrics.LedgerRecords.WithLabelValues("rollback", status(err)).Inc()
		return err
	}
	metrics.LedgerRecords.WithLabelValues("rollback", metrics.StatusOK).Inc()
	return nil
}

func (p *Processor) rollback(ctx context.Context, a Action) error {
	if a.Tx.H == "" {
		return ErrMalformed
	}
	if err := p.store.Delete(ctx, p.cfg.PrimaryCollection, a.Tx.H); err != nil {
		return err
	}
	if a.Live {
		if err := p.store.Delete(ctx, p.cfg.EventsCollection, a.Tx.H); err != nil {
			return err
		}
	}
	return nil
}

func status(err error) string {
	switch {
	case errors.Is(err, ErrMalformed), errors.Is(err, ErrNamespace),
		errors.Is(err, ErrUnsignedSender), errors.Is(err, ErrMessage):
		return metrics.StatusInvalid
	default:
		return metrics.StatusError
	}
}
