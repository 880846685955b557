package query

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Version is the only envelope version accepted.
const Version = 3

// Envelope and body field names.
const (
	FieldVersion    = "v"
	FieldBody       = "q"
	FieldCollection = "collection"
	FieldFind       = "find"
	FieldAggregate  = "aggregate"
	FieldSort       = "sort"
	FieldProject    = "project"
	FieldSkip       = "skip"
	FieldLimit      = "limit"
)

const (
	// DefaultReservedPrefix marks internal bookkeeping collections that batch
	// queries may not touch.
	DefaultReservedPrefix = "bridgeport_"

	// IDField is the document identifier field.
	IDField = "_id"

	// TransientIDField carries a document's own _id while a change event is
	// evaluated, because the event's _id (the resume token) occupies IDField.
	TransientIDField = "_bridgeport_original_id"
)

// Default envelopes, shown to new users of the reader.
const (
	DefaultBatchEnvelope        = `{"v":3,"q":{"collection":"hello","find":{},"project":{"message":1},"limit":10}}`
	DefaultSubscriptionEnvelope = `{"v":3,"q":{"find":{}}}`
)

// Mode selects the grammar an envelope is validated against.
type Mode int

const (
	// ModeBatch accepts find and aggregate queries against a named collection.
	ModeBatch Mode = iota
	// ModeSubscription accepts a filter and an optional projection only.
	ModeSubscription
)

func (m Mode) String() string {
	switch m {
	case ModeBatch:
		return "batch"
	case ModeSubscription:
		return "subscription"
	default:
		return "unknown"
	}
}

var encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// Decode decodes a base64 encoded JSON envelope. Standard and URL-safe
// alphabets are accepted, with or without padding.
func Decode(encoded string) (bson.D, error) {
	encoded = strings.TrimSpace(encoded)

	var (
		raw []byte
		err error
	)
	for _, enc := range encodings {
		if raw, err = enc.DecodeString(encoded); err == nil {
			break
		}
	}
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return DecodeJSON(raw)
}

// DecodeJSON decodes a JSON envelope that is not base64 encoded.
func DecodeJSON(data []byte) (bson.D, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, &DecodeError{Err: errors.New("envelope is not a JSON object")}
	}

	var env bson.D
	if err := bson.UnmarshalExtJSON(data, false, &env); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return env, nil
}

// Encode compacts a JSON envelope and encodes it for use as a URL path
// segment.
func Encode(envelope []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, envelope); err != nil {
		return "", &DecodeError{Err: err}
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// lookup returns the first value stored under key.
func lookup(d bson.D, key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// present reports whether key holds a non-null value.
func present(d bson.D, key string) bool {
	v, ok := lookup(d, key)
	return ok && v != nil
}

func isDocument(v any) bool {
	_, ok := v.(bson.D)
	return ok
}

func isNumber(v any) bool {
	switch v.(type) {
	case int32, int64, float64:
		return true
	default:
		return false
	}
}

// toInt64 truncates a validated number toward zero.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return int64(math.Trunc(n))
	default:
		return 0
	}
}

// equalsVersion reports whether v is the number 3, whatever its BSON type.
func equalsVersion(v any) bool {
	switch n := v.(type) {
	case int32:
		return n == Version
	case int64:
		return n == Version
	case float64:
		return n == Version
	default:
		return false
	}
}

// cloneValue copies documents and arrays so derived structures never alias
// the decoded envelope.
func cloneValue(v any) any {
	switch t := v.(type) {
	case bson.D:
		return cloneDoc(t)
	case bson.A:
		out := make(bson.A, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func cloneDoc(d bson.D) bson.D {
	if d == nil {
		return nil
	}
	out := make(bson.D, len(d))
	for i, e := range d {
		out[i] = bson.E{Key: e.Key, Value: cloneValue(e.Value)}
	}
	return out
}
