// Package stream writes query results to HTTP clients.
//
// Batch results are written as one JSON array or as newline delimited JSON.
// Live results are written as Server-Sent Events.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/leapstack-labs/bridgeport/internal/store"
)

// Content types.
const (
	ContentTypeJSON   = "application/json"
	ContentTypeNDJSON = "application/x-ndjson"
	ContentTypeEvents = "text/event-stream"
)

// ErrClosed is returned by writes to a closed EventStream.
var ErrClosed = errors.New("stream closed")

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(ErrorBody{Error: err.Error()})
	}
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// WriteError writes {"error": err.Error()} with status.
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteJSON(w, status, ErrorBody{Error: err.Error()})
}

// WriteJSONArray reads cur to the end and writes the documents as one JSON
// array. Nothing is written when reading fails, so the caller can still
// report the error. cur is not closed.
func WriteJSONArray(ctx context.Context, w http.ResponseWriter, cur store.Cursor) (int, error) {
	docs := make([]bson.M, 0)
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return 0, fmt.Errorf("decode result: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := cur.Err(); err != nil {
		return 0, err
	}

	body, err := json.Marshal(docs)
	if err != nil {
		return 0, fmt.Errorf("encode results: %w", err)
	}
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		return len(docs), err
	}
	return len(docs), nil
}

// WriteLines writes each document of cur as one JSON line and flushes after
// every line. The response is committed with the first line (or at the end
// for an empty result), so an error with written == 0 can still be reported
// to the client. cur is not closed.
func WriteLines(ctx context.Context, w http.ResponseWriter, cur store.Cursor) (written int, err error) {
	rc := http.NewResponseController(w)
	commit := func() {
		w.Header().Set("Content-Type", ContentTypeNDJSON)
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
	}

	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return written, fmt.Errorf("decode result: %w", err)
		}
		line, err := json.Marshal(doc)
		if err != nil {
			return written, fmt.Errorf("encode result: %w", err)
		}
		if written == 0 {
			commit()
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return written, err
		}
		written++
		if err := flush(rc); err != nil {
			return written, err
		}
	}
	if err := cur.Err(); err != nil {
		return written, err
	}
	if written == 0 {
		commit()
	}
	return written, nil
}

// flush pushes buffered bytes to the client. Writers without flush support
// are tolerated; the server flushes them when the handler returns.
func flush(rc *http.ResponseController) error {
	if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}
