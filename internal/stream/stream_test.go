package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/leapstack-labs/bridgeport/internal/store/storetest"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(rec, http.StatusBadRequest, errors.New(`Invalid query. The query must have a "v" field with value 3.`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ContentTypeJSON, rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Invalid query. The query must have a \"v\" field with value 3."}`, rec.Body.String())
}

func TestWriteJSONArray(t *testing.T) {
	oid := bson.NewObjectID()
	cur := storetest.NewCursor([]bson.M{
		{"_id": oid, "message": "hi", "nested": bson.M{"k": "v"}},
		{"_id": "b", "n": int32(2)},
	}, nil)
	rec := httptest.NewRecorder()

	n, err := WriteJSONArray(context.Background(), rec, cur)
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ContentTypeJSON, rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `[{"_id":"`+oid.Hex()+`","message":"hi","nested":{"k":"v"}},{"_id":"b","n":2}]`, rec.Body.String())
}

func TestWriteJSONArray_Empty(t *testing.T) {
	rec := httptest.NewRecorder()

	n, err := WriteJSONArray(context.Background(), rec, storetest.NewCursor(nil, nil))
	require.NoError(t, err)

	assert.Zero(t, n)
	assert.Equal(t, "[]", rec.Body.String())
}

func TestWriteJSONArray_CursorErrorWritesNothing(t *testing.T) {
	rec := httptest.NewRecorder()
	cur := storetest.NewCursor([]bson.M{{"_id": "a"}}, errors.New("cursor killed"))

	_, err := WriteJSONArray(context.Background(), rec, cur)

	assert.EqualError(t, err, "cursor killed")
	assert.Zero(t, rec.Body.Len())
	assert.False(t, rec.Flushed)
}

func TestWriteLines(t *testing.T) {
	cur := storetest.NewCursor([]bson.M{
		{"_id": "a", "message": "one"},
		{"_id": "b", "message": "two"},
	}, nil)
	rec := httptest.NewRecorder()

	n, err := WriteLines(context.Background(), rec, cur)
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ContentTypeNDJSON, rec.Header().Get("Content-Type"))
	assert.True(t, rec.Flushed)

	lines := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"_id":"a","message":"one"}`, lines[0])
	assert.JSONEq(t, `{"_id":"b","message":"two"}`, lines[1])
}

func TestWriteLines_Empty(t *testing.T) {
	rec := httptest.NewRecorder()

	n, err := WriteLines(context.Background(), rec, storetest.NewCursor(nil, nil))
	require.NoError(t, err)

	assert.Zero(t, n)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ContentTypeNDJSON, rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Body.String())
}

func TestWriteLines_ErrorBeforeFirstLine(t *testing.T) {
	rec := httptest.NewRecorder()

	n, err := WriteLines(context.Background(), rec, storetest.NewCursor(nil, errors.New("boom")))

	assert.EqualError(t, err, "boom")
	assert.Zero(t, n)
	assert.Empty(t, rec.Header().Get("Content-Type"), "response must not be committed")
}

func TestWriteLines_ErrorAfterFirstLine(t *testing.T) {
	rec := httptest.NewRecorder()
	cur := storetest.NewCursor([]bson.M{{"_id": "a"}}, errors.New("boom"))

	n, err := WriteLines(context.Background(), rec, cur)

	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, n)
	assert.Equal(t, "{\"_id\":\"a\"}\n", rec.Body.String())
}

func TestEventStream(t *testing.T) {
	rec := httptest.NewRecorder()

	es, err := NewEventStream(rec)
	require.NoError(t, err)

	require.NoError(t, es.Send(EventOpen, []any{}))
	require.NoError(t, es.Send(EventMessage, bson.M{"_id": "tx1", "message": "hi"}))
	require.NoError(t, es.Heartbeat())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ContentTypeEvents, rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.True(t, rec.Flushed)

	assert.Equal(t,
		"data: {\"type\":\"open\",\"data\":[]}\n\n"+
			"data: {\"type\":\"message\",\"data\":{\"_id\":\"tx1\",\"message\":\"hi\"}}\n\n"+
			":heartbeat\n\n",
		rec.Body.String())
}

func TestEventStream_Closed(t *testing.T) {
	rec := httptest.NewRecorder()
	es, err := NewEventStream(rec)
	require.NoError(t, err)

	es.Close()

	assert.ErrorIs(t, es.Send(EventMessage, bson.M{}), ErrClosed)
	assert.ErrorIs(t, es.Heartbeat(), ErrClosed)
	assert.Empty(t, rec.Body.String())
}

func TestEventStream_KeepAlive(t *testing.T) {
	rec := httptest.NewRecorder()
	es, err := NewEventStream(rec)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	require.NoError(t, es.KeepAlive(ctx, 10*time.Millisecond))

	beats := strings.Count(rec.Body.String(), ":heartbeat\n\n")
	assert.GreaterOrEqual(t, beats, 2)
	assert.Equal(t, beats*len(":heartbeat\n\n"), rec.Body.Len(), "only heartbeat frames are written")
}

func TestEventStream_KeepAliveStopsOnClose(t *testing.T) {
	rec := httptest.NewRecorder()
	es, err := NewEventStream(rec)
	require.NoError(t, err)
	es.Close()

	err = es.KeepAlive(context.Background(), time.Millisecond)

	assert.ErrorIs(t, err, ErrClosed)
}
