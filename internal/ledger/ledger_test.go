package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/leapstack-labs/bridgeport/internal/store/storetest"
	"github.com/leapstack-labs/bridgeport/internal/testutil"
)

func validAction() Action {
	return Action{
		Tx: Tx{H: "tx1"},
		In: []Input{{E: InputEdge{A: "other"}}, {E: InputEdge{A: "sender1"}}},
		Out: []Output{{
			S2: DefaultNamespace,
			S3: "sender1",
			S4: "hello world",
		}},
	}
}

func newProcessor(t *testing.T) (*Processor, *storetest.Store) {
	t.Helper()
	fake := storetest.New()
	return NewProcessor(fake, Config{Logger: testutil.NewTestLogger(t)}), fake
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Action)
		wantErr error
	}{
		{name: "valid", mutate: func(*Action) {}},
		{name: "missing tx hash", mutate: func(a *Action) { a.Tx.H = "" }, wantErr: ErrMalformed},
		{name: "no outputs", mutate: func(a *Action) { a.Out = nil }, wantErr: ErrMalformed},
		{name: "wrong namespace", mutate: func(a *Action) { a.Out[0].S2 = "1Other" }, wantErr: ErrNamespace},
		{name: "sender did not sign", mutate: func(a *Action) { a.Out[0].S3 = "stranger" }, wantErr: ErrUnsignedSender},
		{name: "no inputs", mutate: func(a *Action) { a.In = nil }, wantErr: ErrUnsignedSender},
		{name: "missing message", mutate: func(a *Action) { a.Out[0].S4 = "" }, wantErr: ErrMessage},
		{name: "message as attachment", mutate: func(a *Action) { a.Out[0].F4 = "c:abc" }, wantErr: ErrMessage},
		{name: "message at limit", mutate: func(a *Action) { a.Out[0].S4 = strings.Repeat("a", 512) }},
		{name: "message over limit", mutate: func(a *Action) { a.Out[0].S4 = strings.Repeat("a", 513) }, wantErr: ErrMessage},
		{name: "limit counts bytes", mutate: func(a *Action) { a.Out[0].S4 = strings.Repeat("é", 257) }, wantErr: ErrMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newProcessor(t)
			a := validAction()
			tt.mutate(&a)

			msg, err := p.Check(a)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, a.Tx.H, msg.ID)
			assert.Equal(t, "sender1", msg.Sender)
			assert.Equal(t, a.Out[0].S4, msg.Message)
		})
	}
}

func TestCheck_CustomLimits(t *testing.T) {
	p := NewProcessor(storetest.New(), Config{Namespace: "1Custom", MaxMessageBytes: 4})
	a := validAction()
	a.Out[0].S2 = "1Custom"
	a.Out[0].S4 = "hello"

	_, err := p.Check(a)
	assert.ErrorIs(t, err, ErrMessage)

	a.Out[0].S4 = "hey"
	_, err = p.Check(a)
	assert.NoError(t, err)
}

func TestProcess(t *testing.T) {
	p, fake := newProcessor(t)

	require.NoError(t, p.Process(context.Background(), validAction()))

	assert.Equal(t, []bson.M{{"_id": "tx1", "sender": "sender1", "message": "hello world"}}, fake.Documents(DefaultPrimaryCollection))
	assert.Empty(t, fake.Documents(DefaultEventsCollection), "only live records reach the events collection")
}

func TestProcess_Live(t *testing.T) {
	p, fake := newProcessor(t)
	a := validAction()
	a.Live = true

	require.NoError(t, p.Process(context.Background(), a))

	want := []bson.M{{"_id": "tx1", "sender": "sender1", "message": "hello world"}}
	assert.Equal(t, want, fake.Documents(DefaultPrimaryCollection))
	assert.Equal(t, want, fake.Documents(DefaultEventsCollection))
}

func TestProcess_Redelivery(t *testing.T) {
	p, fake := newProcessor(t)
	a := validAction()

	require.NoError(t, p.Process(context.Background(), a))
	require.NoError(t, p.Process(context.Background(), a))

	assert.Len(t, fake.Documents(DefaultPrimaryCollection), 1)
}

func TestProcess_RejectedRecordWritesNothing(t *testing.T) {
	p, fake := newProcessor(t)
	a := validAction()
	a.Out[0].S2 = "nope"

	err := p.Process(context.Background(), a)

	assert.ErrorIs(t, err, ErrNamespace)
	assert.Empty(t, fake.Calls())
}

func TestProcess_StoreError(t *testing.T) {
	p, fake := newProcessor(t)
	fake.WriteErr = errors.New("write concern error")

	err := p.Process(context.Background(), validAction())

	assert.EqualError(t, err, "write concern error")
}

func TestRollback(t *testing.T) {
	p, fake := newProcessor(t)
	a := validAction()
	a.Live = true
	require.NoError(t, p.Process(context.Background(), a))

	require.NoError(t, p.Rollback(context.Background(), a))

	assert.Empty(t, fake.Documents(DefaultPrimaryCollection))
	assert.Empty(t, fake.Documents(DefaultEventsCollection))
}

func TestRollback_NotLiveKeepsEvents(t *testing.T) {
	p, fake := newProcessor(t)
	fake.Insert(DefaultEventsCollection, bson.M{"_id": "tx1"})

	require.NoError(t, p.Rollback(context.Background(), validAction()))

	assert.Len(t, fake.Documents(DefaultEventsCollection), 1)
}

func TestRollback_Idempotent(t *testing.T) {
	p, _ := newProcessor(t)

	assert.NoError(t, p.Rollback(context.Background(), validAction()))
	assert.NoError(t, p.Rollback(context.Background(), validAction()))
}
