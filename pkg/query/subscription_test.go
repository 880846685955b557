package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func replaceRootStage() bson.D {
	return bson.D{{Key: "$replaceRoot", Value: bson.D{
		{Key: "newRoot", Value: bson.D{
			{Key: "$mergeObjects", Value: bson.A{
				"$fullDocument",
				bson.D{
					{Key: "_id", Value: "$_id"},
					{Key: "_bridgeport_original_id", Value: "$fullDocument._id"},
				},
			}},
		}},
	}}}
}

func TestSubscriptionPipeline(t *testing.T) {
	tests := []struct {
		name     string
		envelope string
		want     bson.A
	}{
		{
			name:     "empty filter",
			envelope: `{"v":3,"q":{"find":{}}}`,
			want: bson.A{
				replaceRootStage(),
				bson.D{{Key: "$match", Value: bson.D{}}},
			},
		},
		{
			name:     "filter on _id",
			envelope: `{"v":3,"q":{"find":{"_id":"tx1","sender":"abc"}}}`,
			want: bson.A{
				replaceRootStage(),
				bson.D{{Key: "$match", Value: bson.D{
					{Key: "_bridgeport_original_id", Value: "tx1"},
					{Key: "sender", Value: "abc"},
				}}},
			},
		},
		{
			name:     "_id inside logical operators",
			envelope: `{"v":3,"q":{"find":{"$or":[{"_id":"a"},{"n":1}],"$and":"bad"}}}`,
			want: bson.A{
				replaceRootStage(),
				bson.D{{Key: "$match", Value: bson.D{
					{Key: "$or", Value: bson.A{
						bson.D{{Key: "_bridgeport_original_id", Value: "a"}},
						bson.D{{Key: "n", Value: int32(1)}},
					}},
					{Key: "$and", Value: "bad"},
				}}},
			},
		},
		{
			name:     "inclusion projection keeps the id",
			envelope: `{"v":3,"q":{"find":{},"project":{"message":1}}}`,
			want: bson.A{
				replaceRootStage(),
				bson.D{{Key: "$match", Value: bson.D{}}},
				bson.D{{Key: "$project", Value: bson.D{
					{Key: "message", Value: int32(1)},
					{Key: "_bridgeport_original_id", Value: int32(1)},
				}}},
			},
		},
		{
			name:     "projection excluding the id",
			envelope: `{"v":3,"q":{"find":{},"project":{"_id":0,"message":1}}}`,
			want: bson.A{
				replaceRootStage(),
				bson.D{{Key: "$match", Value: bson.D{}}},
				bson.D{{Key: "$project", Value: bson.D{
					{Key: "_bridgeport_original_id", Value: int32(0)},
					{Key: "message", Value: int32(1)},
				}}},
			},
		},
		{
			name:     "exclusion projection",
			envelope: `{"v":3,"q":{"find":{},"project":{"secret":0}}}`,
			want: bson.A{
				replaceRootStage(),
				bson.D{{Key: "$match", Value: bson.D{}}},
				bson.D{{Key: "$project", Value: bson.D{
					{Key: "secret", Value: int32(0)},
				}}},
			},
		},
		{
			name:     "computed projection",
			envelope: `{"v":3,"q":{"find":{},"project":{"len":{"$strLenCP":"$message"}}}}`,
			want: bson.A{
				replaceRootStage(),
				bson.D{{Key: "$match", Value: bson.D{}}},
				bson.D{{Key: "$project", Value: bson.D{
					{Key: "len", Value: bson.D{{Key: "$strLenCP", Value: "$message"}}},
					{Key: "_bridgeport_original_id", Value: int32(1)},
				}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := mustParse(t, tt.envelope, ModeSubscription)
			assert.Equal(t, tt.want, q.SubscriptionPipeline())
		})
	}
}

func TestRestoreIdentifier(t *testing.T) {
	event := bson.M{
		"_id":                     bson.M{"_data": "token"},
		"_bridgeport_original_id": "tx1",
		"message":                 "hello",
	}

	restored := RestoreIdentifier(event)

	assert.Equal(t, bson.M{"_id": "tx1", "message": "hello"}, restored)
	assert.Contains(t, event, "_bridgeport_original_id", "input must not be modified")
	assert.Equal(t, bson.M{"_data": "token"}, event["_id"])
}

func TestRestoreIdentifier_WithoutTransientField(t *testing.T) {
	restored := RestoreIdentifier(bson.M{"_id": bson.M{"_data": "token"}, "message": "hi"})

	assert.Equal(t, bson.M{"message": "hi"}, restored)
}

func TestSubscriptionRoundTrip(t *testing.T) {
	q := mustParse(t, `{"v":3,"q":{"find":{"_id":"X"},"project":{"message":1}}}`, ModeSubscription)
	pipeline := q.SubscriptionPipeline()
	require.Len(t, pipeline, 3)

	// Shape of a document after the $replaceRoot, $match and $project stages.
	evaluated := bson.M{
		"_id":                     bson.M{"_data": "826..."},
		"_bridgeport_original_id": "X",
		"message":                 "hello",
	}
	emitted := RestoreIdentifier(evaluated)

	assert.Equal(t, "X", emitted["_id"])
	assert.NotContains(t, emitted, TransientIDField)
}
