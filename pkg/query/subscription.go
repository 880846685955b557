package query

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// logical operators whose clauses are themselves filters.
var logicalOperators = map[string]bool{"$and": true, "$or": true, "$nor": true}

// SubscriptionPipeline builds the change stream pipeline for a subscription
// query.
//
// The first stage replaces each change event with its full document, keeping
// the event _id (the resume token) as _id and moving the document's own _id
// to TransientIDField. The filter and projection are rewritten to address
// TransientIDField wherever they refer to _id, then appended as $match and
// $project stages.
func (q *Query) SubscriptionPipeline() bson.A {
	pipeline := bson.A{
		bson.D{{Key: "$replaceRoot", Value: bson.D{
			{Key: "newRoot", Value: bson.D{
				{Key: "$mergeObjects", Value: bson.A{
					"$fullDocument",
					bson.D{
						{Key: IDField, Value: "$" + IDField},
						{Key: TransientIDField, Value: "$fullDocument." + IDField},
					},
				}},
			}},
		}}},
	}

	filter := q.document(FieldFind)
	if filter == nil {
		filter = bson.D{}
	}
	pipeline = append(pipeline, bson.D{{Key: "$match", Value: renameFilterIdentifier(filter)}})

	if project := q.document(FieldProject); project != nil {
		pipeline = append(pipeline, bson.D{{Key: "$project", Value: renameProjectionIdentifier(project)}})
	}
	return pipeline
}

// renameFilterIdentifier returns a copy of filter with every _id key renamed
// to TransientIDField, descending into $and, $or and $nor clauses.
func renameFilterIdentifier(filter bson.D) bson.D {
	out := make(bson.D, 0, len(filter))
	for _, e := range filter {
		switch {
		case e.Key == IDField:
			out = append(out, bson.E{Key: TransientIDField, Value: e.Value})
		case logicalOperators[e.Key]:
			clauses, ok := e.Value.(bson.A)
			if !ok {
				out = append(out, e)
				continue
			}
			renamed := make(bson.A, len(clauses))
			for i, clause := range clauses {
				if d, ok := clause.(bson.D); ok {
					renamed[i] = renameFilterIdentifier(d)
				} else {
					renamed[i] = clause
				}
			}
			out = append(out, bson.E{Key: e.Key, Value: renamed})
		default:
			out = append(out, e)
		}
	}
	return out
}

// renameProjectionIdentifier returns a copy of project addressing
// TransientIDField instead of _id. An inclusion projection that does not
// mention _id keeps the document id, matching the default for _id.
func renameProjectionIdentifier(project bson.D) bson.D {
	out := make(bson.D, 0, len(project)+1)
	mentionsID := false
	for _, e := range project {
		if e.Key == IDField {
			mentionsID = true
			out = append(out, bson.E{Key: TransientIDField, Value: e.Value})
			continue
		}
		out = append(out, e)
	}
	if !mentionsID && isInclusion(project) {
		out = append(out, bson.E{Key: TransientIDField, Value: int32(1)})
	}
	return out
}

// isInclusion reports whether any non-_id field is included or computed.
func isInclusion(project bson.D) bool {
	for _, e := range project {
		if e.Key == IDField {
			continue
		}
		switch v := e.Value.(type) {
		case bool:
			if v {
				return true
			}
		case int32:
			if v != 0 {
				return true
			}
		case int64:
			if v != 0 {
				return true
			}
		case float64:
			if v != 0 {
				return true
			}
		default:
			return true
		}
	}
	return false
}

// RestoreIdentifier undoes the subscription rename on an emitted event: the
// value under TransientIDField becomes _id and TransientIDField is removed.
// When the event carries no TransientIDField, _id is dropped too, since it
// only holds the change stream's resume token. The event is not modified.
func RestoreIdentifier(event bson.M) bson.M {
	out := make(bson.M, len(event))
	for k, v := range event {
		if k == IDField || k == TransientIDField {
			continue
		}
		out[k] = v
	}
	if id, ok := event[TransientIDField]; ok {
		out[IDField] = id
	}
	return out
}
