package query

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Query is a validated envelope body. It is read-only: accessors and
// translators return copies.
type Query struct {
	mode Mode
	body bson.D
}

// Parse decodes a base64 envelope and validates it for mode.
func Parse(encoded string, mode Mode, opts ...Option) (*Query, error) {
	env, err := Decode(encoded)
	if err != nil {
		return nil, err
	}
	return New(env, mode, opts...)
}

// New validates a decoded envelope for mode.
func New(env bson.D, mode Mode, opts ...Option) (*Query, error) {
	if err := Validate(env, mode, opts...); err != nil {
		return nil, err
	}
	body, _ := lookup(env, FieldBody)
	return &Query{mode: mode, body: cloneDoc(body.(bson.D))}, nil
}

// Mode returns the grammar the query was validated against.
func (q *Query) Mode() Mode { return q.mode }

// Collection returns the target collection, empty in subscription mode.
func (q *Query) Collection() string {
	c, _ := lookup(q.body, FieldCollection)
	s, _ := c.(string)
	return s
}

// IsAggregate reports whether the query is an aggregation pipeline.
func (q *Query) IsAggregate() bool { return present(q.body, FieldAggregate) }

// Plan describes the store operation for a batch query.
//
// For aggregations only Pipeline is set. For finds, the store applies Filter,
// then Sort, then Project, then Skip, then Limit; nil documents and zero
// numbers mean "not given".
type Plan struct {
	Collection string
	Aggregate  bool
	Pipeline   bson.A
	Filter     bson.D
	Sort       bson.D
	Project    bson.D
	Skip       int64
	Limit      int64
}

// Plan translates the query into a store operation.
func (q *Query) Plan() Plan {
	p := Plan{Collection: q.Collection()}

	if q.IsAggregate() {
		v, _ := lookup(q.body, FieldAggregate)
		p.Aggregate = true
		p.Pipeline = cloneValue(v).(bson.A)
		return p
	}

	p.Filter = q.document(FieldFind)
	if p.Filter == nil {
		p.Filter = bson.D{}
	}
	p.Sort = q.document(FieldSort)
	p.Project = q.document(FieldProject)
	if v, ok := lookup(q.body, FieldSkip); ok {
		p.Skip = toInt64(v)
	}
	if v, ok := lookup(q.body, FieldLimit); ok {
		p.Limit = toInt64(v)
	}
	return p
}

func (q *Query) document(field string) bson.D {
	v, _ := lookup(q.body, field)
	d, _ := v.(bson.D)
	return cloneDoc(d)
}
