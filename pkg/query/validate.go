package query

import (
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Option adjusts validation.
type Option func(*options)

type options struct {
	reservedPrefix string
}

// WithReservedPrefix sets the collection name prefix batch queries may not
// use. An empty prefix keeps the default.
func WithReservedPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.reservedPrefix = prefix
		}
	}
}

func newOptions(opts []Option) options {
	o := options{reservedPrefix: DefaultReservedPrefix}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

var (
	subscriptionForbidden = []string{FieldAggregate, FieldCollection, FieldSort, FieldSkip, FieldLimit}
	aggregateAllowed      = []string{FieldAggregate, FieldCollection}
	findAllowed           = []string{FieldCollection, FieldFind, FieldSort, FieldProject, FieldSkip, FieldLimit}
)

// Validate checks a decoded envelope against the grammar for mode. Rules are
// evaluated in a fixed order and the first failing rule is reported as a
// *SchemaError. The envelope is not modified.
func Validate(env bson.D, mode Mode, opts ...Option) error {
	o := newOptions(opts)

	if v, _ := lookup(env, FieldVersion); !equalsVersion(v) {
		return schemaError(RuleVersion, `Invalid query. The query must have a "v" field with value 3.`)
	}

	qv, _ := lookup(env, FieldBody)
	q, ok := qv.(bson.D)
	if !ok {
		return schemaError(RuleBody, `Invalid query. The query must have a "q" field that is an object.`)
	}

	if !onlyKeys(env, FieldVersion, FieldBody) {
		return schemaError(RuleTopLevelFields, "Invalid query. The query cannot contain anything other than a q-block and a v-block.")
	}

	if mode == ModeSubscription {
		for _, field := range subscriptionForbidden {
			if _, ok := lookup(q, field); ok {
				return schemaError(RuleSubscriptionFields, `When connecting to a socket, "aggregate", "collection", "sort", "skip" and "limit" are not allowed.`)
			}
		}
	} else {
		cv, _ := lookup(q, FieldCollection)
		collection, ok := cv.(string)
		if !ok {
			return schemaError(RuleCollection, "Invalid query. Provide a collection name in the q-block.")
		}
		if strings.HasPrefix(collection, o.reservedPrefix) {
			return schemaError(RuleReservedCollection, `You are not allowed to perform operations on collections that start with %q`, o.reservedPrefix)
		}
	}

	hasFind, hasAggregate := present(q, FieldFind), present(q, FieldAggregate)
	switch {
	case !hasFind && !hasAggregate && mode == ModeSubscription:
		return schemaError(RuleMissingFind, "Invalid query. The q-block must contain a find field.")
	case !hasFind && !hasAggregate:
		return schemaError(RuleMissingKind, "Invalid query. The q-block must contain either find or aggregate.")
	case hasFind && hasAggregate:
		return schemaError(RuleAmbiguousKind, "Invalid query. The q-block must contain either find or aggregate, not both.")
	}

	if hasAggregate {
		return validateAggregate(q)
	}
	return validateFind(q)
}

func validateAggregate(q bson.D) error {
	av, _ := lookup(q, FieldAggregate)
	stages, ok := av.(bson.A)
	if !ok {
		return schemaError(RuleAggregateShape, `Invalid query. When aggregating, the "aggregate" field must be an array of objects.`)
	}
	for _, stage := range stages {
		if !isDocument(stage) {
			return schemaError(RuleAggregateShape, `Invalid query. When aggregating, the "aggregate" field must be an array of objects.`)
		}
	}
	if !onlyKeys(q, aggregateAllowed...) {
		return schemaError(RuleAggregateFields, `Invalid query. When aggregating, "aggregate" and "collection" must be the only two fields in the q-block.`)
	}
	return nil
}

func validateFind(q bson.D) error {
	if fv, _ := lookup(q, FieldFind); !isDocument(fv) {
		return schemaError(RuleFindShape, `Invalid query. The "find" field must be an object.`)
	}
	if !onlyKeys(q, findAllowed...) {
		return schemaError(RuleFindFields, `Invalid query. When not aggregating, only "collection", "find", "sort", "project", "skip", and "limit" can be given as q-block fields.`)
	}
	if sv, ok := lookup(q, FieldSort); ok && sv != nil && !isDocument(sv) {
		return schemaError(RuleSortShape, `Invalid query. The "sort" field must be an object.`)
	}
	if pv, ok := lookup(q, FieldProject); ok && pv != nil && !isDocument(pv) {
		return schemaError(RuleProjectShape, `Invalid query. The "project" field must be an object.`)
	}
	// Any number is accepted, negative and fractional values included.
	if sv, ok := lookup(q, FieldSkip); ok && !isNumber(sv) {
		return schemaError(RuleSkipType, `Invalid query. The "skip" field must be a number.`)
	}
	if lv, ok := lookup(q, FieldLimit); ok && !isNumber(lv) {
		return schemaError(RuleLimitType, `Invalid query. The "limit" field must be a number.`)
	}
	return nil
}

func onlyKeys(d bson.D, allowed ...string) bool {
	for _, e := range d {
		found := false
		for _, key := range allowed {
			if e.Key == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
