package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestValidate_Batch(t *testing.T) {
	tests := []struct {
		name     string
		envelope string
		wantRule Rule
	}{
		{"find", `{"v":3,"q":{"collection":"hello","find":{}}}`, 0},
		{"find with every option", `{"v":3,"q":{"collection":"hello","find":{"a":1},"sort":{"a":1},"project":{"a":1},"skip":1,"limit":10}}`, 0},
		{"aggregate", `{"v":3,"q":{"collection":"hello","aggregate":[{"$match":{}}]}}`, 0},
		{"float version", `{"v":3.0,"q":{"collection":"hello","find":{}}}`, 0},
		{"negative skip and limit", `{"v":3,"q":{"collection":"hello","find":{},"skip":-1,"limit":-100}}`, 0},
		{"null sort and project", `{"v":3,"q":{"collection":"hello","find":{},"sort":null,"project":null}}`, 0},

		{"missing version", `{"q":{"collection":"hello","find":{}}}`, RuleVersion},
		{"wrong version", `{"v":2,"q":{"collection":"hello","find":{}}}`, RuleVersion},
		{"string version", `{"v":"3","q":{"collection":"hello","find":{}}}`, RuleVersion},
		{"missing body", `{"v":3}`, RuleBody},
		{"array body", `{"v":3,"q":[]}`, RuleBody},
		{"null body", `{"v":3,"q":null}`, RuleBody},
		{"extra top-level field", `{"v":3,"q":{"collection":"hello","find":{}},"x":1}`, RuleTopLevelFields},
		{"missing collection", `{"v":3,"q":{"find":{}}}`, RuleCollection},
		{"numeric collection", `{"v":3,"q":{"collection":1,"find":{}}}`, RuleCollection},
		{"reserved collection", `{"v":3,"q":{"collection":"bridgeport_events","find":{}}}`, RuleReservedCollection},
		{"neither find nor aggregate", `{"v":3,"q":{"collection":"hello"}}`, RuleMissingKind},
		{"null find", `{"v":3,"q":{"collection":"hello","find":null}}`, RuleMissingKind},
		{"find and aggregate", `{"v":3,"q":{"collection":"hello","find":{},"aggregate":[]}}`, RuleAmbiguousKind},
		{"aggregate object", `{"v":3,"q":{"collection":"hello","aggregate":{}}}`, RuleAggregateShape},
		{"aggregate of scalars", `{"v":3,"q":{"collection":"hello","aggregate":[1]}}`, RuleAggregateShape},
		{"aggregate with limit", `{"v":3,"q":{"collection":"hello","aggregate":[],"limit":1}}`, RuleAggregateFields},
		{"find string", `{"v":3,"q":{"collection":"hello","find":"x"}}`, RuleFindShape},
		{"find array", `{"v":3,"q":{"collection":"hello","find":[]}}`, RuleFindShape},
		{"unknown body field", `{"v":3,"q":{"collection":"hello","find":{},"hint":{}}}`, RuleFindFields},
		{"sort array", `{"v":3,"q":{"collection":"hello","find":{},"sort":[1]}}`, RuleSortShape},
		{"project string", `{"v":3,"q":{"collection":"hello","find":{},"project":"a"}}`, RuleProjectShape},
		{"skip string", `{"v":3,"q":{"collection":"hello","find":{},"skip":"1"}}`, RuleSkipType},
		{"null skip", `{"v":3,"q":{"collection":"hello","find":{},"skip":null}}`, RuleSkipType},
		{"limit bool", `{"v":3,"q":{"collection":"hello","find":{},"limit":true}}`, RuleLimitType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(mustDecode(t, tt.envelope), ModeBatch)
			assertRule(t, err, tt.wantRule)
		})
	}
}

func TestValidate_Subscription(t *testing.T) {
	tests := []struct {
		name     string
		envelope string
		wantRule Rule
	}{
		{"find", `{"v":3,"q":{"find":{}}}`, 0},
		{"find and project", `{"v":3,"q":{"find":{"a":1},"project":{"a":1}}}`, 0},

		{"wrong version", `{"v":4,"q":{"find":{}}}`, RuleVersion},
		{"collection", `{"v":3,"q":{"collection":"hello","find":{}}}`, RuleSubscriptionFields},
		{"aggregate", `{"v":3,"q":{"aggregate":[]}}`, RuleSubscriptionFields},
		{"sort", `{"v":3,"q":{"find":{},"sort":{"a":1}}}`, RuleSubscriptionFields},
		{"skip", `{"v":3,"q":{"find":{},"skip":1}}`, RuleSubscriptionFields},
		{"limit", `{"v":3,"q":{"find":{},"limit":1}}`, RuleSubscriptionFields},
		{"null limit", `{"v":3,"q":{"find":{},"limit":null}}`, RuleSubscriptionFields},
		{"missing find", `{"v":3,"q":{}}`, RuleMissingFind},
		{"find number", `{"v":3,"q":{"find":1}}`, RuleFindShape},
		{"unknown field", `{"v":3,"q":{"find":{},"watch":true}}`, RuleFindFields},
		{"project array", `{"v":3,"q":{"find":{},"project":[]}}`, RuleProjectShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(mustDecode(t, tt.envelope), ModeSubscription)
			assertRule(t, err, tt.wantRule)
		})
	}
}

func assertRule(t *testing.T, err error, want Rule) {
	t.Helper()
	if want == 0 {
		assert.NoError(t, err)
		return
	}
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchema)

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, want, schemaErr.Rule, "got message %q", schemaErr.Message)
}

func TestValidate_MessagesAreUniquePerRule(t *testing.T) {
	envelopes := []string{
		`{"q":{}}`,
		`{"v":3}`,
		`{"v":3,"q":{"collection":"a","find":{}},"x":1}`,
		`{"v":3,"q":{"find":{}}}`,
		`{"v":3,"q":{"collection":"bridgeport_x","find":{}}}`,
		`{"v":3,"q":{"collection":"a"}}`,
		`{"v":3,"q":{"collection":"a","find":{},"aggregate":[]}}`,
		`{"v":3,"q":{"collection":"a","aggregate":{}}}`,
		`{"v":3,"q":{"collection":"a","aggregate":[],"sort":{}}}`,
		`{"v":3,"q":{"collection":"a","find":1}}`,
		`{"v":3,"q":{"collection":"a","find":{},"x":1}}`,
		`{"v":3,"q":{"collection":"a","find":{},"sort":1}}`,
		`{"v":3,"q":{"collection":"a","find":{},"project":1}}`,
		`{"v":3,"q":{"collection":"a","find":{},"skip":"1"}}`,
		`{"v":3,"q":{"collection":"a","find":{},"limit":"1"}}`,
	}

	byRule := map[Rule]string{}
	for _, envelope := range envelopes {
		err := Validate(mustDecode(t, envelope), ModeBatch)
		var schemaErr *SchemaError
		require.True(t, errors.As(err, &schemaErr), envelope)
		byRule[schemaErr.Rule] = schemaErr.Message
	}
	require.Len(t, byRule, len(envelopes), "each envelope should fail a different rule")

	seen := map[string]Rule{}
	for rule, msg := range byRule {
		if other, ok := seen[msg]; ok {
			t.Errorf("rules %s and %s share message %q", rule, other, msg)
		}
		seen[msg] = rule
	}
}

func TestValidate_Idempotent(t *testing.T) {
	env := mustDecode(t, `{"v":3,"q":{"collection":"hello","find":{},"aggregate":[]}}`)

	first := Validate(env, ModeBatch)
	second := Validate(env, ModeBatch)

	require.Error(t, first)
	require.Error(t, second)
	assert.Equal(t, first.Error(), second.Error())
}

func TestValidate_DoesNotMutate(t *testing.T) {
	env := mustDecode(t, `{"v":3,"q":{"find":{"_id":"x"},"project":{"_id":1}}}`)
	before := cloneDoc(env)

	q, err := New(env, ModeSubscription)
	require.NoError(t, err)
	_ = q.SubscriptionPipeline()

	assert.Equal(t, before, env)
}

func TestValidate_ReservedPrefixOption(t *testing.T) {
	env := mustDecode(t, `{"v":3,"q":{"collection":"internal_logs","find":{}}}`)

	assert.NoError(t, Validate(env, ModeBatch))

	err := Validate(env, ModeBatch, WithReservedPrefix("internal_"))
	assertRule(t, err, RuleReservedCollection)
	assert.Contains(t, err.Error(), `"internal_"`)

	assert.NoError(t, Validate(env, ModeBatch, WithReservedPrefix("")), "empty prefix keeps the default")
}

func TestValidate_ReservedPrefixMessage(t *testing.T) {
	err := Validate(mustDecode(t, `{"v":3,"q":{"collection":"bridgeport_events","find":{}}}`), ModeBatch)

	require.Error(t, err)
	assert.Equal(t, `You are not allowed to perform operations on collections that start with "bridgeport_"`, err.Error())
}

func TestValidate_VersionIsCheckedFirst(t *testing.T) {
	// Every other rule is broken as well.
	env := bson.D{{Key: "x", Value: 1}, {Key: "q", Value: "nope"}}

	assertRule(t, Validate(env, ModeBatch), RuleVersion)
	assertRule(t, Validate(env, ModeSubscription), RuleVersion)
}

func TestRule_String(t *testing.T) {
	assert.Equal(t, "version", RuleVersion.String())
	assert.Equal(t, "limit-type", RuleLimitType.String())
	assert.Equal(t, "rule(99)", Rule(99).String())
}
