package query

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode is matched by every *DecodeError.
	ErrDecode = errors.New("query: decode failed")
	// ErrSchema is matched by every *SchemaError.
	ErrSchema = errors.New("query: schema violation")
)

const decodeMessage = "Invalid query. The query must be a valid JSON object encoded as a base64 string."

// DecodeError reports a payload that is not base64 encoded JSON.
// The message shown to clients is always the same; Err holds the cause.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return decodeMessage }

// Unwrap returns the underlying base64 or JSON error.
func (e *DecodeError) Unwrap() error { return e.Err }

// Is reports whether target is ErrDecode.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Rule identifies the validation rule an envelope failed.
type Rule int

// Validation rules, in evaluation order.
const (
	RuleVersion Rule = iota + 1
	RuleBody
	RuleTopLevelFields
	RuleSubscriptionFields
	RuleCollection
	RuleReservedCollection
	RuleMissingKind
	RuleMissingFind
	RuleAmbiguousKind
	RuleAggregateShape
	RuleAggregateFields
	RuleFindShape
	RuleFindFields
	RuleSortShape
	RuleProjectShape
	RuleSkipType
	RuleLimitType
)

var ruleNames = map[Rule]string{
	RuleVersion:            "version",
	RuleBody:               "body",
	RuleTopLevelFields:     "top-level-fields",
	RuleSubscriptionFields: "subscription-fields",
	RuleCollection:         "collection",
	RuleReservedCollection: "reserved-collection",
	RuleMissingKind:        "missing-kind",
	RuleMissingFind:        "missing-find",
	RuleAmbiguousKind:      "ambiguous-kind",
	RuleAggregateShape:     "aggregate-shape",
	RuleAggregateFields:    "aggregate-fields",
	RuleFindShape:          "find-shape",
	RuleFindFields:         "find-fields",
	RuleSortShape:          "sort-shape",
	RuleProjectShape:       "project-shape",
	RuleSkipType:           "skip-type",
	RuleLimitType:          "limit-type",
}

func (r Rule) String() string {
	if name, ok := ruleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("rule(%d)", int(r))
}

// SchemaError reports the first grammar rule an envelope violates.
type SchemaError struct {
	Rule    Rule
	Message string
}

func (e *SchemaError) Error() string { return e.Message }

// Is reports whether target is ErrSchema.
func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

func schemaError(rule Rule, format string, args ...any) *SchemaError {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &SchemaError{Rule: rule, Message: msg}
}
