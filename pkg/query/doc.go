// Package query implements the versioned JSON query DSL accepted by the
// Bridgeport reader.
//
// A query travels as a base64-encoded envelope:
//
//	{"v": 3, "q": {"collection": "hello", "find": {}, "limit": 10}}
//
// Decode turns the encoded form into an ordered BSON document, Validate checks
// it against the grammar for a given Mode, and Parse does both, returning a
// read-only Query. A Query is translated into store operations with Plan
// (batch mode) or SubscriptionPipeline (subscription mode). None of these
// functions perform I/O, and none of them modify the decoded envelope: every
// rewrite produces new values.
//
// Envelopes are decoded as relaxed MongoDB Extended JSON, so wrappers such as
// {"$oid": "..."} or {"$date": "..."} inside filters become their BSON types.
package query
