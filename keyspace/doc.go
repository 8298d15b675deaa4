// Package keyspace decodes arbitrary Redis keys into a small closed set of
// value shapes and exports a whole keyspace as one JSON document.
//
// [Value] is a sealed sum type: [String], [Hash], [List], [Set], [SortedSet]
// and [Unsupported]. Any Redis type outside the first five, including "none"
// for a key that vanished mid-read, decodes to [Unsupported] instead of
// failing, so an export never aborts on an unexpected key.
package keyspace
