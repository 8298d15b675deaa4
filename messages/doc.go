// Package messages resolves log message templates addressed by a key path
// such as ["general", "session_exists"].
//
// A [Catalogue] is an ordinary value: build it once at start-up with
// [Default], [Load] or [Parse] and hand it to whatever needs it. There is no
// package-level cache.
package messages
