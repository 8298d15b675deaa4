// Package logging builds the slog loggers used by goSession and the
// [EventLogger] that turns [category, event] keys into catalogue messages.
//
// Text output goes through tint and is coloured only when writing to a
// terminal. JSON output uses slog's JSON handler. Both attach the source
// location to warn and error records.
package logging
