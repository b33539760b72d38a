// Package logging builds the slog loggers used across vidstitch and
// provides small helpers for structured attributes.
package logging
