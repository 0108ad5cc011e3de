// Package logger sets up the JSON slog logger used by every binary and
// carries request-scoped loggers through a context.Context.
package logger
