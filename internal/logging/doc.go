// Package logging builds the process-wide slog logger and provides the
// attribute helpers used across the pipeline.
package logging
