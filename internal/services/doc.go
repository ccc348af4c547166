// Package services defines the shared error taxonomy used across the
// pipeline. Failures are tagged with sentinel markers so callers can
// classify with errors.Is while the message keeps stage context.
package services
