// Package logging builds the application slog logger with console and JSON
// handlers and provides standardized attribute helpers shared across
// components.
package logging
