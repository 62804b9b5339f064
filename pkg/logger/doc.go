// Package logger builds the application's slog.Logger: text output in
// development, JSON in production, with the configured level and an
// environment attribute on every record.
package logger
