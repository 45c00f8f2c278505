// Package logging provides a thin wrapper over log/slog configured from
// the application config: level filtering, JSON or text output, and default
// service/version attributes on every record.
package logging
