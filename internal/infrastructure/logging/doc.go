// Package logging provides structured logging built on log/slog.
//
// Infrastructure packages receive loggers (or small logger interfaces)
// explicitly; the protocol core packages log through the process
// default logger, which main installs from the configured one at
// startup.
package logging
