// Package logging provides structured logging for the guessfleet coordinator.
//
// It wraps log/slog so every entry carries the service name and build version.
// JSON output is the default; text output is available for development.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("device connected", "device_id", id)
//
// Never log the JWT secret or broker credentials.
package logging
