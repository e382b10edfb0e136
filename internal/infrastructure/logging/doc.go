// Package logging provides structured logging for the exposure exporter.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same handler, level filter and default fields.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
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
//	logger.Info("exported entities", "count", 42)
//	logger.Error("export failed", "error", err)
//
// Never log secrets such as the MQTT password or the API signing secret.
package logging
