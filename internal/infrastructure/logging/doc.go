// Package logging provides structured logging for bluewidget.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same handler, level, and default fields.
//
// # Features
//
//   - Text output by default, JSON for log shippers
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - File or discard output for the terminal UI, which owns the screen
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stderr"   # stdout, stderr, file, discard
//	  file: ""           # used when output is file
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("adapter ready", "adapter", "hci0")
//	logger.Warn("command failed", "op", "connect", "error", err)
package logging
