// Package logging provides structured logging for the pet tracker core.
//
// It wraps log/slog so every component logs with the same default fields
// (service, version) and the same snake_case keys.
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("protocol").Info("passing by handled", "customer", customer)
//
// Never log bot tokens or broker credentials.
package logging
