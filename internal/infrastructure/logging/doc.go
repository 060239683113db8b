// Package logging provides structured logging for the smart home core.
//
// This package wraps Go's standard log/slog package so every component logs
// JSON (or text, for development) with the same default fields:
//
//	{"level":"INFO","msg":"room added","service":"smarthome","version":"1.0.0","room":"kitchen"}
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	home.SetLogger(logger.Component("registry"))
//
// Never log secrets such as the MQTT password or InfluxDB token.
package logging
