// Package logging builds the process-wide structured logger on log/slog.
//
// Every entry carries service and version fields. Components derive child
// loggers with Component so their entries can be filtered:
//
//	log := logging.New(cfg.Logging, version)
//	mgr := connmgr.New(url, opts, dialer, log.Component("connmgr"))
//
// Configuration lives under the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Attributes whose key contains "password", "secret" or "token" are masked.
// Broker URLs are not caught by that rule; pass them through
// rabbitmq.RedactURL before logging.
package logging
