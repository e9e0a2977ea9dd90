// Package logger provides structured logging backed by Uber's zap.
//
// # Architecture
//
// This package follows the "accept interfaces, return structs" design pattern:
//   - Logger interface: Defines the contract for logging operations
//   - LoggerClient struct: Concrete implementation of the Logger interface
//   - NewLoggerClient constructor: Returns *LoggerClient (concrete type)
//   - FX module: Provides both *LoggerClient and Logger interface for dependency injection
//
// Every method takes a message, an optional error and optional field maps:
//
//	log := logger.NewLoggerClient(logger.Config{Level: "info", ServiceName: "billing-worker"})
//	log.Info("Worker started", nil, map[string]interface{}{"queue": "billing"})
//	log.Error("Handler failed", err, nil)
//
// The *WithContext variants add trace_id and span_id of the span carried by
// the context when Config.EnableTracing is set, which correlates the log lines
// of a message dispatch with its trace:
//
//	log.InfoWithContext(ctx, "Handling message", nil, nil)
//
// *LoggerClient satisfies minion.Logger, so it can be handed straight to a
// service through Settings.Logger or the minion FX module.
//
// # Configuration
//
//	ZAP_LOGGER_LEVEL=debug          # debug, info, warning, error
//	LOGGER_ENABLE_TRACING=true      # add trace_id/span_id to *WithContext entries
//	LOGGER_SERVICE_NAME=my-worker   # "service" field on every entry
//
// # Thread Safety
//
// All methods are safe for concurrent use by multiple goroutines.
package logger
