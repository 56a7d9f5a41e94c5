// Package log captures a machine-readable trace of socket activity.
//
// Connections and listeners emit an Event for every state update, every
// completed read or write, and every lifecycle action (start, close,
// cancel, accept, drop). Capture is separate from operational logging:
// it is meant to be written to a file and inspected afterwards with the
// sock-log tool.
//
// # Basic Usage
//
//	// Console, through slog
//	cfg.Logger = log.NewSlogAdapter(slog.Default())
//
//	// Binary capture file
//	fl, _ := log.NewFileLogger("/tmp/session.slog")
//	cfg.Logger = fl
//
//	// Both
//	cfg.Logger = log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events with integer keys.
// Data events keep at most MaxCapturedData bytes of payload.
package log
