// Package log captures a machine-readable trace of a functional test run.
//
// It is separate from operational logging (slog): every telegram the test
// engine sends or observes, every verdict it assigns and every lifecycle
// transition of a run is recorded as an Event, so a run can be replayed
// and audited after the fact.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For archiving: write to a binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("run.klog")
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(adapter, fileLogger)
//
// # Event Types
//
//   - Bus layer: telegrams (TelegramEvent)
//   - Engine layer: verdicts (VerdictEvent) and run/model state (StateChangeEvent)
//   - Errors at either layer (ErrorEventData)
//
// # File Format
//
// Log files are concatenated CBOR items with integer keys (.klog). The
// knxcheck-log tool views, filters and exports them.
package log
