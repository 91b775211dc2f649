// Package logging provides structured logging for essp.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used by the session, the poller and the monitor. Logging is
// silent until Initialize is called with a level or ESSP_LOG_LEVEL is set.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Frame hex dumps, successful background polls
//   - Info: Port open/close, key negotiation, monitor clients
//   - Warn: Write retries, failed background polls
//   - Error: Fatal issues (startup failures, critical errors)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Key exchange complete",
//	    zap.String("port", "/dev/ttyUSB0"),
//	    zap.Int("attempt", 1),
//	)
//
// # Frame Logging
//
//	logging.LogFrame("tx", ssp.CmdPoll, raw)
//	logging.LogFrame("rx", ssp.CmdPoll, raw)
//
// Frames are only formatted when debug logging is enabled.
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Tests can capture output with SetLogger and zaptest/observer.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
