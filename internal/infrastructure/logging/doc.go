// Package logging provides structured logging using uber/zap.
//
// Two output modes:
//   - Production: JSON lines for log shippers
//   - Development: colored console output
//
// Driver components receive a *Logger through options and fall back to a
// no-op logger, so library use never writes to stdout unasked.
//
// Example Usage:
//
//	logger, err := logging.New(logging.Config{Level: "debug", Development: true})
//	logger.Info("consumer ready", zap.String("prefix", "arm/"))
package logging
