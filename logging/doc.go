// Package logging provides a minimal logging interface and adapters for agentgraph.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that executors, graphs and tools use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter and StructuredLogger over Go's structured logging
//   - ZerologAdapter for zerolog based deployments
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	orch := flow.New(m, reg, func(o *flow.Options) { o.Logger = logger })
//
// Messages are dotted event keys ("task.attempt.retry") with key/value
// attributes, never preformatted sentences.
package logging
