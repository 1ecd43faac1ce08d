// Package observability provides core.Observer implementations: structured
// logging, Prometheus metrics, OpenTelemetry tracing, fan-out to several
// observers and an asynchronous bounded wrapper for slow sinks.
//
// Observers are injected through the Observer option of the flow, batch and
// task packages; nothing here installs global state except NewMetrics when
// called with a nil registerer (it then uses the Prometheus default registry).
//
// Usage:
//
//	reg := prometheus.NewRegistry()
//	obs := observability.NewAsyncObserver(observability.NewMulti(
//	    observability.NewLogObserver(logger),
//	    observability.NewMetrics(reg),
//	    observability.NewTraceObserver(nil),
//	), 1024)
//	defer obs.Close()
package observability
