package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/hupe1980/agentgraph/batch"
	"github.com/hupe1980/agentgraph/config"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/flow"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/observability"
)

// app bundles everything a subcommand needs.
type app struct {
	cfg          config.Config
	logger       logging.Logger
	orchestrator *flow.Orchestrator
	coordinator  *batch.Coordinator

	observer *observability.AsyncObserver
	tracer   *sdktrace.TracerProvider
	server   *http.Server
}

// loadConfig reads the config file and applies explicitly set flags on top.
func loadConfig(cmd *cobra.Command, flags *rootFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, err
	}

	changed := func(name string) bool { return cmd.Flags().Changed(name) }

	if changed("provider") {
		cfg.Provider = flags.provider
	}

	if changed("model") {
		cfg.Model = flags.model
	}

	if changed("graph") {
		cfg.Graph = flags.graph
	}

	if changed("max-iterations") {
		cfg.MaxIterations = flags.maxIterations
	}

	if changed("max-retries") {
		cfg.MaxRetries = flags.maxRetries
	}

	if changed("timeout") {
		d, err := time.ParseDuration(flags.timeout)
		if err != nil {
			return config.Config{}, fmt.Errorf("--timeout: %w", err)
		}

		cfg.Timeout = d
	}

	if changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}

	if changed("metrics-addr") {
		cfg.Metrics.Enabled = flags.metricsAddr != ""
		cfg.Metrics.Addr = flags.metricsAddr
	}

	if changed("trace") {
		cfg.Tracing = flags.tracing
	}

	if changed("concurrency") {
		n, err := cmd.Flags().GetInt("concurrency")
		if err != nil {
			return config.Config{}, err
		}

		cfg.Concurrency = n
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}

// newApp wires model, tools, graph, observers and the two runners from cfg.
func newApp(cmd *cobra.Command, cfg config.Config) (*app, error) {
	logger, err := cfg.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	observers := []core.Observer{observability.NewLogObserver(logger)}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		observers = append(observers, observability.NewMetrics(reg))

		if a.server, err = serveMetrics(cfg.Metrics.Addr, reg, logger); err != nil {
			return nil, err
		}
	}

	if cfg.Tracing {
		a.tracer = observability.NewLogTracerProvider(logger)
		observers = append(observers, observability.NewTraceObserver(a.tracer))
	}

	a.observer = observability.NewAsyncObserver(observability.NewMulti(observers...), observability.DefaultBufferSize)

	m, err := cfg.NewModel()
	if err != nil {
		return nil, err
	}

	reg, err := cfg.NewRegistry(logger)
	if err != nil {
		return nil, err
	}

	g, err := cfg.NewGraph(m, reg, logger)
	if err != nil {
		return nil, err
	}

	if a.orchestrator, err = flow.New(m, reg, cfg.FlowOptions(g, a.observer, logger)); err != nil {
		return nil, err
	}

	a.coordinator = batch.New(a.orchestrator, cfg.BatchOptions(a.observer, logger))

	return a, nil
}

// close flushes observers and stops the metrics server.
func (a *app) close(ctx context.Context) error {
	a.observer.Close()

	var errs []error

	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(ctx))
	}

	if a.server != nil {
		errs = append(errs, a.server.Shutdown(ctx))
	}

	return errors.Join(errs...)
}

func serveMetrics(addr string, reg *prometheus.Registry, logger logging.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics.serve.error", "error", err)
		}
	}()

	logger.Info("metrics.serve.start", "addr", ln.Addr().String())

	return srv, nil
}
