// Package config loads agentgraph settings from YAML with AGENTGRAPH_*
// environment overrides and turns them into options for the flow, batch and
// logging packages.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/task"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AGENTGRAPH_"

// Graph kinds.
const (
	GraphToolLoop     = "tool_loop"
	GraphDataAnalysis = "data_analysis"
)

// Providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Config is the complete runtime configuration.
type Config struct {
	Provider         string        `yaml:"provider"`
	Model            string        `yaml:"model"`
	Instructions     string        `yaml:"instructions"`
	Graph            string        `yaml:"graph"`
	Tools            []string      `yaml:"tools"`
	LenientArguments bool          `yaml:"lenient_arguments"`
	MaxIterations    int           `yaml:"max_iterations"`
	MaxRetries       int           `yaml:"max_retries"`
	Timeout          time.Duration `yaml:"timeout"`
	Concurrency      int           `yaml:"concurrency"`
	Backoff          BackoffConfig `yaml:"backoff"`
	Log              LogConfig     `yaml:"log"`
	Metrics          MetricsConfig `yaml:"metrics"`
	Tracing          bool          `yaml:"tracing"`
}

// BackoffConfig configures exponential backoff between attempts.
type BackoffConfig struct {
	Initial time.Duration `yaml:"initial"`
	Max     time.Duration `yaml:"max"`
	Factor  float64       `yaml:"factor"`
	Jitter  float64       `yaml:"jitter"`
}

// LogConfig selects the logging backend.
type LogConfig struct {
	Level   string `yaml:"level"`   // debug, info, warn, error
	Format  string `yaml:"format"`  // json or text
	Backend string `yaml:"backend"` // slog or zerolog
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	b := task.DefaultBackoff()

	return Config{
		Provider:      ProviderOpenAI,
		Graph:         GraphToolLoop,
		MaxIterations: 5,
		MaxRetries:    2,
		Timeout:       60 * time.Second,
		Concurrency:   4,
		Backoff: BackoffConfig{
			Initial: b.Initial,
			Max:     b.Max,
			Factor:  b.Factor,
			Jitter:  b.Jitter,
		},
		Log: LogConfig{
			Level:   "info",
			Format:  "json",
			Backend: "slog",
		},
		Metrics: MetricsConfig{Addr: ":9090"},
	}
}

// Load reads path (optional), applies environment overrides and validates
// the result. An empty path yields the defaults plus overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}

		if cfg, err = Parse(data); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Parse decodes YAML on top of the defaults. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from AGENTGRAPH_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}

			*dst = n
		}
	}

	duration := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}

			*dst = d
		}
	}

	str("PROVIDER", &c.Provider)
	str("MODEL", &c.Model)
	str("INSTRUCTIONS", &c.Instructions)
	str("GRAPH", &c.Graph)
	integer("MAX_ITERATIONS", &c.MaxIterations)
	integer("MAX_RETRIES", &c.MaxRetries)
	duration("TIMEOUT", &c.Timeout)
	integer("CONCURRENCY", &c.Concurrency)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_BACKEND", &c.Log.Backend)
	str("METRICS_ADDR", &c.Metrics.Addr)

	if v, ok := lookup(EnvPrefix + "TOOLS"); ok && strings.TrimSpace(v) != "" {
		c.Tools = splitList(v)
	}

	return errors.Join(errs...)
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("provider must be one of openai, anthropic, mock, got %q", c.Provider))
	}

	switch c.Graph {
	case GraphToolLoop, GraphDataAnalysis:
	default:
		errs = append(errs, fmt.Errorf("graph must be %s or %s, got %q", GraphToolLoop, GraphDataAnalysis, c.Graph))
	}

	if c.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("max_iterations must be at least 1, got %d", c.MaxIterations))
	}

	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries))
	}

	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}

	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}

	if c.Backoff.Factor != 0 && c.Backoff.Factor < 1 {
		errs = append(errs, fmt.Errorf("backoff.factor must be at least 1, got %g", c.Backoff.Factor))
	}

	if c.Backoff.Jitter < 0 || c.Backoff.Jitter > 1 {
		errs = append(errs, fmt.Errorf("backoff.jitter must be within [0,1], got %g", c.Backoff.Jitter))
	}

	if c.Backoff.Max > 0 && c.Backoff.Initial > c.Backoff.Max {
		errs = append(errs, fmt.Errorf("backoff.initial (%s) exceeds backoff.max (%s)", c.Backoff.Initial, c.Backoff.Max))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	switch c.Log.Backend {
	case "slog", "zerolog":
	default:
		errs = append(errs, fmt.Errorf("log.backend must be slog or zerolog, got %q", c.Log.Backend))
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}

	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("config: %w", errors.Join(errs...))
}

// Policy returns the retry policy described by c.
func (c Config) Policy() task.Policy {
	p := task.DefaultPolicy()
	p.MaxRetries = c.MaxRetries
	p.Timeout = c.Timeout
	p.Backoff = task.ExponentialBackoff{
		Initial: c.Backoff.Initial,
		Max:     c.Backoff.Max,
		Factor:  c.Backoff.Factor,
		Jitter:  c.Backoff.Jitter,
	}

	return p
}

func splitList(s string) []string {
	var out []string

	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}

	return out
}
