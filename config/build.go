package config

import (
	"fmt"
	"io"
	"os"
	"slices"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentgraph/agent"
	"github.com/hupe1980/agentgraph/batch"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/flow"
	"github.com/hupe1980/agentgraph/graph"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/model/anthropic"
	"github.com/hupe1980/agentgraph/model/openai"
	"github.com/hupe1980/agentgraph/tool"
	"github.com/hupe1980/agentgraph/tool/builtin"
)

// NewLogger builds the configured logger writing to out (stderr when nil).
func (c Config) NewLogger(out io.Writer) (logging.Logger, error) {
	if out == nil {
		out = os.Stderr
	}

	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if c.Log.Backend == "zerolog" {
		return logging.NewZerologLogger(level, out, c.Log.Format == "text"), nil
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    c.Log.Format,
		Output:    out,
		Component: "agentgraph",
	}), nil
}

// NewModel constructs the configured provider. API keys come from the
// provider's usual environment variables.
func (c Config) NewModel() (model.Model, error) {
	switch c.Provider {
	case ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if c.Model != "" {
				o.Model = c.Model
			}
		}), nil
	case ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if c.Model != "" {
				o.Model = anthropicsdk.Model(c.Model)
			}
		}), nil
	case ProviderMock:
		name := c.Model
		if name == "" {
			name = "mock"
		}

		return model.NewMockModel(name, ProviderMock), nil
	default:
		return nil, core.Errorf(core.KindInvalidInput, "config.model", "unknown provider %q", c.Provider)
	}
}

// NewRegistry registers the builtin tools named in Tools, or all of them when
// Tools is empty.
func (c Config) NewRegistry(logger logging.Logger) (*tool.Registry, error) {
	all := builtin.All()

	selected := all
	if len(c.Tools) > 0 {
		selected = make([]tool.Tool, 0, len(c.Tools))

		for _, name := range c.Tools {
			idx := slices.IndexFunc(all, func(t tool.Tool) bool { return t.Name() == name })
			if idx < 0 {
				return nil, core.Errorf(core.KindInvalidInput, "config.tools", "unknown tool %q", name)
			}

			selected = append(selected, all[idx])
		}
	}

	return tool.NewRegistry(selected, func(o *tool.RegistryOptions) { o.Logger = logger })
}

// NewGraph compiles the configured graph.
func (c Config) NewGraph(m model.Model, reg *tool.Registry, logger logging.Logger) (*graph.Graph, error) {
	agentOpts := func(o *agent.Options) {
		o.Logger = logger
		o.LenientArguments = c.LenientArguments

		if c.Instructions != "" {
			o.Instruction = agent.NewInstructionFromText(c.Instructions)
		}
	}

	if c.Graph == GraphDataAnalysis {
		return agent.NewDataAnalysisGraph(m, reg, agentOpts)
	}

	return agent.NewToolLoopGraph(m, reg, agentOpts)
}

// FlowOptions applies iteration bound, retry policy, observer and logger to
// an orchestrator running g.
func (c Config) FlowOptions(g *graph.Graph, obs core.Observer, logger logging.Logger) func(o *flow.Options) {
	return func(o *flow.Options) {
		o.Graph = g
		o.MaxIterations = c.MaxIterations
		o.Policy = c.Policy()
		o.Observer = obs
		o.Logger = logger
	}
}

// BatchOptions applies the concurrency bound, observer and logger to a
// batch coordinator.
func (c Config) BatchOptions(obs core.Observer, logger logging.Logger) func(o *batch.Options) {
	return func(o *batch.Options) {
		o.MaxConcurrency = c.Concurrency
		o.Observer = obs
		o.Logger = logger
	}
}
