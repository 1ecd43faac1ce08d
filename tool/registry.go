package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/logging"
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Logger receives tool.call.* events. Defaults to a no-op logger.
	Logger logging.Logger
}

// Registry maps tool names to tools. It is built once, validated eagerly and
// then only read, so a single Registry can be shared by concurrent runs.
type Registry struct {
	tools   map[string]Tool
	order   []string
	schemas map[string]*gojsonschema.Schema
	logger  logging.Logger
}

// NewRegistry builds a registry from tools. It fails if two tools share a
// name, a name is empty, or a parameter schema does not compile.
func NewRegistry(tools []Tool, optFns ...func(o *RegistryOptions)) (*Registry, error) {
	opts := RegistryOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Registry{
		tools:   make(map[string]Tool, len(tools)),
		order:   make([]string, 0, len(tools)),
		schemas: make(map[string]*gojsonschema.Schema, len(tools)),
		logger:  logging.OrNoOp(opts.Logger),
	}

	for _, t := range tools {
		if t == nil {
			return nil, errors.New("tool: nil tool")
		}

		name := t.Name()
		if strings.TrimSpace(name) == "" {
			return nil, errors.New("tool: empty tool name")
		}

		if _, dup := r.tools[name]; dup {
			return nil, fmt.Errorf("tool: duplicate tool name %q", name)
		}

		if params := t.Parameters(); len(params) > 0 {
			schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(params))
			if err != nil {
				return nil, fmt.Errorf("tool: invalid parameter schema for %q: %w", name, err)
			}

			r.schemas[name] = schema
		}

		r.tools[name] = t
		r.order = append(r.order, name)
	}

	return r, nil
}

// MustNewRegistry is like NewRegistry but panics on error. Intended for
// package level setup with static tool sets.
func MustNewRegistry(tools ...Tool) *Registry {
	r, err := NewRegistry(tools)
	if err != nil {
		panic(err)
	}

	return r
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}

	t, ok := r.tools[name]

	return t, ok
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	if r == nil {
		return nil
	}

	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}

	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}

	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}

	return len(r.order)
}

// Invoke dispatches a model tool call and renders the result as text.
//
// Error Semantics:
//
//	unregistered name        -> *core.Error{Kind: unknown_tool} wrapping core.ErrUnknownTool
//	unparsable / invalid args -> *core.Error{Kind: malformed_arguments} wrapping core.ErrMalformedArguments
//	tool error or panic      -> *ToolError (kind preserved through Unwrap)
//
// Logging Fields:
//
//	tool: tool name
//	call_id: tool call identifier (correlates model request & tool execution)
//	duration_ms: execution time in milliseconds
func (r *Registry) Invoke(ctx context.Context, call core.ToolCall) (string, error) {
	logger := r.logger
	start := time.Now()

	logger.Debug("tool.call.start", "tool", call.Name, "call_id", call.ID)

	t, ok := r.Lookup(call.Name)
	if !ok {
		logger.Warn("tool.call.unknown", "tool", call.Name, "call_id", call.ID)

		return "", core.NewError(core.KindUnknownTool, "tool.invoke", fmt.Errorf("%w: %q", core.ErrUnknownTool, call.Name))
	}

	args, err := call.ParseArguments()
	if err != nil {
		logger.Warn("tool.call.validation_failed", "tool", call.Name, "call_id", call.ID, "error", err.Error())

		return "", core.NewError(core.KindMalformedArguments, "tool.invoke", fmt.Errorf("%w for %q: %v", core.ErrMalformedArguments, call.Name, err))
	}

	if err := r.validate(call.Name, args); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", call.Name, "call_id", call.ID, "error", err.Error())

		return "", core.NewError(core.KindMalformedArguments, "tool.invoke", fmt.Errorf("%w for %q: %v", core.ErrMalformedArguments, call.Name, err))
	}

	result, err := safeCall(ctx, t, args)
	if err != nil {
		logging.LogToolCall(logger, call.Name, time.Since(start), false, err)

		return "", err
	}

	logging.LogToolCall(logger, call.Name, time.Since(start), true, nil)

	return FormatResult(result)
}

func (r *Registry) validate(name string, args map[string]any) error {
	schema, ok := r.schemas[name]
	if !ok {
		return nil
	}

	res, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}

	if res.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}

	return &ToolError{
		Tool:    name,
		Message: strings.Join(msgs, "; "),
		Code:    CodeValidation,
		Details: msgs,
	}
}

func safeCall(ctx context.Context, t Tool, args map[string]any) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &ToolError{
				Tool:    t.Name(),
				Message: fmt.Sprintf("panic: %v", rec),
				Code:    CodePanic,
				Details: string(debug.Stack()),
				Err:     core.Errorf(core.KindInternal, "tool."+t.Name(), "panic: %v", rec),
			}
		}
	}()

	return t.Call(ctx, args)
}

// FormatResult renders a tool result as message content. Strings pass
// through, fmt.Stringer values use String, everything else is JSON encoded.
func FormatResult(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case fmt.Stringer:
		return val.String(), nil
	case []byte:
		return string(val), nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("tool: encode result: %w", err)
	}

	return string(b), nil
}

// ErrorDescription returns the text shown to the model for a failed call.
func ErrorDescription(err error) string {
	var toolErr *ToolError
	if errors.As(err, &toolErr) && toolErr.Message != "" {
		return toolErr.Message
	}

	return err.Error()
}
