package graph

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hupe1980/agentgraph/core"
)

// End is the terminal sentinel. Routing to End finishes a run.
const End = "__end__"

// NodeFunc is a unit of work. It receives a snapshot of the state and
// returns a partial update; it must not retain or mutate the snapshot.
type NodeFunc func(ctx context.Context, state core.AgentState) (core.StateUpdate, error)

// Router chooses the next route label from the merged state. It must be
// pure and return one of the labels declared with AddConditionalEdges.
type Router func(state core.AgentState) string

type conditional struct {
	router Router
	routes map[string]string
}

// Builder declares a graph. Methods record declarations (and any misuse);
// Compile validates everything at once and produces an immutable Graph.
// A Builder is not safe for concurrent use.
type Builder struct {
	nodes map[string]NodeFunc
	order []string
	entry string
	edges map[string]string
	conds map[string]conditional
	// decisions counts outgoing decisions per source so duplicates are
	// reported even though the maps above keep only the last one.
	decisions map[string]int
	errs      []error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		nodes:     make(map[string]NodeFunc),
		edges:     make(map[string]string),
		conds:     make(map[string]conditional),
		decisions: make(map[string]int),
	}
}

// AddNode registers a named node.
func (b *Builder) AddNode(name string, fn NodeFunc) *Builder {
	switch {
	case strings.TrimSpace(name) == "" || name == End:
		b.errs = append(b.errs, fmt.Errorf("%w: %q", ErrReservedName, name))
	case fn == nil:
		b.errs = append(b.errs, fmt.Errorf("graph: node %q has nil function", name))
	default:
		if _, dup := b.nodes[name]; dup {
			b.errs = append(b.errs, fmt.Errorf("%w: %q", ErrDuplicateNode, name))
			return b
		}

		b.nodes[name] = fn
		b.order = append(b.order, name)
	}

	return b
}

// SetEntry designates the node a run starts at.
func (b *Builder) SetEntry(name string) *Builder {
	b.entry = name
	return b
}

// AddEdge declares an unconditional transition. to may be End.
func (b *Builder) AddEdge(from, to string) *Builder {
	b.edges[from] = to
	b.decisions[from]++

	return b
}

// AddConditionalEdges declares a router for from. routes maps every label
// the router may return to a destination node (or End). The label set is
// closed: any other label fails the run.
func (b *Builder) AddConditionalEdges(from string, router Router, routes map[string]string) *Builder {
	b.decisions[from]++

	if router == nil {
		b.errs = append(b.errs, fmt.Errorf("graph: node %q has nil router", from))
		return b
	}

	if len(routes) == 0 {
		b.errs = append(b.errs, fmt.Errorf("graph: node %q declares no route labels", from))
		return b
	}

	b.conds[from] = conditional{router: router, routes: maps.Clone(routes)}

	return b
}

// Compile validates the declarations and returns an immutable Graph.
// All problems found are reported together, wrapped in a *core.Error of
// kind graph_definition.
func (b *Builder) Compile(optFns ...func(o *Options)) (*Graph, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	errs := slices.Clone(b.errs)

	if b.entry == "" {
		errs = append(errs, ErrNoEntry)
	} else if _, ok := b.nodes[b.entry]; !ok {
		errs = append(errs, fmt.Errorf("%w: entry %q", ErrNodeNotFound, b.entry))
	}

	if opts.MaxSteps <= 0 {
		errs = append(errs, fmt.Errorf("graph: max steps must be positive, got %d", opts.MaxSteps))
	}

	for _, from := range sortedKeys(b.decisions) {
		if _, ok := b.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("%w: edge source %q", ErrNodeNotFound, from))
		}

		if b.decisions[from] > 1 {
			errs = append(errs, fmt.Errorf("%w: %q", ErrMultipleRoutes, from))
		}
	}

	for _, name := range b.order {
		if b.decisions[name] == 0 {
			errs = append(errs, fmt.Errorf("%w: %q", ErrNoRoute, name))
		}
	}

	for _, from := range sortedKeys(b.edges) {
		if to := b.edges[from]; !b.isTarget(to) {
			errs = append(errs, fmt.Errorf("%w: edge %s -> %q", ErrNodeNotFound, from, to))
		}
	}

	for _, from := range sortedKeys(b.conds) {
		c := b.conds[from]
		for _, label := range sortedKeys(c.routes) {
			if to := c.routes[label]; !b.isTarget(to) {
				errs = append(errs, fmt.Errorf("%w: route %s[%s] -> %q", ErrNodeNotFound, from, label, to))
			}
		}
	}

	if len(errs) == 0 && !b.endReachable() {
		errs = append(errs, ErrEndUnreachable)
	}

	if len(errs) > 0 {
		return nil, core.NewError(core.KindGraphDefinition, "graph.compile", errors.Join(errs...))
	}

	g := &Graph{
		name:     opts.Name,
		entry:    b.entry,
		nodes:    maps.Clone(b.nodes),
		order:    slices.Clone(b.order),
		edges:    maps.Clone(b.edges),
		conds:    make(map[string]conditional, len(b.conds)),
		maxSteps: opts.MaxSteps,
		logger:   opts.Logger,
	}

	for k, c := range b.conds {
		g.conds[k] = conditional{router: c.router, routes: maps.Clone(c.routes)}
	}

	return g, nil
}

func (b *Builder) isTarget(name string) bool {
	if name == End {
		return true
	}

	_, ok := b.nodes[name]

	return ok
}

func (b *Builder) endReachable() bool {
	seen := map[string]bool{b.entry: true}
	queue := []string{b.entry}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		var next []string
		if to, ok := b.edges[cur]; ok {
			next = append(next, to)
		}

		if c, ok := b.conds[cur]; ok {
			for _, to := range c.routes {
				next = append(next, to)
			}
		}

		for _, to := range next {
			if to == End {
				return true
			}

			if !seen[to] {
				seen[to] = true
				queue = append(queue, to)
			}
		}
	}

	return false
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
