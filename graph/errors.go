package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrNodeNotFound is returned when a referenced node does not exist in the graph.
	ErrNodeNotFound = errors.New("graph: node not found")

	// ErrDuplicateNode is returned when two nodes share a name.
	ErrDuplicateNode = errors.New("graph: duplicate node")

	// ErrReservedName is returned when a node uses the End sentinel or an empty name.
	ErrReservedName = errors.New("graph: reserved node name")

	// ErrNoEntry is returned when the entry node is missing or undefined.
	ErrNoEntry = errors.New("graph: no entry node")

	// ErrNoRoute is returned when a node has no outgoing decision.
	ErrNoRoute = errors.New("graph: node has no outgoing edge")

	// ErrMultipleRoutes is returned when a node declares more than one outgoing decision.
	ErrMultipleRoutes = errors.New("graph: node has more than one outgoing decision")

	// ErrEndUnreachable is returned when End cannot be reached from the entry node.
	ErrEndUnreachable = errors.New("graph: end is unreachable from entry")

	// ErrUnknownLabel is returned when a router yields a label outside its declared set.
	ErrUnknownLabel = errors.New("graph: router returned undeclared label")
)

// ExecutionError reports a failed graph run. Node and Step identify where
// the walk stopped; Err is the cause (a node error, an undeclared route
// label, a recovered panic or a context error).
type ExecutionError struct {
	Node string
	Step int
	Err  error
}

func (e *ExecutionError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("graph execution: %v", e.Err)
	}

	return fmt.Sprintf("graph execution: node %q (step %d): %v", e.Node, e.Step, e.Err)
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *ExecutionError) Unwrap() error { return e.Err }
