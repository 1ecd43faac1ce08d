// Package flow runs a single query end to end.
//
// An Orchestrator executes three stages in order:
//
//	initialize -> validate the query and build the initial state
//	execute    -> walk the agent graph; every node runs under the step executor
//	finalize   -> shape the final state into a Result
//
// A failing stage stops the sequence and the Result is returned with status
// "failed" and a structured Error naming the stage, the step, the error kind
// and the number of attempts. Hitting an iteration or step bound is not a
// failure: the Result is "incomplete" and carries the stop reason.
//
// RunQuery never returns a Go error; everything the caller needs is in the
// Result, which makes it straightforward to fan out in a batch.
package flow
