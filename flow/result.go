package flow

import (
	"fmt"
	"time"

	"github.com/hupe1980/agentgraph/core"
)

// Status is the outcome of a run.
type Status string

const (
	// StatusCompleted marks a run that produced a final answer.
	StatusCompleted Status = "completed"
	// StatusIncomplete marks a run stopped by an iteration or step bound.
	StatusIncomplete Status = "incomplete"
	// StatusFailed marks a run whose stage failed.
	StatusFailed Status = "failed"
)

// Stage names.
const (
	StageInitialize = "initialize"
	StageExecute    = "execute"
	StageFinalize   = "finalize"
)

// Result describes a finished run.
type Result struct {
	RunID        string         `json:"run_id"`
	Query        string         `json:"query"`
	Answer       string         `json:"final_answer"`
	Iterations   int            `json:"iterations"`
	MessageCount int            `json:"total_messages"`
	Messages     []core.Message `json:"messages,omitempty"`
	Status       Status         `json:"status"`
	StopReason   string         `json:"stop_reason,omitempty"`
	Aux          map[string]any `json:"aux,omitempty"`
	Error        *Error         `json:"error,omitempty"`
	StartedAt    time.Time      `json:"timestamp"`
	Duration     time.Duration  `json:"duration"`
}

// Err returns the run error, or nil unless Status is failed.
func (r Result) Err() error {
	if r.Error == nil {
		return nil
	}

	return r.Error
}

// Error is the user-visible description of a failed run. It carries the
// classification and attempt count only, never stack traces.
type Error struct {
	Stage    string    `json:"stage"`
	Step     string    `json:"step,omitempty"`
	Kind     core.Kind `json:"kind"`
	Attempts int       `json:"attempts"`
	Message  string    `json:"message"`
}

func (e *Error) Error() string {
	if e.Step != "" && e.Step != e.Stage {
		return fmt.Sprintf("%s stage failed in step %q after %d attempt(s) (%s): %s", e.Stage, e.Step, e.Attempts, e.Kind, e.Message)
	}

	return fmt.Sprintf("%s stage failed after %d attempt(s) (%s): %s", e.Stage, e.Attempts, e.Kind, e.Message)
}
