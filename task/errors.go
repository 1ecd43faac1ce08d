package task

import (
	"errors"
	"fmt"

	"github.com/hupe1980/agentgraph/core"
)

// StepError reports a step that failed after exhausting its attempts or on a
// fatal error. It is never retried again by an enclosing executor.
type StepError struct {
	Step     string
	Attempts int
	Kind     core.Kind
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed after %d attempt(s) (%s): %v", e.Step, e.Attempts, e.Kind, e.Err)
}

// Unwrap exposes the last attempt's error.
func (e *StepError) Unwrap() error { return e.Err }

// AsStepError returns the first *StepError in err's chain.
func AsStepError(err error) (*StepError, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se, true
	}

	return nil, false
}
