package observability

import (
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/logging"
)

// LogObserver writes every event as a structured log entry named
// "event.<type>". Failures and retries are logged at warn level, run and
// batch completion at info level and everything else at debug level.
type LogObserver struct {
	logger logging.Logger
}

// NewLogObserver creates a LogObserver. A nil logger discards events.
func NewLogObserver(logger logging.Logger) *LogObserver {
	return &LogObserver{logger: logging.OrNoOp(logger)}
}

// Observe implements core.Observer.
func (l *LogObserver) Observe(e core.Event) {
	msg := "event." + string(e.Type)
	args := eventArgs(e)

	switch e.Type {
	case core.EventAttemptFailure, core.EventAttemptRetry:
		l.logger.Warn(msg, args...)
	case core.EventRunEnd, core.EventBatchEnd:
		if e.Err != nil {
			l.logger.Warn(msg, args...)
			return
		}

		l.logger.Info(msg, args...)
	default:
		l.logger.Debug(msg, args...)
	}
}

func eventArgs(e core.Event) []any {
	args := make([]any, 0, 16)

	add := func(k string, v any, ok bool) {
		if ok {
			args = append(args, k, v)
		}
	}

	add("run_id", e.RunID, e.RunID != "")
	add("batch_id", e.BatchID, e.BatchID != "")
	add("step", e.Step, e.Step != "")
	add("attempt", e.Attempt, e.Attempt > 0)
	add("max_attempts", e.MaxAttempts, e.MaxAttempts > 0)
	add("kind", string(e.Kind), e.Kind != "")
	add("delay_ms", e.Delay.Milliseconds(), e.Delay > 0)
	add("duration_ms", e.Duration.Milliseconds(), e.Duration > 0)

	if e.Err != nil {
		args = append(args, "error", e.Err.Error())
	}

	for _, k := range sortedAttrKeys(e.Attrs) {
		args = append(args, k, e.Attrs[k])
	}

	return args
}
