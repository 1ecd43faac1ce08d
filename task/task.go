// Package task implements the step executor: it turns a unit of work into a
// retryable step with a per-attempt timeout, a swappable backoff, retriable
// versus fatal classification and observer events for every attempt.
//
// A step never panics past the executor and a timed-out attempt's result is
// discarded, so callers only ever see the outcome of a completed attempt.
package task

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/logging"
)

// Policy configures retries for a step.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt
	// (attempts = MaxRetries + 1). Negative values are treated as 0.
	MaxRetries int
	// Timeout bounds each attempt. Zero disables the per-attempt deadline.
	Timeout time.Duration
	// Backoff computes the wait between attempts. Nil retries immediately.
	Backoff Backoff
	// Retriable classifies failures. Nil uses core.IsRetriable.
	Retriable func(err error) bool
}

// DefaultPolicy returns two retries, a 60s attempt timeout and exponential backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 2,
		Timeout:    60 * time.Second,
		Backoff:    DefaultBackoff(),
		Retriable:  core.IsRetriable,
	}
}

// MaxAttempts returns the total number of attempts the policy allows.
func (p Policy) MaxAttempts() int {
	if p.MaxRetries < 0 {
		return 1
	}

	return p.MaxRetries + 1
}

// Options configures an Executor.
type Options struct {
	Policy Policy
	// Observer receives attempt events. Defaults to a no-op observer.
	Observer core.Observer
	// Logger receives task.* events. Defaults to a no-op logger.
	Logger logging.Logger
	// Sleep waits between attempts. It must return early with ctx.Err() when
	// ctx is done. Defaults to a timer based wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Executor runs steps under a retry policy. It is immutable and safe for concurrent use.
type Executor struct {
	opts Options
}

// New creates an Executor. Without options it uses DefaultPolicy.
func New(optFns ...func(o *Options)) *Executor {
	opts := Options{Policy: DefaultPolicy()}
	for _, fn := range optFns {
		fn(&opts)
	}

	opts.Observer = core.ObserverOrNoOp(opts.Observer)
	opts.Logger = logging.OrNoOp(opts.Logger)

	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}

	return &Executor{opts: opts}
}

// Policy returns the executor's retry policy.
func (e *Executor) Policy() Policy { return e.opts.Policy }

// WithPolicy returns a copy of e using p.
func (e *Executor) WithPolicy(p Policy) *Executor {
	opts := e.opts
	opts.Policy = p

	return &Executor{opts: opts}
}

// Step is a named unit of work.
type Step[I, O any] struct {
	Name string
	Run  func(ctx context.Context, in I) (O, error)
}

// Result is the outcome of Execute. On failure Err is a *StepError and Kind
// holds the classification of the last attempt's error.
type Result[O any] struct {
	Value    O
	Attempts int
	Err      error
	Kind     core.Kind
	Duration time.Duration
}

// OK reports whether the step succeeded.
func (r Result[O]) OK() bool { return r.Err == nil }

// Execute runs step with input under e's policy.
func Execute[I, O any](ctx context.Context, e *Executor, step Step[I, O], input I) Result[O] {
	if e == nil {
		e = New()
	}

	p := e.opts.Policy
	maxAttempts := p.MaxAttempts()
	log := e.opts.Logger
	start := time.Now()

	fail := func(attempt int, err error) Result[O] {
		kind := core.KindOf(err)
		log.Error("task.step.failed", "step", step.Name, "attempts", attempt, "kind", string(kind), "error", err.Error())

		return Result[O]{
			Attempts: attempt,
			Err:      &StepError{Step: step.Name, Attempts: attempt, Kind: kind, Err: err},
			Kind:     kind,
			Duration: time.Since(start),
		}
	}

	for attempt := 1; ; attempt++ {
		core.Emit(ctx, e.opts.Observer, core.Event{Type: core.EventAttemptStart, Step: step.Name, Attempt: attempt, MaxAttempts: maxAttempts})
		log.Debug("task.attempt.start", "step", step.Name, "attempt", attempt, "max_attempts", maxAttempts)

		attemptStart := time.Now()
		v, err := runAttempt(ctx, p.Timeout, step, input)
		elapsed := time.Since(attemptStart)

		if err == nil {
			core.Emit(ctx, e.opts.Observer, core.Event{Type: core.EventAttemptSuccess, Step: step.Name, Attempt: attempt, MaxAttempts: maxAttempts, Duration: elapsed})
			log.Debug("task.attempt.success", "step", step.Name, "attempt", attempt, "duration_ms", elapsed.Milliseconds())

			return Result[O]{Value: v, Attempts: attempt, Duration: time.Since(start)}
		}

		kind := core.KindOf(err)
		core.Emit(ctx, e.opts.Observer, core.Event{Type: core.EventAttemptFailure, Step: step.Name, Attempt: attempt, MaxAttempts: maxAttempts, Kind: kind, Err: err, Duration: elapsed})
		log.Warn("task.attempt.failed", "step", step.Name, "attempt", attempt, "kind", string(kind), "error", err.Error())

		if ctxErr := ctx.Err(); ctxErr != nil {
			return fail(attempt, core.NewError(core.KindOf(ctxErr), step.Name, ctxErr))
		}

		if attempt >= maxAttempts || !retriable(p, err) {
			return fail(attempt, err)
		}

		var delay time.Duration
		if p.Backoff != nil {
			delay = p.Backoff.Delay(attempt)
		}

		core.Emit(ctx, e.opts.Observer, core.Event{Type: core.EventAttemptRetry, Step: step.Name, Attempt: attempt, MaxAttempts: maxAttempts, Kind: kind, Err: err, Delay: delay})
		log.Info("task.attempt.retry", "step", step.Name, "attempt", attempt, "delay_ms", delay.Milliseconds())

		if err := e.opts.Sleep(ctx, delay); err != nil {
			return fail(attempt, core.NewError(core.KindOf(err), step.Name, err))
		}
	}
}

// Do runs a step without input or output value.
func Do(ctx context.Context, e *Executor, name string, fn func(ctx context.Context) error) Result[struct{}] {
	return Execute(ctx, e, Step[struct{}, struct{}]{
		Name: name,
		Run: func(ctx context.Context, _ struct{}) (struct{}, error) {
			return struct{}{}, fn(ctx)
		},
	}, struct{}{})
}

func retriable(p Policy, err error) bool {
	if _, nested := AsStepError(err); nested {
		return false
	}

	if p.Retriable != nil {
		return p.Retriable(err)
	}

	return core.IsRetriable(err)
}

type outcome[O any] struct {
	value O
	err   error
}

// runAttempt executes one attempt in its own goroutine so a step that
// ignores its context cannot hold the executor past the deadline. The
// abandoned goroutine's result lands in a buffered channel and is dropped.
func runAttempt[I, O any](ctx context.Context, timeout time.Duration, step Step[I, O], input I) (O, error) {
	actx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		actx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	ch := make(chan outcome[O], 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				ch <- outcome[O]{err: core.Errorf(core.KindInternal, step.Name, "panic: %v\n%s", rec, debug.Stack())}
			}
		}()

		v, err := step.Run(actx, input)
		ch <- outcome[O]{value: v, err: err}
	}()

	var zero O

	select {
	case out := <-ch:
		if out.err != nil && ctx.Err() == nil && actx.Err() != nil {
			return zero, timeoutError(step.Name, timeout, out.err)
		}

		return out.value, out.err
	case <-actx.Done():
		select {
		case out := <-ch:
			if out.err == nil {
				return out.value, nil
			}
		default:
		}

		if err := ctx.Err(); err != nil {
			return zero, err
		}

		return zero, timeoutError(step.Name, timeout, context.DeadlineExceeded)
	}
}

func timeoutError(step string, timeout time.Duration, cause error) error {
	return core.NewError(core.KindTimeout, step, fmt.Errorf("attempt exceeded %s: %w", timeout, cause))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
