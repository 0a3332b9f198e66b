package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Default retry policy values, applied around every step invocation.
const (
	DefaultInitialInterval    = 10 * time.Second
	DefaultMaxInterval        = 2 * time.Minute
	DefaultBackoffCoefficient = 1.5
	DefaultMaxAttempts        = 10
)

// RetryPolicy controls backoff and attempt limits for step execution.
// A single policy value is built from configuration and shared by every
// coordinator; call sites never declare their own.
type RetryPolicy struct {
	InitialInterval    time.Duration
	MaxInterval        time.Duration
	BackoffCoefficient float64
	MaxAttempts        int

	// Sleep waits between attempts. Overridable in tests; defaults to a
	// context-aware timer wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns the policy used when configuration supplies
// no overrides.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval:    DefaultInitialInterval,
		MaxInterval:        DefaultMaxInterval,
		BackoffCoefficient: DefaultBackoffCoefficient,
		MaxAttempts:        DefaultMaxAttempts,
	}
}

// Interval returns the backoff delay preceding the given attempt
// (1-based). The first attempt has no delay.
func (p RetryPolicy) Interval(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	interval := float64(p.InitialInterval)
	for i := 2; i < attempt; i++ {
		interval *= p.BackoffCoefficient
	}

	if limit := float64(p.MaxInterval); p.MaxInterval > 0 && interval > limit {
		interval = limit
	}
	return time.Duration(interval)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type classifiedError struct {
	permanent bool
	err       error
}

func (e *classifiedError) Error() string {
	return e.err.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.err
}

func (e *classifiedError) Cause() error {
	return e.err
}

// Permanent marks an error as a business-rule rejection that must not be
// retried (declined payment, out-of-stock, validation failure).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{permanent: true, err: err}
}

// Transient marks an error as retryable. Unmarked errors are treated as
// transient as well; Transient exists to make the classification explicit
// at call sites that want it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{permanent: false, err: err}
}

func isPermanent(err error) bool {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.permanent
	}
	// Context errors abort execution; retrying a cancelled context is
	// pointless.
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// StepError is the only failure shape a coordinator observes: every step
// error is classified before it leaves the executor.
type StepError struct {
	Step      StepName
	Permanent bool
	Attempts  int
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed after %d attempt(s): %v", e.Step, e.Attempts, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StepFunc performs one step invocation and returns its output payload.
type StepFunc func(ctx context.Context) (interface{}, error)

// Executor invokes steps through the retry policy. It is stateless and
// safe to share across coordinators and sagas.
type Executor struct {
	policy RetryPolicy
}

// NewExecutor creates an executor with the given retry policy. Zero or
// negative policy fields fall back to the defaults.
func NewExecutor(policy RetryPolicy) *Executor {
	defaults := DefaultRetryPolicy()
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = defaults.InitialInterval
	}
	if policy.MaxInterval <= 0 {
		policy.MaxInterval = defaults.MaxInterval
	}
	if policy.BackoffCoefficient <= 1 {
		policy.BackoffCoefficient = defaults.BackoffCoefficient
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = defaults.MaxAttempts
	}
	if policy.Sleep == nil {
		policy.Sleep = sleepWithContext
	}
	return &Executor{policy: policy}
}

// Policy returns the executor's retry policy.
func (e *Executor) Policy() RetryPolicy {
	return e.policy
}

// Execute runs one step under the retry policy. Transient failures are
// retried with exponential backoff until MaxAttempts; exhaustion converts
// the failure into a permanent one. Permanent failures stop immediately.
func (e *Executor) Execute(ctx context.Context, step StepName, fn StepFunc) (StepResult, error) {
	var lastErr error

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if delay := e.policy.Interval(attempt); delay > 0 {
			if err := e.policy.Sleep(ctx, delay); err != nil {
				return StepResult{}, &StepError{Step: step, Permanent: true, Attempts: attempt - 1, Err: err}
			}
		}

		output, err := fn(ctx)
		if err == nil {
			return StepResult{Step: step, Output: output, CompletedAt: time.Now()}, nil
		}

		lastErr = err
		if isPermanent(err) {
			return StepResult{}, &StepError{Step: step, Permanent: true, Attempts: attempt, Err: errors.Cause(err)}
		}
	}

	return StepResult{}, &StepError{
		Step:      step,
		Permanent: true,
		Attempts:  e.policy.MaxAttempts,
		Err:       errors.Wrap(errors.Cause(lastErr), "retry attempts exhausted"),
	}
}
