// Package retry wraps fallible remote operations with bounded, linearly
// backed-off retries. Failures are classified by internal/fault: transport
// failures and timeouts get another attempt, everything else aborts
// immediately. Exhaustion is reported as an error value, never a panic, and
// every exhaustion is journaled to the error log before it is returned.
package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mcpstudio/internal/fault"
	"mcpstudio/internal/stats"
)

const (
	// DefaultAttempts is the attempt ceiling used when the caller passes
	// a non-positive value.
	DefaultAttempts = 3

	// DefaultBaseDelay scales the linear backoff: the wait before
	// attempt n+1 is DefaultBaseDelay * n.
	DefaultBaseDelay = 2 * time.Second
)

// Outcome is the result of a single attempt.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeRetryable Outcome = "retryable-failure"
	OutcomeFatal     Outcome = "fatal-failure"
)

// Attempt records one try of a retried operation.
type Attempt struct {
	Index   int
	Elapsed time.Duration
	Outcome Outcome
	Err     string
}

// ExhaustedError is returned when all attempts are spent or a fatal failure
// cuts the loop short. It carries the full attempt trace for inspection.
type ExhaustedError struct {
	Operation string
	Attempts  int
	Timestamp time.Time
	Err       error
	Trace     []Attempt
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Operation, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Executor retries operations. The zero value works with defaults and no
// journaling; wire Log and Counters for the full reporting contract.
type Executor struct {
	// BaseDelay scales the linear backoff: wait BaseDelay*n after the
	// n-th retryable failure. Defaults to DefaultBaseDelay.
	BaseDelay time.Duration

	// Log receives one record per exhaustion event. May be nil.
	Log *zap.Logger

	// Counters has its error counter bumped on every exhaustion. May be nil.
	Counters *stats.Counters
}

// Do runs fn up to maxAttempts times. The returned error is nil on success,
// or an *ExhaustedError once attempts are spent or a fatal failure occurred.
// The backoff wait is interrupted by ctx cancellation, in which case no
// further attempts run and the last failure is reported.
func (e *Executor) Do(ctx context.Context, operation string, maxAttempts int, fn func(context.Context) (any, error)) (any, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultAttempts
	}
	delay := e.BaseDelay
	if delay <= 0 {
		delay = DefaultBaseDelay
	}

	var (
		lastErr error
		trace   []Attempt
	)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := time.Now()
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		outcome := OutcomeFatal
		if fault.IsRetryable(err) {
			outcome = OutcomeRetryable
		}
		trace = append(trace, Attempt{
			Index:   attempt,
			Elapsed: time.Since(start),
			Outcome: outcome,
			Err:     err.Error(),
		})

		if outcome == OutcomeFatal {
			return nil, e.exhausted(operation, attempt, lastErr, trace)
		}
		if attempt == maxAttempts {
			break
		}

		// Linear backoff: delay * attempt.
		select {
		case <-time.After(delay * time.Duration(attempt)):
		case <-ctx.Done():
			return nil, e.exhausted(operation, attempt, lastErr, trace)
		}
	}

	return nil, e.exhausted(operation, len(trace), lastErr, trace)
}

func (e *Executor) exhausted(operation string, attempts int, err error, trace []Attempt) *ExhaustedError {
	ex := &ExhaustedError{
		Operation: operation,
		Attempts:  attempts,
		Timestamp: time.Now(),
		Err:       err,
		Trace:     trace,
	}
	if e.Counters != nil {
		e.Counters.Errors.Add(1)
	}
	if e.Log != nil {
		e.Log.Info("",
			zap.String("operation", operation),
			zap.String("error", err.Error()),
			zap.Int("attempts", attempts),
		)
		_ = e.Log.Sync()
	}
	return ex
}
