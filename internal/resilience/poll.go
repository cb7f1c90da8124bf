package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrPollTimeout is returned when a remote job did not finish within the
// poll budget.
var ErrPollTimeout = errors.New("poll budget exhausted")

// errPending marks a not-yet-finished job for the retry loop.
var errPending = errors.New("job pending")

// PollConfig bounds a poll: exponential steps starting at Initial, each
// capped at Max, for at most MaxWait in total.
type PollConfig struct {
	Initial time.Duration
	Max     time.Duration
	MaxWait time.Duration
}

func (c PollConfig) backoff() retry.Backoff {
	b := retry.NewExponential(c.Initial)
	if c.Max > 0 {
		b = retry.WithCappedDuration(c.Max, b)
	}
	return retry.WithMaxDuration(c.MaxWait, b)
}

// Poll calls check until it reports done, returns an error, the budget runs
// out (ErrPollTimeout) or ctx is cancelled. It is the single suspending
// call the rest of the pipeline sees for any remote asynchronous job.
func Poll[T any](ctx context.Context, cfg PollConfig, check func(ctx context.Context) (T, bool, error)) (T, error) {
	var result T
	start := time.Now()

	err := retry.Do(ctx, cfg.backoff(), func(ctx context.Context) error {
		v, done, err := check(ctx)
		if err != nil {
			return err
		}
		if !done {
			return retry.RetryableError(errPending)
		}
		result = v
		return nil
	})

	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, errPending):
		var zero T
		return zero, fmt.Errorf("%w after %s", ErrPollTimeout, time.Since(start).Round(time.Millisecond))
	default:
		var zero T
		return zero, err
	}
}
