package inference

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"mailpilot/pkg/circuitbreaker"
	"mailpilot/pkg/util"
)

// ResilientCompleter bounds a Completer with a per-call deadline, retries
// retryable failures with exponential backoff inside that deadline, and
// short-circuits through a breaker while the provider keeps failing.
type ResilientCompleter struct {
	next       Completer
	breaker    *circuitbreaker.CircuitBreaker
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewResilientCompleter(next Completer, breaker *circuitbreaker.CircuitBreaker, timeout time.Duration, maxRetries int, logger *zap.Logger) *ResilientCompleter {
	return &ResilientCompleter{
		next:       next,
		breaker:    breaker,
		timeout:    timeout,
		maxRetries: maxRetries,
		backoff:    500 * time.Millisecond,
		logger:     logger,
		sleep:      sleepCtx,
	}
}

func (r *ResilientCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var out string
	for attempt := 0; ; attempt++ {
		err := r.breaker.Execute(func() error {
			var err error
			out, err = r.next.Complete(ctx, system, user)
			return err
		}, callerCanceled(ctx))
		if err == nil {
			return out, nil
		}

		retryable, kind := util.IsRetryableError(err)
		if !retryable || attempt >= r.maxRetries || ctx.Err() != nil {
			return "", err
		}

		wait := r.backoff << attempt
		r.logger.Debug("retrying inference call",
			zap.Int("attempt", attempt+1),
			zap.String("error_type", kind),
			zap.Duration("backoff", wait),
		)
		if err := r.sleep(ctx, wait); err != nil {
			return "", err
		}
	}
}

// callerCanceled keeps cancellations by the caller from tripping the breaker.
func callerCanceled(ctx context.Context) func(error) bool {
	return func(err error) bool {
		return errors.Is(err, context.Canceled) && ctx.Err() != nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
