package worker

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/corelab/udd-packager/internal/domain/udderrors"
)

// PollOp checks one outstanding remote job. It returns
// (result, nil) once the job has finished, (nil, udderrors.ErrNotReady)
// while it is still running, and any other error to abort the poll
// immediately.
type PollOp func(ctx context.Context) (any, error)

// TablePoller repeatedly invokes a PollOp on a fixed interval until it
// stops reporting udderrors.ErrNotReady, the caller's context is
// cancelled, or a bounded number of attempts is exhausted. It
// generalizes the teacher's ticker-driven background poll loop
// (status_poller.go, async_download.go pollLoop) into a single
// synchronous call a task can block on.
type TablePoller struct {
	interval time.Duration
	maxTries int
	logger   *zap.Logger
}

// NewTablePoller builds a poller that checks every interval, up to
// maxTries attempts. interval <= 0 is treated as "poll as fast as the
// caller permits" (used by tests): no sleep is inserted between
// attempts. maxTries <= 0 means unbounded (bounded only by ctx).
func NewTablePoller(interval time.Duration, maxTries int, logger *zap.Logger) *TablePoller {
	return &TablePoller{interval: interval, maxTries: maxTries, logger: logger}
}

// Poll blocks until op succeeds, fails with a non-NotReady error, the
// retry budget is exhausted (udderrors.ErrTimeout), or ctx is done. It
// sleeps interval before every attempt, including the first, since the
// remote job has no chance of being ready before then.
func (p *TablePoller) Poll(ctx context.Context, op PollOp) (any, error) {
	var b backoff.BackOff
	if p.interval > 0 {
		constant := backoff.NewConstantBackOff(p.interval)
		b = backoff.WithContext(constant, ctx)
	}

	attempt := 0
	for {
		attempt++

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if b != nil {
			wait := b.NextBackOff()
			if wait == backoff.Stop {
				return nil, udderrors.ErrTimeout
			}

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if !errors.Is(err, udderrors.ErrNotReady) {
			return nil, err
		}

		if p.maxTries > 0 && attempt >= p.maxTries {
			p.logger.Warn("poll exhausted retry budget", zap.Int("attempts", attempt))
			return nil, udderrors.ErrTimeout
		}
	}
}
