package session

import (
	"context"
	"errors"
	"time"
)

// errNotReady marks a soft probe failure: the candidate may become usable
// later (backend still loading, spawn point momentarily occupied), so the
// caller keeps trying instead of aborting.
var errNotReady = errors.New("candidate not ready")

// tryCandidates walks an ordered candidate list, probing each in turn, and
// keeps cycling through the list until a probe succeeds or maxAttempts
// probes have been spent in total. backoff is slept between full passes.
// Both the endpoint-retry and the spawn-point fallback run through here;
// they differ only in candidate type and probe.
//
// Returns the probe's result, the number of attempts spent, and the last
// probe error when the budget is exhausted.
func tryCandidates[C, R any](
	ctx context.Context,
	candidates []C,
	maxAttempts int,
	backoff time.Duration,
	probe func(C) (R, error),
) (R, int, error) {
	var zero R
	var lastErr error

	attempts := 0
	for attempts < maxAttempts {
		for _, c := range candidates {
			if err := ctx.Err(); err != nil {
				return zero, attempts, err
			}

			attempts++
			r, err := probe(c)
			if err == nil {
				return r, attempts, nil
			}
			lastErr = err

			if attempts >= maxAttempts {
				return zero, attempts, lastErr
			}
		}

		if backoff > 0 {
			select {
			case <-ctx.Done():
				return zero, attempts, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	if lastErr == nil {
		lastErr = errNotReady
	}
	return zero, attempts, lastErr
}
