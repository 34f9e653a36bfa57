package scraper

import (
	"context"
	"time"

	"github.com/aluiziolira/go-scrape-gpus/config"
)

type retryPolicy struct {
	maxRetries int
	base       time.Duration
	max        time.Duration
}

func newRetryPolicy(cfg *config.Config) *retryPolicy {
	return &retryPolicy{
		maxRetries: cfg.MaxRetries,
		base:       cfg.RetryBackoff,
		max:        cfg.RetryBackoffMax,
	}
}

// allow reports whether retry number attempt (1-based) may be issued for err.
func (rp *retryPolicy) allow(attempt int, err error) bool {
	if rp.maxRetries == 0 || attempt > rp.maxRetries {
		return false
	}
	return retryable(err)
}

func (rp *retryPolicy) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rp.base
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := rp.max; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
