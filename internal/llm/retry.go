package llm

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultRateLimitWait is how long RetryOnRateLimit waits before its single
// retry.
const DefaultRateLimitWait = 60 * time.Second

type rateLimitRetry struct {
	next   Generator
	wait   time.Duration
	logger *zap.Logger
	sleep  func(context.Context, time.Duration) error
}

// RetryOnRateLimit wraps g so that a rate-limited call is retried exactly
// once after wait. Every other error is returned unchanged, as is the error
// of the retry.
func RetryOnRateLimit(g Generator, wait time.Duration, logger *zap.Logger) Generator {
	if wait <= 0 {
		wait = DefaultRateLimitWait
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &rateLimitRetry{next: g, wait: wait, logger: logger, sleep: sleepCtx}
}

func (r *rateLimitRetry) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := r.next.Generate(ctx, prompt)
	if err == nil || !IsRateLimited(err) {
		return out, err
	}
	r.logger.Warn("rate limited, retrying once", zap.Duration("wait", r.wait), zap.Error(err))
	if serr := r.sleep(ctx, r.wait); serr != nil {
		return "", serr
	}
	return r.next.Generate(ctx, prompt)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
