package throttle

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// NewRoundTripper wraps next so that outbound requests wait for a token
// before being sent. logFn is resolved per request so the caller's logger
// may be swapped after construction; a nil logger disables the
// exhaustion messages.
func NewRoundTripper(cfg Config, logFn func() *slog.Logger, next http.RoundTripper) (http.RoundTripper, error) {
	if cfg.RPS <= 0 || cfg.Burst <= 0 {
		return nil, fmt.Errorf("rps[%d] and burst[%d] %w", cfg.RPS, cfg.Burst, ErrMustNotBeZero)
	}
	if next == nil {
		next = http.DefaultTransport
	}
	if logFn == nil {
		logFn = func() *slog.Logger { return nil }
	}

	return &limiter{
		bucket: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		cfg:    cfg,
		next:   next,
		logFn:  logFn,
	}, nil
}

func (l *limiter) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	logger := l.logFn()
	if logger != nil && l.bucket.Tokens() < 1 {
		logger.Debug("throttle tokens exhausted", "rps", l.cfg.RPS, "burst", l.cfg.Burst, "method", r.Method, "path", r.URL.Path)
	}

	start := time.Now()
	if err := l.bucket.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}
	if waited := time.Since(start); logger != nil && waited > time.Millisecond {
		logger.Debug("throttle wait complete", "waited", waited.String(), "path", r.URL.Path)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
	}

	return l.next.RoundTrip(r)
}
