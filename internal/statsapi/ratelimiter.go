package statsapi

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter combines a local token bucket with backoff derived from the
// Retry-After header the stats API sends when it starts throttling.
// It is safe for concurrent use.
type RateLimiter struct {
	mu sync.Mutex

	// local is the token-bucket limiter used for outbound request pacing.
	local *rate.Limiter

	// backoffUntil is the time until which no request should be sent.
	backoffUntil time.Time

	logger *logrus.Entry
}

// NewRateLimiter creates a RateLimiter with the given requests-per-second and burst.
// A zero or negative rps disables local rate limiting (unlimited).
func NewRateLimiter(rps float64, burst int, logger *logrus.Entry) *RateLimiter {
	var limiter *rate.Limiter
	if rps <= 0 {
		limiter = rate.NewLimiter(rate.Inf, 0)
	} else {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &RateLimiter{
		local:  limiter,
		logger: logger,
	}
}

// Wait blocks until the rate limiter allows one more request, honouring
// both the local token bucket and any header-derived backoff. It returns
// ctx.Err() if the context expires while waiting.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := rl.WaitBackoff(ctx); err != nil {
		return err
	}
	return rl.local.Wait(ctx)
}

// WaitBackoff blocks until the server-imposed backoff window has passed.
// It does not consume a token from the local bucket.
func (rl *RateLimiter) WaitBackoff(ctx context.Context) error {
	rl.mu.Lock()
	backoff := rl.backoffUntil
	rl.mu.Unlock()

	if backoff.IsZero() || !time.Now().Before(backoff) {
		return ctx.Err()
	}

	delay := time.Until(backoff)
	rl.logger.WithField("delay", delay.Round(time.Millisecond)).
		Debug("rate limiter: waiting for server backoff")
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateFromHeaders extends the backoff window when the response carries a
// Retry-After header, given either as seconds or as an HTTP date.
func (rl *RateLimiter) UpdateFromHeaders(headers http.Header) {
	ra := headers.Get("Retry-After")
	if ra == "" {
		return
	}

	var until time.Time
	if sec, err := strconv.Atoi(ra); err == nil {
		if sec <= 0 {
			return
		}
		until = time.Now().Add(time.Duration(sec) * time.Second)
	} else if t, err := http.ParseTime(ra); err == nil {
		until = t
	} else {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if until.After(rl.backoffUntil) {
		rl.backoffUntil = until
		rl.logger.WithField("retry_after", ra).Warn("rate limiter: throttled by server, backing off")
	}
}

// BackoffUntil returns the end of the current server-imposed backoff window.
func (rl *RateLimiter) BackoffUntil() time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.backoffUntil
}
