// Package retry runs HTTP calls against slow registries with a per-attempt
// timeout and exponential backoff, and classifies every failure into a
// fault kind.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"net/http"
	"slices"
	"time"

	"github.com/unkn0wn-root/guardcache/fault"
)

// Policy bounds a retry loop. MaxRetries counts retries, so a call makes at
// most MaxRetries+1 attempts.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     time.Duration

	// RetryableStatus lists statuses that are retried. Any status >= 500 is
	// retried as well unless NonRetryableStatus lists it.
	RetryableStatus []int
	// NonRetryableStatus wins over RetryableStatus.
	NonRetryableStatus []int

	// Sleep replaces the backoff wait, mainly for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 2,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   2 * time.Second,
		Jitter:     100 * time.Millisecond,
		RetryableStatus: []int{
			http.StatusRequestTimeout,
			http.StatusTooEarly,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
		NonRetryableStatus: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}
}

func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fault.Validation("retry: maxRetries must be >= 0, got %d", p.MaxRetries)
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 || p.Jitter < 0 {
		return fault.Validation("retry: delays must not be negative")
	}
	return nil
}

// ShouldRetryStatus reports whether a response with status is worth another attempt.
func (p Policy) ShouldRetryStatus(status int) bool {
	if slices.Contains(p.NonRetryableStatus, status) {
		return false
	}
	if slices.Contains(p.RetryableStatus, status) {
		return true
	}
	return status >= 500
}

// Backoff returns the wait before attempt n (n >= 1):
// min(BaseDelay*2^(n-1) + rand[0, Jitter), MaxDelay).
func (p Policy) Backoff(n int) time.Duration {
	if n < 1 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < n && d > 0; i++ {
		next := d * 2
		if next < d {
			// overflow
			if p.MaxDelay > 0 {
				return p.MaxDelay
			}
			return time.Duration(math.MaxInt64)
		}
		d = next
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.Jitter > 0 {
		j := rand.N(p.Jitter)
		if d > math.MaxInt64-j {
			d = math.MaxInt64
		} else {
			d += j
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-timer.C:
		return nil
	}
}
