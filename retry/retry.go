package retry

import (
	"context"
	"io"
	"net/http"

	"github.com/unkn0wn-root/guardcache"
	"github.com/unkn0wn-root/guardcache/fault"
)

// Operation performs one attempt. It is called again for every retry, so it
// must build a fresh request each time.
type Operation func(ctx context.Context) (*http.Response, error)

// ResponseHandler maps the final response to a result or a classified error.
// WithRetry closes the body after it returns.
type ResponseHandler[T any] func(*http.Response) (T, error)

// Call names an operation for logs and error messages.
type Call struct {
	Name   string
	Logger guardcache.Logger
}

// WithRetry runs op until it yields a response worth handling or the policy
// is spent.
//
// Classified errors are returned as-is once they may not (or can no longer)
// be retried. A retryable status on the last attempt is still passed to
// handle, so the handler produces the final error. Unclassified errors that
// outlast the budget are wrapped into fault.KindUpstreamFailure.
func WithRetry[T any](ctx context.Context, op Operation, handle ResponseHandler[T], call Call, p Policy) (T, error) {
	var zero T
	if err := p.Validate(); err != nil {
		return zero, err
	}
	log := call.Logger
	if log == nil {
		log = guardcache.NopLogger{}
	}

	attempts := p.MaxRetries + 1
	var lastErr error
	for n := 0; n < attempts; n++ {
		if n > 0 {
			if err := p.sleep(ctx, p.Backoff(n)); err != nil {
				return zero, err
			}
		}
		final := n == attempts-1

		resp, err := op(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return zero, err
			}
			if fault.Classified(err) && (!fault.Retryable(err) || final) {
				return zero, err
			}
			lastErr = err
			log.Warn("attempt failed", guardcache.Fields{
				"call": call.Name, "attempt": n + 1, "of": attempts, "err": err,
			})
			continue
		}

		if !final && p.ShouldRetryStatus(resp.StatusCode) {
			drain(resp.Body)
			lastErr = fault.Upstream(resp.StatusCode, nil, "%s: status %d", call.Name, resp.StatusCode)
			log.Warn("retryable status", guardcache.Fields{
				"call": call.Name, "attempt": n + 1, "of": attempts, "status": resp.StatusCode,
			})
			continue
		}

		out, herr := handle(resp)
		_ = resp.Body.Close()
		return out, herr
	}

	log.Error("retries exhausted", guardcache.Fields{"call": call.Name, "attempts": attempts, "err": lastErr})
	return zero, fault.Upstream(fault.StatusOf(lastErr), lastErr,
		"%s: upstream failed after %d attempts: %v", call.Name, attempts, lastErr)
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4<<10))
	_ = body.Close()
}
