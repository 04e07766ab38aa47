package retry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/unkn0wn-root/guardcache/fault"
)

// Doer sends one request. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// errBudget is the cancellation cause of FetchWithTimeout's own timer. It
// tells the internal timeout apart from a cancellation by the caller.
var errBudget = errors.New("retry: request budget elapsed")

// FetchWithTimeout sends req bound to ctx and its own timeout. When the timer
// fires first the request is aborted and a fault.KindTimeout error returned.
// When ctx is what ended the call, its cause is returned unchanged.
//
// The response body keeps the request context alive; closing it releases it.
func FetchWithTimeout(ctx context.Context, d Doer, req *http.Request, timeout time.Duration) (*http.Response, error) {
	if timeout <= 0 {
		return nil, fault.Validation("retry: timeout must be positive, got %s", timeout)
	}
	reqCtx, cancel := context.WithTimeoutCause(ctx, timeout, errBudget)

	type result struct {
		resp *http.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := d.Do(req.WithContext(reqCtx))
		done <- result{resp, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			cancel()
			return nil, classify(ctx, reqCtx, timeout, r.err)
		}
		r.resp.Body = &cancelOnClose{ReadCloser: r.resp.Body, cancel: cancel}
		return r.resp, nil
	case <-reqCtx.Done():
		cancel()
		// a Doer that ignores its context may still answer; release that response
		go func() {
			if r := <-done; r.resp != nil {
				_ = r.resp.Body.Close()
			}
		}()
		return nil, classify(ctx, reqCtx, timeout, context.Cause(reqCtx))
	}
}

func classify(parent, reqCtx context.Context, timeout time.Duration, err error) error {
	if parent.Err() != nil {
		return context.Cause(parent)
	}
	if errors.Is(context.Cause(reqCtx), errBudget) {
		return fault.Timeout(timeout, err, "request exceeded its %s budget", timeout)
	}
	return err
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
