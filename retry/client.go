package retry

import (
	"context"
	"net/http"
	"time"

	"github.com/unkn0wn-root/guardcache"
	"github.com/unkn0wn-root/guardcache/fault"
)

const defaultTimeout = 10 * time.Second

// Client bundles a transport, default headers and a policy for one upstream.
type Client struct {
	Doer    Doer          // nil => http.DefaultClient
	Headers http.Header   // added to every request
	Timeout time.Duration // per attempt; 0 => 10s
	Policy  *Policy       // nil => DefaultPolicy()
	Logger  guardcache.Logger
}

// Send builds a request per attempt with newReq and runs it under c's policy.
func Send[T any](ctx context.Context, c *Client, name string, newReq func(ctx context.Context) (*http.Request, error), handle ResponseHandler[T]) (T, error) {
	op := func(ctx context.Context) (*http.Response, error) {
		req, err := newReq(ctx)
		if err != nil {
			return nil, fault.Validation("%s: build request: %v", name, err)
		}
		for k, vs := range c.Headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		return FetchWithTimeout(ctx, c.doer(), req, c.timeout())
	}
	return WithRetry(ctx, op, handle, Call{Name: name, Logger: c.Logger}, c.policy())
}

// GetJSON fetches url and decodes the JSON body into T.
func GetJSON[T any](ctx context.Context, c *Client, url string) (T, error) {
	newReq := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}
	return Send(ctx, c, "GET "+url, newReq, DecodeJSON[T]("GET "+url))
}

func (c *Client) doer() Doer {
	if c.Doer == nil {
		return http.DefaultClient
	}
	return c.Doer
}

func (c *Client) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

func (c *Client) policy() Policy {
	if c.Policy == nil {
		return DefaultPolicy()
	}
	return *c.Policy
}
