package soap

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/guardcache"
)

// Client memoizes one connection per service. Concurrent callers share a
// single in-flight creation; a failed creation is forgotten so the next
// call starts over. A ready connection is kept even when calls on it fail.
type Client struct {
	opts Options
	log  guardcache.Logger

	mu   sync.RWMutex
	conn Connection
	sf   singleflight.Group
}

func NewClient(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = guardcache.NopLogger{}
	}
	return &Client{opts: opts, log: log}
}

// Conn returns the memoized connection, creating it when needed. ctx only
// bounds this caller's wait; the shared creation runs under CreateTimeout.
func (c *Client) Conn(ctx context.Context) (Connection, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn != nil {
		return conn, nil
	}

	ch := c.sf.DoChan("conn", func() (any, error) {
		c.mu.RLock()
		existing := c.conn
		c.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		start := time.Now()
		conn, err := Connect(context.WithoutCancel(ctx), c.opts)
		if err != nil {
			c.log.Warn("soap client creation failed", guardcache.Fields{"wsdl": c.opts.WSDL, "err": err})
			return nil, err
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.log.Info("soap client ready", guardcache.Fields{"wsdl": c.opts.WSDL, "took": time.Since(start)})
		return conn, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val, nil
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

// Invoke calls operation on the client's connection.
func Invoke[T any](ctx context.Context, c *Client, operation string, args any, timeout time.Duration, v *Validator[T]) (T, error) {
	conn, err := c.Conn(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	out, err := Call(ctx, conn, operation, args, timeout, v)
	if err != nil {
		fields := guardcache.Fields{"operation": operation, "err": err}
		if msg, ok := ExtractFaultMessage(err); ok {
			fields["fault"] = msg
		}
		c.log.Warn("soap call failed", fields)
	}
	return out, err
}
