package soap

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/unkn0wn-root/guardcache/fault"
)

var errCreateBudget = errors.New("soap: create budget elapsed")

// Connect creates and configures a connection. Creation is bounded by
// opts.CreateTimeout independently of any later call timeouts.
func Connect(ctx context.Context, opts Options) (Connection, error) {
	wsdl := strings.TrimSpace(opts.WSDL)
	if wsdl == "" {
		return nil, fault.Validation("soap: wsdl url is required")
	}
	driver := opts.Driver
	if driver == nil {
		driver = &HTTPDriver{}
	}
	timeout := opts.CreateTimeout
	if timeout <= 0 {
		timeout = defaultCreateTimeout
	}

	cctx, cancel := context.WithTimeoutCause(ctx, timeout, errCreateBudget)
	defer cancel()

	conn, err := create(cctx, driver, wsdl)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, context.Cause(ctx)
		case errors.Is(context.Cause(cctx), errCreateBudget):
			return nil, fault.Timeout(timeout, err, "soap: creating client for %s exceeded %s", wsdl, timeout)
		case fault.Classified(err):
			return nil, err
		default:
			return nil, fault.Upstream(0, err, "soap: create client for %s: %v", wsdl, err)
		}
	}
	if conn == nil {
		return nil, fault.Upstream(0, nil, "soap: driver %T returned no connection", driver)
	}
	if err := configure(conn, opts); err != nil {
		return nil, err
	}
	if !canInvoke(conn) {
		return nil, fault.Upstream(0, nil, "soap: connection %T implements neither Invoke nor InvokeWithCallback", conn)
	}
	return conn, nil
}

type created struct {
	conn Connection
	err  error
}

// create bounds creation by ctx even when the driver ignores it. A
// connection reported after the budget is closed if it can be.
func create(ctx context.Context, driver Driver, wsdl string) (Connection, error) {
	switch d := driver.(type) {
	case Creator:
		done := make(chan created, 1)
		go func() {
			conn, err := d.Create(ctx, wsdl)
			done <- created{conn, err}
		}()
		select {
		case r := <-done:
			return r.conn, r.err
		case <-ctx.Done():
			go func() { discard((<-done).conn) }()
			return nil, context.Cause(ctx)
		}
	case CallbackCreator:
		var (
			mu        sync.Mutex
			reported  bool
			abandoned bool
		)
		done := make(chan created, 1)
		abort := d.CreateWithCallback(wsdl, func(c Connection, err error) {
			mu.Lock()
			defer mu.Unlock()
			if reported || abandoned {
				discard(c)
				return
			}
			reported = true
			done <- created{c, err}
		})
		select {
		case r := <-done:
			return r.conn, r.err
		case <-ctx.Done():
			mu.Lock()
			abandoned = true
			select {
			case r := <-done:
				discard(r.conn)
			default:
			}
			mu.Unlock()
			if abort != nil {
				abort()
			}
			return nil, context.Cause(ctx)
		}
	default:
		return nil, fault.Upstream(0, nil, "soap: driver %T implements neither Create nor CreateWithCallback", driver)
	}
}

func discard(conn Connection) {
	if c, ok := conn.(io.Closer); ok {
		_ = c.Close()
	}
}

// configure applies the optional settings. Asking for a setting the
// connection cannot take is an error; omitted settings need no capability.
func configure(conn Connection, opts Options) error {
	if ep := strings.TrimSpace(opts.Endpoint); ep != "" {
		s, ok := conn.(EndpointSetter)
		if !ok {
			return fault.Upstream(0, nil, "soap: connection %T cannot override its endpoint (no SetEndpoint)", conn)
		}
		if err := s.SetEndpoint(ep); err != nil {
			return fault.Validation("soap: endpoint %q: %v", ep, err)
		}
	}
	if len(opts.Headers) > 0 {
		s, ok := conn.(HeaderSetter)
		if !ok {
			return fault.Upstream(0, nil, "soap: connection %T cannot take HTTP headers (no AddHTTPHeader)", conn)
		}
		keys := make([]string, 0, len(opts.Headers))
		for k := range opts.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			s.AddHTTPHeader(k, opts.Headers[k])
		}
	}
	if opts.Security != nil {
		s, ok := conn.(SecuritySetter)
		if !ok {
			return fault.Upstream(0, nil, "soap: connection %T cannot take credentials (no SetSecurity)", conn)
		}
		if err := s.SetSecurity(*opts.Security); err != nil {
			return fault.Validation("soap: security: %v", err)
		}
	}
	return nil
}

func canInvoke(conn Connection) bool {
	switch conn.(type) {
	case Invoker, CallbackInvoker:
		return true
	default:
		return false
	}
}
