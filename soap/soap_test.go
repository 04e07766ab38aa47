package soap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unkn0wn-root/guardcache/fault"
)

// promiseConn implements the context-based capabilities.
type promiseConn struct {
	mu       sync.Mutex
	endpoint string
	headers  map[string]string
	security *Security
	invoke   func(ctx context.Context, op string, args any) ([]any, error)
}

func (c *promiseConn) Invoke(ctx context.Context, op string, args any) ([]any, error) {
	return c.invoke(ctx, op, args)
}
func (c *promiseConn) SetEndpoint(u string) error { c.endpoint = u; return nil }
func (c *promiseConn) AddHTTPHeader(k, v string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.headers == nil {
		c.headers = map[string]string{}
	}
	c.headers[k] = v
}
func (c *promiseConn) SetSecurity(s Security) error { c.security = &s; return nil }

// callbackConn only offers the callback calling convention.
type callbackConn struct {
	result    []any
	err       error
	delay     time.Duration
	cancelled atomic.Bool
}

func (c *callbackConn) InvokeWithCallback(_ string, _ any, done func([]any, error)) func() {
	t := time.AfterFunc(c.delay, func() { done(c.result, c.err) })
	return func() {
		c.cancelled.Store(true)
		t.Stop()
	}
}

// bareConn has no capabilities at all.
type bareConn struct{}

type creatorFunc func(ctx context.Context, wsdl string) (Connection, error)

func (f creatorFunc) Create(ctx context.Context, wsdl string) (Connection, error) { return f(ctx, wsdl) }

type callbackDriver struct {
	conn      Connection
	delay     time.Duration
	cancelled atomic.Bool
}

func (d *callbackDriver) CreateWithCallback(_ string, done func(Connection, error)) func() {
	t := time.AfterFunc(d.delay, func() { done(d.conn, nil) })
	return func() {
		d.cancelled.Store(true)
		t.Stop()
	}
}

func driverFor(conn Connection) Driver {
	return creatorFunc(func(context.Context, string) (Connection, error) { return conn, nil })
}

func TestConnectRequiresWSDL(t *testing.T) {
	_, err := Connect(context.Background(), Options{WSDL: "  "})
	if !fault.Is(err, fault.KindValidation) {
		t.Fatalf("err = %v", err)
	}
}

func TestConnectAppliesOptions(t *testing.T) {
	conn := &promiseConn{}
	got, err := Connect(context.Background(), Options{
		WSDL:     "http://registry/ws?wsdl",
		Endpoint: "https://registry/ws",
		Headers:  map[string]string{"X-Client": "guardcache"},
		Security: &Security{Username: "u", Password: "p", Type: PasswordDigest},
		Driver:   driverFor(conn),
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got != conn || conn.endpoint != "https://registry/ws" || conn.headers["X-Client"] != "guardcache" {
		t.Fatalf("options not applied: %+v", conn)
	}
	if conn.security == nil || conn.security.Type != PasswordDigest {
		t.Fatalf("security not applied: %+v", conn.security)
	}
}

func TestConnectCallbackDriver(t *testing.T) {
	d := &callbackDriver{conn: &callbackConn{}, delay: 5 * time.Millisecond}
	conn, err := Connect(context.Background(), Options{WSDL: "x", Driver: d})
	if err != nil || conn == nil {
		t.Fatalf("Connect = %v, %v", conn, err)
	}
}

func TestConnectTimeoutAbortsCreation(t *testing.T) {
	d := &callbackDriver{conn: &callbackConn{}, delay: time.Hour}
	_, err := Connect(context.Background(), Options{WSDL: "x", Driver: d, CreateTimeout: 20 * time.Millisecond})
	if !fault.Is(err, fault.KindTimeout) {
		t.Fatalf("err = %v, want timeout", err)
	}
	if !d.cancelled.Load() {
		t.Fatal("pending creation was not aborted")
	}
}

// closingConn records whether a dropped connection was released.
type closingConn struct {
	promiseConn
	closed atomic.Bool
}

func (c *closingConn) Close() error {
	c.closed.Store(true)
	return nil
}

func waitClosed(t *testing.T, c *closingConn) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !c.closed.Load() {
		if time.Now().After(deadline) {
			t.Fatal("late connection was not closed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConnectTimeoutBoundsBlockingCreator(t *testing.T) {
	conn := &closingConn{}
	release := make(chan struct{})
	d := creatorFunc(func(context.Context, string) (Connection, error) {
		<-release // ignores ctx
		return conn, nil
	})

	start := time.Now()
	_, err := Connect(context.Background(), Options{WSDL: "x", Driver: d, CreateTimeout: 20 * time.Millisecond})
	if !fault.Is(err, fault.KindTimeout) {
		t.Fatalf("err = %v, want timeout", err)
	}
	if el := time.Since(start); el > time.Second {
		t.Fatalf("Connect returned after %v", el)
	}
	close(release)
	waitClosed(t, conn)
}

// lateDriver reports its connection after a delay and cannot be aborted.
type lateDriver struct {
	conn  Connection
	delay time.Duration
}

func (d *lateDriver) CreateWithCallback(_ string, done func(Connection, error)) func() {
	time.AfterFunc(d.delay, func() { done(d.conn, nil) })
	return nil
}

func TestConnectClosesLateCallbackConnection(t *testing.T) {
	conn := &closingConn{}
	d := &lateDriver{conn: conn, delay: 50 * time.Millisecond}
	_, err := Connect(context.Background(), Options{WSDL: "x", Driver: d, CreateTimeout: 10 * time.Millisecond})
	if !fault.Is(err, fault.KindTimeout) {
		t.Fatalf("err = %v, want timeout", err)
	}
	waitClosed(t, conn)
}

func TestConnectMissingCapabilities(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"driver", Options{WSDL: "x", Driver: struct{}{}}},
		{"invoker", Options{WSDL: "x", Driver: driverFor(bareConn{})}},
		{"endpoint", Options{WSDL: "x", Driver: driverFor(&callbackConn{}), Endpoint: "http://y"}},
		{"headers", Options{WSDL: "x", Driver: driverFor(&callbackConn{}), Headers: map[string]string{"a": "b"}}},
		{"security", Options{WSDL: "x", Driver: driverFor(&callbackConn{}), Security: &Security{Username: "u"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Connect(context.Background(), tt.opts)
			if !fault.Is(err, fault.KindUpstreamFailure) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestConnectWrapsDriverErrors(t *testing.T) {
	d := creatorFunc(func(context.Context, string) (Connection, error) { return nil, errors.New("dns failure") })
	_, err := Connect(context.Background(), Options{WSDL: "x", Driver: d})
	if !fault.Is(err, fault.KindUpstreamFailure) || !containsText(err, "dns failure") {
		t.Fatalf("err = %v", err)
	}
}

type vatResult struct {
	Valid bool
	Name  string
}

func TestCallEmptyResultIsUpstreamFailure(t *testing.T) {
	conn := &promiseConn{invoke: func(context.Context, string, any) ([]any, error) { return []any{}, nil }}
	_, err := Call[vatResult](context.Background(), conn, "checkVat", nil, time.Second, nil)
	if !fault.Is(err, fault.KindUpstreamFailure) {
		t.Fatalf("err = %v", err)
	}
}

func TestCallTimeout(t *testing.T) {
	observed := make(chan struct{})
	conn := &promiseConn{invoke: func(ctx context.Context, _ string, _ any) ([]any, error) {
		<-ctx.Done()
		close(observed)
		return nil, ctx.Err()
	}}
	_, err := Call[vatResult](context.Background(), conn, "checkVat", nil, 20*time.Millisecond, nil)
	if !fault.Is(err, fault.KindTimeout) {
		t.Fatalf("err = %v", err)
	}
	select {
	case <-observed:
	case <-time.After(time.Second):
		t.Fatal("invoker never saw the cancellation")
	}

	cb := &callbackConn{delay: time.Hour}
	if _, err := Call[vatResult](context.Background(), cb, "checkVat", nil, 20*time.Millisecond, nil); !fault.Is(err, fault.KindTimeout) {
		t.Fatalf("callback err = %v", err)
	}
	if !cb.cancelled.Load() {
		t.Fatal("callback call not cancelled")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestCallSocketTimeoutIsTimeout(t *testing.T) {
	conn := &promiseConn{invoke: func(context.Context, string, any) ([]any, error) {
		return nil, &net.OpError{Op: "read", Err: timeoutErr{}}
	}}
	_, err := Call[vatResult](context.Background(), conn, "checkVat", nil, time.Second, nil)
	if !fault.Is(err, fault.KindTimeout) {
		t.Fatalf("err = %v", err)
	}
}

func TestCallCallerCancelPassesThrough(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	conn := &promiseConn{invoke: func(ctx context.Context, _ string, _ any) ([]any, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	_, err := Call[vatResult](ctx, conn, "checkVat", nil, time.Second, nil)
	if !errors.Is(err, context.Canceled) || fault.Classified(err) {
		t.Fatalf("err = %v", err)
	}
}

func TestCallFaultClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind fault.Kind
		msg  string
	}{
		{"server fault", &EnvelopeError{Status: 500, Body: EnvelopeBody{Fault: &Fault{Code: "soap:Server", String: "MS_UNAVAILABLE"}}}, fault.KindUpstreamFailure, "MS_UNAVAILABLE"},
		{"client fault", &Fault{Code: "soap:Client", String: "INVALID_INPUT"}, fault.KindClientRejection, "INVALID_INPUT"},
		{"soap12 sender", &Fault{Code: "env:Sender", String: "bad"}, fault.KindClientRejection, "bad"},
		{"plain", errors.New("broken pipe"), fault.KindUpstreamFailure, "broken pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &promiseConn{invoke: func(context.Context, string, any) ([]any, error) { return nil, tt.err }}
			_, err := Call[vatResult](context.Background(), conn, "checkVat", nil, time.Second, nil)
			if fault.KindOf(err) != tt.kind {
				t.Fatalf("kind = %q (%v)", fault.KindOf(err), err)
			}
			if !containsText(err, tt.msg) {
				t.Fatalf("error %q lacks %q", err, tt.msg)
			}
		})
	}
}

func TestCallValidator(t *testing.T) {
	conn := &promiseConn{invoke: func(context.Context, string, any) ([]any, error) {
		return []any{map[string]any{"valid": true, "name": ""}}, nil
	}}
	v := &Validator[vatResult]{
		Guard: func(x any) bool { _, ok := x.(map[string]any); return ok },
		Parse: func(x any) (vatResult, error) {
			m := x.(map[string]any)
			name, _ := m["name"].(string)
			if name == "" {
				return vatResult{}, fmt.Errorf("name missing")
			}
			return vatResult{Valid: m["valid"] == true, Name: name}, nil
		},
	}
	_, err := Call(context.Background(), conn, "checkVat", nil, time.Second, v)
	if !fault.Is(err, fault.KindUpstreamFailure) || !containsText(err, "name missing") {
		t.Fatalf("err = %v", err)
	}

	v.Guard = func(any) bool { return false }
	if _, err := Call(context.Background(), conn, "checkVat", nil, time.Second, v); !fault.Is(err, fault.KindUpstreamFailure) {
		t.Fatalf("guard err = %v", err)
	}
}

func TestCallDecodesRawXML(t *testing.T) {
	conn := &callbackConn{result: []any{RawXML(`<checkVatResponse><Valid>true</Valid><Name>ACME</Name></checkVatResponse>`)}}
	got, err := Call[vatResult](context.Background(), conn, "checkVat", nil, time.Second, nil)
	if err != nil || !got.Valid || got.Name != "ACME" {
		t.Fatalf("got %+v, %v", got, err)
	}

	conn.result = []any{42}
	if _, err := Call[vatResult](context.Background(), conn, "checkVat", nil, time.Second, nil); !fault.Is(err, fault.KindUpstreamFailure) {
		t.Fatalf("type mismatch err = %v", err)
	}
}

func TestCallValidatesInput(t *testing.T) {
	conn := &callbackConn{}
	if _, err := Call[int](context.Background(), conn, "", nil, time.Second, nil); !fault.Is(err, fault.KindValidation) {
		t.Fatalf("blank op err = %v", err)
	}
	if _, err := Call[int](context.Background(), conn, "op", nil, 0, nil); !fault.Is(err, fault.KindValidation) {
		t.Fatalf("zero timeout err = %v", err)
	}
}

func containsText(err error, s string) bool {
	return err != nil && strings.Contains(err.Error(), s)
}
