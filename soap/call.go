package soap

import (
	"context"
	"encoding/xml"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/unkn0wn-root/guardcache/fault"
)

var errCallBudget = errors.New("soap: call budget elapsed")

// RawXML is an undecoded response element.
type RawXML []byte

// Validator checks the first result element before it is handed out.
// Guard is a cheap shape check; Parse converts and validates. Either may be nil.
type Validator[T any] struct {
	Guard func(any) bool
	Parse func(any) (T, error)
}

// Call runs operation on conn within timeout and returns the first result
// element as T.
//
// Without a Parse function the element is type-asserted to T, or decoded
// with encoding/xml when it is RawXML/[]byte. An empty result set is an
// upstream failure, never a zero T.
func Call[T any](ctx context.Context, conn Connection, operation string, args any, timeout time.Duration, v *Validator[T]) (T, error) {
	var zero T
	if strings.TrimSpace(operation) == "" {
		return zero, fault.Validation("soap: operation name is required")
	}
	if timeout <= 0 {
		return zero, fault.Validation("soap: %s: timeout must be positive, got %s", operation, timeout)
	}

	cctx, cancel := context.WithTimeoutCause(ctx, timeout, errCallBudget)
	defer cancel()

	results, err := invoke(cctx, conn, operation, args)
	if err != nil {
		return zero, classifyCall(ctx, cctx, operation, timeout, err)
	}
	if len(results) == 0 {
		return zero, fault.Upstream(0, nil, "soap: %s returned an empty result", operation)
	}
	first := results[0]

	if v != nil && v.Guard != nil && !v.Guard(first) {
		return zero, fault.Upstream(0, nil, "soap: %s: unexpected result shape %T", operation, first)
	}
	if v != nil && v.Parse != nil {
		out, err := v.Parse(first)
		if err != nil {
			return zero, fault.Upstream(0, err, "soap: %s: invalid result: %v", operation, err)
		}
		return out, nil
	}
	return convert[T](operation, first)
}

// invoke normalizes both calling conventions into one blocking call that
// returns as soon as ctx ends.
func invoke(ctx context.Context, conn Connection, operation string, args any) ([]any, error) {
	type result struct {
		out []any
		err error
	}
	done := make(chan result, 1)
	var abort func()

	switch c := conn.(type) {
	case Invoker:
		go func() {
			out, err := c.Invoke(ctx, operation, args)
			done <- result{out, err}
		}()
	case CallbackInvoker:
		abort = c.InvokeWithCallback(operation, args, func(out []any, err error) {
			select {
			case done <- result{out, err}:
			default:
			}
		})
	default:
		return nil, fault.Upstream(0, nil, "soap: connection %T implements neither Invoke nor InvokeWithCallback", conn)
	}

	select {
	case r := <-done:
		return r.out, r.err
	case <-ctx.Done():
		if abort != nil {
			abort()
		}
		return nil, context.Cause(ctx)
	}
}

func classifyCall(parent, cctx context.Context, operation string, timeout time.Duration, err error) error {
	if parent.Err() != nil {
		return context.Cause(parent)
	}
	if errors.Is(context.Cause(cctx), errCallBudget) || isSocketTimeout(err) {
		return fault.Timeout(timeout, err, "soap: %s exceeded %s", operation, timeout)
	}
	if fault.Classified(err) {
		return err
	}

	msg := err.Error()
	if fm, ok := ExtractFaultMessage(err); ok {
		msg = fm
	}
	status := faultStatus(err)
	if isClientFault(err) {
		return &fault.Error{Kind: fault.KindClientRejection, Message: "soap: " + operation + ": " + msg, Status: status, Cause: err}
	}
	return fault.Upstream(status, err, "soap: %s failed: %s", operation, msg)
}

func isSocketTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, context.DeadlineExceeded)
}

func convert[T any](operation string, v any) (T, error) {
	var zero T
	if out, ok := v.(T); ok {
		return out, nil
	}
	var raw []byte
	switch b := v.(type) {
	case RawXML:
		raw = b
	case []byte:
		raw = b
	default:
		return zero, fault.Upstream(0, nil, "soap: %s: cannot use %T as %T", operation, v, zero)
	}
	var out T
	if err := xml.Unmarshal(raw, &out); err != nil {
		return zero, fault.Upstream(0, err, "soap: %s: malformed result: %v", operation, err)
	}
	return out, nil
}
