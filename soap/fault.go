package soap

import (
	"errors"
	"fmt"
	"strings"
)

// Fault is a SOAP fault. SOAP 1.2 Code/Reason are folded into Code/String.
type Fault struct {
	Code   string
	String string
	Actor  string
	Detail string
}

func (f *Fault) Error() string {
	if f.Code == "" {
		return "soap fault: " + f.String
	}
	return fmt.Sprintf("soap fault %s: %s", f.Code, f.String)
}

// EnvelopeBody mirrors the SOAP Body of a fault response.
type EnvelopeBody struct {
	Fault *Fault
}

// EnvelopeError is a non-2xx response whose envelope carried a fault.
type EnvelopeError struct {
	Status int
	Body   EnvelopeBody
}

func (e *EnvelopeError) Error() string {
	if e.Body.Fault == nil {
		return fmt.Sprintf("soap: status %d", e.Status)
	}
	return fmt.Sprintf("soap: status %d: %v", e.Status, e.Body.Fault)
}

func (e *EnvelopeError) Unwrap() error {
	if e.Body.Fault == nil {
		return nil
	}
	return e.Body.Fault
}

// faultStringer lets third-party drivers expose their own fault types.
type faultStringer interface {
	FaultString() string
}

// ExtractFaultMessage returns the first human-readable fault string found in
// err's chain: a *Fault, a fault nested in an *EnvelopeError, or any error
// with a FaultString method.
func ExtractFaultMessage(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var f *Fault
	if errors.As(err, &f) && strings.TrimSpace(f.String) != "" {
		return strings.TrimSpace(f.String), true
	}
	var env *EnvelopeError
	if errors.As(err, &env) && env.Body.Fault != nil && strings.TrimSpace(env.Body.Fault.String) != "" {
		return strings.TrimSpace(env.Body.Fault.String), true
	}
	var fs faultStringer
	if errors.As(err, &fs) {
		if s := strings.TrimSpace(fs.FaultString()); s != "" {
			return s, true
		}
	}
	return "", false
}

// isClientFault reports a fault the service blames on the request
// ("Client" in SOAP 1.1, "Sender" in SOAP 1.2).
func isClientFault(err error) bool {
	var f *Fault
	if !errors.As(err, &f) {
		return false
	}
	code := f.Code
	if i := strings.LastIndexByte(code, ':'); i >= 0 {
		code = code[i+1:]
	}
	return strings.HasPrefix(code, "Client") || code == "Sender"
}

func faultStatus(err error) int {
	var env *EnvelopeError
	if errors.As(err, &env) {
		return env.Status
	}
	return 0
}
