// Package soap wraps legacy SOAP registries: connection creation bounded by
// a timeout, per-call timeouts, result validation and fault extraction.
//
// Drivers and connections are probed for optional capabilities, the way
// database/sql probes drivers:
//
//	Creator / CallbackCreator          - how a driver builds a connection
//	Invoker / CallbackInvoker          - how a connection runs an operation
//	EndpointSetter, HeaderSetter,
//	SecuritySetter                     - optional configuration hooks
//
// The context-based form is preferred when both are implemented. HTTPDriver
// is the built-in driver.
package soap

import (
	"context"
	"time"

	"github.com/unkn0wn-root/guardcache"
)

const defaultCreateTimeout = 10 * time.Second

// Driver builds connections. It must implement Creator or CallbackCreator.
type Driver any

// Creator builds a connection for wsdl and honours ctx.
type Creator interface {
	Create(ctx context.Context, wsdl string) (Connection, error)
}

// CallbackCreator starts building a connection and reports through done.
// The returned cancel aborts an in-flight creation; it may be nil.
type CallbackCreator interface {
	CreateWithCallback(wsdl string, done func(Connection, error)) (cancel func())
}

// Connection is a remote-procedure handle. It must implement Invoker or
// CallbackInvoker; everything else is optional.
type Connection any

type Invoker interface {
	Invoke(ctx context.Context, operation string, args any) ([]any, error)
}

type CallbackInvoker interface {
	InvokeWithCallback(operation string, args any, done func([]any, error)) (cancel func())
}

type EndpointSetter interface {
	SetEndpoint(url string) error
}

type HeaderSetter interface {
	AddHTTPHeader(key, value string)
}

type SecuritySetter interface {
	SetSecurity(Security) error
}

// PasswordType selects how a WS-Security UsernameToken carries the password.
type PasswordType string

const (
	PasswordText   PasswordType = "PasswordText"
	PasswordDigest PasswordType = "PasswordDigest"
)

// Security holds username-token credentials.
type Security struct {
	Username string
	Password string
	Type     PasswordType // "" => PasswordText
}

// Options describe how to reach one SOAP service.
type Options struct {
	WSDL     string
	Endpoint string // overrides the address found in the WSDL
	Headers  map[string]string
	Security *Security

	CreateTimeout time.Duration // 0 => 10s
	Driver        Driver        // nil => &HTTPDriver{}
	Logger        guardcache.Logger
}
