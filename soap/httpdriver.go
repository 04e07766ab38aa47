package soap

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/guardcache/retry"
)

const (
	nsSOAP11     = "http://schemas.xmlsoap.org/soap/envelope/"
	maxWSDLSize  = 8 << 20
	maxReplySize = 16 << 20
)

// HTTPDriver speaks SOAP 1.1 over HTTP. It fetches the WSDL once per
// connection to learn the endpoint, target namespace and SOAP actions.
type HTTPDriver struct {
	Client retry.Doer // nil => http.DefaultClient
}

var _ Creator = (*HTTPDriver)(nil)

func (d *HTTPDriver) Create(ctx context.Context, wsdl string) (Connection, error) {
	doer := d.Client
	if doer == nil {
		doer = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wsdl, nil)
	if err != nil {
		return nil, err
	}
	resp, err := doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := retry.AssertResponseOK(resp, "soap: fetch wsdl"); err != nil {
		return nil, err
	}
	svc, err := parseWSDL(io.LimitReader(resp.Body, maxWSDLSize))
	if err != nil {
		return nil, fmt.Errorf("parse wsdl %s: %w", wsdl, err)
	}
	return &HTTPConn{
		doer:      doer,
		endpoint:  svc.Endpoint,
		namespace: svc.Namespace,
		actions:   svc.Actions,
		headers:   make(http.Header),
		now:       time.Now,
	}, nil
}

// HTTPConn is a connection created by HTTPDriver.
type HTTPConn struct {
	doer      retry.Doer
	namespace string
	actions   map[string]string
	now       func() time.Time

	mu       sync.RWMutex
	endpoint string
	headers  http.Header
	security *Security
}

var (
	_ Invoker        = (*HTTPConn)(nil)
	_ EndpointSetter = (*HTTPConn)(nil)
	_ HeaderSetter   = (*HTTPConn)(nil)
	_ SecuritySetter = (*HTTPConn)(nil)
)

func (c *HTTPConn) SetEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	c.mu.Lock()
	c.endpoint = raw
	c.mu.Unlock()
	return nil
}

func (c *HTTPConn) AddHTTPHeader(key, value string) {
	c.mu.Lock()
	c.headers.Add(key, value)
	c.mu.Unlock()
}

func (c *HTTPConn) SetSecurity(s Security) error {
	if err := s.validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.security = &s
	c.mu.Unlock()
	return nil
}

// Endpoint returns the address requests are posted to.
func (c *HTTPConn) Endpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoint
}

// Invoke posts operation and returns the first element of the response Body
// as RawXML, or no elements when the Body is empty. A fault in the response
// is returned as *EnvelopeError.
//
// args may be nil, []byte/RawXML (the complete operation element),
// map[string]string (child elements of the operation) or any value
// encoding/xml can marshal.
func (c *HTTPConn) Invoke(ctx context.Context, operation string, args any) ([]any, error) {
	c.mu.RLock()
	endpoint := c.endpoint
	headers := c.headers.Clone()
	sec := c.security
	c.mu.RUnlock()

	body, err := c.envelope(operation, args, sec)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, vs := range headers {
		req.Header[k] = vs
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `"`+c.actions[operation]+`"`)

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return nil, err
	}
	first, f, perr := parseReply(reply)
	if f != nil {
		return nil, &EnvelopeError{Status: resp.StatusCode, Body: EnvelopeBody{Fault: f}}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body = io.NopCloser(bytes.NewReader(reply))
		return nil, retry.AssertResponseOK(resp, "soap: "+operation)
	}
	if perr != nil {
		return nil, fmt.Errorf("malformed soap envelope: %w", perr)
	}
	if first == nil {
		return []any{}, nil
	}
	return []any{first}, nil
}

func (c *HTTPConn) envelope(operation string, args any, sec *Security) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, `<?xml version="1.0" encoding="utf-8"?><soapenv:Envelope xmlns:soapenv="%s">`, nsSOAP11)
	if sec != nil {
		b.WriteString(`<soapenv:Header>`)
		b.WriteString(sec.header(c.now(), uuid.New()))
		b.WriteString(`</soapenv:Header>`)
	}
	b.WriteString(`<soapenv:Body>`)
	if err := c.writeArgs(&b, operation, args); err != nil {
		return nil, err
	}
	b.WriteString(`</soapenv:Body></soapenv:Envelope>`)
	return b.Bytes(), nil
}

func (c *HTTPConn) writeArgs(b *bytes.Buffer, operation string, args any) error {
	switch a := args.(type) {
	case nil:
		fmt.Fprintf(b, `<%s xmlns="%s"/>`, operation, c.namespace)
	case RawXML:
		b.Write(a)
	case []byte:
		b.Write(a)
	case map[string]string:
		keys := make([]string, 0, len(a))
		for k := range a {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(b, `<%s xmlns="%s">`, operation, c.namespace)
		for _, k := range keys {
			fmt.Fprintf(b, "<%s>", k)
			_ = xml.EscapeText(b, []byte(a[k]))
			fmt.Fprintf(b, "</%s>", k)
		}
		fmt.Fprintf(b, "</%s>", operation)
	default:
		raw, err := xml.Marshal(a)
		if err != nil {
			return fmt.Errorf("soap: encode %s arguments: %w", operation, err)
		}
		b.Write(raw)
	}
	return nil
}

type wireFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
	Actor  string `xml:"faultactor"`
	Detail struct {
		Inner string `xml:",innerxml"`
	} `xml:"detail"`
	// SOAP 1.2
	Code12 struct {
		Value string `xml:"Value"`
	} `xml:"Code"`
	Reason struct {
		Text string `xml:"Text"`
	} `xml:"Reason"`
}

func (w wireFault) fault() *Fault {
	f := &Fault{
		Code:   strings.TrimSpace(w.Code),
		String: strings.TrimSpace(w.String),
		Actor:  strings.TrimSpace(w.Actor),
		Detail: strings.TrimSpace(w.Detail.Inner),
	}
	if f.Code == "" {
		f.Code = strings.TrimSpace(w.Code12.Value)
	}
	if f.String == "" {
		f.String = strings.TrimSpace(w.Reason.Text)
	}
	return f
}

// parseReply finds the Body and returns its first child element verbatim,
// or the decoded fault when that child is a Fault.
func parseReply(reply []byte) (RawXML, *Fault, error) {
	d := xml.NewDecoder(bytes.NewReader(reply))
	inBody := false
	for {
		off := d.InputOffset()
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return nil, nil, errors.New("no soap body")
		}
		if err != nil {
			return nil, nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if !inBody {
				inBody = t.Name.Local == "Body"
				continue
			}
			if t.Name.Local == "Fault" {
				var wf wireFault
				if err := d.DecodeElement(&wf, &t); err != nil {
					return nil, nil, err
				}
				return nil, wf.fault(), nil
			}
			if err := d.Skip(); err != nil {
				return nil, nil, err
			}
			return RawXML(reply[off:d.InputOffset()]), nil, nil
		case xml.EndElement:
			if inBody && t.Name.Local == "Body" {
				return nil, nil, nil
			}
		}
	}
}
