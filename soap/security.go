package soap

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	nsWSSE      = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	nsWSU       = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"
	tokenPrefix = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#"
	nonceBase64 = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-soap-message-security-1.0#Base64Binary"
)

func (s Security) validate() error {
	if strings.TrimSpace(s.Username) == "" {
		return fmt.Errorf("username is required")
	}
	switch s.Type {
	case "", PasswordText, PasswordDigest:
		return nil
	default:
		return fmt.Errorf("unknown password type %q", s.Type)
	}
}

// header renders a WS-Security UsernameToken. Digest mode sends
// Base64(SHA-1(nonce + created + password)).
func (s Security) header(now time.Time, nonce uuid.UUID) string {
	created := now.UTC().Format("2006-01-02T15:04:05.000Z")
	typ := s.Type
	if typ == "" {
		typ = PasswordText
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<wsse:Security xmlns:wsse="%s" xmlns:wsu="%s" soapenv:mustUnderstand="1">`, nsWSSE, nsWSU)
	fmt.Fprintf(&b, `<wsse:UsernameToken wsu:Id="UsernameToken-%s">`, nonce.String())
	b.WriteString(`<wsse:Username>`)
	writeEscaped(&b, s.Username)
	b.WriteString(`</wsse:Username>`)

	password := s.Password
	if typ == PasswordDigest {
		password = digest(nonce[:], created, s.Password)
	}
	fmt.Fprintf(&b, `<wsse:Password Type="%s%s">`, tokenPrefix, typ)
	writeEscaped(&b, password)
	b.WriteString(`</wsse:Password>`)

	if typ == PasswordDigest {
		fmt.Fprintf(&b, `<wsse:Nonce EncodingType="%s">%s</wsse:Nonce>`, nonceBase64, base64.StdEncoding.EncodeToString(nonce[:]))
	}
	fmt.Fprintf(&b, `<wsu:Created>%s</wsu:Created>`, created)
	b.WriteString(`</wsse:UsernameToken></wsse:Security>`)
	return b.String()
}

func digest(nonce []byte, created, password string) string {
	h := sha1.New()
	h.Write(nonce)
	h.Write([]byte(created))
	h.Write([]byte(password))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func writeEscaped(b *strings.Builder, s string) {
	_ = xml.EscapeText(b, []byte(s))
}
