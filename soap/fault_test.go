package soap

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

type driverFault struct{ msg string }

func (e driverFault) Error() string       { return "driver error" }
func (e driverFault) FaultString() string { return e.msg }

func TestExtractFaultMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
		ok   bool
	}{
		{"direct", &Fault{String: " INVALID_INPUT "}, "INVALID_INPUT", true},
		{"wrapped", fmt.Errorf("call: %w", &Fault{String: "TIMEOUT"}), "TIMEOUT", true},
		{"envelope", &EnvelopeError{Status: 500, Body: EnvelopeBody{Fault: &Fault{String: "SERVICE_UNAVAILABLE"}}}, "SERVICE_UNAVAILABLE", true},
		{"driver type", driverFault{msg: "GLOBAL_MAX_CONCURRENT_REQ"}, "GLOBAL_MAX_CONCURRENT_REQ", true},
		{"empty fault", &Fault{Code: "soap:Server"}, "", false},
		{"unknown", errors.New("eof"), "", false},
		{"nil", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractFaultMessage(tt.err)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("ExtractFaultMessage = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSecurityDigest(t *testing.T) {
	nonce := uuid.MustParse("0b5f1b2e-7d55-4c1e-9a0a-3f5d9c1e2b7a")
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := Security{Username: "a&b", Password: "pw", Type: PasswordDigest}

	h := s.header(now, nonce)
	want := digest(nonce[:], "2026-01-02T03:04:05.000Z", "pw")
	if !strings.Contains(h, `#PasswordDigest">`+want+`</wsse:Password>`) {
		t.Fatalf("digest missing from header:\n%s", h)
	}
	if strings.Contains(h, ">pw<") {
		t.Fatal("digest mode leaked the clear password")
	}
	if !strings.Contains(h, "<wsse:Username>a&amp;b</wsse:Username>") {
		t.Fatalf("username not escaped:\n%s", h)
	}
	if !strings.Contains(h, "<wsse:Nonce") || !strings.Contains(h, "<wsu:Created>2026-01-02T03:04:05.000Z</wsu:Created>") {
		t.Fatalf("nonce/created missing:\n%s", h)
	}
}

func TestSecurityValidate(t *testing.T) {
	if err := (Security{}).validate(); err == nil {
		t.Fatal("blank username must fail")
	}
	if err := (Security{Username: "u", Type: "Kerberos"}).validate(); err == nil {
		t.Fatal("unknown type must fail")
	}
}
