package slog

import (
	"bytes"
	"errors"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/guardcache"
)

func TestLoggerWritesSortedFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(stdslog.New(stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelDebug})))

	l.Warn("lock failed", guardcache.Fields{"z": 1, "a": "x", "err": errors.New("boom")})

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, `msg="lock failed"`) {
		t.Fatalf("unexpected line: %q", out)
	}
	if !strings.Contains(out, "a=x err=boom z=1") {
		t.Fatalf("fields not sorted or err not flattened: %q", out)
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(stdslog.New(stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo})))

	l.Debug("hidden", nil)
	if buf.Len() != 0 {
		t.Fatalf("debug written at info level: %q", buf.String())
	}
	l.Error("shown", nil)
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("error line missing: %q", buf.String())
	}
}
