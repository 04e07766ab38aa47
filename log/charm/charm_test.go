package charm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/unkn0wn-root/guardcache"
)

func TestCharmLoggerKeyValues(t *testing.T) {
	var buf bytes.Buffer
	l := New(log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel}))

	l.Info("stored", guardcache.Fields{"ttl": "1m", "key": "v:users:1"})

	out := buf.String()
	if !strings.Contains(out, "stored") {
		t.Fatalf("message missing: %q", out)
	}
	if strings.Index(out, "key=") > strings.Index(out, "ttl=") {
		t.Fatalf("fields not ordered by key: %q", out)
	}
}

func TestCharmLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(log.NewWithOptions(&buf, log.Options{Level: log.WarnLevel}))
	l.Info("hidden", nil)
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %q", buf.String())
	}
}
