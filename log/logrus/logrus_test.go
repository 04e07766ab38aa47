package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/guardcache"
)

func TestLogrusLoggerFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	boom := errors.New("boom")
	l.Error("soap call failed", guardcache.Fields{"op": "GetQuote", "err": boom})

	e := hook.LastEntry()
	if e == nil {
		t.Fatal("no entry recorded")
	}
	if e.Level != logrus.ErrorLevel || e.Message != "soap call failed" {
		t.Fatalf("unexpected entry: %v %q", e.Level, e.Message)
	}
	if e.Data["op"] != "GetQuote" {
		t.Fatalf("op field: %v", e.Data)
	}
	if e.Data[logrus.ErrorKey] != boom {
		t.Fatalf("err not moved to %q: %v", logrus.ErrorKey, e.Data)
	}
}

func TestLogrusLoggerLevelFilter(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.InfoLevel)
	l := New(base)

	l.Debug("hidden", nil)
	if len(hook.AllEntries()) != 0 {
		t.Fatalf("debug entry recorded at info level")
	}
}
