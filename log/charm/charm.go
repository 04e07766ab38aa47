// Package charm adapts github.com/charmbracelet/log to guardcache.Logger.
package charm

import (
	"sort"

	"github.com/charmbracelet/log"

	"github.com/unkn0wn-root/guardcache"
)

var _ guardcache.Logger = Logger{}

// Logger forwards to L, or to log.Default when L is nil.
type Logger struct{ L *log.Logger }

func New(l *log.Logger) Logger { return Logger{L: l} }

func (c Logger) Debug(msg string, f guardcache.Fields) { c.logger().Debug(msg, kv(f)...) }
func (c Logger) Info(msg string, f guardcache.Fields)  { c.logger().Info(msg, kv(f)...) }
func (c Logger) Warn(msg string, f guardcache.Fields)  { c.logger().Warn(msg, kv(f)...) }
func (c Logger) Error(msg string, f guardcache.Fields) { c.logger().Error(msg, kv(f)...) }

func (c Logger) logger() *log.Logger {
	if c.L == nil {
		return log.Default()
	}
	return c.L
}

func kv(f guardcache.Fields) []any {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, 2*len(f))
	for _, k := range keys {
		out = append(out, k, f[k])
	}
	return out
}
