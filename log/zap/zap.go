package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/guardcache"
)

var _ guardcache.Logger = ZapLogger{}

// ZapLogger forwards to L. A nil L discards everything.
type ZapLogger struct{ L *zap.Logger }

func New(l *zap.Logger) ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return ZapLogger{L: l}
}

func (z ZapLogger) Debug(msg string, f guardcache.Fields) { z.logger().Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f guardcache.Fields)  { z.logger().Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f guardcache.Fields)  { z.logger().Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f guardcache.Fields) { z.logger().Error(msg, zf(f)...) }

func (z ZapLogger) logger() *zap.Logger {
	if z.L == nil {
		return zap.NewNop()
	}
	return z.L
}

func zf(f guardcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
