package guardcache

// Fields is a minimal structured field map for logs.
type Fields map[string]any

// Logger is a tiny leveled logger. Provide an adapter around your logging stack
// (see log/slog, log/zap, log/logrus, log/charm).
// If Logger is nil in Options, logging is disabled.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}

// nsLogger stamps every record with the client namespace.
type nsLogger struct {
	next Logger
	ns   string
}

func (l nsLogger) Debug(msg string, f Fields) { l.next.Debug(msg, l.fields(f)) }
func (l nsLogger) Info(msg string, f Fields)  { l.next.Info(msg, l.fields(f)) }
func (l nsLogger) Warn(msg string, f Fields)  { l.next.Warn(msg, l.fields(f)) }
func (l nsLogger) Error(msg string, f Fields) { l.next.Error(msg, l.fields(f)) }

func (l nsLogger) fields(f Fields) Fields {
	out := make(Fields, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	out["ns"] = l.ns
	return out
}
