package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/guardcache"
)

var _ guardcache.Logger = LogrusLogger{}

// LogrusLogger forwards to E, or to the standard logrus logger when E is nil.
type LogrusLogger struct{ E *logrus.Entry }

func New(l *logrus.Logger) LogrusLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return LogrusLogger{E: logrus.NewEntry(l)}
}

func (l LogrusLogger) Debug(msg string, f guardcache.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f guardcache.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f guardcache.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f guardcache.Fields) { l.with(f).Error(msg) }

// with moves an "err" field to logrus.ErrorKey.
func (l LogrusLogger) with(f guardcache.Fields) *logrus.Entry {
	e := l.E
	if e == nil {
		e = logrus.NewEntry(logrus.StandardLogger())
	}
	if len(f) == 0 {
		return e
	}
	out := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			out[logrus.ErrorKey] = err
			continue
		}
		out[k] = v
	}
	return e.WithFields(out)
}
