package observability

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrus adapts a logrus logger to Logger.
func NewLogrus(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return logrusLogger{entry: logrus.NewEntry(l)}
}

// NewLogrusFor builds a logrus logger writing to w with the given level and format
// ("text" or "json"). Unknown levels fall back to warn.
func NewLogrusFor(w io.Writer, level, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(ParseLevel(level))
	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}

// ParseLevel maps a level name to a logrus level.
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.WarnLevel
	}
}

func (l logrusLogger) Debug(msg string, fields ...Field) { l.withFields(fields).Debug(msg) }
func (l logrusLogger) Info(msg string, fields ...Field)  { l.withFields(fields).Info(msg) }
func (l logrusLogger) Warn(msg string, fields ...Field)  { l.withFields(fields).Warn(msg) }
func (l logrusLogger) Error(msg string, fields ...Field) { l.withFields(fields).Error(msg) }

func (l logrusLogger) With(fields ...Field) Logger {
	return logrusLogger{entry: l.withFields(fields)}
}

func (l logrusLogger) withFields(fields []Field) *logrus.Entry {
	if len(fields) == 0 {
		return l.entry
	}
	lf := make(logrus.Fields, len(fields))
	for _, f := range fields {
		if err, ok := f.Value().(error); ok {
			lf[f.Key()] = err.Error()
			continue
		}
		lf[f.Key()] = f.Value()
	}
	return l.entry.WithFields(lf)
}
