package log

import (
	"github.com/sirupsen/logrus"
)

// logrusAdapter satisfies Logger through the embedded entry's print and level
// methods; only the methods returning Logger are wrapped.
type logrusAdapter struct {
	*logrus.Entry
}

func newAdapter(l *logrus.Logger) *logrusAdapter {
	return &logrusAdapter{Entry: logrus.NewEntry(l)}
}

func (l *logrusAdapter) WithField(field string, value interface{}) Logger {
	return &logrusAdapter{Entry: l.Entry.WithField(field, value)}
}

func (l *logrusAdapter) WithFields(fields map[string]interface{}) Logger {
	return &logrusAdapter{Entry: l.Entry.WithFields(fields)}
}

func (l *logrusAdapter) WithError(err error) Logger {
	return &logrusAdapter{Entry: l.Entry.WithError(err)}
}

func (l *logrusAdapter) IsTraceEnabled() bool { return l.Logger.IsLevelEnabled(logrus.TraceLevel) }
func (l *logrusAdapter) IsDebugEnabled() bool { return l.Logger.IsLevelEnabled(logrus.DebugLevel) }
func (l *logrusAdapter) IsInfoEnabled() bool  { return l.Logger.IsLevelEnabled(logrus.InfoLevel) }
