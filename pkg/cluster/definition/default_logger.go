// Package definition provides default concrete implementations of
// the types interfaces for callers to pass in. Nothing substitutes
// them automatically: core.New rejects a nil Logger.
package definition

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/edgemesh/clustercore/pkg/cluster/types"
)

// DefaultLogger adapts a *logrus.Entry to the types.Logger interface.
// logrus gives structured fields for free, which is why the ambient
// logging in this module is built on it rather than the stdlib log
// package.
type DefaultLogger struct {
	entry *logrus.Entry
}

// NewDefaultLogger builds a logger writing to stderr at Info level.
func NewDefaultLogger() *DefaultLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	return &DefaultLogger{entry: logrus.NewEntry(l)}
}

// ToggleDebug flips the underlying logger between Info and Debug
// level, mirroring the debug toggle the teacher's own default logger
// exposes.
func (l *DefaultLogger) ToggleDebug(on bool) {
	if on {
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	}
}

func (l *DefaultLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *DefaultLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *DefaultLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *DefaultLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
func (l *DefaultLogger) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }

func (l *DefaultLogger) WithFields(fields types.Fields) types.Logger {
	return &DefaultLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

var _ types.Logger = (*DefaultLogger)(nil)
