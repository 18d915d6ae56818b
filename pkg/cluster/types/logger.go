package types

// Logger is the logging surface every core component depends on. It
// mirrors the small leveled-logger shape used throughout the
// teacher-grade cluster libraries this runtime is grounded on: plain
// printf-style calls at four levels, plus a process-ending Fatalf
// for bind-time failures (spec §7, case 5).
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})

	// WithFields returns a Logger that prepends the given structured
	// fields to every subsequent call, without mutating the receiver.
	WithFields(fields Fields) Logger
}

// Fields is a small structured-logging payload (component, peer, err,
// ...), attached to log lines instead of interpolated into the
// message text.
type Fields map[string]interface{}
