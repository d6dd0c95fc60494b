// Package definition holds the small interfaces the core depends on but
// does not implement itself, following the shape the original's
// base/log.hpp plays for the C++ core: a narrow logging seam the
// mailbox, event loop and transport call into without knowing the
// concrete sink.
package definition

// Logger is the logging seam used throughout the mailbox, event loop
// and transport. DefaultLogger is the implementation this module ships;
// callers pass one in explicitly, and nothing substitutes it for a nil
// Logger.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	ToggleDebug(value bool) bool
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
}
