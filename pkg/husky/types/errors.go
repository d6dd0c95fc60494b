package types

import (
	"errors"
	"fmt"
)

// Sentinel error kinds surfaced to callers, per the error handling design:
// InvalidState and ConfigError are programmer errors caught before any
// side effect, Timeout is normal control flow, Fatal means the process
// aborts.
var (
	ErrInvalidState = errors.New("husky: invalid state")
	ErrTimeout      = errors.New("husky: timeout")
	ErrConfig       = errors.New("husky: configuration error")
	ErrFatal        = errors.New("husky: fatal error")
)

// InvalidState wraps ErrInvalidState with context, e.g. recv without a
// preceding positive poll, storage() while a commit is in progress, a
// second access() from the same thread in the same round, or a channel
// type mismatch at the factory.
func InvalidState(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// ConfigError wraps ErrConfig, e.g. an unresolvable peer address or a
// missing process id in the session topology.
func ConfigError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// Fatal wraps ErrFatal, for I/O errors, unknown event types and malformed
// envelopes - conditions the design treats as unrecoverable since peers
// are assumed live for the duration of a session. The event loop and
// central receiver do not return such errors: they abort the process
// through Logger.Fatalf. The wire decoder wraps ErrFatal directly.
func Fatal(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrFatal, fmt.Sprintf(format, args...))
}
