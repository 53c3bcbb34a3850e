package radio

import (
	"errors"
	"fmt"
)

// StatusError is a failed native command surfaced as a Go error.
type StatusError struct {
	Status  Status
	Op      string // "init", "start scan", "connect", ...
	Message string // last diagnostic text from the driver, may be empty
	// Cause is the native status when Status was generalized (e.g. to
	// StatusOperationFailed). Zero when Status is the native status.
	Cause Status
}

// Error implements the error interface
func (e *StatusError) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := e.Message
	if msg == "" {
		msg = e.native().Describe()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

// Is allows errors.Is to compare StatusError values by Status
func (e *StatusError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*StatusError)
	if !ok {
		return false
	}
	return e.Status == t.Status || (e.Cause != StatusSuccess && e.Cause == t.Status)
}

func (e *StatusError) native() Status {
	if e.Cause != StatusSuccess {
		return e.Cause
	}
	return e.Status
}

// Generalize returns a copy reporting status while keeping the native one as Cause.
func (e *StatusError) Generalize(status Status) *StatusError {
	out := *e
	if status != e.Status {
		out.Cause = e.native()
		out.Status = status
	}
	return &out
}

// Predefined sentinel errors, one per non-success status
var (
	ErrNotInitialized   = &StatusError{Status: StatusNotInitialized}
	ErrInvalidParameter = &StatusError{Status: StatusInvalidParameter}
	ErrOperationFailed  = &StatusError{Status: StatusOperationFailed}
	ErrDeviceNotFound   = &StatusError{Status: StatusDeviceNotFound}
	ErrConnectionFailed = &StatusError{Status: StatusConnectionFailed}
	ErrAudioInitFailed  = &StatusError{Status: StatusAudioInitFailed}
	ErrUnknown          = &StatusError{Status: StatusUnknown}
)

// ErrBridgeDisconnected is reported when an event can no longer reach its consumer.
var ErrBridgeDisconnected = errors.New("bridge disconnected")

// NewStatusError builds a typed error for a failed command.
// It returns nil for StatusSuccess.
func NewStatusError(op string, status Status, message string) error {
	if status.IsSuccess() {
		return nil
	}
	return &StatusError{Status: status, Op: op, Message: message}
}

// IsStatus reports whether err is a StatusError carrying the given status
func IsStatus(err error, status Status) bool {
	var serr *StatusError
	if errors.As(err, &serr) {
		return serr.Status == status
	}
	return false
}

// StatusOf extracts the status from err, StatusSuccess for nil and StatusUnknown for foreign errors.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var serr *StatusError
	if errors.As(err, &serr) {
		return serr.Status
	}
	return StatusUnknown
}
