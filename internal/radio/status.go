package radio

import "fmt"

// Status is the outcome code returned by every native radio command.
// The set is closed: values outside it decode to StatusUnknown.
type Status int32

const (
	StatusSuccess          Status = 0
	StatusNotInitialized   Status = 1
	StatusInvalidParameter Status = 2
	StatusOperationFailed  Status = 3
	StatusDeviceNotFound   Status = 4
	StatusConnectionFailed Status = 5
	StatusAudioInitFailed  Status = 6
	StatusUnknown          Status = 255
)

// DecodeStatus maps a raw code coming from the driver onto the closed set.
func DecodeStatus(code int32) Status {
	switch s := Status(code); s {
	case StatusSuccess, StatusNotInitialized, StatusInvalidParameter, StatusOperationFailed,
		StatusDeviceNotFound, StatusConnectionFailed, StatusAudioInitFailed, StatusUnknown:
		return s
	default:
		return StatusUnknown
	}
}

// IsSuccess reports whether the status is StatusSuccess
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNotInitialized:
		return "not initialized"
	case StatusInvalidParameter:
		return "invalid parameter"
	case StatusOperationFailed:
		return "operation failed"
	case StatusDeviceNotFound:
		return "device not found"
	case StatusConnectionFailed:
		return "connection failed"
	case StatusAudioInitFailed:
		return "audio init failed"
	case StatusUnknown:
		return "unknown error"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Describe renders a status without a diagnostic message, e.g. "connection failed (code 5)".
func (s Status) Describe() string {
	return fmt.Sprintf("%s (code %d)", s, int32(s))
}
