package main

import (
	"errors"
	"fmt"

	"github.com/srg/redtooth/internal/hooks"
	"github.com/srg/redtooth/internal/radio"
)

// Command-level errors
var (
	// ErrUnknownDevice indicates an argument that is neither a configured alias nor an address.
	ErrUnknownDevice = errors.New("unknown device")
	// ErrRadioUnavailable indicates the radio could not be initialized for a command that needs it.
	ErrRadioUnavailable = errors.New("bluetooth radio unavailable")
)

// FormatUserError turns typed errors into a one-line message with a hint where one helps.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var scriptErr *hooks.ScriptError
	switch {
	case errors.As(err, &scriptErr):
		return fmt.Sprintf("hook script failed: %s", scriptErr.Error())
	case errors.Is(err, ErrUnknownDevice):
		return fmt.Sprintf("%s (use an alias from 'redtooth devices' or an address like AA:BB:CC:DD:EE:FF)", err)
	case errors.Is(err, radio.ErrConnectionFailed):
		return fmt.Sprintf("%s (make sure the device is powered on and in range)", err)
	case errors.Is(err, radio.ErrNotInitialized), errors.Is(err, ErrRadioUnavailable):
		return fmt.Sprintf("%s (is Bluetooth turned on?)", err)
	case errors.Is(err, radio.ErrDeviceNotFound):
		return fmt.Sprintf("%s (run 'redtooth scan' to discover nearby devices)", err)
	default:
		return err.Error()
	}
}
