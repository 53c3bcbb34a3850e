package goble

import (
	"context"
	"errors"
	"strings"

	"github.com/srg/redtooth/internal/radio"
)

// statusOf maps go-ble errors onto the radio status taxonomy. go-ble reports most
// failures as plain strings, so matching is by message.
func statusOf(err error, fallback radio.Status) radio.Status {
	if err == nil {
		return radio.StatusSuccess
	}

	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fallback
	case strings.Contains(msg, "invalid state: have=4 want=5"),
		strings.Contains(msg, "bluetooth is turned off"),
		strings.Contains(msg, "can't init hci"),
		strings.Contains(msg, "connection is not initialized"):
		return radio.StatusNotInitialized
	case strings.Contains(msg, "device not connected"),
		strings.Contains(msg, "disconnected"):
		return radio.StatusConnectionFailed
	case strings.Contains(msg, "not supported"):
		return radio.StatusOperationFailed
	default:
		return fallback
	}
}
