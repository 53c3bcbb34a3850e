//go:build !linux

package goble

import "github.com/sirupsen/logrus"

// checkPermission reports whether a platform device can be created. On macOS the
// system prompts for Bluetooth access on first use.
func checkPermission(logger *logrus.Logger) bool {
	dev, err := newPlatformDevice()
	if err != nil {
		logger.WithError(err).Warn("Bluetooth is not available")
		return false
	}
	_ = dev.Stop()
	return true
}
