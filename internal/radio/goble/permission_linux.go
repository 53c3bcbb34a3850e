//go:build linux

package goble

import (
	"errors"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

const (
	bluezService    = "org.bluez"
	adapterIface    = "org.bluez.Adapter1"
	objManagerIface = "org.freedesktop.DBus.ObjectManager"
	accessDenied    = "org.freedesktop.DBus.Error.AccessDenied"
)

type managedObjects = map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// checkPermission asks BlueZ for its adapters over the system bus. Access denied,
// a missing daemon or no adapter all mean the radio is unusable.
func checkPermission(logger *logrus.Logger) bool {
	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		logger.WithError(err).Warn("Cannot connect to system bus")
		return false
	}
	defer bus.Close()

	var objs managedObjects
	obj := bus.Object(bluezService, dbus.ObjectPath("/"))
	if call := obj.Call(objManagerIface+".GetManagedObjects", 0); call.Err != nil {
		if isAccessDenied(call.Err) {
			logger.WithError(call.Err).Warn("Bluetooth access denied")
		} else {
			logger.WithError(call.Err).Warn("BlueZ is not reachable")
		}
		return false
	} else if err := call.Store(&objs); err != nil {
		logger.WithError(err).Warn("Cannot decode BlueZ objects")
		return false
	}

	if !hasAdapter(objs) {
		logger.Warn("No Bluetooth adapter found")
		return false
	}
	return true
}

func hasAdapter(objs managedObjects) bool {
	for _, ifaces := range objs {
		if _, ok := ifaces[adapterIface]; ok {
			return true
		}
	}
	return false
}

func isAccessDenied(err error) bool {
	var byValue dbus.Error
	if errors.As(err, &byValue) {
		return byValue.Name == accessDenied
	}
	var byRef *dbus.Error
	if errors.As(err, &byRef) {
		return byRef.Name == accessDenied
	}
	return false
}
