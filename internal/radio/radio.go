// Package radio describes the command surface and callback contracts of the native
// Bluetooth radio core, together with its closed status taxonomy.
//
// Implementations invoke callbacks on goroutines they own. Callers must assume a
// callback can run concurrently with any command and with other callbacks.
package radio

// Handle is an opaque token passed through callback registration and handed back on
// every callback invocation. The receiver resolves it to the owning instance; the
// radio never interprets it.
type Handle uintptr

// RawDevice is the device-found payload as delivered by the driver.
type RawDevice struct {
	Address       uint64
	Name          *string // nil when the driver has no name
	Connected     bool
	Authenticated bool
	RSSI          int32
	ClassOfDevice uint32
}

// DeviceFoundFunc is invoked by the radio for every discovery notification.
type DeviceFoundFunc func(h Handle, dev RawDevice)

// ErrorFunc is invoked by the radio for error/status notifications. code is the raw
// status value and message is nil when the driver has no diagnostic text.
type ErrorFunc func(h Handle, code int32, message *string)

// Radio is the command surface of the native radio core.
// Every command returns a Status; none of them panic.
type Radio interface {
	// Init prepares the radio and installs the error callback.
	Init(h Handle, onError ErrorFunc) Status
	// StartScan installs the discovery callbacks and starts discovery.
	StartScan(h Handle, onFound DeviceFoundFunc, onError ErrorFunc) Status
	// StopScan returns once the radio has stopped discovery. Callbacks already
	// dispatched may still arrive afterwards.
	StopScan() Status
	Connect(address uint64) Status
	Disconnect(address uint64) Status
	// LastError returns the diagnostic text of the last failed command, or "".
	LastError() string
	CheckPermission() bool

	AudioInit(h Handle, onError ErrorFunc) Status
	ChannelCount(address uint64) int

	// Close releases the driver. Callbacks stop being delivered once it returns.
	Close() error
}
