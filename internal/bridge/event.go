package bridge

import (
	"fmt"
	"time"

	"github.com/srg/redtooth/internal/radio"
)

// Device is the canonical per-address record. Events carry it by value, so a
// snapshot can never be mutated after emission.
type Device struct {
	Address        uint64 `json:"address" yaml:"address"`
	Name           string `json:"name" yaml:"name"`
	Connected      bool   `json:"connected" yaml:"connected"`
	Authenticated  bool   `json:"authenticated" yaml:"authenticated"`
	SignalStrength int32  `json:"signal_strength" yaml:"signal_strength"`
	DeviceClass    uint32 `json:"device_class" yaml:"device_class"`
}

// DisplayName returns the name, or the formatted address when the name is unknown
func (d Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return radio.FormatAddress(d.Address)
}

// Kind tags an Event
type Kind int

const (
	KindDeviceObserved Kind = iota
	KindScanStarted
	KindScanStopped
	KindConnected
	KindDisconnected
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindDeviceObserved:
		return "device-observed"
	case KindScanStarted:
		return "scan-started"
	case KindScanStopped:
		return "scan-stopped"
	case KindConnected:
		return "connected"
	case KindDisconnected:
		return "disconnected"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is an observable transition. Only the fields relevant to Kind are set.
// Seq and Time are stamped by the Bridge when the event enters the stream.
type Event struct {
	Kind    Kind
	Device  Device       // KindDeviceObserved
	Address uint64       // KindConnected, KindDisconnected
	Status  radio.Status // KindError
	Message string       // KindError
	Seq     uint64
	Time    time.Time
}

// DeviceObserved creates a discovery event for a device snapshot
func DeviceObserved(d Device) Event {
	return Event{Kind: KindDeviceObserved, Device: d, Address: d.Address}
}

// ScanStarted creates a scan-started event
func ScanStarted() Event {
	return Event{Kind: KindScanStarted}
}

// ScanStopped creates a scan-stopped event
func ScanStopped() Event {
	return Event{Kind: KindScanStopped}
}

// Connected creates a connected event for address
func Connected(address uint64) Event {
	return Event{Kind: KindConnected, Address: address}
}

// Disconnected creates a disconnected event for address
func Disconnected(address uint64) Event {
	return Event{Kind: KindDisconnected, Address: address}
}

// ErrorEvent creates an error event
func ErrorEvent(status radio.Status, message string) Event {
	return Event{Kind: KindError, Status: status, Message: message}
}

func (e Event) String() string {
	switch e.Kind {
	case KindDeviceObserved:
		return fmt.Sprintf("#%d %s %s (%s) rssi=%d", e.Seq, e.Kind, e.Device.DisplayName(), radio.FormatAddress(e.Device.Address), e.Device.SignalStrength)
	case KindConnected, KindDisconnected:
		return fmt.Sprintf("#%d %s %s", e.Seq, e.Kind, radio.FormatAddress(e.Address))
	case KindError:
		return fmt.Sprintf("#%d %s %s", e.Seq, e.Kind, e.Message)
	default:
		return fmt.Sprintf("#%d %s", e.Seq, e.Kind)
	}
}
