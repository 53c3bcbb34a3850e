// Package directory keeps the authoritative, deduplicated set of known devices by
// applying bridge events in arrival order.
//
// Apply is meant to be called from a single consumer goroutine. Snapshot may be called
// from any goroutine and never observes a half-applied event.
package directory

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/redtooth/internal/bridge"
	"github.com/srg/redtooth/internal/radio"
)

// ErrAnomalousEvent marks a Connected/Disconnected event for an address that was never observed.
var ErrAnomalousEvent = errors.New("anomalous event")

// AnomalyError reports an event that was skipped because it references an unknown device.
type AnomalyError struct {
	Event bridge.Event
}

func (e *AnomalyError) Error() string {
	return fmt.Sprintf("%s for unknown device %s", e.Event.Kind, radio.FormatAddress(e.Event.Address))
}

// Unwrap lets errors.Is match ErrAnomalousEvent
func (e *AnomalyError) Unwrap() error {
	return ErrAnomalousEvent
}

// Directory maps address to device record.
type Directory struct {
	mu        sync.RWMutex
	devices   *orderedmap.OrderedMap[uint64, bridge.Device]
	scanning  bool
	lastError string
	anomalies atomic.Int64
	applied   atomic.Int64
	logger    *logrus.Logger
}

// New creates an empty directory
func New(logger *logrus.Logger) *Directory {
	if logger == nil {
		logger = logrus.New()
	}
	return &Directory{
		devices: orderedmap.New[uint64, bridge.Device](),
		logger:  logger,
	}
}

// Apply folds one event into the directory.
//
// A non-nil error is informational: it is an *AnomalyError for Connected/Disconnected
// events referencing an unknown address. The event is dropped after being reported and
// the directory is left untouched.
func (d *Directory) Apply(ev bridge.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.applied.Add(1)

	switch ev.Kind {
	case bridge.KindDeviceObserved:
		d.devices.Set(ev.Device.Address, ev.Device)

	case bridge.KindConnected, bridge.KindDisconnected:
		dev, ok := d.devices.Get(ev.Address)
		if !ok {
			d.anomalies.Add(1)
			anomaly := &AnomalyError{Event: ev}
			d.logger.WithFields(logrus.Fields{
				"address": radio.FormatAddress(ev.Address),
				"event":   ev.Kind,
				"seq":     ev.Seq,
			}).Warn("Skipping event for unknown device")
			return anomaly
		}
		dev.Connected = ev.Kind == bridge.KindConnected
		d.devices.Set(ev.Address, dev)

	case bridge.KindScanStarted:
		d.scanning = true

	case bridge.KindScanStopped:
		d.scanning = false

	case bridge.KindError:
		d.lastError = ev.Message
	}

	return nil
}

// Snapshot returns a point-in-time copy of all records, in first-seen order.
func (d *Directory) Snapshot() []bridge.Device {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]bridge.Device, 0, d.devices.Len())
	for pair := d.devices.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Get returns the record for address
func (d *Directory) Get(address uint64) (bridge.Device, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.devices.Get(address)
}

// Len returns the number of known devices
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.devices.Len()
}

// Scanning reports the scan state as last seen through ScanStarted/ScanStopped events
func (d *Directory) Scanning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.scanning
}

// LastError returns the message of the last applied Error event
func (d *Directory) LastError() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastError
}

// Anomalies returns how many events were skipped as anomalous
func (d *Directory) Anomalies() int64 {
	return d.anomalies.Load()
}

// Applied returns how many events were applied, anomalies included
func (d *Directory) Applied() int64 {
	return d.applied.Load()
}
