// Package bridge turns callback invocations from the native radio into a typed,
// ordered event stream.
//
// Callbacks are free functions (OnDeviceFound, OnError) that receive the opaque
// radio.Handle given at registration and resolve it to the owning Bridge through a
// lock-free table. Nothing in this package panics into the radio: every trampoline
// recovers, and decode faults degrade to defaults.
package bridge

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/srg/redtooth/internal/guard"
	"github.com/srg/redtooth/internal/radio"
)

// DefaultCapacity is the default event buffer size
const DefaultCapacity = 1024

var (
	// ErrStreamClosed is returned by a blocking receive on a closed, empty stream.
	ErrStreamClosed = errors.New("event stream closed")
	// ErrEventDropped is returned by Emit when the stream buffer is full.
	ErrEventDropped = errors.New("event dropped: stream buffer full")
)

// EventStream is the consumer side of a Bridge.
type EventStream = RingChannel[Event]

// now stamps emitted events; tests replace it.
var now = time.Now

// bridges maps registration handles to live bridges.
var (
	bridges    = hashmap.New[radio.Handle, *Bridge]()
	nextHandle atomic.Uintptr
)

// emitter is the state shared between callback goroutines and the consumer side.
// A nil stream means the bridge was closed.
type emitter struct {
	stream *EventStream
	seq    uint64
}

// Stats are bridge-level counters
type Stats struct {
	Emitted      int64 // events accepted into the stream
	Dropped      int64 // events rejected because the stream was full
	Disconnected int64 // events that arrived after Close
	Faults       int64 // recovered panics inside callbacks
	Successes    int64 // success statuses received on the error path
}

// Bridge owns one event stream and one registration handle.
type Bridge struct {
	handle    radio.Handle
	stream    *EventStream
	emitter   *guard.Guard[emitter]
	lastError *guard.Guard[string]
	names     *hashmap.Map[uint64, string] // last advertised name per address
	logger    *logrus.Logger

	emitted      atomic.Int64
	dropped      atomic.Int64
	disconnected atomic.Int64
	faults       atomic.Int64
	successes    atomic.Int64
}

// New creates a bridge and registers its handle. capacity <= 0 selects DefaultCapacity.
func New(capacity int, logger *logrus.Logger) *Bridge {
	if logger == nil {
		logger = logrus.New()
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	stream := NewRingChannel[Event](capacity)
	b := &Bridge{
		handle:    radio.Handle(nextHandle.Add(1)),
		stream:    stream,
		emitter:   guard.New(emitter{stream: stream}, logger),
		lastError: guard.New("", logger),
		names:     hashmap.New[uint64, string](),
		logger:    logger,
	}
	bridges.Set(b.handle, b)

	logger.WithFields(logrus.Fields{
		"handle":   b.handle,
		"capacity": capacity,
	}).Debug("Event bridge registered")
	return b
}

// Lookup resolves a handle to its bridge
func Lookup(h radio.Handle) (*Bridge, bool) {
	return bridges.Get(h)
}

// Handle returns the token to pass to radio registration calls
func (b *Bridge) Handle() radio.Handle {
	return b.handle
}

// Events returns the consumer side of the bridge
func (b *Bridge) Events() *EventStream {
	return b.stream
}

// LastError returns the last diagnostic delivered through the error callback
func (b *Bridge) LastError() string {
	return b.lastError.Load()
}

// ObservedName returns the last non-empty name advertised for address, including
// observations still buffered in the stream.
func (b *Bridge) ObservedName(address uint64) (string, bool) {
	return b.names.Get(address)
}

// Stats returns a snapshot of the bridge counters
func (b *Bridge) Stats() Stats {
	return Stats{
		Emitted:      b.emitted.Load(),
		Dropped:      b.dropped.Load(),
		Disconnected: b.disconnected.Load(),
		Faults:       b.faults.Load(),
		Successes:    b.successes.Load(),
	}
}

// Emit stamps ev and sends it without blocking. It is used for events synthesized
// by the consumer side so that they share ordering with native events.
func (b *Bridge) Emit(ev Event) error {
	var sendErr error

	err := b.emitter.With(func(e *emitter) {
		if e.stream == nil {
			sendErr = radio.ErrBridgeDisconnected
			return
		}

		e.seq++
		ev.Seq = e.seq
		if ev.Time.IsZero() {
			ev.Time = now()
		}
		if !e.stream.TrySend(ev) {
			// keep sequence numbers contiguous for delivered events
			e.seq--
			sendErr = ErrEventDropped
		}
	})
	if err != nil {
		b.faults.Add(1)
		return err
	}

	switch {
	case sendErr == nil:
		b.emitted.Add(1)
	case errors.Is(sendErr, radio.ErrBridgeDisconnected):
		b.disconnected.Add(1)
	case errors.Is(sendErr, ErrEventDropped):
		b.dropped.Add(1)
	}
	return sendErr
}

// Close unregisters the handle and closes the stream. Callbacks arriving later are
// swallowed. Buffered events remain readable.
func (b *Bridge) Close() {
	bridges.Del(b.handle)
	_ = b.emitter.With(func(e *emitter) {
		e.stream = nil
	})
	b.stream.Close()
	b.logger.WithField("handle", b.handle).Debug("Event bridge closed")
}

// OnDeviceFound is the device-found trampoline handed to the radio.
func OnDeviceFound(h radio.Handle, raw radio.RawDevice) {
	b, ok := Lookup(h)
	if !ok {
		logrus.WithField("handle", h).Debug("Device-found callback for unknown handle ignored")
		return
	}
	b.handleDeviceFound(raw)
}

// OnError is the error/status trampoline handed to the radio.
func OnError(h radio.Handle, code int32, message *string) {
	b, ok := Lookup(h)
	if !ok {
		logrus.WithField("handle", h).Debug("Error callback for unknown handle ignored")
		return
	}
	b.handleError(code, message)
}

func (b *Bridge) handleDeviceFound(raw radio.RawDevice) {
	defer b.recoverCallback("device-found")

	dev := DecodeDevice(raw)
	b.logger.WithFields(logrus.Fields{
		"address": radio.FormatAddress(dev.Address),
		"name":    dev.Name,
		"rssi":    dev.SignalStrength,
	}).Debug("Device found")

	if dev.Name != "" {
		b.names.Set(dev.Address, dev.Name)
	}
	b.forward(DeviceObserved(dev))
}

func (b *Bridge) handleError(code int32, message *string) {
	defer b.recoverCallback("error")

	status := radio.DecodeStatus(code)
	msg := DecodeErrorMessage(status, message)

	if status.IsSuccess() {
		b.successes.Add(1)
		b.logger.WithField("status", status).Info("Radio reported success on the error path")
		return
	}

	b.logger.WithFields(logrus.Fields{
		"status": status,
		"code":   code,
	}).Error(msg)
	b.lastError.Store(msg)

	b.forward(ErrorEvent(status, msg))
}

// forward emits from a callback; failures are logged and swallowed.
func (b *Bridge) forward(ev Event) {
	if err := b.Emit(ev); err != nil {
		b.logger.WithError(err).WithField("event", ev.Kind).Warn("Event not forwarded")
	}
}

func (b *Bridge) recoverCallback(name string) {
	if r := recover(); r != nil {
		b.faults.Add(1)
		b.logger.WithFields(logrus.Fields{
			"callback": name,
			"panic":    r,
		}).Error("Recovered panic in radio callback")
	}
}

// DecodeDevice converts a raw payload into a Device. A nil name becomes "";
// invalid UTF-8 is replaced rather than rejected.
func DecodeDevice(raw radio.RawDevice) Device {
	name := ""
	if raw.Name != nil {
		name = strings.ToValidUTF8(*raw.Name, "�")
	}

	return Device{
		Address:        raw.Address,
		Name:           name,
		Connected:      raw.Connected,
		Authenticated:  raw.Authenticated,
		SignalStrength: raw.RSSI,
		DeviceClass:    raw.ClassOfDevice,
	}
}

// DecodeErrorMessage formats an error notification. Without a message only the
// status is rendered.
func DecodeErrorMessage(status radio.Status, message *string) string {
	if message == nil || *message == "" {
		return status.Describe()
	}
	return fmt.Sprintf("%s: %s", status, strings.ToValidUTF8(*message, "�"))
}
