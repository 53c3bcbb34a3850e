// Package simradio is an in-process radio that behaves like a native driver: it
// owns a callback goroutine, announces scripted devices while scanning and can be
// told to fail specific commands.
package simradio

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/redtooth/internal/groutine"
	"github.com/srg/redtooth/internal/radio"
)

// DefaultInterval is the pause between two announcement rounds while scanning.
const DefaultInterval = 50 * time.Millisecond

// Op names a command for failure injection.
type Op string

const (
	OpInit       Op = "init"
	OpStartScan  Op = "start-scan"
	OpStopScan   Op = "stop-scan"
	OpConnect    Op = "connect"
	OpDisconnect Op = "disconnect"
	OpAudioInit  Op = "audio-init"
)

// Device is a scripted peripheral.
type Device struct {
	Address       uint64
	Name          *string
	Connected     bool
	Authenticated bool
	RSSI          int32
	Class         uint32
}

// Named builds a scripted device with a name.
func Named(address uint64, name string, rssi int32) Device {
	return Device{Address: address, Name: &name, RSSI: rssi}
}

// Anonymous builds a scripted device whose name is never reported.
func Anonymous(address uint64, rssi int32) Device {
	return Device{Address: address, RSSI: rssi}
}

func (d Device) raw() radio.RawDevice {
	return radio.RawDevice{
		Address:       d.Address,
		Name:          d.Name,
		Connected:     d.Connected,
		Authenticated: d.Authenticated,
		RSSI:          d.RSSI,
		ClassOfDevice: d.Class,
	}
}

type failure struct {
	status  radio.Status
	message string
}

// Option configures a Radio
type Option func(*Radio)

func WithLogger(logger *logrus.Logger) Option {
	return func(r *Radio) { r.logger = logger }
}

func WithDevices(devices ...Device) Option {
	return func(r *Radio) { r.devices = append(r.devices, devices...) }
}

// WithInterval sets the pause between announcement rounds.
func WithInterval(d time.Duration) Option {
	return func(r *Radio) { r.interval = d }
}

func WithPermission(granted bool) Option {
	return func(r *Radio) { r.permission = granted }
}

// Radio is a simulated radio.Radio.
type Radio struct {
	logger     *logrus.Logger
	interval   time.Duration
	permission bool

	mu          sync.Mutex
	initialized bool
	audio       bool
	handle      radio.Handle
	onFound     radio.DeviceFoundFunc
	onError     radio.ErrorFunc
	devices     []Device
	connected   map[uint64]bool
	failures    map[Op]failure
	connectFail map[uint64]failure
	lastError   string

	calls      chan func()
	driverStop context.CancelFunc
	driverDone chan struct{}

	scanStop context.CancelFunc
	scanDone chan struct{}
}

var _ radio.Radio = (*Radio)(nil)

// New creates a simulated radio. Permission is granted unless WithPermission says otherwise.
func New(opts ...Option) *Radio {
	r := &Radio{
		interval:    DefaultInterval,
		permission:  true,
		connected:   make(map[uint64]bool),
		failures:    make(map[Op]failure),
		connectFail: make(map[uint64]failure),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logrus.New()
	}
	if r.interval <= 0 {
		r.interval = DefaultInterval
	}
	return r
}

// Fail makes every subsequent op return status with message as last error.
func (r *Radio) Fail(op Op, status radio.Status, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[op] = failure{status: status, message: message}
}

// FailConnect makes connect to one address fail.
func (r *Radio) FailConnect(address uint64, status radio.Status, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectFail[address] = failure{status: status, message: message}
}

// ClearFailures removes all injected failures
func (r *Radio) ClearFailures() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = make(map[Op]failure)
	r.connectFail = make(map[uint64]failure)
}

// AddDevice adds a device to the scripted set; it is announced from the next round.
func (r *Radio) AddDevice(d Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.devices {
		if r.devices[i].Address == d.Address {
			r.devices[i] = d
			return
		}
	}
	r.devices = append(r.devices, d)
}

// Announce delivers one device-found notification from the callback goroutine,
// whether or not a scan is running, provided a callback was ever installed.
func (r *Radio) Announce(d Device) bool {
	r.mu.Lock()
	h, fn := r.handle, r.onFound
	r.mu.Unlock()
	if fn == nil {
		return false
	}
	raw := d.raw()
	return r.dispatch(func() { fn(h, raw) })
}

// RaiseError delivers one error notification from the callback goroutine.
func (r *Radio) RaiseError(code int32, message *string) bool {
	r.mu.Lock()
	h, fn := r.handle, r.onError
	r.mu.Unlock()
	if fn == nil {
		return false
	}
	return r.dispatch(func() { fn(h, code, message) })
}

// IsConnected reports the simulated link state
func (r *Radio) IsConnected(address uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected[address]
}

// Scanning reports whether the announcement loop is running
func (r *Radio) Scanning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scanStop != nil
}

func (r *Radio) Init(h radio.Handle, onError radio.ErrorFunc) radio.Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	if onError == nil {
		return r.failLocked(radio.StatusInvalidParameter, "error callback is required")
	}
	if f, ok := r.failures[OpInit]; ok {
		return r.failLocked(f.status, f.message)
	}

	r.handle = h
	r.onError = onError
	if !r.initialized {
		r.startDriverLocked()
		r.initialized = true
	}
	r.logger.WithField("handle", h).Debug("Simulated radio initialized")
	return radio.StatusSuccess
}

func (r *Radio) StartScan(h radio.Handle, onFound radio.DeviceFoundFunc, onError radio.ErrorFunc) radio.Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return r.failLocked(radio.StatusNotInitialized, "Scanner not initialized")
	}
	if onFound == nil {
		return r.failLocked(radio.StatusInvalidParameter, "device-found callback is required")
	}
	if f, ok := r.failures[OpStartScan]; ok {
		return r.failLocked(f.status, f.message)
	}

	r.handle = h
	r.onFound = onFound
	if onError != nil {
		r.onError = onError
	}
	if r.scanStop != nil {
		return radio.StatusSuccess
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.scanStop = cancel
	r.scanDone = done

	groutine.GoSafe(ctx, "simradio-scan", r.logger, func(ctx context.Context) {
		defer close(done)
		r.scanLoop(ctx)
	}, nil)

	r.logger.Debug("Simulated scan started")
	return radio.StatusSuccess
}

func (r *Radio) StopScan() radio.Status {
	r.mu.Lock()
	if !r.initialized {
		defer r.mu.Unlock()
		return r.failLocked(radio.StatusNotInitialized, "Scanner not initialized")
	}
	if f, ok := r.failures[OpStopScan]; ok {
		defer r.mu.Unlock()
		return r.failLocked(f.status, f.message)
	}
	stop, done := r.scanStop, r.scanDone
	r.scanStop, r.scanDone = nil, nil
	r.mu.Unlock()

	if stop != nil {
		stop()
		<-done
		r.logger.Debug("Simulated scan stopped")
	}
	return radio.StatusSuccess
}

func (r *Radio) Connect(address uint64) radio.Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return r.failLocked(radio.StatusNotInitialized, "Connection pool not initialized")
	}
	if f, ok := r.failures[OpConnect]; ok {
		return r.failLocked(f.status, f.message)
	}
	if f, ok := r.connectFail[address]; ok {
		return r.failLocked(f.status, f.message)
	}
	if !r.knownLocked(address) {
		return r.failLocked(radio.StatusDeviceNotFound, "Device not found: "+radio.FormatAddress(address))
	}

	r.connected[address] = true
	return radio.StatusSuccess
}

func (r *Radio) Disconnect(address uint64) radio.Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return r.failLocked(radio.StatusNotInitialized, "Connection pool not initialized")
	}
	if f, ok := r.failures[OpDisconnect]; ok {
		return r.failLocked(f.status, f.message)
	}
	if !r.connected[address] {
		return r.failLocked(radio.StatusOperationFailed, "Failed to disconnect from device")
	}

	delete(r.connected, address)
	return radio.StatusSuccess
}

func (r *Radio) LastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastError
}

func (r *Radio) CheckPermission() bool {
	return r.permission
}

func (r *Radio) AudioInit(h radio.Handle, onError radio.ErrorFunc) radio.Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return r.failLocked(radio.StatusNotInitialized, "Audio manager not initialized")
	}
	if f, ok := r.failures[OpAudioInit]; ok {
		return r.failLocked(f.status, f.message)
	}
	if onError != nil {
		r.onError = onError
		r.handle = h
	}
	r.audio = true
	return radio.StatusSuccess
}

// ChannelCount reports 2 channels for even addresses and 1 for odd ones, 0 when the
// device is not connected or audio is not initialized.
func (r *Radio) ChannelCount(address uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.audio || !r.connected[address] {
		return 0
	}
	if address%2 == 0 {
		return 2
	}
	return 1
}

// Close stops scanning and the callback goroutine. Queued callbacks are dropped.
func (r *Radio) Close() error {
	r.mu.Lock()
	scanStop, scanDone := r.scanStop, r.scanDone
	r.scanStop, r.scanDone = nil, nil
	r.mu.Unlock()
	if scanStop != nil {
		scanStop()
		<-scanDone
	}

	r.mu.Lock()
	stop, done := r.driverStop, r.driverDone
	r.driverStop, r.driverDone = nil, nil
	r.calls = nil
	r.initialized = false
	r.audio = false
	r.onFound, r.onError = nil, nil
	r.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
	return nil
}

func (r *Radio) failLocked(status radio.Status, message string) radio.Status {
	r.lastError = message
	r.logger.WithFields(logrus.Fields{
		"status":  status,
		"message": message,
	}).Debug("Simulated radio command failed")
	return status
}

func (r *Radio) knownLocked(address uint64) bool {
	for _, d := range r.devices {
		if d.Address == address {
			return true
		}
	}
	return false
}

func (r *Radio) startDriverLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	calls := make(chan func(), 256)
	done := make(chan struct{})
	r.calls = calls
	r.driverStop = cancel
	r.driverDone = done

	groutine.GoSafe(ctx, "simradio-callbacks", r.logger, func(ctx context.Context) {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case call := <-calls:
				call()
			}
		}
	}, nil)
}

// dispatch queues fn on the callback goroutine.
func (r *Radio) dispatch(fn func()) bool {
	r.mu.Lock()
	calls, done := r.calls, r.driverDone
	r.mu.Unlock()
	if calls == nil {
		return false
	}
	select {
	case calls <- fn:
		return true
	case <-done:
		return false
	}
}

func (r *Radio) scanLoop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.mu.Lock()
		devices := append([]Device(nil), r.devices...)
		for i := range devices {
			devices[i].Connected = devices[i].Connected || r.connected[devices[i].Address]
		}
		h, fn := r.handle, r.onFound
		r.mu.Unlock()

		for _, d := range devices {
			raw := d.raw()
			if fn == nil {
				break
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			r.dispatch(func() { fn(h, raw) })
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
