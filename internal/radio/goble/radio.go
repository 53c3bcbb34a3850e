// Package goble drives a real Bluetooth LE adapter through github.com/go-ble/ble
// and exposes it as a radio.Radio.
package goble

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/redtooth/internal/groutine"
	"github.com/srg/redtooth/internal/radio"
)

// DefaultConnectTimeout bounds a single Connect call.
const DefaultConnectTimeout = 10 * time.Second

// Radio is a radio.Radio over a go-ble Central.
type Radio struct {
	logger         *logrus.Logger
	connectTimeout time.Duration

	mu        sync.Mutex
	central   Central
	handle    radio.Handle
	onError   radio.ErrorFunc
	peers     map[uint64]ble.Addr
	links     map[uint64]Link
	lastError string

	scanCancel context.CancelFunc
	scanDone   chan struct{}
}

var _ radio.Radio = (*Radio)(nil)

// New creates an uninitialized radio. connectTimeout <= 0 selects DefaultConnectTimeout.
func New(logger *logrus.Logger, connectTimeout time.Duration) *Radio {
	if logger == nil {
		logger = logrus.New()
	}
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	return &Radio{
		logger:         logger,
		connectTimeout: connectTimeout,
		peers:          make(map[uint64]ble.Addr),
		links:          make(map[uint64]Link),
	}
}

// AddressOf maps a go-ble address to a 64-bit address. MAC addresses are used as
// is; platform identifiers (CoreBluetooth UUIDs) are hashed.
func AddressOf(addr ble.Addr) uint64 {
	if addr == nil {
		return 0
	}
	if a, err := radio.ParseAddress(addr.String()); err == nil {
		return a
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(addr.String()))
	return h.Sum64()
}

func (r *Radio) Init(h radio.Handle, onError radio.ErrorFunc) radio.Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	if onError == nil {
		return r.failLocked(radio.StatusInvalidParameter, "error callback is required", nil)
	}
	r.handle = h
	r.onError = onError

	if r.central != nil {
		return radio.StatusSuccess
	}

	central, err := DeviceFactory()
	if err != nil {
		return r.failLocked(statusOf(err, radio.StatusOperationFailed), "Failed to create BLE device", err)
	}
	r.central = central
	r.logger.WithField("handle", h).Info("BLE radio initialized")
	return radio.StatusSuccess
}

func (r *Radio) StartScan(h radio.Handle, onFound radio.DeviceFoundFunc, onError radio.ErrorFunc) radio.Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.central == nil {
		return r.failLocked(radio.StatusNotInitialized, "Scanner not initialized", nil)
	}
	if onFound == nil {
		return r.failLocked(radio.StatusInvalidParameter, "device-found callback is required", nil)
	}
	if onError != nil {
		r.onError = onError
	}
	r.handle = h
	if r.scanCancel != nil {
		return radio.StatusSuccess
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.scanCancel = cancel
	r.scanDone = done
	central, errFn := r.central, r.onError

	groutine.GoSafe(ctx, "ble-scan", r.logger, func(ctx context.Context) {
		defer close(done)
		err := central.Scan(ctx, true, func(adv Advert) {
			r.deviceFound(h, adv, onFound)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger.WithError(err).Error("BLE scan terminated")
			msg := fmt.Sprintf("Failed to scan: %v", err)
			r.setLastError(msg)
			if errFn != nil {
				errFn(h, int32(statusOf(err, radio.StatusOperationFailed)), &msg)
			}
		}
	}, nil)

	r.logger.Info("BLE scan started")
	return radio.StatusSuccess
}

func (r *Radio) deviceFound(h radio.Handle, adv Advert, onFound radio.DeviceFoundFunc) {
	address := AddressOf(adv.Addr())

	r.mu.Lock()
	r.peers[address] = adv.Addr()
	_, connected := r.links[address]
	r.mu.Unlock()

	var name *string
	if n := adv.LocalName(); n != "" {
		name = &n
	}
	onFound(h, radio.RawDevice{
		Address:   address,
		Name:      name,
		Connected: connected,
		RSSI:      int32(adv.RSSI()),
	})
}

func (r *Radio) StopScan() radio.Status {
	r.mu.Lock()
	if r.central == nil {
		defer r.mu.Unlock()
		return r.failLocked(radio.StatusNotInitialized, "Scanner not initialized", nil)
	}
	cancel, done := r.scanCancel, r.scanDone
	r.scanCancel, r.scanDone = nil, nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
		r.logger.Info("BLE scan stopped")
	}
	return radio.StatusSuccess
}

func (r *Radio) Connect(address uint64) radio.Status {
	r.mu.Lock()
	if r.central == nil {
		defer r.mu.Unlock()
		return r.failLocked(radio.StatusNotInitialized, "Connection pool not initialized", nil)
	}
	if _, ok := r.links[address]; ok {
		r.mu.Unlock()
		return radio.StatusSuccess
	}
	addr, ok := r.peers[address]
	if !ok {
		addr = ble.NewAddr(radio.FormatAddress(address))
	}
	central := r.central
	r.mu.Unlock()

	r.logger.WithField("address", radio.FormatAddress(address)).Info("Connecting to BLE device...")

	ctx, cancel := context.WithTimeout(context.Background(), r.connectTimeout)
	defer cancel()

	link, err := central.Dial(ctx, addr)
	if err != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.failLocked(statusOf(err, radio.StatusConnectionFailed), "Failed to connect to device", err)
	}

	r.mu.Lock()
	r.links[address] = link
	h, errFn := r.handle, r.onError
	r.mu.Unlock()

	groutine.GoSafe(context.Background(), "ble-link-watch", r.logger, func(ctx context.Context) {
		r.watchLink(h, address, link, errFn)
	}, nil)
	return radio.StatusSuccess
}

// watchLink reports a link that drops without a Disconnect call.
func (r *Radio) watchLink(h radio.Handle, address uint64, link Link, onError radio.ErrorFunc) {
	<-link.Disconnected()

	r.mu.Lock()
	current, ok := r.links[address]
	dropped := ok && current == link
	if dropped {
		delete(r.links, address)
	}
	r.mu.Unlock()

	if dropped && onError != nil {
		msg := "Link lost: " + radio.FormatAddress(address)
		r.setLastError(msg)
		onError(h, int32(radio.StatusConnectionFailed), &msg)
	}
}

func (r *Radio) Disconnect(address uint64) radio.Status {
	r.mu.Lock()
	if r.central == nil {
		defer r.mu.Unlock()
		return r.failLocked(radio.StatusNotInitialized, "Connection pool not initialized", nil)
	}
	link, ok := r.links[address]
	if !ok {
		defer r.mu.Unlock()
		return r.failLocked(radio.StatusOperationFailed, "Failed to disconnect from device", nil)
	}
	delete(r.links, address)
	r.mu.Unlock()

	if err := link.CancelConnection(); err != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.failLocked(radio.StatusOperationFailed, "Failed to disconnect from device", err)
	}
	return radio.StatusSuccess
}

func (r *Radio) LastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastError
}

func (r *Radio) CheckPermission() bool {
	return checkPermission(r.logger)
}

// AudioInit always fails: LE links carry no audio routing.
func (r *Radio) AudioInit(h radio.Handle, onError radio.ErrorFunc) radio.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.central == nil {
		return r.failLocked(radio.StatusNotInitialized, "Audio manager not initialized", nil)
	}
	return r.failLocked(radio.StatusAudioInitFailed, "Audio routing is not supported on BLE links", nil)
}

func (r *Radio) ChannelCount(uint64) int {
	return 0
}

// Close stops scanning, drops every link and releases the adapter.
func (r *Radio) Close() error {
	r.mu.Lock()
	cancel, done := r.scanCancel, r.scanDone
	r.scanCancel, r.scanDone = nil, nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}

	r.mu.Lock()
	central := r.central
	links := r.links
	r.central = nil
	r.links = make(map[uint64]Link)
	r.mu.Unlock()

	var errs []error
	for address, link := range links {
		if err := link.CancelConnection(); err != nil {
			errs = append(errs, fmt.Errorf("disconnect %s: %w", radio.FormatAddress(address), err))
		}
	}
	if central != nil {
		if err := central.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop device: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (r *Radio) setLastError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastError = msg
}

func (r *Radio) failLocked(status radio.Status, msg string, err error) radio.Status {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	r.lastError = msg
	r.logger.WithFields(logrus.Fields{
		"status": status,
	}).Warn(msg)
	return status
}
