// Package session is the typed command surface over a radio. A Controller owns the
// event bridge, the device directory and the persistence collaborators, and is the
// single source of truth for the scanning and permission flags.
//
// Commands may be issued from any goroutine; they are serialized. Events are applied
// to the directory only by the consumer helpers (Drain, WaitAndApply, Run).
package session

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/srg/redtooth/internal/bridge"
	"github.com/srg/redtooth/internal/directory"
	"github.com/srg/redtooth/internal/radio"
	"github.com/srg/redtooth/internal/registry"
	"github.com/srg/redtooth/pkg/config"
)

// EventHook observes every applied event. Hooks run on the consumer goroutine.
type EventHook func(ev bridge.Event)

// Options configures a Controller
type Options struct {
	Logger    *logrus.Logger
	SessionID string // generated when empty
	Capacity  int    // event buffer; falls back to Config.EventBuffer, then bridge.DefaultCapacity
	Registry  registry.Registry
	Config    *config.Config
	EventLog  *EventLog // created when nil
	Hooks     []EventHook
}

// Controller issues radio commands and reconciles their outcome with the event stream.
type Controller struct {
	radio     radio.Radio
	bridge    *bridge.Bridge
	directory *directory.Directory
	registry  registry.Registry
	config    *config.Config
	eventLog  *EventLog
	hooks     []EventHook
	logger    *logrus.Logger
	sessionID string

	cmdMu       sync.Mutex
	applyMu     sync.Mutex
	initialized atomic.Bool
	scanning    atomic.Bool
	permission  atomic.Bool

	connMu    sync.Mutex
	connected map[uint64]struct{} // links opened by this session
}

// New creates a controller over r. Nothing is sent to the radio until Initialize.
func New(r radio.Radio, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	capacity := opts.Capacity
	if capacity <= 0 && opts.Config != nil {
		capacity = opts.Config.EventBuffer
	}
	eventLog := opts.EventLog
	if eventLog == nil {
		eventLog = NewEventLog(0)
	}

	return &Controller{
		radio:     r,
		bridge:    bridge.New(capacity, logger),
		directory: directory.New(logger),
		registry:  opts.Registry,
		config:    opts.Config,
		eventLog:  eventLog,
		hooks:     opts.Hooks,
		logger:    logger,
		sessionID: sessionID,
		connected: make(map[uint64]struct{}),
	}
}

// SessionID identifies this controller in logs and in the registry
func (c *Controller) SessionID() string {
	return c.sessionID
}

// Events returns the event stream, usable even when Initialize failed
func (c *Controller) Events() *bridge.EventStream {
	return c.bridge.Events()
}

// Bridge returns the underlying event bridge
func (c *Controller) Bridge() *bridge.Bridge {
	return c.bridge
}

// Directory returns the device directory fed by the consumer helpers
func (c *Controller) Directory() *directory.Directory {
	return c.directory
}

// EventLog returns the journal of applied events
func (c *Controller) EventLog() *EventLog {
	return c.eventLog
}

// Initialized reports whether the last Initialize succeeded
func (c *Controller) Initialized() bool {
	return c.initialized.Load()
}

// Scanning reports whether discovery is running
func (c *Controller) Scanning() bool {
	return c.scanning.Load()
}

// PermissionGranted reports the result of the permission check done at Startup
func (c *Controller) PermissionGranted() bool {
	return c.permission.Load()
}

// Initialize installs the error callback. On failure the controller stays usable in
// degraded mode: other commands may still be attempted.
func (c *Controller) Initialize() (*bridge.EventStream, error) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	status := c.radio.Init(c.bridge.Handle(), bridge.OnError)
	if !status.IsSuccess() {
		c.initialized.Store(false)
		err := c.commandError("initialize", status, radio.StatusSuccess)
		c.logger.WithError(err).Warn("Radio initialization failed, continuing in degraded mode")
		return nil, err
	}

	c.initialized.Store(true)
	c.logger.WithField("session", c.sessionID).Info("Radio initialized")
	return c.bridge.Events(), nil
}

// StartScan installs the device-found callback and starts discovery.
func (c *Controller) StartScan() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	status := c.radio.StartScan(c.bridge.Handle(), bridge.OnDeviceFound, bridge.OnError)
	if !status.IsSuccess() {
		err := c.commandError("start scan", status, radio.StatusSuccess)
		c.logger.WithError(err).Warn("Failed to start scan")
		return err
	}

	c.scanning.Store(true)
	c.emit(bridge.ScanStarted())
	c.logger.Info("Scan started")
	return nil
}

// StopScan returns once the radio stopped discovery. Device events already
// dispatched by the radio may still arrive and are applied as usual.
func (c *Controller) StopScan() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	status := c.radio.StopScan()
	if !status.IsSuccess() {
		err := c.commandError("stop scan", status, radio.StatusSuccess)
		c.logger.WithError(err).Warn("Failed to stop scan")
		return err
	}

	c.scanning.Store(false)
	c.emit(bridge.ScanStopped())
	c.logger.Info("Scan stopped")
	return nil
}

// Connect opens a link. On success a Connected event is emitted and the interaction
// is recorded. Connection-failed statuses return an error matching
// radio.ErrConnectionFailed; any other failure matches radio.ErrOperationFailed.
func (c *Controller) Connect(address uint64) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	log := c.logger.WithField("address", radio.FormatAddress(address))

	status := c.radio.Connect(address)
	if !status.IsSuccess() {
		err := c.commandError("connect", status, linkFailure(status))
		log.WithError(err).Warn("Connect failed")
		return err
	}

	c.emit(bridge.Connected(address))
	c.track(address, true)
	c.recordInteraction(address)
	log.Info("Connected")
	return nil
}

// Disconnect closes a link; error mapping is the same as Connect.
func (c *Controller) Disconnect(address uint64) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	log := c.logger.WithField("address", radio.FormatAddress(address))

	status := c.radio.Disconnect(address)
	if !status.IsSuccess() {
		err := c.commandError("disconnect", status, linkFailure(status))
		log.WithError(err).Warn("Disconnect failed")
		return err
	}

	c.emit(bridge.Disconnected(address))
	c.track(address, false)
	c.recordInteraction(address)
	log.Info("Disconnected")
	return nil
}

// CheckPermission asks the radio whether it may be used. No state changes, no events.
func (c *Controller) CheckPermission() bool {
	return c.radio.CheckPermission()
}

// SnapshotDevices returns a copy of the known devices
func (c *Controller) SnapshotDevices() []bridge.Device {
	return c.directory.Snapshot()
}

// InitAudio prepares audio routing. Failures match radio.ErrAudioInitFailed.
func (c *Controller) InitAudio() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	status := c.radio.AudioInit(c.bridge.Handle(), bridge.OnError)
	if !status.IsSuccess() {
		err := c.commandError("init audio", status, radio.StatusAudioInitFailed)
		c.logger.WithError(err).Warn("Audio initialization failed")
		return err
	}
	c.logger.Info("Audio initialized")
	return nil
}

// ChannelCount returns the number of audio channels routed to address
func (c *Controller) ChannelCount(address uint64) int {
	return c.radio.ChannelCount(address)
}

// ConnectedBySession lists the addresses this session connected and has not disconnected
func (c *Controller) ConnectedBySession() []uint64 {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	out := make([]uint64, 0, len(c.connected))
	for a := range c.connected {
		out = append(out, a)
	}
	return out
}

// linkFailure picks the error status reported for a failed connect or disconnect.
func linkFailure(status radio.Status) radio.Status {
	if status == radio.StatusConnectionFailed {
		return radio.StatusConnectionFailed
	}
	return radio.StatusOperationFailed
}

// commandError builds the typed error for a failed command. When reportAs is not
// StatusSuccess, the error reports that status and keeps the native one as cause.
func (c *Controller) commandError(op string, status radio.Status, reportAs radio.Status) error {
	err := &radio.StatusError{Status: status, Op: op, Message: c.diagnostic()}
	if reportAs != radio.StatusSuccess {
		return err.Generalize(reportAs)
	}
	return err
}

// diagnostic returns the most specific failure text available
func (c *Controller) diagnostic() string {
	if msg := c.radio.LastError(); msg != "" {
		return msg
	}
	return c.bridge.LastError()
}

func (c *Controller) emit(ev bridge.Event) {
	if err := c.bridge.Emit(ev); err != nil {
		level := logrus.WarnLevel
		if errors.Is(err, radio.ErrBridgeDisconnected) {
			level = logrus.DebugLevel
		}
		c.logger.WithError(err).WithField("event", ev.Kind).Log(level, "Synthesized event not delivered")
	}
}

func (c *Controller) track(address uint64, connected bool) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if connected {
		c.connected[address] = struct{}{}
	} else {
		delete(c.connected, address)
	}
}

func (c *Controller) recordInteraction(address uint64) {
	if c.registry == nil {
		return
	}
	name := c.nameOf(address)
	if err := c.registry.RecordInteraction(address, name); err != nil {
		c.logger.WithError(err).WithField("address", radio.FormatAddress(address)).Warn("Failed to record interaction")
	}
}

// nameOf prefers the advertised name, then the configured alias. The directory
// lags the stream until the consumer drains, so the bridge is asked for names
// that are still buffered.
func (c *Controller) nameOf(address uint64) string {
	if dev, ok := c.directory.Get(address); ok && dev.Name != "" {
		return dev.Name
	}
	if name, ok := c.bridge.ObservedName(address); ok {
		return name
	}
	if c.config != nil {
		if alias, ok := c.config.NameOf(address); ok {
			return alias
		}
	}
	return ""
}
