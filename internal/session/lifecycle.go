package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/redtooth/internal/groutine"
	"github.com/srg/redtooth/internal/radio"
)

// DefaultWatchdogInterval is the reconnect check period
const DefaultWatchdogInterval = 500 * time.Millisecond

// StartupReport describes what Startup managed to do
type StartupReport struct {
	InitError         error
	PermissionGranted bool
	ScanStarted       bool
	ScanError         error
	Connected         []string
	Unresolved        []string         // auto-connect names without a configured address
	Failed            map[string]error // auto-connect names whose connect failed
}

// Startup initializes the radio, checks permission, starts scanning when permitted and
// configured, then connects every auto-connect device. A failed step does not abort the
// following ones.
func (c *Controller) Startup() StartupReport {
	report := StartupReport{Failed: make(map[string]error)}

	if _, err := c.Initialize(); err != nil {
		report.InitError = err
	}

	report.PermissionGranted = c.CheckPermission()
	c.permission.Store(report.PermissionGranted)
	if !report.PermissionGranted {
		c.logger.Warn("Bluetooth permission not granted")
	}

	autoScan := c.config == nil || c.config.AutoScan
	if report.PermissionGranted && autoScan {
		if err := c.StartScan(); err != nil {
			report.ScanError = err
		} else {
			report.ScanStarted = true
		}
	}

	if c.config == nil {
		return report
	}
	for _, name := range c.config.AutoConnectList() {
		address, ok := c.config.Resolve(name)
		if !ok {
			c.logger.WithField("name", name).Warn("Auto-connect device has no configured address")
			report.Unresolved = append(report.Unresolved, name)
			continue
		}
		if err := c.Connect(address); err != nil {
			report.Failed[name] = err
			continue
		}
		report.Connected = append(report.Connected, name)
	}

	c.logger.WithFields(logrus.Fields{
		"session":    c.sessionID,
		"permission": report.PermissionGranted,
		"scanning":   report.ScanStarted,
		"connected":  len(report.Connected),
	}).Info("Startup complete")
	return report
}

// Shutdown stops discovery, disconnects the links this session opened, applies the
// remaining events and releases the bridge, the radio and the registry.
func (c *Controller) Shutdown() error {
	var errs []error

	if c.Scanning() {
		if err := c.StopScan(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, address := range c.ConnectedBySession() {
		if err := c.Disconnect(address); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", radio.FormatAddress(address), err))
		}
	}

	c.Drain()
	c.bridge.Close()

	if err := c.radio.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close radio: %w", err))
	}
	if c.registry != nil {
		if err := c.registry.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close registry: %w", err))
		}
	}

	c.logger.WithField("session", c.sessionID).Info("Session shut down")
	return errors.Join(errs...)
}

// Watchdog reconnects auto-connect devices that are known but not connected.
type Watchdog struct {
	controller *Controller
	interval   time.Duration
	attempts   atomic.Int64

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// StartWatchdog runs Check every interval until ctx is done or Stop is called.
// interval <= 0 selects DefaultWatchdogInterval.
func (c *Controller) StartWatchdog(ctx context.Context, interval time.Duration) *Watchdog {
	if interval <= 0 {
		interval = DefaultWatchdogInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	w := &Watchdog{
		controller: c,
		interval:   interval,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	groutine.GoSafe(ctx, "session-watchdog", c.logger, func(ctx context.Context) {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.Check()
			}
		}
	}, nil)
	return w
}

// Check runs one reconnect pass and returns how many reconnects were attempted.
func (w *Watchdog) Check() int {
	c := w.controller
	if c.config == nil {
		return 0
	}

	attempted := 0
	for _, name := range c.config.AutoConnectList() {
		address, ok := c.config.Resolve(name)
		if !ok {
			continue
		}
		dev, known := c.directory.Get(address)
		if !known || dev.Connected {
			continue
		}

		attempted++
		w.attempts.Add(1)
		log := c.logger.WithFields(logrus.Fields{
			"name":    name,
			"address": radio.FormatAddress(address),
		})
		if err := c.Connect(address); err != nil {
			log.WithError(err).Debug("Watchdog reconnect failed")
			continue
		}
		log.Info("Watchdog reconnected device")
	}
	return attempted
}

// Attempts returns the total number of reconnects attempted
func (w *Watchdog) Attempts() int64 {
	return w.attempts.Load()
}

// Stop ends the loop and waits for it to exit
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() {
		w.cancel()
		<-w.done
	})
}
