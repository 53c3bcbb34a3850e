package session

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/redtooth/internal/bridge"
	"github.com/srg/redtooth/internal/directory"
)

// runPollInterval bounds how long Run holds the consumer lock while idle.
const runPollInterval = 100 * time.Millisecond

// Drain applies every event currently buffered, without blocking, and returns them
// in the order they were applied.
func (c *Controller) Drain() []bridge.Event {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	events := c.bridge.Events().Drain(0)
	for _, ev := range events {
		c.apply(ev)
	}
	return events
}

// WaitAndApply waits at most timeout for one event and applies it.
func (c *Controller) WaitAndApply(timeout time.Duration) (bridge.Event, bool) {
	ev, err := c.receive(context.Background(), timeout)
	return ev, err == nil
}

// WaitFor applies events until match returns true or timeout elapses. Every event
// seen is applied, matching or not.
func (c *Controller) WaitFor(timeout time.Duration, match func(bridge.Event) bool) (bridge.Event, bool) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return bridge.Event{}, false
		}
		ev, ok := c.WaitAndApply(remaining)
		if !ok {
			return bridge.Event{}, false
		}
		if match(ev) {
			return ev, true
		}
	}
}

// Run applies events until ctx is done or the stream is closed and empty. It
// returns nil on cancellation and bridge.ErrStreamClosed when the stream ends.
func (c *Controller) Run(ctx context.Context) error {
	for {
		_, err := c.receive(ctx, runPollInterval)
		switch {
		case err == nil, errors.Is(err, context.DeadlineExceeded):
			if ctx.Err() != nil {
				return nil
			}
		case errors.Is(err, context.Canceled):
			return nil
		default:
			return err
		}
	}
}

func (c *Controller) receive(ctx context.Context, timeout time.Duration) (bridge.Event, error) {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ev, err := c.bridge.Events().Receive(ctx)
	if err != nil {
		return ev, err
	}
	c.apply(ev)
	return ev, nil
}

// apply folds one event into the directory, the journal and the hooks. Must hold applyMu.
func (c *Controller) apply(ev bridge.Event) {
	if err := c.directory.Apply(ev); err != nil {
		if errors.Is(err, directory.ErrAnomalousEvent) {
			c.logger.WithError(err).WithField("seq", ev.Seq).Debug("Anomalous event skipped")
		} else {
			c.logger.WithError(err).Warn("Failed to apply event")
		}
	}

	if err := c.eventLog.Record(ev); err != nil {
		c.logger.WithError(err).Warn("Failed to journal event")
	}

	for _, hook := range c.hooks {
		c.runHook(hook, ev)
	}
}

func (c *Controller) runHook(hook EventHook, ev bridge.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithFields(logrus.Fields{
				"event": ev.Kind,
				"panic": r,
			}).Error("Recovered panic in event hook")
		}
	}()
	hook(ev)
}
