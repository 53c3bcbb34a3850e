package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/redtooth/internal/session"
)

// commandContext is cancelled by Ctrl+C/SIGTERM and, when d > 0, after d.
func commandContext(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if d <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, func() {
		cancel()
		stop()
	}
}

// initRadio initializes the session and verifies the radio may be used.
func initRadio(ctrl *session.Controller) error {
	if _, err := ctrl.Initialize(); err != nil {
		return fmt.Errorf("%w: %w", ErrRadioUnavailable, err)
	}
	return nil
}

func closeSession(ctrl *session.Controller, logger *logrus.Logger) {
	if err := ctrl.Shutdown(); err != nil {
		logger.WithError(err).Warn("Session shutdown reported errors")
	}
}
