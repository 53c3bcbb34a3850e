package main

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/srg/redtooth/internal/bridge"
	"github.com/srg/redtooth/internal/session"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for nearby devices",
	Long: `Scan for nearby devices and display what was discovered: name, address,
signal strength, device class and whether the device is connected.

Scanning stops after --duration (config scan_timeout by default) or on Ctrl+C.`,
	RunE: runScan,
}

var (
	scanDuration time.Duration
	scanFormat   string
	scanWatch    bool
)

// ErrPermissionDenied is returned when the radio refuses discovery
var ErrPermissionDenied = errors.New("bluetooth permission not granted")

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 10*time.Second, "Scan duration (0 for indefinite)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false, "Redraw the device table every second")
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := validateFormat(scanFormat); err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	format := scanFormat
	if !cmd.Flags().Changed("format") {
		format = a.config.OutputFormat
	}
	duration := scanDuration
	if !cmd.Flags().Changed("duration") {
		duration = a.config.ScanTimeout
	}

	out := cmd.OutOrStdout()
	progress := NewProgressPrinter(out, "Scanning", duration)

	var ctrl *session.Controller
	ctrl, err = a.openSession(func(ev bridge.Event) {
		if ev.Kind == bridge.KindDeviceObserved {
			progress.SetCount(ctrl.Directory().Len())
		}
	})
	if err != nil {
		return err
	}
	defer closeSession(ctrl, a.logger)

	if err := initRadio(ctrl); err != nil {
		return err
	}
	if !ctrl.CheckPermission() {
		return ErrPermissionDenied
	}
	if err := ctrl.StartScan(); err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd.Context(), duration)
	defer cancel()

	if scanWatch {
		return watchDevices(ctx, out, ctrl, format)
	}

	progress.Start()
	runErr := ctrl.Run(ctx)
	progress.Stop()

	if err := ctrl.StopScan(); err != nil {
		a.logger.WithError(err).Warn("Failed to stop scan")
	}
	ctrl.Drain()

	if runErr != nil && !errors.Is(runErr, bridge.ErrStreamClosed) {
		return runErr
	}
	return displayDevices(out, ctrl.SnapshotDevices(), format)
}

// watchDevices redraws the table every second until ctx ends.
func watchDevices(ctx context.Context, out io.Writer, ctrl *session.Controller, format string) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	redraw := func() error {
		ctrl.Drain()
		clearScreen(out)
		return displayDevices(out, ctrl.SnapshotDevices(), format)
	}

	for {
		select {
		case <-ctx.Done():
			return redraw()
		case <-ticker.C:
			if err := redraw(); err != nil {
				return err
			}
		}
	}
}
