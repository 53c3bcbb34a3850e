package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/srg/redtooth/internal/bridge"
	"github.com/srg/redtooth/internal/hooks"
	"github.com/srg/redtooth/internal/session"
)

// monitorCmd runs a full session and prints its event stream
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run a session and print its events",
	Long: `Run a long-lived session: initialize the radio, start scanning (config auto_scan),
connect the auto-connect devices and keep them connected with a watchdog. Every event
is printed as it is applied.

--script loads a Lua file whose hook functions are called for each event:

  function on_device(dev) print(dev.name, dev.address, dev.rssi) end
  function on_connected(address) end
  function on_disconnected(address) end
  function on_scan(started) end
  function on_error(message, status) end`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

var (
	monitorDuration time.Duration
	monitorScript   string
	monitorQuiet    bool
	monitorWatchdog bool
	monitorJournal  int
)

func init() {
	monitorCmd.Flags().DurationVarP(&monitorDuration, "duration", "d", 0, "How long to run (0 until interrupted)")
	monitorCmd.Flags().StringVarP(&monitorScript, "script", "s", "", "Lua hook script")
	monitorCmd.Flags().BoolVarP(&monitorQuiet, "quiet", "q", false, "Do not print events, only hook output")
	monitorCmd.Flags().BoolVar(&monitorWatchdog, "watchdog", true, "Reconnect auto-connect devices that drop")
	monitorCmd.Flags().IntVarP(&monitorJournal, "journal", "j", 0, "Print the last N journaled events on exit")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if !levelFromFlags(cmd) {
		a.logger.SetLevel(a.config.LogLevel)
	}
	out := cmd.OutOrStdout()

	var eventHooks []session.EventHook
	if !monitorQuiet {
		eventHooks = append(eventHooks, func(ev bridge.Event) {
			fmt.Fprintf(out, "%s %s\n", ev.Time.Format("15:04:05.000"), ev)
		})
	}
	if monitorScript != "" {
		engine := hooks.New(a.logger, out)
		defer engine.Close()
		if err := engine.LoadFile(monitorScript); err != nil {
			return err
		}
		eventHooks = append(eventHooks, engine.Hook())
	}

	ctrl, err := a.openSession(eventHooks...)
	if err != nil {
		return err
	}
	defer closeSession(ctrl, a.logger)

	report := ctrl.Startup()
	printStartupReport(out, report)

	ctx, cancel := commandContext(cmd.Context(), monitorDuration)
	defer cancel()

	if monitorWatchdog {
		watchdog := ctrl.StartWatchdog(ctx, a.config.WatchdogInterval)
		defer watchdog.Stop()
	}

	runErr := ctrl.Run(ctx)
	ctrl.Drain()

	if monitorJournal > 0 {
		if err := printJournal(out, ctrl.EventLog(), monitorJournal); err != nil {
			a.logger.WithError(err).Warn("Failed to read event journal")
		}
	}

	stats := ctrl.Bridge().Stats()
	journal := ctrl.EventLog().GetMetrics()
	fmt.Fprintf(out, "Session %s: %d events applied, %d dropped, %d devices known\n",
		ctrl.SessionID(), journal.Recorded, stats.Dropped, ctrl.Directory().Len())

	if runErr != nil && !errors.Is(runErr, bridge.ErrStreamClosed) {
		return runErr
	}
	return nil
}

func printJournal(out io.Writer, log *session.EventLog, n int) error {
	events, err := log.Tail(n)
	if len(events) > 0 {
		fmt.Fprintf(out, "Journal (last %d of %d events):\n", len(events), log.GetMetrics().Recorded)
		for _, ev := range events {
			fmt.Fprintf(out, "  %s %s\n", ev.Time.Format("15:04:05.000"), ev)
		}
	}
	return err
}

func printStartupReport(out io.Writer, r session.StartupReport) {
	if r.InitError != nil {
		fmt.Fprintf(out, "Radio unavailable: %s\n", FormatUserError(r.InitError))
	}
	if !r.PermissionGranted {
		fmt.Fprintln(out, "Bluetooth permission not granted, discovery disabled")
	}
	if r.ScanError != nil {
		fmt.Fprintf(out, "Scan failed: %s\n", FormatUserError(r.ScanError))
	}
	for _, name := range r.Unresolved {
		fmt.Fprintf(out, "Auto-connect %s: no configured address\n", name)
	}

	failed := make([]string, 0, len(r.Failed))
	for name := range r.Failed {
		failed = append(failed, name)
	}
	sort.Strings(failed)
	for _, name := range failed {
		fmt.Fprintf(out, "Auto-connect %s failed: %s\n", name, FormatUserError(r.Failed[name]))
	}
	for _, name := range r.Connected {
		fmt.Fprintf(out, "Auto-connected %s\n", name)
	}
}
