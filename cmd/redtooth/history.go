package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/srg/redtooth/internal/registry"
)

// historyCmd shows the device registry
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show devices this machine interacted with",
	Long: `Show the device registry: every device connected or disconnected through
redtooth, most recently seen first, with its connection count.

--cleanup removes entries not seen for longer than the given duration.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var (
	historyFormat  string
	historyCleanup time.Duration
)

func init() {
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "table", "Output format (table, json)")
	historyCmd.Flags().DurationVar(&historyCleanup, "cleanup", 0, "Remove entries older than this before listing")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := validateFormat(historyFormat); err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	reg, err := registry.Open(a.config.RegistryPath, a.logger)
	if err != nil {
		return fmt.Errorf("failed to open device registry: %w", err)
	}
	defer reg.Close()

	out := cmd.OutOrStdout()
	if historyCleanup > 0 {
		removed, err := reg.Cleanup(historyCleanup)
		if err != nil {
			return err
		}
		if historyFormat == "table" {
			fmt.Fprintf(out, "Removed %d stale entries\n", removed)
		}
	}

	entries, err := reg.All()
	if err != nil {
		return err
	}
	return displayHistory(out, entries, historyFormat, time.Now())
}
