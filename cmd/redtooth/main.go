package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/srg/redtooth/pkg/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "redtooth",
	Short: "Bluetooth device session CLI",
	Long: `Bluetooth command-line tool built around a device session:

- Scan and list nearby devices
- Connect to and disconnect from devices
- Keep named device aliases and an auto-connect list
- Show the history of devices this machine interacted with
- Monitor the live event stream, optionally driving Lua hook scripts

Use --simulate to run against the built-in simulated radio.`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.SetVersionTemplate(fmt.Sprintf("redtooth %s (commit %s, built %s)\n", formatVersion(version), commit, date))

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(aliasCmd)
	rootCmd.AddCommand(autoConnectCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(monitorCmd)

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", config.DefaultPath(), "Config file path")
	rootCmd.PersistentFlags().Bool("simulate", false, "Use the simulated radio instead of the system adapter")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
