package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srg/redtooth/internal/radio"
)

// devicesCmd lists the configured devices
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List configured device aliases",
	Args:  cobra.NoArgs,
	RunE:  runDevices,
}

var aliasCmd = &cobra.Command{
	Use:   "alias",
	Short: "Manage device aliases",
}

var aliasAddCmd = &cobra.Command{
	Use:   "add <name> <address>",
	Short: "Bind a name to a device address",
	Args:  cobra.ExactArgs(2),
	RunE:  runAliasAdd,
}

var aliasRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a device alias",
	Args:  cobra.ExactArgs(1),
	RunE:  runAliasRemove,
}

var autoConnectCmd = &cobra.Command{
	Use:   "autoconnect",
	Short: "Manage the devices connected at startup",
}

var autoConnectAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Connect a configured device whenever a session starts",
	Args:  cobra.ExactArgs(1),
	RunE:  runAutoConnectAdd,
}

var autoConnectRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Stop connecting a device at startup",
	Args:  cobra.ExactArgs(1),
	RunE:  runAutoConnectRemove,
}

var devicesFormat string

func init() {
	devicesCmd.Flags().StringVarP(&devicesFormat, "format", "f", "table", "Output format (table, json)")

	aliasCmd.AddCommand(aliasAddCmd, aliasRemoveCmd)
	autoConnectCmd.AddCommand(autoConnectAddCmd, autoConnectRemoveCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	if err := validateFormat(devicesFormat); err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	auto := make(map[string]bool)
	for _, name := range a.config.AutoConnectList() {
		auto[name] = true
	}

	names := a.config.DeviceNames()
	aliases := make([]aliasView, 0, len(names))
	for _, name := range names {
		view := aliasView{Name: name, Address: a.config.Devices[name], AutoConnect: auto[name]}
		if address, ok := a.config.Resolve(name); ok {
			view.Address = radio.FormatAddress(address)
		}
		aliases = append(aliases, view)
	}
	return displayAliases(cmd.OutOrStdout(), aliases, devicesFormat)
}

func runAliasAdd(cmd *cobra.Command, args []string) error {
	address, err := radio.ParseAddress(args[1])
	if err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	if err := a.config.AddDevice(args[0], address); err != nil {
		return err
	}
	if err := a.config.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", describeDevice(address, args[0]))
	return nil
}

func runAliasRemove(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	name := args[0]
	if !a.config.RemoveDevice(name) {
		return fmt.Errorf("%w: no alias named %q", ErrUnknownDevice, name)
	}
	// an auto-connect entry without an alias can never resolve
	a.config.RemoveAutoConnect(name)
	if err := a.config.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", name)
	return nil
}

func runAutoConnectAdd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	name := args[0]
	if _, ok := a.config.Resolve(name); !ok {
		return fmt.Errorf("%w: no alias named %q, add one with 'redtooth alias add'", ErrUnknownDevice, name)
	}
	if !a.config.AddAutoConnect(name) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is already in the auto-connect list\n", name)
		return nil
	}
	if err := a.config.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s will be connected at startup\n", name)
	return nil
}

func runAutoConnectRemove(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	name := args[0]
	if !a.config.RemoveAutoConnect(name) {
		return fmt.Errorf("%q is not in the auto-connect list", name)
	}
	if err := a.config.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s removed from the auto-connect list\n", name)
	return nil
}
