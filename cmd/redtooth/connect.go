package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/srg/redtooth/internal/bridge"
	"github.com/srg/redtooth/internal/session"
)

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect <device>",
	Short: "Connect to a device and hold the link",
	Long: `Connect to a device given by alias or address and hold the link until
Ctrl+C or --duration elapses. The link is closed on exit and the interaction is
recorded in the device history.`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

// disconnectCmd represents the disconnect command
var disconnectCmd = &cobra.Command{
	Use:   "disconnect <device>",
	Short: "Disconnect a device",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisconnect,
}

var (
	connectDuration time.Duration
	connectAudio    bool
)

func init() {
	connectCmd.Flags().DurationVarP(&connectDuration, "duration", "d", 0, "How long to hold the link (0 until interrupted)")
	connectCmd.Flags().BoolVar(&connectAudio, "audio", false, "Initialize audio routing and report the channel count")
}

func runConnect(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	address, name, err := a.resolveDevice(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	label := describeDevice(address, name)

	var ctrl *session.Controller
	ctrl, err = a.openSession(func(ev bridge.Event) {
		if ev.Kind == bridge.KindError {
			fmt.Fprintf(out, "! %s\n", ev.Message)
		}
	})
	if err != nil {
		return err
	}
	defer closeSession(ctrl, a.logger)

	if err := initRadio(ctrl); err != nil {
		return err
	}
	if err := ctrl.Connect(address); err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s\n", label)
	if connectAudio {
		if err := ctrl.InitAudio(); err != nil {
			fmt.Fprintf(out, "Audio unavailable: %s\n", FormatUserError(err))
		} else {
			fmt.Fprintf(out, "Audio channels: %d\n", ctrl.ChannelCount(address))
		}
	}

	ctx, cancel := commandContext(cmd.Context(), connectDuration)
	defer cancel()
	if err := ctrl.Run(ctx); err != nil && !errors.Is(err, bridge.ErrStreamClosed) {
		return err
	}

	if err := ctrl.Disconnect(address); err != nil {
		return err
	}
	fmt.Fprintf(out, "Disconnected from %s\n", label)
	return nil
}

func runDisconnect(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	address, name, err := a.resolveDevice(args[0])
	if err != nil {
		return err
	}

	ctrl, err := a.openSession()
	if err != nil {
		return err
	}
	defer closeSession(ctrl, a.logger)

	if err := initRadio(ctrl); err != nil {
		return err
	}
	if err := ctrl.Disconnect(address); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Disconnected from %s\n", describeDevice(address, name))
	return nil
}
