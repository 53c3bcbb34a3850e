package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/redtooth/internal/radio"
	"github.com/srg/redtooth/internal/radio/goble"
	"github.com/srg/redtooth/internal/radio/simradio"
	"github.com/srg/redtooth/internal/registry"
	"github.com/srg/redtooth/internal/session"
	"github.com/srg/redtooth/pkg/config"
)

// demoDevices are announced by the simulated radio
var demoDevices = []simradio.Device{
	simradio.Named(0x0000A0B1C2D3, "Demo Speaker", -48),
	simradio.Named(0x0000A0B1C2D4, "Demo Headset", -63),
	simradio.Anonymous(0x0000A0B1C2D5, -81),
}

// newRadio selects the radio implementation; tests replace it.
var newRadio = func(logger *logrus.Logger, simulate bool) radio.Radio {
	if simulate {
		return simradio.New(simradio.WithLogger(logger), simradio.WithDevices(demoDevices...))
	}
	return goble.New(logger, goble.DefaultConnectTimeout)
}

// app bundles what every command needs: logger, config and, on demand, a session.
type app struct {
	logger   *logrus.Logger
	config   *config.Config
	simulate bool
}

func newApp(cmd *cobra.Command) (*app, error) {
	logger, err := configureLogger(cmd, "verbose")
	if err != nil {
		return nil, err
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, logger)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfg.Path(), err)
	}
	simulate, _ := cmd.Flags().GetBool("simulate")

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	return &app{logger: logger, config: cfg, simulate: simulate}, nil
}

// openSession builds a controller over the selected radio and the configured registry.
func (a *app) openSession(hooks ...session.EventHook) (*session.Controller, error) {
	sessionID := uuid.NewString()

	reg, err := registry.Open(a.config.RegistryPath, a.logger, registry.WithSession(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to open device registry: %w", err)
	}

	return session.New(newRadio(a.logger, a.simulate), session.Options{
		Logger:    a.logger,
		SessionID: sessionID,
		Registry:  reg,
		Config:    a.config,
		Hooks:     hooks,
	}), nil
}

// resolveDevice accepts a configured alias or an address.
func (a *app) resolveDevice(arg string) (uint64, string, error) {
	if address, ok := a.config.Resolve(arg); ok {
		return address, arg, nil
	}
	address, err := radio.ParseAddress(arg)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %q", ErrUnknownDevice, arg)
	}
	name, _ := a.config.NameOf(address)
	return address, name, nil
}

func describeDevice(address uint64, name string) string {
	if strings.TrimSpace(name) == "" {
		return radio.FormatAddress(address)
	}
	return fmt.Sprintf("%s (%s)", name, radio.FormatAddress(address))
}
