//go:build test

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/srg/redtooth/internal/hooks"
	"github.com/srg/redtooth/internal/radio"
	"github.com/srg/redtooth/internal/radio/simradio"
	"github.com/srg/redtooth/internal/testutils"
	"github.com/srg/redtooth/pkg/config"
)

type CommandsTestSuite struct {
	CommandTestSuite
}

func (suite *CommandsTestSuite) TestAliasAndAutoConnect() {
	// GOAL: Alias and auto-connect edits are persisted to the config file
	//
	// TEST SCENARIO: add alias → add to auto-connect → list as JSON → remove alias →
	// auto-connect entry removed with it
	out, err := suite.ExecuteCommand("alias", "add", "speaker", demoSpeaker)
	suite.Require().NoError(err)
	suite.Equal("Added speaker (00:00:A0:B1:C2:D3)\n", out)

	out, err = suite.ExecuteCommand("autoconnect", "add", "speaker")
	suite.Require().NoError(err)
	suite.Equal("speaker will be connected at startup\n", out)

	out, err = suite.ExecuteCommand("autoconnect", "add", "speaker")
	suite.Require().NoError(err)
	suite.Contains(out, "already in the auto-connect list")

	out, err = suite.ExecuteCommand("devices", "--format", "json")
	suite.Require().NoError(err)
	testutils.NewJSONAsserter(suite.T()).Assert(out, `[
		{"name": "speaker", "address": "00:00:A0:B1:C2:D3", "auto_connect": true}
	]`)

	cfg := suite.LoadConfig()
	suite.Equal([]string{"speaker"}, cfg.AutoConnectList())

	_, err = suite.ExecuteCommand("alias", "remove", "speaker")
	suite.Require().NoError(err)

	cfg = suite.LoadConfig()
	suite.Empty(cfg.DeviceNames())
	suite.Empty(cfg.AutoConnectList(), "removing an alias MUST drop its auto-connect entry")
}

func (suite *CommandsTestSuite) TestDevicesTable() {
	suite.UpdateConfig(func(cfg *config.Config) {
		suite.Require().NoError(cfg.AddDevice("speaker", 0xA0B1C2D3))
		suite.Require().NoError(cfg.AddDevice("headset", 0xA0B1C2D4))
		cfg.AddAutoConnect("headset")
	})

	out, err := suite.ExecuteCommand("devices")
	suite.Require().NoError(err)

	testutils.NewTextAsserter(suite.T()).Assert(out, `
NAME     ADDRESS            AUTO-CONNECT
headset  00:00:A0:B1:C2:D4  yes
speaker  00:00:A0:B1:C2:D3  no
`)
}

func (suite *CommandsTestSuite) TestAutoConnectRequiresAlias() {
	_, err := suite.ExecuteCommand("autoconnect", "add", "ghost")
	suite.ErrorIs(err, ErrUnknownDevice)
}

func (suite *CommandsTestSuite) TestAliasAddRejectsBadAddress() {
	_, err := suite.ExecuteCommand("alias", "add", "speaker", "not-a-mac")
	suite.Error(err)
	suite.Empty(suite.LoadConfig().DeviceNames())
}

func (suite *CommandsTestSuite) TestScanJSON() {
	// GOAL: A simulated scan lists every announced device
	out, err := suite.ExecuteCommand("scan", "--simulate", "--duration", "300ms", "--format", "json")
	suite.Require().NoError(err)

	var devices []map[string]any
	suite.Require().NoError(json.Unmarshal([]byte(out), &devices), "scan MUST print a JSON array")
	suite.Len(devices, 3)
	suite.Equal("Demo Speaker", devices[0]["name"], "strongest signal MUST come first")
	suite.Equal(demoSpeaker, devices[0]["address"])
	suite.Equal(false, devices[0]["connected"])
	suite.Equal("", devices[2]["name"], "anonymous devices MUST have an empty name")
}

func (suite *CommandsTestSuite) TestScanTable() {
	out, err := suite.ExecuteCommand("scan", "--simulate", "-d", "300ms")
	suite.Require().NoError(err)

	suite.Contains(out, "NAME")
	suite.Contains(out, "Demo Headset")
	suite.Contains(out, "(unknown)")
	suite.Contains(out, "-48 dBm")
}

func (suite *CommandsTestSuite) TestScanRejectsBadFormat() {
	_, err := suite.ExecuteCommand("scan", "--format", "xml")
	suite.ErrorContains(err, "invalid format")
}

func (suite *CommandsTestSuite) TestScanInitFailure() {
	newRadio = func(logger *logrus.Logger, _ bool) radio.Radio {
		suite.Sim = simradio.New(simradio.WithLogger(logger))
		suite.Sim.Fail(simradio.OpInit, radio.StatusOperationFailed, "adapter missing")
		return suite.Sim
	}

	_, err := suite.ExecuteCommand("scan", "-d", "100ms")
	suite.Require().Error(err)
	suite.ErrorIs(err, ErrRadioUnavailable)
	suite.ErrorIs(err, radio.ErrOperationFailed)
	suite.Contains(FormatUserError(err), "is Bluetooth turned on?")
}

func (suite *CommandsTestSuite) TestConnectAndHistory() {
	// GOAL: Connect holds the link for --duration, then disconnects; both are recorded
	//
	// TEST SCENARIO: alias → connect --audio for 100ms → history shows two interactions
	suite.UpdateConfig(func(cfg *config.Config) {
		suite.Require().NoError(cfg.AddDevice("speaker", 0xA0B1C2D3))
	})

	out, err := suite.ExecuteCommand("connect", "speaker", "--simulate", "--audio", "--duration", "100ms")
	suite.Require().NoError(err)
	testutils.NewTextAsserter(suite.T()).Assert(out, `
Connected to speaker (00:00:A0:B1:C2:D3)
Audio channels: 1
Disconnected from speaker (00:00:A0:B1:C2:D3)
`)
	suite.False(suite.Sim.IsConnected(0xA0B1C2D3), "the link MUST be closed on exit")

	out, err = suite.ExecuteCommand("history", "--format", "json")
	suite.Require().NoError(err)
	testutils.NewJSONAsserter(suite.T()).Assert(out, `[
		{"address": "00:00:A0:B1:C2:D3", "name": "speaker", "connection_count": 2}
	]`)
}

func (suite *CommandsTestSuite) TestConnectUnknownDevice() {
	_, err := suite.ExecuteCommand("connect", "nobody", "--simulate")
	suite.ErrorIs(err, ErrUnknownDevice)
	suite.Contains(FormatUserError(err), "redtooth devices")
}

func (suite *CommandsTestSuite) TestConnectDeviceNotFound() {
	_, err := suite.ExecuteCommand("connect", "11:22:33:44:55:66", "--simulate", "-d", "10ms")
	suite.Require().Error(err)
	suite.ErrorIs(err, radio.ErrOperationFailed)
	suite.ErrorIs(err, radio.ErrDeviceNotFound)
	suite.Contains(FormatUserError(err), "redtooth scan")
}

func (suite *CommandsTestSuite) TestDisconnectNotConnected() {
	_, err := suite.ExecuteCommand("disconnect", demoHeadset, "--simulate")
	suite.Require().Error(err)
	suite.ErrorIs(err, radio.ErrOperationFailed)
	suite.Equal("disconnect: Failed to disconnect from device", err.Error())
}

func (suite *CommandsTestSuite) TestHistoryEmpty() {
	out, err := suite.ExecuteCommand("history")
	suite.Require().NoError(err)
	suite.Equal("No device history\n", out)
}

func (suite *CommandsTestSuite) TestMonitorRunsHooksAndAutoConnects() {
	// GOAL: Monitor starts the session, auto-connects, prints events and drives Lua hooks
	suite.UpdateConfig(func(cfg *config.Config) {
		suite.Require().NoError(cfg.AddDevice("headset", 0xA0B1C2D4))
		cfg.AddAutoConnect("headset")
		cfg.AddAutoConnect("ghost")
	})
	script := suite.WriteFile("hooks.lua", `
function on_device(dev)
  if dev.name == "Demo Speaker" and not reported then
    reported = true
    print("hook saw " .. dev.name)
  end
end
`)

	out, err := suite.ExecuteCommand("monitor", "--simulate", "--duration", "300ms", "--script", script)
	suite.Require().NoError(err)

	suite.Contains(out, "Auto-connected headset")
	suite.Contains(out, "Auto-connect ghost: no configured address")
	suite.Contains(out, "scan-started")
	suite.Contains(out, "hook saw Demo Speaker\n")
	suite.Regexp(`Session [0-9a-f-]{36}: \d+ events applied, 0 dropped, 3 devices known`, out)
}

func (suite *CommandsTestSuite) TestMonitorPrintsJournal() {
	// GOAL: --journal prints the newest applied events from the session journal on exit
	//
	// TEST SCENARIO: quiet monitor → no live event lines → journal header + exactly 3 entries
	out, err := suite.ExecuteCommand("monitor", "--simulate", "--quiet", "--duration", "200ms", "--journal", "3")
	suite.Require().NoError(err)

	suite.Regexp(`Journal \(last 3 of \d+ events\):`, out)

	var entries []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "  ") {
			entries = append(entries, line)
		}
	}
	suite.Len(entries, 3, "journal MUST be limited to --journal entries")
	suite.Regexp(`^  \d{2}:\d{2}:\d{2}\.\d{3} #\d+ `, entries[0])
}

func (suite *CommandsTestSuite) TestMonitorScriptError() {
	script := suite.WriteFile("broken.lua", "function on_device(\n")

	_, err := suite.ExecuteCommand("monitor", "--simulate", "--duration", "50ms", "--script", script)
	suite.Require().Error(err)
	suite.ErrorIs(err, &hooks.ScriptError{Type: "syntax"})
	suite.Contains(FormatUserError(err), "hook script failed")
}

func (suite *CommandsTestSuite) TestInvalidLogLevel() {
	_, err := suite.ExecuteCommand("devices", "--log-level", "loud")
	suite.ErrorContains(err, "invalid log level")
}

func TestCommandsTestSuite(t *testing.T) {
	suite.Run(t, new(CommandsTestSuite))
}

func TestFormatUserError(t *testing.T) {
	connectionFailed := &radio.StatusError{Status: radio.StatusConnectionFailed, Op: "connect", Message: "Failed to connect to device"}

	cases := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), "boom"},
		{"connection failed", connectionFailed,
			"connect: Failed to connect to device (make sure the device is powered on and in range)"},
		{"wrapped connection failed", fmt.Errorf("auto-connect: %w", connectionFailed),
			"auto-connect: connect: Failed to connect to device (make sure the device is powered on and in range)"},
		{"radio unavailable", fmt.Errorf("%w: adapter missing", ErrRadioUnavailable),
			"bluetooth radio unavailable: adapter missing (is Bluetooth turned on?)"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatUserError(tc.err); got != tc.expected {
				t.Errorf("FormatUserError() = %q, want %q", got, tc.expected)
			}
		})
	}
}
