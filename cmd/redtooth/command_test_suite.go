//go:build test

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/suite"

	"github.com/srg/redtooth/internal/radio"
	"github.com/srg/redtooth/internal/radio/simradio"
	"github.com/srg/redtooth/internal/testutils"
	"github.com/srg/redtooth/pkg/config"
)

// Addresses of the simulated demo devices
const (
	demoSpeaker = "00:00:A0:B1:C2:D3"
	demoHeadset = "00:00:A0:B1:C2:D4"
)

// CommandTestSuite runs commands against a temporary config and registry. Every
// radio created by a command is a simulated one, reachable through suite.Sim.
type CommandTestSuite struct {
	suite.Suite

	Dir          string
	ConfigPath   string
	RegistryPath string
	Sim          *simradio.Radio

	originalRadio func(*logrus.Logger, bool) radio.Radio
}

func (suite *CommandTestSuite) SetupSuite() {
	suite.originalRadio = newRadio
}

func (suite *CommandTestSuite) TearDownSuite() {
	newRadio = suite.originalRadio
}

func (suite *CommandTestSuite) SetupTest() {
	suite.Dir = suite.T().TempDir()
	suite.ConfigPath = filepath.Join(suite.Dir, "config.yaml")
	suite.RegistryPath = filepath.Join(suite.Dir, "registry.yaml")

	cfg := config.DefaultConfig()
	cfg.RegistryPath = suite.RegistryPath
	cfg.SetPath(suite.ConfigPath)
	suite.Require().NoError(cfg.Save())

	suite.Sim = nil
	newRadio = func(logger *logrus.Logger, simulate bool) radio.Radio {
		suite.Sim = simradio.New(
			simradio.WithLogger(logger),
			simradio.WithInterval(20*time.Millisecond),
			simradio.WithDevices(demoDevices...),
		)
		return suite.Sim
	}

	resetFlags(rootCmd)
}

// LoadConfig reads the config file the commands write to
func (suite *CommandTestSuite) LoadConfig() *config.Config {
	cfg, err := config.Load(suite.ConfigPath, testutils.NewTestLogger())
	suite.Require().NoError(err)
	return cfg
}

// UpdateConfig edits and saves the test config
func (suite *CommandTestSuite) UpdateConfig(edit func(*config.Config)) {
	cfg := suite.LoadConfig()
	edit(cfg)
	suite.Require().NoError(cfg.Save())
}

// WriteFile creates a file under the test directory and returns its path
func (suite *CommandTestSuite) WriteFile(name, content string) string {
	path := filepath.Join(suite.Dir, name)
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0o644))
	return path
}

// ExecuteCommand runs the root command with args plus --config, returns output and error.
func (suite *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(append(args, "--config", suite.ConfigPath))
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag of cmd and its children to its default value, so
// values from one execution do not leak into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}
