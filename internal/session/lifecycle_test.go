package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/srg/redtooth/internal/bridge"
	"github.com/srg/redtooth/internal/radio"
	"github.com/srg/redtooth/internal/radio/simradio"
	"github.com/srg/redtooth/internal/registry"
	"github.com/srg/redtooth/internal/session"
	"github.com/srg/redtooth/internal/testutils"
	"github.com/srg/redtooth/pkg/config"
)

const (
	deskSpeaker uint64 = 0xAABBCCDDEE01
	headphones  uint64 = 0xAABBCCDDEE02
)

type LifecycleTestSuite struct {
	suite.Suite

	logger     *logrus.Logger
	sim        *simradio.Radio
	registry   *registry.FileStore
	config     *config.Config
	controller *session.Controller
	applied    []bridge.Event
}

func (suite *LifecycleTestSuite) SetupTest() {
	suite.logger = testutils.NewTestLogger()
	// long interval: each scan announces the scripted devices once
	suite.sim = simradio.New(
		simradio.WithLogger(suite.logger),
		simradio.WithInterval(time.Hour),
		simradio.WithDevices(
			simradio.Named(deskSpeaker, "Desk Speaker", -45),
			simradio.Named(headphones, "Headphones", -60),
		),
	)
	suite.registry = registry.NewMemory(suite.logger, registry.WithSession("lifecycle"))

	suite.config = config.DefaultConfig()
	suite.config.AutoScan = false
	suite.Require().NoError(suite.config.AddDevice("desk", deskSpeaker))
	suite.config.AddAutoConnect("desk")
	suite.config.AddAutoConnect("ghost")

	suite.applied = nil
	suite.controller = suite.newController()
}

func (suite *LifecycleTestSuite) newController() *session.Controller {
	return session.New(suite.sim, session.Options{
		Logger:    suite.logger,
		SessionID: "lifecycle",
		Registry:  suite.registry,
		Config:    suite.config,
		Hooks: []session.EventHook{
			func(ev bridge.Event) { suite.applied = append(suite.applied, ev) },
		},
	})
}

func (suite *LifecycleTestSuite) TearDownTest() {
	_ = suite.controller.Shutdown()
}

func (suite *LifecycleTestSuite) waitObserved(address uint64) {
	_, ok := suite.controller.WaitFor(2*time.Second, func(ev bridge.Event) bool {
		return ev.Kind == bridge.KindDeviceObserved && ev.Address == address
	})
	suite.Require().True(ok, "device %s MUST be observed", radio.FormatAddress(address))
}

func (suite *LifecycleTestSuite) TestStartup_AutoConnect() {
	// GOAL: Startup connects every resolvable auto-connect device and reports the rest
	//
	// TEST SCENARIO: "desk" resolves → connected; "ghost" has no address → unresolved
	report := suite.controller.Startup()

	suite.NoError(report.InitError)
	suite.True(report.PermissionGranted)
	suite.True(suite.controller.PermissionGranted(), "Startup MUST store the permission flag")
	suite.False(report.ScanStarted, "auto_scan=false MUST NOT start discovery")
	suite.Equal([]string{"desk"}, report.Connected)
	suite.Equal([]string{"ghost"}, report.Unresolved)
	suite.Empty(report.Failed)

	suite.True(suite.sim.IsConnected(deskSpeaker))
	suite.ElementsMatch([]uint64{deskSpeaker}, suite.controller.ConnectedBySession())

	entry, ok, err := suite.registry.History(deskSpeaker)
	suite.Require().NoError(err)
	suite.Require().True(ok)
	suite.Equal("desk", entry.Name, "the configured alias MUST name devices not yet observed")
}

func (suite *LifecycleTestSuite) TestStartup_AutoScan() {
	suite.config.AutoScan = true

	report := suite.controller.Startup()
	suite.True(report.ScanStarted)
	suite.NoError(report.ScanError)
	suite.True(suite.controller.Scanning())

	suite.waitObserved(headphones)
}

func (suite *LifecycleTestSuite) TestStartup_PermissionDenied() {
	_ = suite.controller.Shutdown()
	suite.sim = simradio.New(simradio.WithLogger(suite.logger), simradio.WithPermission(false))
	suite.config.AutoScan = true
	suite.controller = suite.newController()

	report := suite.controller.Startup()
	suite.False(report.PermissionGranted)
	suite.False(report.ScanStarted, "discovery MUST NOT start without permission")
	suite.False(suite.controller.Scanning())
}

func (suite *LifecycleTestSuite) TestStartup_InitFailureContinues() {
	// GOAL: A failed init does not stop later startup steps from being attempted
	suite.sim.Fail(simradio.OpInit, radio.StatusOperationFailed, "adapter unavailable")

	report := suite.controller.Startup()

	suite.ErrorIs(report.InitError, radio.ErrOperationFailed)
	suite.False(suite.controller.Initialized())
	suite.Require().Contains(report.Failed, "desk", "auto-connect MUST still be attempted")
	suite.ErrorIs(report.Failed["desk"], radio.ErrNotInitialized)
	suite.ErrorIs(report.Failed["desk"], radio.ErrOperationFailed)
}

func (suite *LifecycleTestSuite) TestShutdown_DisconnectsSessionLinks() {
	suite.controller.Startup()
	suite.Require().True(suite.sim.IsConnected(deskSpeaker))

	suite.NoError(suite.controller.Shutdown())

	suite.False(suite.sim.IsConnected(deskSpeaker), "links opened by the session MUST be closed")
	suite.Empty(suite.controller.ConnectedBySession())
	suite.True(suite.controller.Events().IsClosed())

	err := suite.controller.Run(context.Background())
	suite.ErrorIs(err, bridge.ErrStreamClosed, "Run MUST end once the stream is closed and empty")
}

func (suite *LifecycleTestSuite) TestWatchdog_ReconnectsKnownDevices() {
	// GOAL: The watchdog reconnects auto-connect devices that are known but not connected
	//
	// TEST SCENARIO: device observed → check attempts reconnect → device connected →
	// check is a no-op
	_, err := suite.controller.Initialize()
	suite.Require().NoError(err)
	suite.Require().NoError(suite.controller.StartScan())
	suite.waitObserved(deskSpeaker)
	suite.Require().NoError(suite.controller.StopScan())
	suite.controller.Drain()

	w := suite.controller.StartWatchdog(context.Background(), time.Hour)
	defer w.Stop()

	suite.Equal(1, w.Check())
	suite.True(suite.sim.IsConnected(deskSpeaker))
	suite.controller.Drain()

	dev, ok := suite.controller.Directory().Get(deskSpeaker)
	suite.Require().True(ok)
	suite.True(dev.Connected)

	suite.Equal(0, w.Check(), "connected devices MUST NOT be reconnected")
	suite.Equal(int64(1), w.Attempts())
}

func (suite *LifecycleTestSuite) TestWatchdog_IgnoresUnknownDevices() {
	_, err := suite.controller.Initialize()
	suite.Require().NoError(err)

	w := suite.controller.StartWatchdog(context.Background(), time.Hour)
	suite.Equal(0, w.Check(), "devices never observed MUST NOT be dialled")
	w.Stop()
	w.Stop()
}

func (suite *LifecycleTestSuite) TestRun_AppliesUntilCancelled() {
	_, err := suite.controller.Initialize()
	suite.Require().NoError(err)
	suite.Require().NoError(suite.controller.StartScan())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- suite.controller.Run(ctx) }()

	suite.Eventually(func() bool {
		return suite.controller.Directory().Len() == 2
	}, 2*time.Second, 10*time.Millisecond, "Run MUST apply observed devices")

	cancel()
	select {
	case err := <-done:
		suite.NoError(err, "cancellation MUST end Run without error")
	case <-time.After(2 * time.Second):
		suite.FailNow("Run MUST return after cancellation")
	}
}

func (suite *LifecycleTestSuite) TestHooksAndEventLog() {
	panicking := func(bridge.Event) { panic("hook failure") }
	suite.controller.Bridge().Close()
	suite.controller = session.New(suite.sim, session.Options{
		Logger:   suite.logger,
		Registry: suite.registry,
		Config:   suite.config,
		Hooks: []session.EventHook{
			panicking,
			func(ev bridge.Event) { suite.applied = append(suite.applied, ev) },
		},
	})

	_, err := suite.controller.Initialize()
	suite.Require().NoError(err)
	suite.Require().NoError(suite.controller.StartScan())
	suite.waitObserved(headphones)

	suite.NotEmpty(suite.applied, "a panicking hook MUST NOT stop later hooks")
	suite.Equal(bridge.KindScanStarted, suite.applied[0].Kind)

	journal, err := suite.controller.EventLog().Consume()
	suite.Require().NoError(err)
	suite.Equal(len(suite.applied), len(journal), "every applied event MUST be journaled")
	suite.Equal(int64(len(journal)), suite.controller.EventLog().GetMetrics().Recorded)
}

func TestLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(LifecycleTestSuite))
}

func TestEventLog_KeepsNewestWhenFull(t *testing.T) {
	log := session.NewEventLog(16)
	for i := 0; i < 100; i++ {
		ev := bridge.Connected(uint64(i))
		ev.Seq = uint64(i)
		if err := log.Record(ev); err != nil {
			t.Fatalf("record MUST NOT fail on overwrite: %v", err)
		}
	}

	metrics := log.GetMetrics()
	if metrics.Recorded != 100 {
		t.Fatalf("expected 100 recorded, got %d", metrics.Recorded)
	}
	if metrics.Overwritten == 0 {
		t.Fatal("a full journal MUST report overwrites")
	}

	events, err := log.Consume()
	if err != nil {
		t.Fatal(err)
	}
	if len(events) == 0 || len(events) > 16 {
		t.Fatalf("journal MUST stay bounded, got %d events", len(events))
	}
	if last := events[len(events)-1]; last.Seq != 99 {
		t.Fatalf("newest event MUST survive, got seq %d", last.Seq)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Seq <= events[i-1].Seq {
			t.Fatalf("journal MUST keep order: %d after %d", events[i].Seq, events[i-1].Seq)
		}
	}
}

func TestEventLog_TailReturnsNewest(t *testing.T) {
	log := session.NewEventLog(16)
	for i := 1; i <= 5; i++ {
		ev := bridge.Connected(uint64(i))
		ev.Seq = uint64(i)
		if err := log.Record(ev); err != nil {
			t.Fatal(err)
		}
	}

	events, err := log.Tail(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].Seq != 4 || events[1].Seq != 5 {
		t.Fatalf("tail MUST return the two newest events in order, got %v", events)
	}

	if rest, _ := log.Tail(0); len(rest) != 0 {
		t.Fatalf("tail MUST consume the journal, %d events left", len(rest))
	}
}
