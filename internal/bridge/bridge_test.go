package bridge_test

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/redtooth/internal/bridge"
	"github.com/srg/redtooth/internal/radio"
	"github.com/stretchr/testify/suite"
)

func strPtr(s string) *string { return &s }

type BridgeTestSuite struct {
	suite.Suite
	logger *logrus.Logger
	bridge *bridge.Bridge
}

func (suite *BridgeTestSuite) SetupTest() {
	suite.logger = logrus.New()
	suite.logger.SetLevel(logrus.DebugLevel)
	suite.bridge = bridge.New(16, suite.logger)
}

func (suite *BridgeTestSuite) TearDownTest() {
	suite.bridge.Close()
}

func (suite *BridgeTestSuite) TestDeviceFound_DecodesPayload() {
	// GOAL: Verify a device-found callback becomes exactly one DeviceObserved event
	//
	// TEST SCENARIO: Invoke trampoline with full payload → one event → fields copied verbatim

	bridge.OnDeviceFound(suite.bridge.Handle(), radio.RawDevice{
		Address:       0xAABBCC,
		Name:          strPtr("Speaker"),
		Connected:     true,
		Authenticated: true,
		RSSI:          -42,
		ClassOfDevice: 0x240404,
	})

	events := suite.bridge.Events().Drain(0)
	suite.Require().Len(events, 1, "exactly one event MUST be emitted")

	ev := events[0]
	suite.Equal(bridge.KindDeviceObserved, ev.Kind)
	suite.Equal(bridge.Device{
		Address:        0xAABBCC,
		Name:           "Speaker",
		Connected:      true,
		Authenticated:  true,
		SignalStrength: -42,
		DeviceClass:    0x240404,
	}, ev.Device)
	suite.Equal(uint64(1), ev.Seq, "first event MUST carry sequence 1")
	suite.False(ev.Time.IsZero(), "event MUST be timestamped")
}

func (suite *BridgeTestSuite) TestDeviceFound_NullNameDecodesToEmpty() {
	bridge.OnDeviceFound(suite.bridge.Handle(), radio.RawDevice{Address: 1, Name: nil})

	ev, ok := suite.bridge.Events().TryReceive()
	suite.Require().True(ok, "null name MUST still produce an event")
	suite.Equal("", ev.Device.Name, "null name MUST decode to empty string")
	suite.Equal("00:00:00:00:00:01", ev.Device.DisplayName())
}

func (suite *BridgeTestSuite) TestDeviceFound_InvalidUTF8IsReplaced() {
	bridge.OnDeviceFound(suite.bridge.Handle(), radio.RawDevice{Address: 2, Name: strPtr("Head\xffset")})

	ev, ok := suite.bridge.Events().TryReceive()
	suite.Require().True(ok)
	suite.Equal("Head�set", ev.Device.Name)
}

func (suite *BridgeTestSuite) TestError_Decoding() {
	tests := []struct {
		name    string
		code    int32
		message *string
		want    string
		status  radio.Status
	}{
		{
			name:    "with message",
			code:    int32(radio.StatusConnectionFailed),
			message: strPtr("Failed to connect to device"),
			want:    "connection failed: Failed to connect to device",
			status:  radio.StatusConnectionFailed,
		},
		{
			name:   "null message degrades to status",
			code:   int32(radio.StatusNotInitialized),
			want:   "not initialized (code 1)",
			status: radio.StatusNotInitialized,
		},
		{
			name:    "out of range code decodes to unknown",
			code:    42,
			message: strPtr("weird"),
			want:    "unknown error: weird",
			status:  radio.StatusUnknown,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			bridge.OnError(suite.bridge.Handle(), tt.code, tt.message)

			ev, ok := suite.bridge.Events().TryReceive()
			suite.Require().True(ok, "error callback MUST emit an Error event")
			suite.Equal(bridge.KindError, ev.Kind)
			suite.Equal(tt.status, ev.Status)
			suite.Equal(tt.want, ev.Message)
			suite.Equal(tt.want, suite.bridge.LastError(), "last error MUST be recorded")
		})
	}
}

func (suite *BridgeTestSuite) TestError_SuccessIsNotAnError() {
	bridge.OnError(suite.bridge.Handle(), int32(radio.StatusSuccess), strPtr("all good"))

	suite.Equal(0, suite.bridge.Events().Len(), "success on the error path MUST NOT emit an event")
	suite.Equal(int64(1), suite.bridge.Stats().Successes)
	suite.Equal("", suite.bridge.LastError())
}

func (suite *BridgeTestSuite) TestUnknownHandleIsIgnored() {
	suite.NotPanics(func() {
		bridge.OnDeviceFound(radio.Handle(0), radio.RawDevice{Address: 1})
		bridge.OnError(radio.Handle(0), 3, nil)
	}, "callbacks for unknown handles MUST be swallowed")

	suite.Equal(0, suite.bridge.Events().Len())
}

func (suite *BridgeTestSuite) TestClosedBridgeSwallowsCallbacks() {
	// GOAL: Verify a callback arriving after the consumer went away never fails the radio
	//
	// TEST SCENARIO: Close bridge → invoke callbacks → no panic → Emit reports disconnection

	suite.bridge.Close()

	suite.NotPanics(func() {
		bridge.OnDeviceFound(suite.bridge.Handle(), radio.RawDevice{Address: 1})
	})

	err := suite.bridge.Emit(bridge.ScanStarted())
	suite.ErrorIs(err, radio.ErrBridgeDisconnected, "emit after close MUST report a disconnected bridge")

	_, ok := bridge.Lookup(suite.bridge.Handle())
	suite.False(ok, "closed bridge MUST be unregistered")
}

func (suite *BridgeTestSuite) TestFullStreamDropsWithoutBlocking() {
	b := bridge.New(2, suite.logger)
	defer b.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			bridge.OnDeviceFound(b.Handle(), radio.RawDevice{Address: uint64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		suite.FailNow("callback MUST NOT block on a full stream")
	}

	events := b.Events().Drain(0)
	suite.Require().Len(events, 2)
	suite.Equal(uint64(0), events[0].Device.Address, "accepted events MUST keep emission order")
	suite.Equal(uint64(1), events[1].Device.Address)
	suite.Equal(int64(3), b.Stats().Dropped)
	suite.Equal(uint64(2), events[1].Seq, "dropped events MUST NOT consume sequence numbers")
}

func (suite *BridgeTestSuite) TestConcurrentProducersKeepPerProducerOrder() {
	// GOAL: Verify events from concurrent callback goroutines arrive in emission order per address
	//
	// TEST SCENARIO: 4 producers x 100 observations of their own address → sequence strictly increasing → per-address RSSI increasing

	b := bridge.New(1024, suite.logger)
	defer b.Close()

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(addr uint64) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				bridge.OnDeviceFound(b.Handle(), radio.RawDevice{Address: addr, RSSI: int32(i)})
			}
		}(uint64(p))
	}
	wg.Wait()

	events := b.Events().Drain(0)
	suite.Require().Len(events, 400)

	lastRSSI := map[uint64]int32{}
	for i, ev := range events {
		suite.Equal(uint64(i+1), ev.Seq, "sequence MUST follow delivery order")
		if prev, ok := lastRSSI[ev.Device.Address]; ok {
			suite.Greater(ev.Device.SignalStrength, prev, "per-address order MUST be preserved")
		}
		lastRSSI[ev.Device.Address] = ev.Device.SignalStrength
	}
}

// panicOnce panics the first time a matching entry is logged.
type panicOnce struct {
	message string
	fired   bool
}

func (h *panicOnce) Levels() []logrus.Level { return logrus.AllLevels }

func (h *panicOnce) Fire(entry *logrus.Entry) error {
	if !h.fired && entry.Message == h.message {
		h.fired = true
		panic("decode failure")
	}
	return nil
}

func (suite *BridgeTestSuite) TestDeviceFound_PanicDoesNotEscapeCallback() {
	// GOAL: A panic inside the device-found decode path stays inside the trampoline
	//
	// TEST SCENARIO: logger hook panics on the first "Device found" entry → callback returns normally →
	// fault counted → next callback still emits

	suite.logger.AddHook(&panicOnce{message: "Device found"})

	suite.NotPanics(func() {
		bridge.OnDeviceFound(suite.bridge.Handle(), radio.RawDevice{Address: 0x01, Name: strPtr("First")})
	}, "panic MUST NOT cross the callback boundary")
	suite.Equal(int64(1), suite.bridge.Stats().Faults, "recovered panic MUST be counted")
	suite.Zero(suite.bridge.Events().Len(), "faulted callback MUST NOT emit")

	bridge.OnDeviceFound(suite.bridge.Handle(), radio.RawDevice{Address: 0x02, Name: strPtr("Second")})

	events := suite.bridge.Events().Drain(0)
	suite.Require().Len(events, 1, "bridge MUST keep working after a fault")
	suite.Equal("Second", events[0].Device.Name)
	suite.Equal(uint64(1), events[0].Seq)
	suite.Equal(int64(1), suite.bridge.Stats().Faults)
}

func (suite *BridgeTestSuite) TestError_PanicDoesNotEscapeCallback() {
	suite.logger.AddHook(&panicOnce{message: "connection failed: link lost"})

	suite.NotPanics(func() {
		bridge.OnError(suite.bridge.Handle(), int32(radio.StatusConnectionFailed), strPtr("link lost"))
	})
	suite.Equal(int64(1), suite.bridge.Stats().Faults)

	bridge.OnError(suite.bridge.Handle(), int32(radio.StatusConnectionFailed), strPtr("link lost"))
	events := suite.bridge.Events().Drain(0)
	suite.Require().Len(events, 1, "next error callback MUST be delivered")
	suite.Equal(bridge.KindError, events[0].Kind)
}

func TestBridgeTestSuite(t *testing.T) {
	suite.Run(t, new(BridgeTestSuite))
}
