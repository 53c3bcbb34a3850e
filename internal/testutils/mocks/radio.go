package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/srg/redtooth/internal/radio"
)

// MockRadio mocks radio.Radio. Callbacks passed to Init, StartScan and AudioInit
// are kept so tests can invoke them.
type MockRadio struct {
	mock.Mock

	Handle  radio.Handle
	OnFound radio.DeviceFoundFunc
	OnError radio.ErrorFunc
}

var _ radio.Radio = (*MockRadio)(nil)

func (m *MockRadio) Init(h radio.Handle, onError radio.ErrorFunc) radio.Status {
	m.Handle, m.OnError = h, onError
	return m.Called(h).Get(0).(radio.Status)
}

func (m *MockRadio) StartScan(h radio.Handle, onFound radio.DeviceFoundFunc, onError radio.ErrorFunc) radio.Status {
	m.Handle, m.OnFound = h, onFound
	if onError != nil {
		m.OnError = onError
	}
	return m.Called(h).Get(0).(radio.Status)
}

func (m *MockRadio) StopScan() radio.Status {
	return m.Called().Get(0).(radio.Status)
}

func (m *MockRadio) Connect(address uint64) radio.Status {
	return m.Called(address).Get(0).(radio.Status)
}

func (m *MockRadio) Disconnect(address uint64) radio.Status {
	return m.Called(address).Get(0).(radio.Status)
}

func (m *MockRadio) LastError() string {
	return m.Called().String(0)
}

func (m *MockRadio) CheckPermission() bool {
	return m.Called().Bool(0)
}

func (m *MockRadio) AudioInit(h radio.Handle, onError radio.ErrorFunc) radio.Status {
	return m.Called(h).Get(0).(radio.Status)
}

func (m *MockRadio) ChannelCount(address uint64) int {
	return m.Called(address).Int(0)
}

func (m *MockRadio) Close() error {
	return m.Called().Error(0)
}

// Found invokes the installed device-found callback the way a driver would.
func (m *MockRadio) Found(dev radio.RawDevice) {
	m.OnFound(m.Handle, dev)
}

// Fail invokes the installed error callback.
func (m *MockRadio) Fail(status radio.Status, message *string) {
	m.OnError(m.Handle, int32(status), message)
}
