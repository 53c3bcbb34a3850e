// Package mocks holds testify mocks for the radio surfaces.
package mocks

import (
	"context"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"

	"github.com/srg/redtooth/internal/radio/goble"
)

// MockCentral mocks goble.Central
type MockCentral struct {
	mock.Mock
}

func (m *MockCentral) Scan(ctx context.Context, allowDup bool, handler func(goble.Advert)) error {
	args := m.Called(ctx, allowDup, handler)
	return args.Error(0)
}

func (m *MockCentral) Dial(ctx context.Context, addr ble.Addr) (goble.Link, error) {
	args := m.Called(ctx, addr)
	link, _ := args.Get(0).(goble.Link)
	return link, args.Error(1)
}

func (m *MockCentral) Stop() error {
	args := m.Called()
	return args.Error(0)
}

// MockLink mocks goble.Link. Closing Drop simulates a link loss.
type MockLink struct {
	mock.Mock
	Drop chan struct{}
}

func NewMockLink() *MockLink {
	return &MockLink{Drop: make(chan struct{})}
}

func (m *MockLink) CancelConnection() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockLink) Disconnected() <-chan struct{} {
	return m.Drop
}

// MockAdvert is a fixed advertisement
type MockAdvert struct {
	Name    string
	Address string
	Signal  int
}

func (a MockAdvert) LocalName() string { return a.Name }
func (a MockAdvert) RSSI() int         { return a.Signal }
func (a MockAdvert) Addr() ble.Addr    { return ble.NewAddr(a.Address) }
