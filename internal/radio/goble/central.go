package goble

import (
	"context"

	"github.com/go-ble/ble"
)

// Advert is the part of ble.Advertisement the radio reports.
type Advert interface {
	LocalName() string
	RSSI() int
	Addr() ble.Addr
}

// Link is an established connection.
type Link interface {
	CancelConnection() error
	Disconnected() <-chan struct{}
}

// Central is the part of ble.Device the radio drives.
type Central interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advert)) error
	Dial(ctx context.Context, addr ble.Addr) (Link, error)
	Stop() error
}

// DeviceFactory creates the Central used by Init (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = func() (Central, error) {
	dev, err := newPlatformDevice()
	if err != nil {
		return nil, err
	}
	return &bleCentral{dev: dev}, nil
}

// bleCentral adapts ble.Device to Central
type bleCentral struct {
	dev ble.Device
}

func (c *bleCentral) Scan(ctx context.Context, allowDup bool, handler func(Advert)) error {
	return c.dev.Scan(ctx, allowDup, func(adv ble.Advertisement) {
		handler(adv)
	})
}

func (c *bleCentral) Dial(ctx context.Context, addr ble.Addr) (Link, error) {
	client, err := c.dev.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (c *bleCentral) Stop() error {
	return c.dev.Stop()
}
