//go:build linux

package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

// HCIAdapter drives a Linux HCI device directly through go-ble, bypassing
// BlueZ. It needs CAP_NET_ADMIN (or root) and an adapter BlueZ is not using.
type HCIAdapter struct {
	deviceID int

	mu        sync.Mutex
	dev       *linux.Device
	stateCb   func(AdapterState)
	lastState AdapterState
}

// NewHCIAdapter creates an adapter for hci<deviceID>. The device is opened on
// first use.
func NewHCIAdapter(deviceID int) (Adapter, error) {
	if deviceID < 0 {
		return nil, fmt.Errorf("ble: invalid hci device %d", deviceID)
	}
	return &HCIAdapter{deviceID: deviceID}, nil
}

func (a *HCIAdapter) open() (*linux.Device, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dev != nil {
		return a.dev, nil
	}
	d, err := linux.NewDevice(ble.OptDeviceID(a.deviceID))
	if err != nil {
		return nil, fmt.Errorf("ble: open hci%d: %w", a.deviceID, err)
	}
	a.dev = d
	return d, nil
}

func (a *HCIAdapter) State(_ context.Context) (AdapterState, error) {
	_, err := a.open()
	state := StatePoweredOn
	if err != nil {
		state = StateUnknown
	}

	a.mu.Lock()
	changed := state != a.lastState
	a.lastState = state
	cb := a.stateCb
	a.mu.Unlock()
	if changed && cb != nil {
		cb(state)
	}
	return state, err
}

func (a *HCIAdapter) OnStateChange(cb func(AdapterState)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stateCb = cb
}

func (a *HCIAdapter) Scan(ctx context.Context, serviceUUID string, found func(Peripheral)) error {
	dev, err := a.open()
	if err != nil {
		return err
	}
	svc, err := ble.Parse(serviceUUID)
	if err != nil {
		return fmt.Errorf("ble: parse service UUID: %w", err)
	}

	filter := newScanFilter()

	err = dev.Scan(ctx, false, func(adv ble.Advertisement) {
		p := Peripheral{ID: adv.Addr().String(), Name: adv.LocalName(), RSSI: adv.RSSI()}
		for _, u := range adv.Services() {
			if u.Equal(svc) {
				p.Services = append(p.Services, strings.ToLower(serviceUUID))
				continue
			}
			p.Services = append(p.Services, strings.ToLower(u.String()))
		}
		if filter.admit(p) {
			found(p)
		}
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("ble: scan: %w", err)
	}
	return nil
}

// ConnectedPeripherals is not available over a raw HCI socket.
func (a *HCIAdapter) ConnectedPeripherals(_ context.Context) ([]Peripheral, error) {
	return nil, ErrUnsupported
}

func (a *HCIAdapter) Connect(ctx context.Context, id string) (Connection, error) {
	dev, err := a.open()
	if err != nil {
		return nil, err
	}
	client, err := dev.Dial(ctx, ble.NewAddr(id))
	if err != nil {
		return nil, fmt.Errorf("ble: dial %s: %w", id, err)
	}
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		_ = client.CancelConnection()
		return nil, fmt.Errorf("ble: discover profile of %s: %w", id, err)
	}

	conn := &hciConnection{client: client, profile: profile}
	go conn.watch()
	return conn, nil
}

// Close stops the HCI device.
func (a *HCIAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dev == nil {
		return nil
	}
	err := a.dev.Stop()
	a.dev = nil
	return err
}

var _ Adapter = (*HCIAdapter)(nil)

type hciConnection struct {
	client  ble.Client
	profile *ble.Profile

	mu           sync.Mutex
	disconnectCb func()
}

func (c *hciConnection) watch() {
	<-c.client.Disconnected()
	c.mu.Lock()
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (c *hciConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error) {
	svc, err := ble.Parse(serviceUUID)
	if err != nil {
		return nil, err
	}
	chr, err := ble.Parse(charUUID)
	if err != nil {
		return nil, err
	}
	for _, s := range c.profile.Services {
		if !s.UUID.Equal(svc) {
			continue
		}
		for _, ch := range s.Characteristics {
			if ch.UUID.Equal(chr) {
				return &hciCharacteristic{client: c.client, char: ch}, nil
			}
		}
		return nil, fmt.Errorf("ble: characteristic %s not found", charUUID)
	}
	return nil, fmt.Errorf("ble: service %s not found", serviceUUID)
}

func (c *hciConnection) Disconnect() error {
	return c.client.CancelConnection()
}

func (c *hciConnection) OnDisconnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectCb = cb
}

type hciCharacteristic struct {
	client ble.Client
	char   *ble.Characteristic
}

func (c *hciCharacteristic) Write(data []byte) error {
	return c.client.WriteCharacteristic(c.char, data, true)
}

func (c *hciCharacteristic) Subscribe(cb func([]byte)) error {
	return c.client.Subscribe(c.char, false, func(req []byte) {
		cb(req)
	})
}
