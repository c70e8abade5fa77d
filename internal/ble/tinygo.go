package ble

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"
)

// TinyGoAdapter wraps tinygo-org/bluetooth (CoreBluetooth on macOS, BlueZ on
// Linux, WinRT on Windows). On macOS peripheral ids are CoreBluetooth UUIDs,
// not MAC addresses.
type TinyGoAdapter struct {
	adapter *bluetooth.Adapter

	enableOnce sync.Once
	enableErr  error

	// mu protects connections and the state observer.
	mu          sync.Mutex
	connections map[string]*tinyGoConnection // keyed by peripheral id
	stateCb     func(AdapterState)
	lastState   AdapterState
}

// NewTinyGoAdapter creates an adapter over the default system BLE adapter.
func NewTinyGoAdapter() *TinyGoAdapter {
	return &TinyGoAdapter{
		adapter:     bluetooth.DefaultAdapter,
		connections: make(map[string]*tinyGoConnection),
	}
}

func (a *TinyGoAdapter) enable() error {
	a.enableOnce.Do(func() {
		a.enableErr = a.adapter.Enable()
		if a.enableErr != nil {
			return
		}
		// tinygo reports peripheral disconnects through one adapter-wide
		// handler; fan them out to the matching connection.
		a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
			if connected {
				return
			}
			id := device.Address.String()
			a.mu.Lock()
			conn, ok := a.connections[id]
			delete(a.connections, id)
			a.mu.Unlock()
			if ok {
				conn.fireDisconnect()
			}
		})
	})
	return a.enableErr
}

// State enables the adapter on first use. tinygo exposes no power-state
// query, so a successfully enabled adapter is reported as powered on.
func (a *TinyGoAdapter) State(_ context.Context) (AdapterState, error) {
	state := StatePoweredOn
	err := a.enable()
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

	if err != nil {
		return StateUnknown, fmt.Errorf("ble: enable adapter: %w", err)
	}
	return state, nil
}

func (a *TinyGoAdapter) OnStateChange(cb func(AdapterState)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stateCb = cb
}

func (a *TinyGoAdapter) Scan(ctx context.Context, serviceUUID string, found func(Peripheral)) error {
	if err := a.enable(); err != nil {
		return fmt.Errorf("ble: enable adapter: %w", err)
	}
	uuid, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return fmt.Errorf("ble: parse service UUID: %w", err)
	}

	filter := newScanFilter()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			a.adapter.StopScan()
		case <-done:
		}
	}()

	err = a.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		p := Peripheral{
			ID:   result.Address.String(),
			Name: result.LocalName(),
			RSSI: int(result.RSSI),
		}
		if result.HasServiceUUID(uuid) {
			p.Services = []string{strings.ToLower(serviceUUID)}
		}
		if filter.admit(p) {
			found(p)
		}
	})
	close(done)

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("ble: scan: %w", err)
	}
	return nil
}

// ConnectedPeripherals is not available through tinygo.
func (a *TinyGoAdapter) ConnectedPeripherals(_ context.Context) ([]Peripheral, error) {
	return nil, ErrUnsupported
}

func (a *TinyGoAdapter) Connect(ctx context.Context, id string) (Connection, error) {
	if err := a.enable(); err != nil {
		return nil, fmt.Errorf("ble: enable adapter: %w", err)
	}

	var addr bluetooth.Address
	addr.Set(id)

	// tinygo/bluetooth's Connect blocks with its own timeout and cannot be
	// cancelled, so a late success is disconnected rather than kept.
	device, err := awaitDial(ctx,
		func() (bluetooth.Device, error) {
			return a.adapter.Connect(addr, bluetooth.ConnectionParams{})
		},
		func(d bluetooth.Device) {
			slog.Warn("[BLE] dropping connection that completed after timeout", "id", id)
			_ = d.Disconnect()
		})
	if err != nil {
		return nil, fmt.Errorf("ble: connect to %s: %w", id, err)
	}
	conn := &tinyGoConnection{adapter: a, id: id, device: &device}

	a.mu.Lock()
	a.connections[id] = conn
	a.mu.Unlock()

	return conn, nil
}

func (a *TinyGoAdapter) forget(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.connections, id)
}

// Compile-time check that TinyGoAdapter implements Adapter.
var _ Adapter = (*TinyGoAdapter)(nil)

type tinyGoConnection struct {
	adapter *TinyGoAdapter
	id      string
	device  *bluetooth.Device

	mu           sync.Mutex
	disconnectCb func()
}

func (c *tinyGoConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error) {
	svcUUID, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, err
	}
	charUUIDParsed, err := bluetooth.ParseUUID(charUUID)
	if err != nil {
		return nil, err
	}

	svcs, err := c.device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil {
		return nil, fmt.Errorf("ble: discover services: %w", err)
	}
	if len(svcs) == 0 {
		return nil, fmt.Errorf("ble: service %s not found", serviceUUID)
	}

	chars, err := svcs[0].DiscoverCharacteristics([]bluetooth.UUID{charUUIDParsed})
	if err != nil {
		return nil, fmt.Errorf("ble: discover characteristics: %w", err)
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("ble: characteristic %s not found", charUUID)
	}

	return &tinyGoCharacteristic{char: &chars[0]}, nil
}

func (c *tinyGoConnection) Disconnect() error {
	c.adapter.forget(c.id)
	return c.device.Disconnect()
}

func (c *tinyGoConnection) OnDisconnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectCb = cb
}

func (c *tinyGoConnection) fireDisconnect() {
	c.mu.Lock()
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

type tinyGoCharacteristic struct {
	char *bluetooth.DeviceCharacteristic
}

func (c *tinyGoCharacteristic) Write(data []byte) error {
	_, err := c.char.WriteWithoutResponse(data)
	return err
}

func (c *tinyGoCharacteristic) Subscribe(cb func([]byte)) error {
	return c.char.EnableNotifications(func(buf []byte) {
		cb(buf)
	})
}
