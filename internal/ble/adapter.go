// Package ble provides the BLE transport and the per-device session used to
// talk to cloud LED controllers. A cloud exposes a single characteristic that
// takes text commands (write without response) and notifies state tokens.
package ble

import (
	"context"
	"errors"
	"slices"
	"strings"
)

// Cloud BLE identifiers. Firmware and controller must agree on these exactly.
const (
	ServiceUUID        = "4fafc201-1fb5-459e-8fcc-c5c9c331914b"
	CharacteristicUUID = "beb5483e-36e1-4688-b7f5-ea07361b26a8"

	// ProductName is the substring clouds carry in their advertised name.
	ProductName = "ESP32"
)

var (
	ErrNotConnected     = errors.New("ble: not connected")
	ErrConnectionFailed = errors.New("ble: connection failed")
	ErrWriteFailed      = errors.New("ble: write failed")
	ErrDisconnectFailed = errors.New("ble: disconnect failed")
	ErrUnsupported      = errors.New("ble: not supported by this transport")
)

// AdapterState mirrors the power state of the host BLE adapter.
type AdapterState int

const (
	StateUnknown AdapterState = iota
	StateResetting
	StateUnsupported
	StateUnauthorized
	StatePoweredOff
	StatePoweredOn
)

func (s AdapterState) String() string {
	switch s {
	case StateResetting:
		return "Resetting"
	case StateUnsupported:
		return "Unsupported"
	case StateUnauthorized:
		return "Unauthorized"
	case StatePoweredOff:
		return "PoweredOff"
	case StatePoweredOn:
		return "PoweredOn"
	}
	return "Unknown"
}

// Peripheral is a BLE device seen during a scan.
type Peripheral struct {
	ID       string // platform address; a CoreBluetooth UUID on macOS
	Name     string
	Services []string // advertised service UUIDs, lower case
	RSSI     int
}

// IsCloud reports whether the peripheral looks like a cloud: its name carries
// the product name or it advertises the cloud service.
func (p Peripheral) IsCloud() bool {
	if strings.Contains(p.Name, ProductName) {
		return true
	}
	return slices.ContainsFunc(p.Services, func(s string) bool {
		return strings.EqualFold(s, ServiceUUID)
	})
}

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// Write sends data without waiting for a response.
	Write(data []byte) error
	// Subscribe registers a callback for notifications on this characteristic.
	Subscribe(callback func(data []byte)) error
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// DiscoverCharacteristic finds a characteristic by UUID within a service.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// Disconnect terminates the connection.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the link drops.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// State queries the current adapter state. An error means the adapter is
	// missing or cannot be queried at all.
	State(ctx context.Context) (AdapterState, error)
	// OnStateChange registers a callback for adapter state transitions.
	OnStateChange(callback func(AdapterState))
	// Scan reports every advertising peripheral to found until ctx is done.
	// Duplicate advertisements are filtered. serviceUUID is the service whose
	// presence must be reflected in Peripheral.Services.
	Scan(ctx context.Context, serviceUUID string, found func(Peripheral)) error
	// ConnectedPeripherals lists peripherals the OS already holds a link to.
	ConnectedPeripherals(ctx context.Context) ([]Peripheral, error)
	// Connect establishes a connection to the peripheral with the given id.
	Connect(ctx context.Context, id string) (Connection, error)
}
