package cloud

import (
	"github.com/chaz8081/cloudctl/internal/ble"
	"github.com/chaz8081/cloudctl/internal/led"
)

// EventKind identifies what changed.
type EventKind int

const (
	EventAdapterState EventKind = iota
	EventScanStarted
	EventScanStopped
	EventPeripheralDiscovered
	EventConnected
	EventSwitched
	EventDisconnected
	EventRenamed
	EventStateChanged
	EventNotice
)

var eventNames = [...]string{
	EventAdapterState:         "adapter-state",
	EventScanStarted:          "scan-started",
	EventScanStopped:          "scan-stopped",
	EventPeripheralDiscovered: "discovered",
	EventConnected:            "connected",
	EventSwitched:             "switched",
	EventDisconnected:         "disconnected",
	EventRenamed:              "renamed",
	EventStateChanged:         "state-changed",
	EventNotice:               "notice",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[k]
}

// Event is delivered to Options.OnEvent. Only the fields relevant to Kind
// are set. CloudID is empty for EventSwitched when no cloud is left active.
type Event struct {
	Kind         EventKind
	CloudID      string
	AdapterState ble.AdapterState
	Peripheral   ble.Peripheral
	State        led.State

	// Notices only.
	Err     error
	Message string
}
