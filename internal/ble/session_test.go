package ble_test

import (
	"context"
	"errors"
	"testing"

	"github.com/chaz8081/cloudctl/internal/ble"
	"github.com/chaz8081/cloudctl/internal/ble/bletest"
	"github.com/chaz8081/cloudctl/internal/ble/protocol"
)

var cloudA = ble.Peripheral{ID: "AA:BB:CC:DD:EE:01", Name: "ESP32 Cloud-A"}

func connect(t *testing.T, adapter *bletest.Adapter) *ble.Session {
	t.Helper()
	s, err := ble.Connect(context.Background(), adapter, cloudA)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return s
}

func TestSessionWriteSendsRawToken(t *testing.T) {
	adapter := bletest.NewAdapter()
	s := connect(t, adapter)

	if err := s.Write("LED_ON"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := s.Send(protocol.Brightness{Value: 120}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	writes := adapter.Conn(cloudA.ID).Char.Writes()
	want := []string{"LED_ON", "BRIGHTNESS_120"}
	if len(writes) != len(want) {
		t.Fatalf("writes = %v, want %v", writes, want)
	}
	for i := range want {
		if writes[i] != want[i] {
			t.Errorf("writes[%d] = %q, want %q", i, writes[i], want[i])
		}
	}
}

func TestSessionRequestCurrentState(t *testing.T) {
	adapter := bletest.NewAdapter()
	s := connect(t, adapter)

	if err := s.RequestCurrentState(); err != nil {
		t.Fatalf("RequestCurrentState() error = %v", err)
	}
	writes := adapter.Conn(cloudA.ID).Char.Writes()
	if len(writes) != 1 || writes[0] != "GET_STATE" {
		t.Errorf("writes = %v, want [GET_STATE]", writes)
	}
}

func TestSessionConnectFailure(t *testing.T) {
	adapter := bletest.NewAdapter()
	adapter.FailConnect(cloudA.ID, errors.New("timeout"))

	_, err := ble.Connect(context.Background(), adapter, cloudA)
	if !errors.Is(err, ble.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
	if adapter.Connects() != 1 {
		t.Errorf("Connects() = %d, want a single attempt", adapter.Connects())
	}
}

func TestSessionDiscoveryFailureDisconnects(t *testing.T) {
	adapter := bletest.NewAdapter()
	adapter.FailDiscover(cloudA.ID, errors.New("no such service"))

	_, err := ble.Connect(context.Background(), adapter, cloudA)
	if !errors.Is(err, ble.ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
	if !adapter.Conn(cloudA.ID).Disconnected() {
		t.Error("half-open connection should be cancelled after discovery fails")
	}
}

func TestSessionWriteFailure(t *testing.T) {
	adapter := bletest.NewAdapter()
	s := connect(t, adapter)
	char := adapter.Conn(cloudA.ID).Char
	char.SetWriteErr(errors.New("radio busy"))

	if err := s.Write("LED_ON"); !errors.Is(err, ble.ErrWriteFailed) {
		t.Errorf("Write() error = %v, want ErrWriteFailed", err)
	}

	// A failed write does not poison later ones.
	char.SetWriteErr(nil)
	if err := s.Write("LED_OFF"); err != nil {
		t.Errorf("Write() after failure error = %v", err)
	}
}

func TestSessionDisconnectIsIdempotent(t *testing.T) {
	adapter := bletest.NewAdapter()
	s := connect(t, adapter)

	if err := s.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if !adapter.Conn(cloudA.ID).Disconnected() {
		t.Error("transport connection should be cancelled")
	}
	if err := s.Disconnect(); err != nil {
		t.Errorf("second Disconnect() error = %v, want nil", err)
	}
	if err := s.Write("LED_ON"); !errors.Is(err, ble.ErrNotConnected) {
		t.Errorf("Write() after Disconnect error = %v, want ErrNotConnected", err)
	}
}

func TestSessionDisconnectFailure(t *testing.T) {
	adapter := bletest.NewAdapter()
	s := connect(t, adapter)
	adapter.Conn(cloudA.ID).DisconnectErr = errors.New("busy")

	if err := s.Disconnect(); !errors.Is(err, ble.ErrDisconnectFailed) {
		t.Errorf("Disconnect() error = %v, want ErrDisconnectFailed", err)
	}
	if s.Connected() {
		t.Error("session should be marked disconnected even when cancel fails")
	}
}

func TestSessionSubscribeDeliversText(t *testing.T) {
	adapter := bletest.NewAdapter()
	s := connect(t, adapter)

	var got []string
	if err := s.Subscribe(func(text string) { got = append(got, text) }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	adapter.Conn(cloudA.ID).Char.Notify("STATE_LED_ON")

	if len(got) != 1 || got[0] != "STATE_LED_ON" {
		t.Errorf("notifications = %v, want [STATE_LED_ON]", got)
	}
}

func TestSessionLinkLoss(t *testing.T) {
	adapter := bletest.NewAdapter()
	s := connect(t, adapter)

	var lost []string
	s.OnLost(func(id string) { lost = append(lost, id) })

	conn := adapter.Conn(cloudA.ID)
	conn.SimulateDisconnect()
	conn.SimulateDisconnect()

	if len(lost) != 1 || lost[0] != cloudA.ID {
		t.Errorf("lost = %v, want one report for %s", lost, cloudA.ID)
	}
	if s.Connected() {
		t.Error("session should be disconnected after link loss")
	}
}

func TestSessionDeliberateDisconnectIsNotLinkLoss(t *testing.T) {
	adapter := bletest.NewAdapter()
	s := connect(t, adapter)

	called := false
	s.OnLost(func(string) { called = true })
	_ = s.Disconnect()
	adapter.Conn(cloudA.ID).SimulateDisconnect()

	if called {
		t.Error("OnLost should not fire for Disconnect")
	}
}

func TestPeripheralIsCloud(t *testing.T) {
	tests := []struct {
		name string
		p    ble.Peripheral
		want bool
	}{
		{"name match", ble.Peripheral{Name: "ESP32 Cloud-A"}, true},
		{"service match", ble.Peripheral{Name: "Cloud", Services: []string{"4FAFC201-1FB5-459E-8FCC-C5C9C331914B"}}, true},
		{"unrelated", ble.Peripheral{Name: "Other", Services: []string{"0000180d-0000-1000-8000-00805f9b34fb"}}, false},
		{"anonymous", ble.Peripheral{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.IsCloud(); got != tt.want {
				t.Errorf("IsCloud() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdapterStateString(t *testing.T) {
	if got := ble.StatePoweredOn.String(); got != "PoweredOn" {
		t.Errorf("String() = %q", got)
	}
	if got := ble.AdapterState(99).String(); got != "Unknown" {
		t.Errorf("String() = %q", got)
	}
}
