package cloud

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chaz8081/cloudctl/internal/ble"
	"github.com/chaz8081/cloudctl/internal/ble/bletest"
	"github.com/chaz8081/cloudctl/internal/ble/protocol"
)

var (
	cloudA = ble.Peripheral{ID: "AA:00:00:00:00:01", Name: "ESP32 Cloud-A"}
	cloudB = ble.Peripheral{ID: "AA:00:00:00:00:02", Name: "ESP32 Cloud-B"}
	cloudC = ble.Peripheral{ID: "AA:00:00:00:00:03", Name: "ESP32 Cloud-C"}
	other  = ble.Peripheral{ID: "BB:00:00:00:00:01", Name: "Other", Services: []string{"0000180d-0000-1000-8000-00805f9b34fb"}}
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) add(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(k EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == k {
			n++
		}
	}
	return n
}

func (r *recorder) noticeFor(target error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Kind == EventNotice && errors.Is(ev.Err, target) && ev.Message != "" {
			return true
		}
	}
	return false
}

func newTestManager(t *testing.T, adapter *bletest.Adapter, opts Options) (*Manager, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts.OnEvent = rec.add
	m := New(adapter, opts)
	m.scanWindow = time.Hour
	m.settleDelay = time.Hour
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = m.Shutdown() })
	return m, rec
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func mustConnect(t *testing.T, m *Manager, p ble.Peripheral) Cloud {
	t.Helper()
	c, err := m.Connect(context.Background(), p)
	if err != nil {
		t.Fatalf("Connect(%s) error = %v", p.ID, err)
	}
	return c
}

func writes(adapter *bletest.Adapter, id string) string {
	return strings.Join(adapter.Conn(id).Char.Writes(), " ")
}

func TestStartScanFiltersAndDedupes(t *testing.T) {
	bySvc := ble.Peripheral{ID: "AA:00:00:00:00:09", Name: "", Services: []string{ble.ServiceUUID}}
	adapter := bletest.NewAdapter(cloudA, other, bySvc, cloudA)
	m, rec := newTestManager(t, adapter, Options{})

	if err := m.StartScan(context.Background()); err != nil {
		t.Fatalf("StartScan() error = %v", err)
	}
	waitFor(t, "two discoveries", func() bool { return len(m.Discovered()) == 2 })

	for _, p := range m.Discovered() {
		if p.ID == other.ID {
			t.Error("unrelated peripheral should be filtered out")
		}
	}
	if !m.IsScanning() {
		t.Error("IsScanning() = false during the scan window")
	}
	if rec.count(EventScanStarted) != 1 {
		t.Errorf("scan-started events = %d, want 1", rec.count(EventScanStarted))
	}

	m.StopScan()
	if m.IsScanning() {
		t.Error("IsScanning() = true after StopScan")
	}
	if adapter.Scanning() != 0 {
		t.Error("transport scan still running after StopScan")
	}
	if len(m.Discovered()) != 2 {
		t.Error("StopScan should keep the discovered list")
	}
}

func TestScanStopsAfterWindow(t *testing.T) {
	adapter := bletest.NewAdapter(cloudA)
	m, rec := newTestManager(t, adapter, Options{})
	m.scanWindow = 30 * time.Millisecond

	if err := m.StartScan(context.Background()); err != nil {
		t.Fatalf("StartScan() error = %v", err)
	}
	waitFor(t, "scan window to close", func() bool { return !m.IsScanning() })
	waitFor(t, "scan-stopped event", func() bool { return rec.count(EventScanStopped) == 1 })
	if len(m.Discovered()) != 1 {
		t.Errorf("Discovered() = %v, want cloudA", m.Discovered())
	}
}

func TestStartScanRequiresPoweredOn(t *testing.T) {
	adapter := bletest.NewAdapter(cloudA)
	m, rec := newTestManager(t, adapter, Options{})
	adapter.SetState(ble.StatePoweredOff)

	err := m.StartScan(context.Background())
	if !errors.Is(err, ErrAdapterNotPoweredOn) || !IsRetryable(err) {
		t.Fatalf("StartScan() error = %v, want retryable ErrAdapterNotPoweredOn", err)
	}
	if adapter.Scans() != 0 {
		t.Error("no scan should start while powered off")
	}
	if !rec.noticeFor(ErrAdapterNotPoweredOn) {
		t.Error("expected a notice")
	}

	// Check again once the adapter is on.
	adapter.SetState(ble.StatePoweredOn)
	if err := m.StartScan(context.Background()); err != nil {
		t.Fatalf("StartScan() after power on error = %v", err)
	}
}

func TestStartScanAdapterUnavailable(t *testing.T) {
	adapter := bletest.NewAdapter()
	m, _ := newTestManager(t, adapter, Options{})
	adapter.SetStateErr(errors.New("no adapter"))

	err := m.StartScan(context.Background())
	if !errors.Is(err, ErrAdapterUnavailable) {
		t.Errorf("StartScan() error = %v, want ErrAdapterUnavailable", err)
	}
	if IsRetryable(err) {
		t.Error("an unavailable adapter is not retryable")
	}
}

func TestInitAdapterUnavailable(t *testing.T) {
	adapter := bletest.NewAdapter()
	adapter.SetStateErr(errors.New("no adapter"))
	rec := &recorder{}
	m := New(adapter, Options{OnEvent: rec.add})

	if err := m.Init(context.Background()); !errors.Is(err, ErrAdapterUnavailable) {
		t.Errorf("Init() error = %v, want ErrAdapterUnavailable", err)
	}
	if !rec.noticeFor(ErrAdapterUnavailable) {
		t.Error("expected a notice")
	}
}

func TestStartScanRestarts(t *testing.T) {
	adapter := bletest.NewAdapter(cloudA)
	m, _ := newTestManager(t, adapter, Options{})

	if err := m.StartScan(context.Background()); err != nil {
		t.Fatalf("StartScan() error = %v", err)
	}
	waitFor(t, "first discovery", func() bool { return len(m.Discovered()) == 1 })

	if err := m.StartScan(context.Background()); err != nil {
		t.Fatalf("second StartScan() error = %v", err)
	}
	if adapter.Scans() != 2 {
		t.Errorf("Scans() = %d, want 2", adapter.Scans())
	}
	waitFor(t, "single running scan", func() bool { return adapter.Scanning() == 1 })
	waitFor(t, "rediscovery", func() bool { return len(m.Discovered()) == 1 })
	if !m.IsScanning() {
		t.Error("restarted scan should be running")
	}
}

func TestScanFailure(t *testing.T) {
	adapter := bletest.NewAdapter(cloudA)
	adapter.SetScanErr(errors.New("radio off"))
	m, rec := newTestManager(t, adapter, Options{})

	if err := m.StartScan(context.Background()); err != nil {
		t.Fatalf("StartScan() error = %v", err)
	}
	waitFor(t, "scan to stop", func() bool { return !m.IsScanning() })
	waitFor(t, "scan failure notice", func() bool { return rec.noticeFor(ErrScanFailed) })
}

func TestScanIncludesOSConnectedClouds(t *testing.T) {
	adapter := bletest.NewAdapter()
	adapter.SetOSConnected(cloudC, other)
	m, _ := newTestManager(t, adapter, Options{})

	if err := m.StartScan(context.Background()); err != nil {
		t.Fatalf("StartScan() error = %v", err)
	}
	waitFor(t, "OS-connected cloud", func() bool { return len(m.Discovered()) == 1 })
	if got := m.Discovered()[0].ID; got != cloudC.ID {
		t.Errorf("Discovered()[0] = %s, want %s", got, cloudC.ID)
	}
}

func TestConnectRegistersAndActivates(t *testing.T) {
	adapter := bletest.NewAdapter(cloudA)
	m, rec := newTestManager(t, adapter, Options{})

	if err := m.StartScan(context.Background()); err != nil {
		t.Fatalf("StartScan() error = %v", err)
	}
	c := mustConnect(t, m, cloudA)

	if m.IsScanning() {
		t.Error("Connect should stop the scan")
	}
	if c.Name != cloudA.Name || !c.Connected || c.State.Power {
		t.Errorf("Connect() = %+v", c)
	}
	if m.ActiveID() != cloudA.ID {
		t.Errorf("ActiveID() = %q, want %q", m.ActiveID(), cloudA.ID)
	}
	if !adapter.Conn(cloudA.ID).Char.Subscribed() {
		t.Error("notifications should be subscribed")
	}
	if rec.count(EventConnected) != 1 {
		t.Errorf("connected events = %d, want 1", rec.count(EventConnected))
	}
}

func TestConnectExistingSwitches(t *testing.T) {
	adapter := bletest.NewAdapter()
	m, _ := newTestManager(t, adapter, Options{})

	mustConnect(t, m, cloudA)
	mustConnect(t, m, cloudB)
	mustConnect(t, m, cloudA)

	if n := len(m.Clouds()); n != 2 {
		t.Errorf("len(Clouds()) = %d, want 2", n)
	}
	if adapter.Connects() != 2 {
		t.Errorf("Connects() = %d, want 2", adapter.Connects())
	}
	if m.ActiveID() != cloudA.ID {
		t.Errorf("ActiveID() = %q, want %q", m.ActiveID(), cloudA.ID)
	}
}

func TestConnectFailureLeavesRegistry(t *testing.T) {
	adapter := bletest.NewAdapter()
	adapter.FailConnect(cloudB.ID, errors.New("timeout"))
	m, rec := newTestManager(t, adapter, Options{})
	mustConnect(t, m, cloudA)

	_, err := m.Connect(context.Background(), cloudB)
	if !errors.Is(err, ble.ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
	if len(m.Clouds()) != 1 || m.ActiveID() != cloudA.ID {
		t.Error("failed connect must not change the registry")
	}
	if !rec.noticeFor(ble.ErrConnectionFailed) {
		t.Error("expected a notice")
	}
}

func TestConnectSynthesizesName(t *testing.T) {
	adapter := bletest.NewAdapter()
	m, _ := newTestManager(t, adapter, Options{})

	first := mustConnect(t, m, ble.Peripheral{ID: "X1", Services: []string{ble.ServiceUUID}})
	second := mustConnect(t, m, ble.Peripheral{ID: "X2", Services: []string{ble.ServiceUUID}})
	if first.Name != "Cloud 1" || second.Name != "Cloud 2" {
		t.Errorf("names = %q, %q, want Cloud 1, Cloud 2", first.Name, second.Name)
	}
}

func TestSynthesizedNamesStayUniqueAfterDisconnect(t *testing.T) {
	adapter := bletest.NewAdapter()
	m, _ := newTestManager(t, adapter, Options{})

	mustConnect(t, m, ble.Peripheral{ID: "X1", Services: []string{ble.ServiceUUID}})
	second := mustConnect(t, m, ble.Peripheral{ID: "X2", Services: []string{ble.ServiceUUID}})
	if err := m.Disconnect("X1"); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	third := mustConnect(t, m, ble.Peripheral{ID: "X3", Services: []string{ble.ServiceUUID}})

	if third.Name == second.Name {
		t.Errorf("X3 named %q, same as X2", third.Name)
	}
	if third.Name != "Cloud 3" {
		t.Errorf("X3 name = %q, want %q", third.Name, "Cloud 3")
	}
}

func TestStateRequestedAfterSettle(t *testing.T) {
	adapter := bletest.NewAdapter()
	m, _ := newTestManager(t, adapter, Options{})
	m.settleDelay = 10 * time.Millisecond

	mustConnect(t, m, cloudA)
	if got := writes(adapter, cloudA.ID); got != "" {
		t.Errorf("wrote %q before the settle delay", got)
	}
	waitFor(t, "GET_STATE", func() bool { return writes(adapter, cloudA.ID) == "GET_STATE" })

	// Switching back to a connected cloud does not re-request state.
	mustConnect(t, m, cloudB)
	if err := m.SwitchTo(cloudA.ID); err != nil {
		t.Fatalf("SwitchTo() error = %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if got := writes(adapter, cloudA.ID); got != "GET_STATE" {
		t.Errorf("writes = %q, want a single GET_STATE", got)
	}
}

func TestStateRequestCancelledByDisconnect(t *testing.T) {
	adapter := bletest.NewAdapter()
	m, _ := newTestManager(t, adapter, Options{})
	m.settleDelay = 20 * time.Millisecond

	mustConnect(t, m, cloudA)
	if err := m.Disconnect(cloudA.ID); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := writes(adapter, cloudA.ID); got != "" {
		t.Errorf("writes = %q after disconnect, want none", got)
	}
}

func TestDisconnectPicksFirstRemaining(t *testing.T) {
	adapter := bletest.NewAdapter()
	m, rec := newTestManager(t, adapter, Options{})
	mustConnect(t, m, cloudA)
	mustConnect(t, m, cloudB)
	mustConnect(t, m, cloudC)

	steps := []struct {
		remove string
		active string
	}{
		{cloudC.ID, cloudA.ID},
		{cloudA.ID, cloudB.ID},
		{cloudB.ID, ""},
	}
	for _, s := range steps {
		if err := m.Disconnect(s.remove); err != nil {
			t.Fatalf("Disconnect(%s) error = %v", s.remove, err)
		}
		if m.ActiveID() != s.active {
			t.Errorf("after removing %s ActiveID() = %q, want %q", s.remove, m.ActiveID(), s.active)
		}
		if !adapter.Conn(s.remove).Disconnected() {
			t.Errorf("%s transport connection not cancelled", s.remove)
		}
	}
	if rec.count(EventDisconnected) != 3 {
		t.Errorf("disconnected events = %d, want 3", rec.count(EventDisconnected))
	}
}

func TestDisconnectInactiveKeepsActive(t *testing.T) {
	adapter := bletest.NewAdapter()
	m, _ := newTestManager(t, adapter, Options{})
	mustConnect(t, m, cloudA)
	mustConnect(t, m, cloudB)

	if err := m.Disconnect(cloudA.ID); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if m.ActiveID() != cloudB.ID {
		t.Errorf("ActiveID() = %q, want %q", m.ActiveID(), cloudB.ID)
	}
}

func TestDisconnectFailureStillRemoves(t *testing.T) {
	adapter := bletest.NewAdapter()
	m, rec := newTestManager(t, adapter, Options{})
	mustConnect(t, m, cloudA)
	adapter.Conn(cloudA.ID).DisconnectErr = errors.New("busy")

	err := m.Disconnect(cloudA.ID)
	if !errors.Is(err, ble.ErrDisconnectFailed) {
		t.Errorf("Disconnect() error = %v, want ErrDisconnectFailed", err)
	}
	if len(m.Clouds()) != 0 || m.ActiveID() != "" {
		t.Error("cloud should be removed despite the failure")
	}
	if !rec.noticeFor(ble.ErrDisconnectFailed) {
		t.Error("expected a notice")
	}
}

func TestDisconnectUnknownIsNoop(t *testing.T) {
	m, _ := newTestManager(t, bletest.NewAdapter(), Options{})
	if err := m.Disconnect("nope"); err != nil {
		t.Errorf("Disconnect(unknown) error = %v, want nil", err)
	}
}

func TestNotificationsAppliedOnlyForActiveCloud(t *testing.T) {
	adapter := bletest.NewAdapter()
	m, _ := newTestManager(t, adapter, Options{})
	mustConnect(t, m, cloudA)
	mustConnect(t, m, cloudB)

	adapter.Conn(cloudA.ID).Char.Notify("STATE_LED_ON")
	a, _ := m.Cloud(cloudA.ID)
	b, _ := m.Cloud(cloudB.ID)
	if a.State.Power || b.State.Power {
		t.Fatal("notification from an inactive cloud must not change any state")
	}

	if err := m.SwitchTo(cloudA.ID); err != nil {
		t.Fatalf("SwitchTo() error = %v", err)
	}
	conn := adapter.Conn(cloudA.ID)
	conn.Char.Notify("STATE_LED_ON")
	conn.Char.Notify("STATE_ANIMATION_FIRE\x00")
	conn.Char.Notify("STATE_COLOR_CYCLE_ON")
	conn.Char.Notify("STATE_SOMETHING_NEW")

	a, _ = m.Cloud(cloudA.ID)
	if !a.State.Power || a.State.Animation != protocol.AnimationFire || !a.State.ColorCycle {
		t.Errorf("active cloud state = %+v", a.State)
	}
}

func TestCommandsTargetActiveCloudOnly(t *testing.T) {
	adapter := bletest.NewAdapter()
	m, _ := newTestManager(t, adapter, Options{})
	mustConnect(t, m, cloudA)
	mustConnect(t, m, cloudB)
	if err := m.SwitchTo(cloudA.ID); err != nil {
		t.Fatalf("SwitchTo() error = %v", err)
	}

	if err := m.TogglePower(); err != nil {
		t.Fatalf("TogglePower() error = %v", err)
	}
	if got := writes(adapter, cloudA.ID); got != "LED_ON" {
		t.Errorf("cloudA writes = %q, want LED_ON", got)
	}
	if got := writes(adapter, cloudB.ID); got != "" {
		t.Errorf("cloudB writes = %q, want none", got)
	}
	if b, _ := m.Cloud(cloudB.ID); b.State.Power {
		t.Error("cloudB state must be untouched")
	}
}

func TestPowerAnimationColorScenario(t *testing.T) {
	adapter := bletest.NewAdapter()
	m, rec := newTestManager(t, adapter, Options{})
	mustConnect(t, m, cloudA)

	if err := m.TogglePower(); err != nil {
		t.Fatal(err)
	}
	if err := m.SelectAnimation("wave"); err != nil {
		t.Fatal(err)
	}
	if err := m.SetColor("#00FF00"); err != nil {
		t.Fatal(err)
	}

	if got, want := writes(adapter, cloudA.ID), "LED_ON ANIMATION_WAVE ANIMATION_COLOR_0_255_0"; got != want {
		t.Errorf("writes = %q, want %q", got, want)
	}
	c, _ := m.Active()
	if c.State.Color != "#00FF00" {
		t.Errorf("Color = %q, want #00FF00", c.State.Color)
	}
	if rec.count(EventStateChanged) != 3 {
		t.Errorf("state-changed events = %d, want 3", rec.count(EventStateChanged))
	}
}

func TestSetterValidation(t *testing.T) {
	adapter := bletest.NewAdapter()
	m, _ := newTestManager(t, adapter, Options{})
	mustConnect(t, m, cloudA)

	if err := m.SetColor("red"); !errors.Is(err, protocol.ErrInvalidColor) {
		t.Errorf("SetColor() error = %v", err)
	}
	if err := m.SelectPalette(42); !errors.Is(err, protocol.ErrUnknownPalette) {
		t.Errorf("SelectPalette() error = %v", err)
	}
	if err := m.SetMatrixEyeColor("PURPLE"); !errors.Is(err, protocol.ErrUnknownMatrixColor) {
		t.Errorf("SetMatrixEyeColor() error = %v", err)
	}
	if got := writes(adapter, cloudA.ID); got != "" {
		t.Errorf("invalid input wrote %q", got)
	}
}

func TestSetterWithoutDevice(t *testing.T) {
	m, rec := newTestManager(t, bletest.NewAdapter(), Options{})
	if err := m.TogglePower(); !errors.Is(err, ErrNoDevice) {
		t.Errorf("TogglePower() error = %v, want ErrNoDevice", err)
	}
	if err := m.SendCommand(protocol.GetState{}, ""); !errors.Is(err, ErrNoDevice) {
		t.Errorf("SendCommand() error = %v, want ErrNoDevice", err)
	}
	if !rec.noticeFor(ErrNoDevice) {
		t.Error("expected a notice")
	}
}

func TestWriteFailureKeepsOptimisticState(t *testing.T) {
	adapter := bletest.NewAdapter()
	m, rec := newTestManager(t, adapter, Options{})
	mustConnect(t, m, cloudA)
	if err := m.TogglePower(); err != nil {
		t.Fatal(err)
	}
	adapter.Conn(cloudA.ID).Char.SetWriteErr(errors.New("radio busy"))

	err := m.SetSolidMode()
	if !errors.Is(err, ble.ErrWriteFailed) {
		t.Fatalf("SetSolidMode() error = %v, want ErrWriteFailed", err)
	}
	c, _ := m.Active()
	if c.State.Animation != protocol.AnimationSolid {
		t.Error("state must not roll back after a failed write")
	}
	if !rec.noticeFor(ble.ErrWriteFailed) {
		t.Error("expected a notice")
	}
}

func TestSendCommandExplicitTarget(t *testing.T) {
	adapter := bletest.NewAdapter()
	m, _ := newTestManager(t, adapter, Options{})
	mustConnect(t, m, cloudA)
	mustConnect(t, m, cloudB)

	if err := m.SendCommand(protocol.Brightness{Value: 200}, cloudA.ID); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if got := writes(adapter, cloudA.ID); got != "BRIGHTNESS_200" {
		t.Errorf("cloudA writes = %q", got)
	}
	if got := writes(adapter, cloudB.ID); got != "" {
		t.Errorf("cloudB writes = %q, want none", got)
	}
	if err := m.SendCommand(protocol.GetState{}, "gone"); !errors.Is(err, ErrNoDevice) {
		t.Errorf("SendCommand(unknown) error = %v, want ErrNoDevice", err)
	}
}

func TestLinkLossRemovesCloud(t *testing.T) {
	adapter := bletest.NewAdapter()
	m, rec := newTestManager(t, adapter, Options{})
	mustConnect(t, m, cloudA)
	mustConnect(t, m, cloudB)

	adapter.Conn(cloudB.ID).SimulateDisconnect()

	if _, ok := m.Cloud(cloudB.ID); ok {
		t.Error("lost cloud should be removed")
	}
	if m.ActiveID() != cloudA.ID {
		t.Errorf("ActiveID() = %q, want %q", m.ActiveID(), cloudA.ID)
	}
	if !rec.noticeFor(ErrLinkLost) {
		t.Error("expected a link-lost notice")
	}
	if adapter.Connects() != 2 {
		t.Error("link loss must not trigger a reconnect")
	}
}

func TestLinkLostWhileConnecting(t *testing.T) {
	adapter := bletest.NewAdapter()
	m, rec := newTestManager(t, adapter, Options{})
	mustConnect(t, m, cloudA)

	adapter.DropAfterConnect(cloudB.ID, true)
	_, err := m.Connect(context.Background(), cloudB)
	if !errors.Is(err, ErrLinkLost) {
		t.Fatalf("Connect() error = %v, want ErrLinkLost", err)
	}
	if _, ok := m.Cloud(cloudB.ID); ok {
		t.Error("a cloud that dropped while connecting must not be registered")
	}
	if m.ActiveID() != cloudA.ID {
		t.Errorf("ActiveID() = %q, want %q", m.ActiveID(), cloudA.ID)
	}
	if !rec.noticeFor(ErrLinkLost) {
		t.Error("expected a link-lost notice")
	}

	adapter.DropAfterConnect(cloudB.ID, false)
	c := mustConnect(t, m, cloudB)
	if !c.Connected || m.ActiveID() != cloudB.ID {
		t.Errorf("reconnect: Connected = %v, ActiveID() = %q", c.Connected, m.ActiveID())
	}
	if adapter.Connects() != 3 {
		t.Errorf("Connects() = %d, want 3", adapter.Connects())
	}
}

func TestStaleSessionDropIgnored(t *testing.T) {
	adapter := bletest.NewAdapter()
	m, _ := newTestManager(t, adapter, Options{})
	mustConnect(t, m, cloudA)
	oldConn := adapter.Conn(cloudA.ID)

	if err := m.Disconnect(cloudA.ID); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	mustConnect(t, m, cloudA)

	oldConn.SimulateDisconnect()

	if _, ok := m.Cloud(cloudA.ID); !ok {
		t.Error("a drop from a replaced session must not remove the new one")
	}
}

func TestSwitchToUnknown(t *testing.T) {
	m, _ := newTestManager(t, bletest.NewAdapter(), Options{})
	mustConnect(t, m, cloudA)
	if err := m.SwitchTo("nope"); !errors.Is(err, ErrUnknownCloud) {
		t.Errorf("SwitchTo() error = %v, want ErrUnknownCloud", err)
	}
	if m.ActiveID() != cloudA.ID {
		t.Error("failed switch must not change the active cloud")
	}
}

func TestRename(t *testing.T) {
	m, _ := newTestManager(t, bletest.NewAdapter(), Options{})
	mustConnect(t, m, cloudA)

	if err := m.Rename(cloudA.ID, "  Bedroom  "); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if c, _ := m.Cloud(cloudA.ID); c.Name != "Bedroom" {
		t.Errorf("Name = %q, want Bedroom", c.Name)
	}
	if err := m.Rename(cloudA.ID, "   "); !errors.Is(err, ErrEmptyName) {
		t.Errorf("Rename(blank) error = %v", err)
	}
	if err := m.Rename("nope", "x"); !errors.Is(err, ErrUnknownCloud) {
		t.Errorf("Rename(unknown) error = %v", err)
	}
}

func TestPermissionsRequestedOnPowerOn(t *testing.T) {
	adapter := bletest.NewAdapter()
	var mu sync.Mutex
	calls := 0
	deny := false
	m, rec := newTestManager(t, adapter, Options{
		RequestPermissions: func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if deny {
				return errors.New("user said no")
			}
			return nil
		},
	})

	mu.Lock()
	if calls != 1 {
		t.Errorf("permission requests after Init = %d, want 1", calls)
	}
	deny = true
	mu.Unlock()

	adapter.SetState(ble.StatePoweredOff)
	adapter.SetState(ble.StatePoweredOn)

	mu.Lock()
	if calls != 2 {
		t.Errorf("permission requests after power cycle = %d, want 2", calls)
	}
	mu.Unlock()
	if !rec.noticeFor(ErrPermissionDenied) {
		t.Error("expected a permission notice")
	}

	if err := m.StartScan(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("StartScan() error = %v, want ErrPermissionDenied", err)
	}
	if m.AdapterState() != ble.StatePoweredOn {
		t.Errorf("AdapterState() = %s", m.AdapterState())
	}
}

func TestShutdown(t *testing.T) {
	adapter := bletest.NewAdapter(cloudB)
	m, _ := newTestManager(t, adapter, Options{})
	mustConnect(t, m, cloudA)
	if err := m.StartScan(context.Background()); err != nil {
		t.Fatalf("StartScan() error = %v", err)
	}

	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !adapter.Conn(cloudA.ID).Disconnected() {
		t.Error("Shutdown should disconnect every cloud")
	}
	if adapter.Scanning() != 0 {
		t.Error("Shutdown should stop the scan")
	}
	if err := m.StartScan(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("StartScan() after Shutdown error = %v", err)
	}
	if _, err := m.Connect(context.Background(), cloudB); !errors.Is(err, ErrClosed) {
		t.Errorf("Connect() after Shutdown error = %v", err)
	}
	if err := m.TogglePower(); !errors.Is(err, ErrClosed) {
		t.Errorf("TogglePower() after Shutdown error = %v", err)
	}
}
