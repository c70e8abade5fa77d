// Package cloud manages scanning for clouds and the set of clouds that are
// connected at the same time.
//
// One cloud is active at a time. Setters act on the active cloud, and only
// its notifications are applied to local state.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/cloudctl/internal/ble"
	"github.com/chaz8081/cloudctl/internal/led"
)

const (
	// ScanWindow is how long a scan runs before stopping on its own.
	ScanWindow = 15 * time.Second
	// SettleDelay is the pause between subscribing and sending GET_STATE.
	SettleDelay = time.Second
)

// Options configures a Manager.
type Options struct {
	// OnEvent receives every event. It may be called from any goroutine but
	// never with the Manager's lock held.
	OnEvent func(Event)

	// RequestPermissions is called whenever the adapter becomes powered on.
	// A nil func means no permissions are needed.
	RequestPermissions func(ctx context.Context) error

	// ConnectTimeout bounds one connect attempt. Zero means no bound.
	ConnectTimeout time.Duration
}

// Cloud is a snapshot of one connected cloud.
type Cloud struct {
	ID            string
	Name          string
	Connected     bool
	LastConnected time.Time
	State         led.State
}

type entry struct {
	cloud   Cloud
	session *ble.Session
}

// Manager owns the scan lifecycle and the registry of connected clouds.
type Manager struct {
	adapter ble.Adapter
	opts    Options

	scanWindow  time.Duration
	settleDelay time.Duration

	// scanMu serializes starting and stopping scans.
	scanMu sync.Mutex

	mu            sync.Mutex
	closed        bool
	adapterState  ble.AdapterState
	permDenied    bool
	scanning      bool
	scanGen       uint64
	scanCancel    context.CancelFunc
	scanDone      chan struct{}
	discovered    []ble.Peripheral
	discoveredIDs map[string]bool
	clouds        map[string]*entry
	order         []string
	active        string
	timers        map[string]*time.Timer
}

// New creates a Manager over adapter. Call Init before scanning.
func New(adapter ble.Adapter, opts Options) *Manager {
	return &Manager{
		adapter:       adapter,
		opts:          opts,
		scanWindow:    ScanWindow,
		settleDelay:   SettleDelay,
		adapterState:  ble.StateUnknown,
		discoveredIDs: make(map[string]bool),
		clouds:        make(map[string]*entry),
		timers:        make(map[string]*time.Timer),
	}
}

// Init reads the adapter state and starts observing changes to it.
func (m *Manager) Init(ctx context.Context) error {
	st, err := m.adapter.State(ctx)
	if err != nil {
		err = fmt.Errorf("cloud: init: %w: %w", ErrAdapterUnavailable, err)
		m.notice(err, "Bluetooth is not available on this device.")
		return err
	}
	m.adapter.OnStateChange(func(s ble.AdapterState) {
		m.setAdapterState(context.Background(), s)
	})
	m.setAdapterState(ctx, st)
	return nil
}

// Shutdown stops scanning, disconnects every cloud and releases the adapter.
// Later calls fail with ErrClosed.
func (m *Manager) Shutdown() error {
	m.StopScan()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	var sessions []*ble.Session
	for _, id := range m.order {
		sessions = append(sessions, m.clouds[id].session)
	}
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
	m.clouds = make(map[string]*entry)
	m.order = nil
	m.active = ""
	m.mu.Unlock()

	m.adapter.OnStateChange(nil)

	var errs []error
	for _, s := range sessions {
		if err := s.Disconnect(); err != nil {
			errs = append(errs, err)
		}
	}
	if c, ok := m.adapter.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cloud: close adapter: %w", err))
		}
	}
	slog.Info("[CLOUD] shut down", "clouds", len(sessions))
	return errors.Join(errs...)
}

// AdapterState returns the last observed adapter state.
func (m *Manager) AdapterState() ble.AdapterState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adapterState
}

func (m *Manager) setAdapterState(ctx context.Context, st ble.AdapterState) {
	m.mu.Lock()
	prev := m.adapterState
	m.adapterState = st
	m.mu.Unlock()

	if prev == st {
		return
	}
	slog.Info("[CLOUD] adapter state", "from", prev, "to", st)
	m.emit(Event{Kind: EventAdapterState, AdapterState: st})
	if st == ble.StatePoweredOn {
		_ = m.requestPermissions(ctx)
	}
}

func (m *Manager) requestPermissions(ctx context.Context) error {
	if m.opts.RequestPermissions == nil {
		return nil
	}
	err := m.opts.RequestPermissions(ctx)

	m.mu.Lock()
	m.permDenied = err != nil
	m.mu.Unlock()

	if err != nil {
		err = fmt.Errorf("cloud: request permissions: %w: %w", ErrPermissionDenied, err)
		m.notice(err, "Bluetooth permission is required to find clouds.")
		return err
	}
	return nil
}

// Clouds returns the connected clouds in connection order.
func (m *Manager) Clouds() []Cloud {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Cloud, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.clouds[id].cloud)
	}
	return out
}

// Cloud returns the cloud registered under id.
func (m *Manager) Cloud(id string) (Cloud, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.clouds[id]
	if !ok {
		return Cloud{}, false
	}
	return e.cloud, true
}

// ActiveID returns the active cloud's id, or "" when none is connected.
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Active returns the active cloud.
func (m *Manager) Active() (Cloud, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.clouds[m.active]
	if !ok {
		return Cloud{}, false
	}
	return e.cloud, true
}

func (m *Manager) emit(evs ...Event) {
	if m.opts.OnEvent == nil {
		return
	}
	for _, ev := range evs {
		m.opts.OnEvent(ev)
	}
}

// notice logs err and forwards it as a user-facing notice.
func (m *Manager) notice(err error, msg string) {
	slog.Error("[CLOUD] "+msg, "error", err)
	m.emit(Event{Kind: EventNotice, Err: err, Message: msg})
}
