package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chaz8081/cloudctl/internal/ble"
)

// StartScan re-checks the adapter and starts a discovery window of
// ScanWindow. Calling it while a scan runs restarts the window with an empty
// discovered list.
//
// An adapter that is not powered on yields ErrAdapterNotPoweredOn; see
// IsRetryable.
func (m *Manager) StartScan(ctx context.Context) error {
	m.scanMu.Lock()
	defer m.scanMu.Unlock()

	if m.isClosed() {
		return ErrClosed
	}

	st, err := m.adapter.State(ctx)
	if err != nil {
		err = fmt.Errorf("cloud: start scan: %w: %w", ErrAdapterUnavailable, err)
		m.notice(err, "Bluetooth is not available on this device.")
		return err
	}
	m.setAdapterState(ctx, st)
	if st != ble.StatePoweredOn {
		err := fmt.Errorf("cloud: start scan: %w (state %s)", ErrAdapterNotPoweredOn, st)
		m.notice(err, "Bluetooth is turned off. Turn it on and check again.")
		return err
	}

	m.mu.Lock()
	denied := m.permDenied
	m.mu.Unlock()
	if denied {
		if err := m.requestPermissions(ctx); err != nil {
			return err
		}
	}

	m.stopScanLocked()

	scanCtx, cancel := context.WithTimeout(ctx, m.scanWindow)
	done := make(chan struct{})

	m.mu.Lock()
	m.scanGen++
	gen := m.scanGen
	m.scanning = true
	m.scanCancel = cancel
	m.scanDone = done
	m.discovered = nil
	m.discoveredIDs = make(map[string]bool)
	m.mu.Unlock()

	slog.Info("[CLOUD] scan started", "window", m.scanWindow)
	m.emit(Event{Kind: EventScanStarted})

	go m.queryConnected(scanCtx, gen)
	go func() {
		defer close(done)
		err := m.adapter.Scan(scanCtx, ble.ServiceUUID, func(p ble.Peripheral) {
			m.discover(gen, p)
		})
		m.finishScan(gen, err)
	}()
	return nil
}

// StopScan ends the running scan, if any.
func (m *Manager) StopScan() {
	m.scanMu.Lock()
	defer m.scanMu.Unlock()
	m.stopScanLocked()
}

// stopScanLocked cancels the current scan and waits for it to return. The
// caller holds scanMu.
func (m *Manager) stopScanLocked() {
	m.mu.Lock()
	if m.scanCancel == nil {
		m.mu.Unlock()
		return
	}
	cancel, done := m.scanCancel, m.scanDone
	wasScanning := m.scanning
	m.scanGen++
	m.scanning = false
	m.scanCancel = nil
	m.scanDone = nil
	m.mu.Unlock()

	cancel()
	<-done

	if wasScanning {
		slog.Info("[CLOUD] scan stopped")
		m.emit(Event{Kind: EventScanStopped})
	}
}

// finishScan runs when a scan returns by itself: the window elapsed or the
// transport failed. Scans already superseded are ignored.
func (m *Manager) finishScan(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.scanGen {
		m.mu.Unlock()
		return
	}
	m.scanning = false
	cancel := m.scanCancel
	m.scanCancel = nil
	m.scanDone = nil
	n := len(m.discovered)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrScanFailed, err)
		m.notice(err, "Scanning for clouds failed.")
	}
	slog.Info("[CLOUD] scan finished", "found", n)
	m.emit(Event{Kind: EventScanStopped})
}

// queryConnected adds clouds the OS already holds a link to.
func (m *Manager) queryConnected(ctx context.Context, gen uint64) {
	ps, err := m.adapter.ConnectedPeripherals(ctx)
	if errors.Is(err, ble.ErrUnsupported) {
		slog.Debug("[CLOUD] transport cannot list connected peripherals")
		return
	}
	if err != nil {
		slog.Warn("[CLOUD] listing connected peripherals failed", "error", err)
		return
	}
	for _, p := range ps {
		m.discover(gen, p)
	}
}

func (m *Manager) discover(gen uint64, p ble.Peripheral) {
	if !p.IsCloud() {
		return
	}
	m.mu.Lock()
	if gen != m.scanGen || m.discoveredIDs[p.ID] {
		m.mu.Unlock()
		return
	}
	m.discoveredIDs[p.ID] = true
	m.discovered = append(m.discovered, p)
	m.mu.Unlock()

	slog.Debug("[CLOUD] discovered", "id", p.ID, "name", p.Name, "rssi", p.RSSI)
	m.emit(Event{Kind: EventPeripheralDiscovered, Peripheral: p})
}

// IsScanning reports whether a scan window is open.
func (m *Manager) IsScanning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scanning
}

// Discovered returns the clouds found by the current or last scan.
func (m *Manager) Discovered() []ble.Peripheral {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ble.Peripheral(nil), m.discovered...)
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
