package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chaz8081/cloudctl/internal/ble"
	"github.com/chaz8081/cloudctl/internal/ble/protocol"
	"github.com/chaz8081/cloudctl/internal/led"
)

// Connect stops any scan and connects to p, making it the active cloud.
// Connecting to a cloud that is already registered only switches to it.
// A failed attempt leaves the registry unchanged and is not retried.
func (m *Manager) Connect(ctx context.Context, p ble.Peripheral) (Cloud, error) {
	if m.isClosed() {
		return Cloud{}, ErrClosed
	}
	m.StopScan()

	if c, ok := m.switchExisting(p.ID); ok {
		return c, nil
	}

	if m.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.ConnectTimeout)
		defer cancel()
	}

	sess, err := ble.Connect(ctx, m.adapter, p)
	if err != nil {
		m.notice(err, fmt.Sprintf("Could not connect to %s.", displayName(p)))
		return Cloud{}, err
	}

	// Armed before registering so a drop from here on reaches linkLost; a
	// drop that already happened is caught by the Connected check below.
	sess.OnLost(func(id string) { m.linkLost(id, sess) })

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = sess.Disconnect()
		return Cloud{}, ErrClosed
	}
	if !sess.Connected() {
		m.mu.Unlock()
		err := fmt.Errorf("cloud: connect %s: %w", p.ID, ErrLinkLost)
		m.notice(err, fmt.Sprintf("Lost connection to %s while connecting.", displayName(p)))
		return Cloud{}, err
	}
	if _, ok := m.clouds[p.ID]; ok {
		// Lost a race with a concurrent Connect to the same id.
		m.mu.Unlock()
		_ = sess.Disconnect()
		c, _ := m.switchExisting(p.ID)
		return c, nil
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = m.unusedNameLocked()
	}
	c := Cloud{
		ID:            p.ID,
		Name:          name,
		Connected:     true,
		LastConnected: time.Now(),
		State:         led.Default(),
	}
	m.clouds[p.ID] = &entry{cloud: c, session: sess}
	m.order = append(m.order, p.ID)
	m.active = p.ID
	m.mu.Unlock()

	if err := sess.Subscribe(func(text string) { m.route(p.ID, text) }); err != nil {
		// The connection stays up; only state corrections are lost.
		m.notice(err, fmt.Sprintf("Could not subscribe to %s; device state will not update.", name))
	}
	m.scheduleStateRequest(p.ID, sess)

	slog.Info("[CLOUD] connected", "id", p.ID, "name", name)
	m.emit(Event{Kind: EventConnected, CloudID: p.ID, State: c.State})
	return c, nil
}

// unusedNameLocked returns "Cloud N" for the smallest N, starting at one more
// than the number of registered clouds, that no cloud is named. The caller
// holds mu.
func (m *Manager) unusedNameLocked() string {
	for n := len(m.order) + 1; ; n++ {
		name := fmt.Sprintf("Cloud %d", n)
		if !m.nameInUseLocked(name) {
			return name
		}
	}
}

func (m *Manager) nameInUseLocked(name string) bool {
	for _, e := range m.clouds {
		if e.cloud.Name == name {
			return true
		}
	}
	return false
}

func displayName(p ble.Peripheral) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

func (m *Manager) switchExisting(id string) (Cloud, bool) {
	m.mu.Lock()
	e, ok := m.clouds[id]
	if !ok {
		m.mu.Unlock()
		return Cloud{}, false
	}
	m.active = id
	c := e.cloud
	m.mu.Unlock()

	slog.Info("[CLOUD] already connected, switching", "id", id)
	m.emit(Event{Kind: EventSwitched, CloudID: id, State: c.State})
	return c, true
}

// scheduleStateRequest sends GET_STATE once after the settle delay. The
// request is dropped if the cloud is gone by then.
func (m *Manager) scheduleStateRequest(id string, sess *ble.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timers[id] = time.AfterFunc(m.settleDelay, func() {
		m.mu.Lock()
		delete(m.timers, id)
		e, ok := m.clouds[id]
		m.mu.Unlock()
		if !ok || e.session != sess {
			return
		}
		if err := sess.RequestCurrentState(); err != nil {
			m.notice(err, "Could not request the cloud's current state.")
		}
	})
}

// route applies a notification from id. Only the active cloud's
// notifications are applied; others are dropped.
func (m *Manager) route(id, text string) {
	n, ok := protocol.Decode(text)
	if !ok {
		slog.Debug("[CLOUD] ignoring notification", "id", id, "payload", text)
		return
	}

	m.mu.Lock()
	e, registered := m.clouds[id]
	if !registered || id != m.active {
		m.mu.Unlock()
		slog.Debug("[CLOUD] dropping notification from inactive cloud", "id", id, "payload", text)
		return
	}
	e.cloud.State = e.cloud.State.Apply(n)
	st := e.cloud.State
	m.mu.Unlock()

	m.emit(Event{Kind: EventStateChanged, CloudID: id, State: st})
}

// Disconnect cancels the cloud's connection and forgets it. The cloud is
// removed even if cancelling fails. Unknown ids are a no-op.
func (m *Manager) Disconnect(id string) error {
	m.mu.Lock()
	e, ok := m.clouds[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	newActive, changed := m.removeLocked(id)
	m.mu.Unlock()

	err := e.session.Disconnect()
	if err != nil {
		m.notice(err, fmt.Sprintf("Disconnecting %s failed.", e.cloud.Name))
	}
	slog.Info("[CLOUD] disconnected", "id", id, "active", newActive)
	m.emitRemoved(id, newActive, changed)
	return err
}

// linkLost handles a connection dropped by the peripheral or the OS. Drops
// of sessions that are not the registered one for id are ignored.
func (m *Manager) linkLost(id string, sess *ble.Session) {
	m.mu.Lock()
	e, ok := m.clouds[id]
	if !ok || e.session != sess {
		m.mu.Unlock()
		return
	}
	newActive, changed := m.removeLocked(id)
	m.mu.Unlock()

	m.notice(fmt.Errorf("%w: %s", ErrLinkLost, id), fmt.Sprintf("Lost connection to %s.", e.cloud.Name))
	m.emitRemoved(id, newActive, changed)
}

// removeLocked drops id from the registry and re-picks the active cloud as
// the first remaining one. The caller holds mu.
func (m *Manager) removeLocked(id string) (newActive string, changed bool) {
	e := m.clouds[id]
	e.cloud.Connected = false
	e.cloud.State = led.Default()
	delete(m.clouds, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if t, ok := m.timers[id]; ok {
		t.Stop()
		delete(m.timers, id)
	}
	if m.active != id {
		return m.active, false
	}
	m.active = ""
	if len(m.order) > 0 {
		m.active = m.order[0]
	}
	return m.active, true
}

func (m *Manager) emitRemoved(id, newActive string, changed bool) {
	m.emit(Event{Kind: EventDisconnected, CloudID: id})
	if !changed {
		return
	}
	ev := Event{Kind: EventSwitched, CloudID: newActive}
	if c, ok := m.Cloud(newActive); ok {
		ev.State = c.State
	}
	m.emit(ev)
}

// SwitchTo makes id the active cloud. It fails with ErrUnknownCloud, and
// changes nothing, unless id names a live cloud.
func (m *Manager) SwitchTo(id string) error {
	m.mu.Lock()
	e, ok := m.clouds[id]
	if !ok || !e.session.Connected() {
		m.mu.Unlock()
		return fmt.Errorf("cloud: switch to %s: %w", id, ErrUnknownCloud)
	}
	m.active = id
	st := e.cloud.State
	m.mu.Unlock()

	slog.Info("[CLOUD] switched", "id", id)
	m.emit(Event{Kind: EventSwitched, CloudID: id, State: st})
	return nil
}

// Rename changes a cloud's display name. Names are local only.
func (m *Manager) Rename(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	m.mu.Lock()
	e, ok := m.clouds[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("cloud: rename %s: %w", id, ErrUnknownCloud)
	}
	e.cloud.Name = name
	m.mu.Unlock()

	m.emit(Event{Kind: EventRenamed, CloudID: id})
	return nil
}
