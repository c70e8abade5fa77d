package cloud

import (
	"errors"
	"fmt"

	"github.com/chaz8081/cloudctl/internal/ble"
	"github.com/chaz8081/cloudctl/internal/ble/protocol"
	"github.com/chaz8081/cloudctl/internal/led"
)

// SendCommand writes cmd to cloudID, or to the active cloud when cloudID is
// empty.
func (m *Manager) SendCommand(cmd protocol.Command, cloudID string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if cloudID == "" {
		cloudID = m.active
	}
	e, ok := m.clouds[cloudID]
	m.mu.Unlock()

	if !ok {
		err := fmt.Errorf("cloud: send %s: %w", protocol.Encode(cmd), ErrNoDevice)
		m.notice(err, "No cloud is connected.")
		return err
	}
	return m.write(e.session, cmd)
}

func (m *Manager) write(sess *ble.Session, cmd protocol.Command) error {
	if err := sess.Send(cmd); err != nil {
		m.notice(err, fmt.Sprintf("Sending %s failed.", protocol.Encode(cmd)))
		return err
	}
	return nil
}

type transition func(led.State) (led.State, []protocol.Command, error)

func infallible(f func(led.State) (led.State, []protocol.Command)) transition {
	return func(s led.State) (led.State, []protocol.Command, error) {
		next, cmds := f(s)
		return next, cmds, nil
	}
}

// update applies t to the active cloud and sends what it produced. The new
// state is kept even when writes fail; write errors are joined.
func (m *Manager) update(op string, t transition) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	id := m.active
	e, ok := m.clouds[id]
	if !ok {
		m.mu.Unlock()
		err := fmt.Errorf("cloud: %s: %w", op, ErrNoDevice)
		m.notice(err, "No cloud is connected.")
		return err
	}
	next, cmds, err := t(e.cloud.State)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("cloud: %s: %w", op, err)
	}
	e.cloud.State = next
	sess := e.session
	m.mu.Unlock()

	m.emit(Event{Kind: EventStateChanged, CloudID: id, State: next})

	var errs []error
	for _, c := range cmds {
		if err := m.write(sess, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) TogglePower() error {
	return m.update("toggle power", infallible(led.State.TogglePower))
}

func (m *Manager) SetColor(hex string) error {
	return m.update("set color", func(s led.State) (led.State, []protocol.Command, error) {
		return s.SetColor(hex)
	})
}

func (m *Manager) SetBrightness(v float64) error {
	return m.update("set brightness", infallible(func(s led.State) (led.State, []protocol.Command) {
		return s.SetBrightness(v)
	}))
}

func (m *Manager) SelectAnimation(id string) error {
	return m.update("select animation", func(s led.State) (led.State, []protocol.Command, error) {
		return s.SelectAnimation(id)
	})
}

func (m *Manager) StopAnimation() error {
	return m.update("stop animation", infallible(led.State.StopAnimation))
}

func (m *Manager) SetSolidMode() error {
	return m.update("solid mode", infallible(led.State.SetSolidMode))
}

func (m *Manager) ToggleColorCycle() error {
	return m.update("toggle color cycle", infallible(led.State.ToggleColorCycle))
}

func (m *Manager) SetRandomInterval(seconds int) error {
	return m.update("set random interval", infallible(func(s led.State) (led.State, []protocol.Command) {
		return s.SetRandomInterval(seconds)
	}))
}

func (m *Manager) SelectPalette(id int) error {
	return m.update("select palette", func(s led.State) (led.State, []protocol.Command, error) {
		return s.SelectPalette(id)
	})
}

func (m *Manager) DisablePalette() error {
	return m.update("disable palette", infallible(led.State.DisablePalette))
}

func (m *Manager) SetMatrixEyeColor(color string) error {
	return m.update("set eye color", func(s led.State) (led.State, []protocol.Command, error) {
		return s.SetMatrixEyeColor(color)
	})
}

func (m *Manager) SetMatrixPupilColor(color string) error {
	return m.update("set pupil color", func(s led.State) (led.State, []protocol.Command, error) {
		return s.SetMatrixPupilColor(color)
	})
}

func (m *Manager) SetMatrixHeartColor(slot int, color string) error {
	return m.update("set heart color", func(s led.State) (led.State, []protocol.Command, error) {
		return s.SetMatrixHeartColor(slot, color)
	})
}

func (m *Manager) SetMatrixClockColor(color string) error {
	return m.update("set clock color", func(s led.State) (led.State, []protocol.Command, error) {
		return s.SetMatrixClockColor(color)
	})
}

func (m *Manager) ToggleMatrixHeart() error {
	return m.update("toggle heart", infallible(led.State.ToggleMatrixHeart))
}

func (m *Manager) ToggleMatrixVisualizer() error {
	return m.update("toggle visualizer", infallible(led.State.ToggleMatrixVisualizer))
}

func (m *Manager) ToggleMatrixClock() error {
	return m.update("toggle clock", infallible(led.State.ToggleMatrixClock))
}
