package led

import "github.com/chaz8081/cloudctl/internal/ble/protocol"

type matrixMode int

const (
	modeHeart matrixMode = iota
	modeVisualizer
	modeClock
)

func (s *State) modeFlag(m matrixMode) *bool {
	switch m {
	case modeHeart:
		return &s.MatrixHeart
	case modeVisualizer:
		return &s.MatrixVisualizer
	}
	return &s.MatrixClock
}

func modeCommand(m matrixMode, on bool) protocol.Command {
	switch m {
	case modeHeart:
		return protocol.MatrixHeart{On: on}
	case modeVisualizer:
		return protocol.MatrixVisualizer{On: on}
	}
	return protocol.MatrixClock{On: on}
}

// toggleMode flips one matrix mode. Switching a mode on first switches off
// whichever other mode is on, sending its off token.
func (s State) toggleMode(m matrixMode) (State, []protocol.Command) {
	flag := s.modeFlag(m)
	on := !*flag

	var cmds []protocol.Command
	if on {
		for _, other := range []matrixMode{modeHeart, modeVisualizer, modeClock} {
			if other == m {
				continue
			}
			if f := s.modeFlag(other); *f {
				*f = false
				cmds = append(cmds, modeCommand(other, false))
			}
		}
	}
	*flag = on
	cmds = append(cmds, modeCommand(m, on))
	return s, s.emit(cmds...)
}

// ToggleMatrixHeart flips the heart matrix mode.
func (s State) ToggleMatrixHeart() (State, []protocol.Command) {
	return s.toggleMode(modeHeart)
}

// ToggleMatrixVisualizer flips the heart-eye matrix mode.
func (s State) ToggleMatrixVisualizer() (State, []protocol.Command) {
	return s.toggleMode(modeVisualizer)
}

// ToggleMatrixClock flips the clock matrix mode.
func (s State) ToggleMatrixClock() (State, []protocol.Command) {
	return s.toggleMode(modeClock)
}

// SetMatrixEyeColor sets the eye color of the default matrix face.
func (s State) SetMatrixEyeColor(color string) (State, []protocol.Command, error) {
	c, err := protocol.ParseMatrixColor(color)
	if err != nil {
		return s, nil, err
	}
	s.MatrixEyeColor = c
	return s, s.emit(protocol.MatrixEye{Color: c}), nil
}

// SetMatrixPupilColor sets the pupil color of the default matrix face.
func (s State) SetMatrixPupilColor(color string) (State, []protocol.Command, error) {
	c, err := protocol.ParseMatrixColor(color)
	if err != nil {
		return s, nil, err
	}
	s.MatrixPupilColor = c
	return s, s.emit(protocol.MatrixPupil{Color: c}), nil
}

// SetMatrixHeartColor sets heart color slot 1 or 2.
func (s State) SetMatrixHeartColor(slot int, color string) (State, []protocol.Command, error) {
	c, err := protocol.ParseMatrixColor(color)
	if err != nil {
		return s, nil, err
	}
	switch slot {
	case 1:
		s.MatrixHeart1Color = c
	case 2:
		s.MatrixHeart2Color = c
	default:
		return s, nil, ErrInvalidHeartSlot
	}
	return s, s.emit(protocol.MatrixHeartColor{Slot: slot, Color: c}), nil
}

// SetMatrixClockColor sets the clock color.
func (s State) SetMatrixClockColor(color string) (State, []protocol.Command, error) {
	c, err := protocol.ParseMatrixColor(color)
	if err != nil {
		return s, nil, err
	}
	s.MatrixClockColor = c
	return s, s.emit(protocol.MatrixClockColor{Color: c}), nil
}
