// Package led holds the mirrored LED state of one cloud and the transitions
// applied to it.
//
// Transitions are pure: each returns the next State and the commands that
// carry the change to the device. Local state always changes (the UI is
// optimistic), but feature commands are only produced while the cloud is
// powered on. Power itself is the exception and is always sent.
package led

import (
	"math"

	"github.com/chaz8081/cloudctl/internal/ble/protocol"
)

// NoPalette marks that no palette is applied.
const NoPalette = -1

// State is the controllable state of one cloud.
type State struct {
	Power      bool
	Color      string // #RRGGBB, upper case
	Brightness int
	Animation  protocol.Animation
	ColorCycle bool

	MatrixEyeColor   protocol.MatrixColor
	MatrixPupilColor protocol.MatrixColor

	// At most one of the three matrix modes is on; eyes show when none is.
	MatrixHeart      bool
	MatrixVisualizer bool
	MatrixClock      bool

	MatrixHeart1Color protocol.MatrixColor
	MatrixHeart2Color protocol.MatrixColor
	MatrixClockColor  protocol.MatrixColor

	Palette int // palette id or NoPalette
}

// Default returns the state assumed for a freshly connected cloud.
func Default() State {
	return State{
		Power:             false,
		Color:             protocol.DefaultColor,
		Brightness:        protocol.DefaultBrightness,
		Animation:         protocol.AnimationNone,
		MatrixEyeColor:    protocol.MatrixGreen,
		MatrixPupilColor:  protocol.MatrixRed,
		MatrixHeart1Color: protocol.MatrixRed,
		MatrixHeart2Color: protocol.MatrixRed,
		MatrixClockColor:  protocol.MatrixGreen,
		Palette:           NoPalette,
	}
}

// HasPalette reports whether a palette is applied.
func (s State) HasPalette() bool {
	return s.Palette != NoPalette
}

// MatrixMode names the active matrix display.
func (s State) MatrixMode() string {
	switch {
	case s.MatrixHeart:
		return "heart"
	case s.MatrixVisualizer:
		return "visualizer"
	case s.MatrixClock:
		return "clock"
	}
	return "eyes"
}

// emit returns cmds only when the cloud is powered on.
func (s State) emit(cmds ...protocol.Command) []protocol.Command {
	if !s.Power {
		return nil
	}
	return cmds
}

func (s State) rgb() protocol.RGB {
	c, err := protocol.ParseHexColor(s.Color)
	if err != nil {
		return protocol.MustParseHexColor(protocol.DefaultColor)
	}
	return c
}

// TogglePower flips power. LED_ON/LED_OFF is sent regardless of the old value.
func (s State) TogglePower() (State, []protocol.Command) {
	s.Power = !s.Power
	return s, []protocol.Command{protocol.Power{On: s.Power}}
}

// SetColor records a new color. While a user-colorable animation runs the
// animation is recolored; otherwise the static color is set.
func (s State) SetColor(hex string) (State, []protocol.Command, error) {
	c, err := protocol.ParseHexColor(hex)
	if err != nil {
		return s, nil, err
	}
	s.Color = c.Hex()
	if s.Animation.IsRunning() && !s.Animation.IsRainbow() {
		return s, s.emit(protocol.AnimationColor{Color: c}), nil
	}
	return s, s.emit(protocol.StaticColor{Color: c}), nil
}

// SetBrightness rounds v to the nearest integer within the firmware range.
func (s State) SetBrightness(v float64) (State, []protocol.Command) {
	s.Brightness = protocol.ClampBrightness(int(math.Round(v)))
	return s, s.emit(protocol.Brightness{Value: s.Brightness})
}

// SelectAnimation starts an animation. The visualizer animation also drives
// the heart-eye matrix mode; any other animation switches that mode off. A
// running color cycle is re-armed under the new animation.
func (s State) SelectAnimation(id string) (State, []protocol.Command, error) {
	a, err := protocol.ParseAnimation(id)
	if err != nil {
		return s, nil, err
	}

	var cmds []protocol.Command
	if a == protocol.AnimationVisualizer {
		if s.MatrixHeart {
			cmds = append(cmds, protocol.MatrixHeart{On: false})
		}
		if s.MatrixClock {
			cmds = append(cmds, protocol.MatrixClock{On: false})
		}
		s.MatrixHeart, s.MatrixClock, s.MatrixVisualizer = false, false, true
		cmds = append(cmds, protocol.MatrixVisualizer{On: true})
	} else if s.MatrixVisualizer {
		s.MatrixVisualizer = false
		cmds = append(cmds, protocol.MatrixVisualizer{On: false})
	}

	s.Animation = a
	cmds = append(cmds, protocol.SelectAnimation{Animation: a})
	if s.ColorCycle {
		cmds = append(cmds, protocol.ColorCycle{On: true})
	}
	return s, s.emit(cmds...), nil
}

// StopAnimation stops whatever animation is running.
func (s State) StopAnimation() (State, []protocol.Command) {
	s.Animation = protocol.AnimationNone
	return s, s.emit(protocol.StopAnimation{})
}

// SetSolidMode stops animation and cycling and shows the current color.
func (s State) SetSolidMode() (State, []protocol.Command) {
	s.Animation = protocol.AnimationSolid
	s.ColorCycle = false
	return s, s.emit(
		protocol.StopAnimation{},
		protocol.ColorCycle{On: false},
		protocol.StaticColor{Color: s.rgb()},
	)
}

// ToggleColorCycle flips color cycling. Turning it off re-asserts the chosen
// color so the device does not stay on a mid-cycle color.
func (s State) ToggleColorCycle() (State, []protocol.Command) {
	s.ColorCycle = !s.ColorCycle
	if s.ColorCycle {
		return s, s.emit(protocol.ColorCycle{On: true})
	}
	return s, s.emit(
		protocol.ColorCycle{On: false},
		protocol.AnimationColor{Color: s.rgb()},
	)
}

// SetRandomInterval forwards the random-animation interval. It is not
// tracked locally.
func (s State) SetRandomInterval(seconds int) (State, []protocol.Command) {
	return s, s.emit(protocol.RandomInterval{Seconds: protocol.ClampRandomInterval(seconds)})
}

// SelectPalette applies a palette.
func (s State) SelectPalette(id int) (State, []protocol.Command, error) {
	if _, err := protocol.LookupPalette(id); err != nil {
		return s, nil, err
	}
	s.Palette = id
	return s, s.emit(protocol.SelectPalette{ID: id}), nil
}

// DisablePalette removes the palette.
func (s State) DisablePalette() (State, []protocol.Command) {
	s.Palette = NoPalette
	return s, s.emit(protocol.DisablePalette{})
}

// Apply overwrites the fields a state notification is authoritative for.
func (s State) Apply(n protocol.Notification) State {
	switch n := n.(type) {
	case protocol.PowerState:
		s.Power = n.On
	case protocol.AnimationState:
		s.Animation = n.Animation
		if n.Animation == protocol.AnimationSolid {
			s.ColorCycle = false
		}
	case protocol.ColorCycleState:
		s.ColorCycle = n.On
	}
	return s
}
