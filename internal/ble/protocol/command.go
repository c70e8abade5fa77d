// Package protocol implements the cloud text protocol: the commands written to
// the cloud characteristic and the state tokens it notifies back.
//
// Every outbound token is plain ASCII with fields joined by '_'. Commands are
// modelled as a closed set of types so call sites never build token strings.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Brightness and random-interval bounds accepted by the firmware.
const (
	MinBrightness      = 10
	MaxBrightness      = 255
	DefaultBrightness  = 84
	MinRandomInterval  = 1
	MaxRandomInterval  = 300
	tokenSep           = "_"
	animationPrefix    = "ANIMATION_"
	animationColorPref = "ANIMATION_COLOR_"
)

// Command is one outbound instruction. The set of implementations is closed.
type Command interface {
	command()
}

// Power switches the LEDs on or off (LED_ON / LED_OFF).
type Power struct{ On bool }

// StaticColor sets a solid color (COLOR_r_g_b).
type StaticColor struct{ Color RGB }

// AnimationColor recolors the running animation (ANIMATION_COLOR_r_g_b).
type AnimationColor struct{ Color RGB }

// Brightness sets the global brightness (BRIGHTNESS_n).
type Brightness struct{ Value int }

// SelectAnimation starts an animation (ANIMATION_<ID>).
type SelectAnimation struct{ Animation Animation }

// StopAnimation stops the running animation (ANIMATION_STOP).
type StopAnimation struct{}

// ColorCycle toggles automatic color cycling (COLOR_CYCLE_ON / COLOR_CYCLE_OFF).
type ColorCycle struct{ On bool }

// MatrixEye sets the matrix eye color (MATRIX_EYE_<COLOR>).
type MatrixEye struct{ Color MatrixColor }

// MatrixPupil sets the matrix pupil color (MATRIX_PUPIL_<COLOR>).
type MatrixPupil struct{ Color MatrixColor }

// MatrixHeart toggles the heart matrix mode (MATRIX_HEART_ON / MATRIX_HEART_OFF).
type MatrixHeart struct{ On bool }

// MatrixHeartColor sets one of the two heart colors (MATRIX_HEART1_<COLOR>,
// MATRIX_HEART2_<COLOR>). Slot is 1 or 2.
type MatrixHeartColor struct {
	Slot  int
	Color MatrixColor
}

// MatrixVisualizer toggles the heart-eye matrix mode
// (MATRIX_HEARTEYE_ON / MATRIX_HEARTEYE_OFF).
type MatrixVisualizer struct{ On bool }

// MatrixClock toggles the clock matrix mode (MATRIX_CLOCK_ON / MATRIX_CLOCK_OFF).
type MatrixClock struct{ On bool }

// MatrixClockColor sets the clock color (MATRIX_CLOCK_<COLOR>).
type MatrixClockColor struct{ Color MatrixColor }

// SelectPalette applies a palette (PALETTE_<id>).
type SelectPalette struct{ ID int }

// DisablePalette removes the palette (PALETTE_OFF).
type DisablePalette struct{}

// RandomInterval sets how often the random animation switches
// (RANDOM_INTERVAL_<seconds>).
type RandomInterval struct{ Seconds int }

// GetState asks the cloud to report its current state (GET_STATE).
type GetState struct{}

func (Power) command()            {}
func (StaticColor) command()      {}
func (AnimationColor) command()   {}
func (Brightness) command()       {}
func (SelectAnimation) command()  {}
func (StopAnimation) command()    {}
func (ColorCycle) command()       {}
func (MatrixEye) command()        {}
func (MatrixPupil) command()      {}
func (MatrixHeart) command()      {}
func (MatrixHeartColor) command() {}
func (MatrixVisualizer) command() {}
func (MatrixClock) command()      {}
func (MatrixClockColor) command() {}
func (SelectPalette) command()    {}
func (DisablePalette) command()   {}
func (RandomInterval) command()   {}
func (GetState) command()         {}

// Encode renders a command as its wire token.
func Encode(c Command) string {
	switch c := c.(type) {
	case Power:
		return onOff("LED", c.On)
	case StaticColor:
		return "COLOR_" + c.Color.token()
	case AnimationColor:
		return animationColorPref + c.Color.token()
	case Brightness:
		return "BRIGHTNESS_" + strconv.Itoa(c.Value)
	case SelectAnimation:
		return animationPrefix + strings.ToUpper(string(c.Animation))
	case StopAnimation:
		return "ANIMATION_STOP"
	case ColorCycle:
		return onOff("COLOR_CYCLE", c.On)
	case MatrixEye:
		return "MATRIX_EYE_" + string(c.Color)
	case MatrixPupil:
		return "MATRIX_PUPIL_" + string(c.Color)
	case MatrixHeart:
		return onOff("MATRIX_HEART", c.On)
	case MatrixHeartColor:
		return fmt.Sprintf("MATRIX_HEART%d_%s", c.Slot, c.Color)
	case MatrixVisualizer:
		return onOff("MATRIX_HEARTEYE", c.On)
	case MatrixClock:
		return onOff("MATRIX_CLOCK", c.On)
	case MatrixClockColor:
		return "MATRIX_CLOCK_" + string(c.Color)
	case SelectPalette:
		return "PALETTE_" + strconv.Itoa(c.ID)
	case DisablePalette:
		return "PALETTE_OFF"
	case RandomInterval:
		return "RANDOM_INTERVAL_" + strconv.Itoa(ClampRandomInterval(c.Seconds))
	case GetState:
		return "GET_STATE"
	}
	panic(fmt.Sprintf("protocol: unhandled command %T", c))
}

// ClampRandomInterval bounds seconds to [MinRandomInterval, MaxRandomInterval].
func ClampRandomInterval(seconds int) int {
	return clamp(seconds, MinRandomInterval, MaxRandomInterval)
}

// ClampBrightness bounds v to [MinBrightness, MaxBrightness].
func ClampBrightness(v int) int {
	return clamp(v, MinBrightness, MaxBrightness)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func onOff(prefix string, on bool) string {
	if on {
		return prefix + "_ON"
	}
	return prefix + "_OFF"
}
