package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownCommand is returned by ParseCommand for tokens outside the protocol.
var ErrUnknownCommand = errors.New("protocol: unknown command")

// Notification is a state report decoded from a characteristic notification.
type Notification interface {
	notification()
}

// PowerState reports the LED power (STATE_LED_ON / STATE_LED_OFF).
type PowerState struct{ On bool }

// AnimationState reports the running animation (STATE_ANIMATION_<ID>). The id
// is passed through lower-cased even if this controller does not know it.
type AnimationState struct{ Animation Animation }

// ColorCycleState reports that color cycling is on (STATE_COLOR_CYCLE_ON).
type ColorCycleState struct{ On bool }

func (PowerState) notification()      {}
func (AnimationState) notification()  {}
func (ColorCycleState) notification() {}

// Decode turns a notification payload into a Notification. Tokens this
// controller does not understand return ok == false and must be ignored:
// newer firmware may report state that older controllers cannot apply.
func Decode(payload string) (n Notification, ok bool) {
	token := cleanToken(payload)
	switch {
	case token == "STATE_LED_ON":
		return PowerState{On: true}, true
	case token == "STATE_LED_OFF":
		return PowerState{On: false}, true
	case token == "STATE_COLOR_CYCLE_ON":
		return ColorCycleState{On: true}, true
	case strings.HasPrefix(token, "STATE_ANIMATION_"):
		id := strings.TrimPrefix(token, "STATE_ANIMATION_")
		if id == "" {
			return nil, false
		}
		return AnimationState{Animation: Animation(strings.ToLower(id))}, true
	}
	return nil, false
}

// DecodeBytes decodes a raw characteristic value.
func DecodeBytes(data []byte) (Notification, bool) {
	return Decode(string(data))
}

// cleanToken strips whitespace and the NUL padding some firmware appends.
func cleanToken(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

// ParseCommand parses an outbound wire token back into a Command. It is the
// inverse of Encode and is used to validate raw tokens typed by a user.
func ParseCommand(token string) (Command, error) {
	t := cleanToken(token)
	switch t {
	case "LED_ON":
		return Power{On: true}, nil
	case "LED_OFF":
		return Power{On: false}, nil
	case "ANIMATION_STOP":
		return StopAnimation{}, nil
	case "COLOR_CYCLE_ON":
		return ColorCycle{On: true}, nil
	case "COLOR_CYCLE_OFF":
		return ColorCycle{On: false}, nil
	case "MATRIX_HEART_ON":
		return MatrixHeart{On: true}, nil
	case "MATRIX_HEART_OFF":
		return MatrixHeart{On: false}, nil
	case "MATRIX_HEARTEYE_ON":
		return MatrixVisualizer{On: true}, nil
	case "MATRIX_HEARTEYE_OFF":
		return MatrixVisualizer{On: false}, nil
	case "MATRIX_CLOCK_ON":
		return MatrixClock{On: true}, nil
	case "MATRIX_CLOCK_OFF":
		return MatrixClock{On: false}, nil
	case "PALETTE_OFF":
		return DisablePalette{}, nil
	case "GET_STATE":
		return GetState{}, nil
	}

	switch {
	case strings.HasPrefix(t, animationColorPref):
		c, err := parseRGBToken(strings.TrimPrefix(t, animationColorPref))
		if err != nil {
			return nil, err
		}
		return AnimationColor{Color: c}, nil
	case strings.HasPrefix(t, animationPrefix):
		a, err := ParseAnimation(strings.TrimPrefix(t, animationPrefix))
		if err != nil {
			return nil, err
		}
		return SelectAnimation{Animation: a}, nil
	case strings.HasPrefix(t, "COLOR_"):
		c, err := parseRGBToken(strings.TrimPrefix(t, "COLOR_"))
		if err != nil {
			return nil, err
		}
		return StaticColor{Color: c}, nil
	case strings.HasPrefix(t, "BRIGHTNESS_"):
		n, err := parseIntTail(t, "BRIGHTNESS_")
		if err != nil {
			return nil, err
		}
		if n < 0 || n > MaxBrightness {
			return nil, fmt.Errorf("%w: brightness %d out of range", ErrUnknownCommand, n)
		}
		return Brightness{Value: n}, nil
	case strings.HasPrefix(t, "MATRIX_EYE_"):
		c, err := ParseMatrixColor(strings.TrimPrefix(t, "MATRIX_EYE_"))
		if err != nil {
			return nil, err
		}
		return MatrixEye{Color: c}, nil
	case strings.HasPrefix(t, "MATRIX_PUPIL_"):
		c, err := ParseMatrixColor(strings.TrimPrefix(t, "MATRIX_PUPIL_"))
		if err != nil {
			return nil, err
		}
		return MatrixPupil{Color: c}, nil
	case strings.HasPrefix(t, "MATRIX_HEART1_"), strings.HasPrefix(t, "MATRIX_HEART2_"):
		slot := int(t[len("MATRIX_HEART")] - '0')
		c, err := ParseMatrixColor(t[len("MATRIX_HEART1_"):])
		if err != nil {
			return nil, err
		}
		return MatrixHeartColor{Slot: slot, Color: c}, nil
	case strings.HasPrefix(t, "MATRIX_CLOCK_"):
		c, err := ParseMatrixColor(strings.TrimPrefix(t, "MATRIX_CLOCK_"))
		if err != nil {
			return nil, err
		}
		return MatrixClockColor{Color: c}, nil
	case strings.HasPrefix(t, "PALETTE_"):
		n, err := parseIntTail(t, "PALETTE_")
		if err != nil {
			return nil, err
		}
		if _, err := LookupPalette(n); err != nil {
			return nil, err
		}
		return SelectPalette{ID: n}, nil
	case strings.HasPrefix(t, "RANDOM_INTERVAL_"):
		n, err := parseIntTail(t, "RANDOM_INTERVAL_")
		if err != nil {
			return nil, err
		}
		return RandomInterval{Seconds: ClampRandomInterval(n)}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, token)
}

func parseIntTail(token, prefix string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(token, prefix))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, token)
	}
	return n, nil
}
