package protocol

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownAnimation   = errors.New("protocol: unknown animation")
	ErrUnknownMatrixColor = errors.New("protocol: unknown matrix color")
	ErrUnknownPalette     = errors.New("protocol: unknown palette")
)

// Animation identifies a firmware animation. Ids are lower case on the
// controller side and upper case on the wire.
type Animation string

// Sentinels that are not selectable firmware animations.
const (
	AnimationNone  Animation = "none"
	AnimationSolid Animation = "solid"
)

const (
	AnimationRainbow      Animation = "rainbow"
	AnimationPride        Animation = "pride"
	AnimationFade         Animation = "fade"
	AnimationStrobe       Animation = "strobe"
	AnimationWave         Animation = "wave"
	AnimationSparkle      Animation = "sparkle"
	AnimationBreathe      Animation = "breathe"
	AnimationChase        Animation = "chase"
	AnimationFire         Animation = "fire"
	AnimationComet        Animation = "comet"
	AnimationScanner      Animation = "scanner"
	AnimationPulse        Animation = "pulse"
	AnimationMeteor       Animation = "meteor"
	AnimationTheater      Animation = "theater"
	AnimationPlasma       Animation = "plasma"
	AnimationGradient     Animation = "gradient"
	AnimationAurora       Animation = "aurora"
	AnimationRipple       Animation = "ripple"
	AnimationSine         Animation = "sine"
	AnimationSpiral       Animation = "spiral"
	AnimationKaleidoscope Animation = "kaleidoscope"
	AnimationOcean        Animation = "ocean"
	AnimationVisualizer   Animation = "visualizer"
	AnimationRandom       Animation = "random"
)

// AnimationInfo describes a selectable animation.
type AnimationInfo struct {
	ID   Animation
	Name string
}

// Animations lists every selectable animation in menu order.
var Animations = []AnimationInfo{
	{AnimationRainbow, "Rainbow"},
	{AnimationPride, "Rolling Rainbow Balls"},
	{AnimationFade, "Fade"},
	{AnimationStrobe, "Strobe"},
	{AnimationWave, "Wave"},
	{AnimationSparkle, "Sparkle"},
	{AnimationBreathe, "Breathe"},
	{AnimationChase, "Chase"},
	{AnimationFire, "Fire"},
	{AnimationComet, "Comet"},
	{AnimationScanner, "Scanner"},
	{AnimationPulse, "Pulse Wave"},
	{AnimationMeteor, "Meteor Rain"},
	{AnimationTheater, "Theater Chase"},
	{AnimationPlasma, "Plasma Wave"},
	{AnimationGradient, "Color Gradient"},
	{AnimationAurora, "Aurora Borealis"},
	{AnimationRipple, "Ripple Effect"},
	{AnimationSine, "Sine Wave"},
	{AnimationSpiral, "Spiral Flow"},
	{AnimationKaleidoscope, "Kaleidoscope"},
	{AnimationOcean, "Ocean Depths"},
	{AnimationVisualizer, "Music Visualizer"},
	{AnimationRandom, "Random"},
}

// ParseAnimation resolves a selectable animation id, ignoring case.
// The none and solid sentinels are not selectable and are rejected.
func ParseAnimation(s string) (Animation, error) {
	id := Animation(strings.ToLower(strings.TrimSpace(s)))
	for _, a := range Animations {
		if a.ID == id {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAnimation, s)
}

// IsRainbow reports whether the firmware generates the colors itself, which
// makes a user color inapplicable.
func (a Animation) IsRainbow() bool {
	return a == AnimationRainbow || a == AnimationPride
}

// IsRunning reports whether a real animation (not none or solid) is active.
func (a Animation) IsRunning() bool {
	return a != AnimationNone && a != AnimationSolid && a != ""
}

// Name returns the display name, or the id itself for unknown animations.
func (a Animation) Name() string {
	for _, info := range Animations {
		if info.ID == a {
			return info.Name
		}
	}
	switch a {
	case AnimationNone:
		return "None"
	case AnimationSolid:
		return "Solid"
	}
	return string(a)
}

// MatrixColor is one of the three colors the 8x8 matrix can show.
type MatrixColor string

const (
	MatrixGreen  MatrixColor = "GREEN"
	MatrixYellow MatrixColor = "YELLOW"
	MatrixRed    MatrixColor = "RED"
)

// MatrixColors lists the matrix colors in menu order.
var MatrixColors = []MatrixColor{MatrixGreen, MatrixYellow, MatrixRed}

// ParseMatrixColor resolves a matrix color, ignoring case.
func ParseMatrixColor(s string) (MatrixColor, error) {
	c := MatrixColor(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case MatrixGreen, MatrixYellow, MatrixRed:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMatrixColor, s)
}

// Palette is a firmware color palette.
type Palette struct {
	ID          int
	Name        string
	Description string
	Colors      []string
}

// Palettes lists the palettes built into the firmware.
var Palettes = []Palette{
	{0, "Landscape", "Earth tones and natural greens", []string{"#000000", "#4FD501", "#7ED32F", "#0125C0"}},
	{1, "Ocean", "Deep blues and ocean waves", []string{"#010607", "#01636F", "#90D1FF", "#004952"}},
	{2, "Sunset", "Warm sunset colors", []string{"#780000", "#FF6800", "#640067", "#200020"}},
	{3, "Autumn", "Fall leaves and warm browns", []string{"#1A0101", "#430401", "#760E01", "#899834"}},
	{4, "Fire", "Hot flames and embers", []string{"#000000", "#CC0000", "#FF6600", "#FFFF00"}},
	{5, "Ice", "Cool blues and whites", []string{"#000033", "#0099CC", "#99FFFF", "#FFFFFF"}},
	{6, "Neon", "Bright electric colors", []string{"#FF00FF", "#FF0000", "#00FF00", "#00FFFF"}},
	{7, "Sakura", "Cherry blossom pinks and reds", []string{"#C4130A", "#FF453D", "#DF2D48", "#FF5267"}},
	{8, "Aurora", "Northern lights greens and blues", []string{"#010D2D", "#00C817", "#00FF00", "#008707"}},
	{9, "Orangery", "Vibrant orange and red tones", []string{"#FF5F17", "#FF5200", "#DF0D08", "#FF4500"}},
	{10, "April Night", "Cool night blues and greens", []string{"#01052D", "#05A9AF", "#2DAF1F", "#F99605"}},
	{11, "Tiamat", "Mystical purples and teals", []string{"#010214", "#0D875C", "#2BFFC1", "#F707F9"}},
}

// LookupPalette returns the palette with the given id.
func LookupPalette(id int) (Palette, error) {
	for _, p := range Palettes {
		if p.ID == id {
			return p, nil
		}
	}
	return Palette{}, fmt.Errorf("%w: %d", ErrUnknownPalette, id)
}
