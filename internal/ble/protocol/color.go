package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ErrInvalidColor is returned for anything that is not a #RRGGBB string.
var ErrInvalidColor = errors.New("protocol: invalid color")

// DefaultColor is the color a freshly connected cloud starts with.
const DefaultColor = "#FF0000"

// RGB is an 8-bit color triple.
type RGB struct {
	R, G, B uint8
}

// ParseHexColor parses a #RRGGBB string. Case is ignored.
func ParseHexColor(s string) (RGB, error) {
	if len(s) != 7 || s[0] != '#' {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	// colorful.Hex stops quietly at the first non-hex digit.
	for i := 1; i < len(s); i++ {
		if !isHexDigit(s[i]) {
			return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
		}
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	r, g, b := c.RGB255()
	return RGB{R: r, G: g, B: b}, nil
}

// MustParseHexColor is ParseHexColor for compile-time constants.
func MustParseHexColor(s string) RGB {
	c, err := ParseHexColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex returns the canonical upper-case #RRGGBB form.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// Colorful converts to a go-colorful color, used for blending and terminal swatches.
func (c RGB) Colorful() colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

func isHexDigit(b byte) bool {
	return ('0' <= b && b <= '9') || ('a' <= b && b <= 'f') || ('A' <= b && b <= 'F')
}

func (c RGB) token() string {
	return fmt.Sprintf("%d_%d_%d", c.R, c.G, c.B)
}

// parseRGBToken parses the "r_g_b" tail of a color token.
func parseRGBToken(s string) (RGB, error) {
	parts := strings.Split(s, tokenSep)
	if len(parts) != 3 {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	var v [3]uint8
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
		}
		v[i] = uint8(n)
	}
	return RGB{R: v[0], G: v[1], B: v[2]}, nil
}

// ColorOption is a named preset offered by color pickers.
type ColorOption struct {
	Hex  string
	Name string
}

// ColorOptions are the preset swatches.
var ColorOptions = []ColorOption{
	{"#FF0000", "Red"},
	{"#FF8000", "Orange"},
	{"#FFFF00", "Yellow"},
	{"#80FF00", "Lime"},
	{"#00FF00", "Green"},
	{"#00FF80", "Spring Green"},
	{"#00FFFF", "Cyan"},
	{"#0080FF", "Sky Blue"},
	{"#0000FF", "Blue"},
	{"#8000FF", "Purple"},
	{"#FF00FF", "Magenta"},
	{"#FF0080", "Pink"},
	{"#FFFFFF", "White"},
	{"#C0C0C0", "Silver"},
	{"#808080", "Gray"},
	{"#000000", "Black"},
}
