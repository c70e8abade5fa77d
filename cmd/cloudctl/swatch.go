package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/chaz8081/cloudctl/internal/ble/protocol"
)

const barCells = 16

var matrixHex = map[protocol.MatrixColor]string{
	protocol.MatrixGreen:  "#00C800",
	protocol.MatrixYellow: "#E6C800",
	protocol.MatrixRed:    "#E60000",
}

// swatch renders a two-cell block of the given #RRGGBB color.
func swatch(hex string) string {
	c, err := protocol.ParseHexColor(hex)
	if err != nil {
		return "  "
	}
	return lipgloss.NewStyle().Background(lipgloss.Color(c.Hex())).Render("  ")
}

// matrixSwatch renders a matrix color as a labelled chip with readable text.
func matrixSwatch(mc protocol.MatrixColor) string {
	hex, ok := matrixHex[mc]
	if !ok {
		return string(mc)
	}
	bg, _ := colorful.Hex(hex)
	return lipgloss.NewStyle().
		Background(lipgloss.Color(hex)).
		Foreground(lipgloss.Color(contrastText(bg))).
		Padding(0, 1).
		Render(strings.ToLower(string(mc)))
}

// brightnessBar draws the brightness as a bar fading from black to the
// current color, blended in Lab space so the ramp looks even.
func brightnessBar(hex string, brightness int) string {
	c, err := protocol.ParseHexColor(hex)
	if err != nil {
		c = protocol.MustParseHexColor(protocol.DefaultColor)
	}
	target := c.Colorful()
	black := colorful.Color{}

	filled := protocol.ClampBrightness(brightness) * barCells / 255
	var b strings.Builder
	for i := range barCells {
		if i >= filled {
			b.WriteString(mutedStyle.Render("·"))
			continue
		}
		t := float64(i+1) / barCells
		cell := black.BlendLab(target, t).Clamped()
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(cell.Hex())).Render("█"))
	}
	return b.String()
}

// contrastText picks black or white text for a background by its Lab lightness.
func contrastText(bg colorful.Color) string {
	l, _, _ := bg.Lab()
	if l > 0.6 {
		return "#000000"
	}
	return "#FFFFFF"
}
