package layouts

import (
	"fmt"
	"strings"

	"github.com/codr1/Ensaios/internal/bands"
)

const (
	todayColor  = "#ff4444"
	todayFill   = "#fff0f0"
	borderColor = "#dee2e6"
	fillerColor = "#f8f9fa"
)

// BandStyle is the inline style for a booking chip in the band's color.
func BandStyle(band bands.Band) string {
	background := bandColorOrDefault(band.Color, bands.UnknownColor)
	text := band.TextColor()
	if background != band.Color {
		text = bands.Band{Color: background}.TextColor()
	}
	return fmt.Sprintf("background-color:%s;color:%s;", background, text)
}

func getThemeCssVars() string {
	return fmt.Sprintf(
		":root{--agenda-today:%s;--agenda-today-fill:%s;--agenda-border:%s;--agenda-filler:%s;--agenda-unknown:%s;}",
		todayColor,
		todayFill,
		borderColor,
		fillerColor,
		bands.UnknownColor,
	)
}

func bandColorOrDefault(value string, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	if !bands.IsHexColor(trimmed) {
		return fallback
	}
	return trimmed
}
