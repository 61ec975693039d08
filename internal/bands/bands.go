// internal/bands/bands.go
package bands

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Band colors back small badges, so we use the AA large-text threshold.
const minContrastRatio = 3.0
const maxCodeLength = 16
const darkTextColor = "#000000"
const lightTextColor = "#FFFFFF"

// UnknownColor is shown for codes that are not on the roster.
const UnknownColor = "#666666"

var hexColorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
var codeRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

func IsHexColor(value string) bool {
	return hexColorRegex.MatchString(strings.TrimSpace(value))
}

// Code identifies a band. Any string can be stored; the registry decides
// whether it is known.
type Code string

// NormalizeCode trims and upper-cases a code coming from a form or a row.
func NormalizeCode(value string) Code {
	return Code(strings.ToUpper(strings.TrimSpace(value)))
}

type Band struct {
	Code    Code   `yaml:"code" json:"code"`
	Name    string `yaml:"name" json:"name"`
	Color   string `yaml:"color" json:"color"`
	Unknown bool   `yaml:"-" json:"unknown,omitempty"`
}

// Label renders the select option text used by the booking form.
func (b Band) Label() string {
	if b.Name == "" || b.Name == string(b.Code) {
		return string(b.Code)
	}
	return fmt.Sprintf("%s - %s", b.Code, b.Name)
}

// TextColor picks black or white text, whichever contrasts better with the band color.
func (b Band) TextColor() string {
	best, _, err := bestTextColor(b.Color)
	if err != nil {
		return lightTextColor
	}
	return best
}

func (b Band) Validate() error {
	code := string(b.Code)
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("code is required")
	}
	if strings.TrimSpace(code) != code {
		return fmt.Errorf("code must not have leading or trailing whitespace")
	}
	if strings.ToUpper(code) != code {
		return fmt.Errorf("code must be upper-case")
	}
	if len(code) > maxCodeLength {
		return fmt.Errorf("code must be %d characters or fewer", maxCodeLength)
	}
	if !codeRegex.MatchString(code) {
		return fmt.Errorf("code may only contain letters, numbers, hyphens, and underscores")
	}
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("name is required for band %s", code)
	}
	if !hexColorRegex.MatchString(b.Color) {
		return fmt.Errorf("color for band %s must be a 6-digit hex color like #AABBCC", code)
	}
	_, ratio, err := bestTextColor(b.Color)
	if err != nil {
		return err
	}
	if ratio < minContrastRatio {
		return fmt.Errorf("color for band %s must have contrast ratio >= %.1f with black or white text; best is %.2f", code, minContrastRatio, ratio)
	}
	return nil
}

// Defaults is the roster the rehearsal room started with.
func Defaults() []Band {
	return []Band{
		{Code: "D1", Name: "Banda D1", Color: "#FF6B6B"},
		{Code: "D2", Name: "Banda D2", Color: "#4ECDC4"},
		{Code: "D3", Name: "Banda D3", Color: "#45B7D1"},
		{Code: "D4", Name: "Banda D4", Color: "#96CEB4"},
		{Code: "S1", Name: "Banda S1", Color: "#FFEAA7"},
		{Code: "S2", Name: "Banda S2", Color: "#DDA0DD"},
	}
}

// Registry is the closed set of known bands, in roster order.
type Registry struct {
	order  []Code
	byCode map[Code]Band
}

func NewRegistry(roster []Band) (*Registry, error) {
	if len(roster) == 0 {
		roster = Defaults()
	}
	r := &Registry{byCode: make(map[Code]Band, len(roster))}
	for _, band := range roster {
		if err := band.Validate(); err != nil {
			return nil, fmt.Errorf("invalid band: %w", err)
		}
		if _, dup := r.byCode[band.Code]; dup {
			return nil, fmt.Errorf("duplicate band code %q", band.Code)
		}
		band.Color = strings.ToUpper(band.Color)
		r.byCode[band.Code] = band
		r.order = append(r.order, band.Code)
	}
	return r, nil
}

// MustDefaultRegistry is used by tests and tools that do not load configuration.
func MustDefaultRegistry() *Registry {
	r, err := NewRegistry(Defaults())
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Known(code Code) bool {
	_, ok := r.byCode[code]
	return ok
}

// Lookup never fails: unrecognized codes get the Unknown fallback.
func (r *Registry) Lookup(code Code) Band {
	if band, ok := r.byCode[code]; ok {
		return band
	}
	return Band{Code: code, Name: string(code), Color: UnknownColor, Unknown: true}
}

func (r *Registry) All() []Band {
	out := make([]Band, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.byCode[code])
	}
	return out
}

func bestTextColor(background string) (string, float64, error) {
	best := ""
	bestRatio := 0.0
	for _, text := range []string{darkTextColor, lightTextColor} {
		ratio, err := contrastRatio(text, background)
		if err != nil {
			return "", 0, err
		}
		if ratio > bestRatio {
			bestRatio = ratio
			best = text
		}
	}
	return best, bestRatio, nil
}

func contrastRatio(textColor, backgroundColor string) (float64, error) {
	textL, err := relativeLuminance(textColor)
	if err != nil {
		return 0, err
	}
	backgroundL, err := relativeLuminance(backgroundColor)
	if err != nil {
		return 0, err
	}
	lightest := math.Max(textL, backgroundL)
	darkest := math.Min(textL, backgroundL)
	return (lightest + 0.05) / (darkest + 0.05), nil
}

func relativeLuminance(hexColor string) (float64, error) {
	if !hexColorRegex.MatchString(hexColor) {
		return 0, fmt.Errorf("invalid hex color: %s", hexColor)
	}
	value, err := strconv.ParseUint(strings.TrimPrefix(hexColor, "#"), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid hex color: %s", hexColor)
	}

	r := srgbToLinear(float64((value>>16)&0xFF) / 255)
	g := srgbToLinear(float64((value>>8)&0xFF) / 255)
	b := srgbToLinear(float64(value&0xFF) / 255)

	return 0.2126*r + 0.7152*g + 0.0722*b, nil
}

func srgbToLinear(value float64) float64 {
	if value <= 0.03928 {
		return value / 12.92
	}
	return math.Pow((value+0.055)/1.055, 2.4)
}
