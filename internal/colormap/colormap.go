// Package colormap maps how long a wait has lasted to a background color.
//
// The palette walks from black through "hope pink" and "klein blue" to
// "dead grey" over the first day, then drops back to black.
package colormap

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Color is an sRGB color with channels in [0,1]
type Color struct {
	R float64
	G float64
	B float64
	A float64
}

// Reference colors
var (
	Black     = Color{R: 0, G: 0, B: 0, A: 1}
	HopePink  = MustParseHex("#FFC0CB")
	KleinBlue = MustParseHex("#002FA7")
	DeadGrey  = MustParseHex("#333333")
)

// Bucket boundaries in minutes
const (
	pinkMinutes = 10.0
	blueMinutes = 120.0
	greyMinutes = 1440.0
)

// ForElapsed returns the background color for a wait that has lasted the
// given number of seconds. Negative input is treated as zero.
func ForElapsed(seconds float64) Color {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	minutes := seconds / 60

	switch {
	case minutes < pinkMinutes:
		return Interpolate(Black, HopePink, minutes/pinkMinutes)
	case minutes < blueMinutes:
		return Interpolate(HopePink, KleinBlue, (minutes-pinkMinutes)/(blueMinutes-pinkMinutes))
	case minutes < greyMinutes:
		return Interpolate(KleinBlue, DeadGrey, (minutes-blueMinutes)/(greyMinutes-blueMinutes))
	default:
		return Black
	}
}

// Interpolate blends from c1 to c2 per channel. The fraction is clamped to
// [0,1] and the result is fully opaque.
func Interpolate(c1, c2 Color, fraction float64) Color {
	fraction = math.Max(0, math.Min(1, fraction))

	return Color{
		R: c1.R + (c2.R-c1.R)*fraction,
		G: c1.G + (c2.G-c1.G)*fraction,
		B: c1.B + (c2.B-c1.B)*fraction,
		A: 1,
	}
}

// RGBA8 returns the color as 8-bit channels
func (c Color) RGBA8() (r, g, b, a uint8) {
	return to8(c.R), to8(c.G), to8(c.B), to8(c.A)
}

// Hex renders the color as #RRGGBB
func (c Color) Hex() string {
	r, g, b, _ := c.RGBA8()
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

func (c Color) String() string {
	return c.Hex()
}

func to8(v float64) uint8 {
	v = math.Max(0, math.Min(1, v))
	return uint8(math.Round(v * 255))
}

// ParseHex parses #RGB, #RRGGBB or #AARRGGBB. Non-hex characters around the
// digits are ignored.
func ParseHex(s string) (Color, error) {
	hex := strings.TrimFunc(s, func(r rune) bool {
		return !strings.ContainsRune("0123456789abcdefABCDEF", r)
	})

	v, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return Color{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}

	var a, r, g, b uint64
	switch len(hex) {
	case 3:
		a, r, g, b = 255, (v>>8)*17, (v>>4&0xF)*17, (v&0xF)*17
	case 6:
		a, r, g, b = 255, v>>16, v>>8&0xFF, v&0xFF
	case 8:
		a, r, g, b = v>>24, v>>16&0xFF, v>>8&0xFF, v&0xFF
	default:
		return Color{}, fmt.Errorf("invalid hex color %q: expected 3, 6 or 8 digits", s)
	}

	return Color{
		R: float64(r) / 255,
		G: float64(g) / 255,
		B: float64(b) / 255,
		A: float64(a) / 255,
	}, nil
}

// MustParseHex is ParseHex for package-level constants
func MustParseHex(s string) Color {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}
