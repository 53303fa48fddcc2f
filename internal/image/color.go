package imagepkg

import (
	"image/color"
	"strconv"
	"strings"
)

var White = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// ParseHexColor parses a 6-digit hex colour with an optional leading '#'.
func ParseHexColor(s string) (color.NRGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, true
}

// BackgroundColor parses s, falling back to white.
func BackgroundColor(s string) color.NRGBA {
	if c, ok := ParseHexColor(s); ok {
		return c
	}
	return White
}

// ParseCSSColor also accepts the 3-digit shorthand.
func ParseCSSColor(s string) (color.NRGBA, bool) {
	t := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(t) == 3 {
		t = string([]byte{t[0], t[0], t[1], t[1], t[2], t[2]})
	}
	return ParseHexColor(t)
}
