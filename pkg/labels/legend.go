package labels

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Legend assigns a display color to a class.
type Legend interface {
	ColorFor(classIndex int, label string) color.RGBA
}

// Palette cycles through its colors by class index.
type Palette struct {
	colors []color.RGBA
}

func NewPalette(hexColors ...string) (*Palette, error) {
	if len(hexColors) == 0 {
		return nil, ErrEmptyPalette
	}

	colors := make([]color.RGBA, 0, len(hexColors))
	for _, h := range hexColors {
		c, err := ParseHex(h)
		if err != nil {
			return nil, err
		}
		colors = append(colors, c)
	}
	return &Palette{colors: colors}, nil
}

func (p *Palette) ColorFor(classIndex int, _ string) color.RGBA {
	n := len(p.colors)
	i := classIndex % n
	if i < 0 {
		i += n
	}
	return p.colors[i]
}

// Mapping looks colors up by label name, falling back for unmapped labels.
type Mapping struct {
	colors   map[string]color.RGBA
	fallback color.RGBA
}

func NewMapping(hexByLabel map[string]string, fallbackHex string) (*Mapping, error) {
	fallback, err := ParseHex(fallbackHex)
	if err != nil {
		return nil, err
	}

	colors := make(map[string]color.RGBA, len(hexByLabel))
	for label, h := range hexByLabel {
		c, err := ParseHex(h)
		if err != nil {
			return nil, fmt.Errorf("label %q: %w", label, err)
		}
		colors[label] = c
	}
	return &Mapping{colors: colors, fallback: fallback}, nil
}

func (m *Mapping) ColorFor(_ int, label string) color.RGBA {
	if c, ok := m.colors[label]; ok {
		return c
	}
	return m.fallback
}

// ParseHex parses "#RRGGBB" (the leading # is optional) into an opaque color.
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}

	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}

	return color.RGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 0xff,
	}, nil
}
