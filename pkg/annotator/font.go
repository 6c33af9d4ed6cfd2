package annotator

import (
	"fmt"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

const (
	DefaultFontPath = "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf"
	DefaultFontSize = 16
)

// FontSource hands out a fresh face per call. opentype faces keep internal
// buffers and must not be shared between goroutines.
type FontSource interface {
	NewFace() font.Face
	Name() string
}

type truetypeSource struct {
	path string
	font *opentype.Font
	size float64
}

func (s *truetypeSource) NewFace() font.Face {
	face, err := s.newFace()
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}

func (s *truetypeSource) newFace() (font.Face, error) {
	return opentype.NewFace(s.font, &opentype.FaceOptions{
		Size:    s.size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

func (s *truetypeSource) Name() string {
	return s.path
}

type basicSource struct{}

func (basicSource) NewFace() font.Face {
	return basicfont.Face7x13
}

func (basicSource) Name() string {
	return "basicfont.Face7x13"
}

// DefaultFontSource returns the built-in bitmap face.
func DefaultFontSource() FontSource {
	return basicSource{}
}

// LoadFont parses a TrueType/OpenType file. Callers wanting best-effort
// behavior should use LoadFontOrDefault.
func LoadFont(path string, size float64) (FontSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font %s: %w", path, err)
	}

	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font %s: %w", path, err)
	}

	if size <= 0 {
		size = DefaultFontSize
	}

	src := &truetypeSource{path: path, font: parsed, size: size}
	face, err := src.newFace()
	if err != nil {
		return nil, fmt.Errorf("failed to create face for %s: %w", path, err)
	}
	_ = face.Close()

	return src, nil
}

// LoadFontOrDefault never fails: an unreadable font yields the built-in face
// together with the error that caused the fallback.
func LoadFontOrDefault(path string, size float64) (FontSource, error) {
	if path == "" {
		return DefaultFontSource(), nil
	}

	src, err := LoadFont(path, size)
	if err != nil {
		return DefaultFontSource(), err
	}
	return src, nil
}
