package annotator

import (
	"image"
	"image/color"
	"testing"

	"VisionPredictor/internal/entity"
	"VisionPredictor/pkg/labels"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	gray  = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
)

func grayImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, gray)
		}
	}
	return img
}

func testLegend(t *testing.T) labels.Legend {
	t.Helper()
	p, err := labels.NewPalette("#FF0000", "#00FF00")
	require.NoError(t, err)
	return p
}

func TestAnnotateDoesNotMutateSource(t *testing.T) {
	src := grayImage(100, 100)
	before := make([]uint8, len(src.Pix))
	copy(before, src.Pix)

	a := New(DefaultFontSource())
	out := a.Annotate(src, []entity.RawDetection{
		{X1: 10, Y1: 30, X2: 60, Y2: 80, Confidence: 0.9, ClassIndex: 0},
	}, labels.MustVocabulary("cat", "dog"), testLegend(t))

	assert.Equal(t, before, src.Pix)
	assert.Equal(t, src.Bounds(), out.Bounds())
	assert.NotEqual(t, src.Pix, out.Pix)
}

func TestAnnotateDrawsOutlineInLegendColor(t *testing.T) {
	src := grayImage(120, 120)
	a := New(DefaultFontSource())

	out := a.Annotate(src, []entity.RawDetection{
		{X1: 20, Y1: 40, X2: 100, Y2: 110, Confidence: 0.5, ClassIndex: 1},
	}, labels.MustVocabulary("cat", "dog"), testLegend(t))

	// bottom and right edges are clear of the label box
	for i := 0; i < StrokeWidth; i++ {
		assert.Equal(t, green, out.RGBAAt(60, 110-i), "bottom edge row %d", i)
		assert.Equal(t, green, out.RGBAAt(100-i, 90), "right edge column %d", i)
	}
	assert.Equal(t, gray, out.RGBAAt(60, 110-StrokeWidth), "interior stays untouched")
	assert.Equal(t, gray, out.RGBAAt(60, 111), "outside stays untouched")
}

func TestAnnotateSkipsOutOfVocabulary(t *testing.T) {
	src := grayImage(80, 80)
	a := New(DefaultFontSource())

	out := a.Annotate(src, []entity.RawDetection{
		{X1: 5, Y1: 5, X2: 70, Y2: 70, Confidence: 0.99, ClassIndex: 7},
	}, labels.MustVocabulary("cat", "dog"), testLegend(t))

	assert.Equal(t, src.Pix, out.Pix)
}

func TestAnnotateLabelBackground(t *testing.T) {
	src := grayImage(200, 100)
	a := New(DefaultFontSource())

	out := a.Annotate(src, []entity.RawDetection{
		{X1: 10, Y1: 40, X2: 190, Y2: 95, Confidence: 0.75, ClassIndex: 0},
	}, labels.MustVocabulary("cat"), testLegend(t))

	// the padded label box starts above the text and is filled with the
	// legend color; the text itself is black
	var sawRed, sawBlack bool
	for y := 38; y < 40+13; y++ {
		for x := 10; x < 10+7*len("cat 0.75"); x++ {
			switch out.RGBAAt(x, y) {
			case red:
				sawRed = true
			case color.RGBA{A: 255}:
				sawBlack = true
			}
		}
	}
	assert.True(t, sawRed)
	assert.True(t, sawBlack)
	assert.Equal(t, "basicfont.Face7x13", a.FontName())
}

func TestLoadFontOrDefault(t *testing.T) {
	src, err := LoadFontOrDefault("/does/not/exist.ttf", 16)
	assert.Error(t, err)
	require.NotNil(t, src)
	assert.Equal(t, "basicfont.Face7x13", src.Name())

	src, err = LoadFontOrDefault("", 16)
	assert.NoError(t, err)
	assert.Equal(t, "basicfont.Face7x13", src.Name())
}

func TestNewWithNilFonts(t *testing.T) {
	assert.Equal(t, "basicfont.Face7x13", New(nil).FontName())
}
