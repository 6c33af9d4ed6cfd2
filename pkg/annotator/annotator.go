package annotator

import (
	"fmt"
	"image"
	"image/color"

	"VisionPredictor/internal/entity"
	"VisionPredictor/pkg/labels"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

const (
	StrokeWidth  = 3
	LabelPadding = 2
)

var labelTextColor = color.RGBA{A: 0xff}

type IAnnotator interface {
	Annotate(src image.Image, detections []entity.RawDetection, vocabulary labels.Vocabulary, legend labels.Legend) *image.RGBA
	FontName() string
}

type annotator struct {
	fonts FontSource
}

func New(fonts FontSource) IAnnotator {
	if fonts == nil {
		fonts = DefaultFontSource()
	}
	return &annotator{fonts: fonts}
}

// Annotate draws every in-vocabulary detection onto a copy of src. Detections
// whose class index is outside the vocabulary are skipped.
func (a *annotator) Annotate(
	src image.Image,
	detections []entity.RawDetection,
	vocabulary labels.Vocabulary,
	legend labels.Legend,
) *image.RGBA {
	dst := cloneRGBA(src)

	face := a.fonts.NewFace()
	defer face.Close()

	for _, det := range detections {
		name, ok := vocabulary.Lookup(det.ClassIndex)
		if !ok {
			continue
		}

		c := legend.ColorFor(det.ClassIndex, name)
		r := det.Rect()

		strokeRect(dst, r.Min.X, r.Min.Y, r.Max.X, r.Max.Y, StrokeWidth, c)
		drawLabel(dst, face, r.Min.X, r.Min.Y, fmt.Sprintf("%s %.2f", name, det.Confidence), c)
	}

	return dst
}

func (a *annotator) FontName() string {
	return a.fonts.Name()
}

func cloneRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

// fillRect fills the inclusive rectangle (x1,y1)-(x2,y2), clipped to dst.
func fillRect(dst draw.Image, x1, y1, x2, y2 int, c color.Color) {
	if x2 < x1 || y2 < y1 {
		return
	}
	draw.Draw(dst, image.Rect(x1, y1, x2+1, y2+1), image.NewUniform(c), image.Point{}, draw.Src)
}

// strokeRect draws an outline growing inward from the given edges.
func strokeRect(dst draw.Image, x1, y1, x2, y2, width int, c color.Color) {
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}

	for i := 0; i < width; i++ {
		l, t, r, b := x1+i, y1+i, x2-i, y2-i
		if l > r || t > b {
			break
		}
		fillRect(dst, l, t, r, t, c)
		fillRect(dst, l, b, r, b, c)
		fillRect(dst, l, t, l, b, c)
		fillRect(dst, r, t, r, b, c)
	}
}

// drawLabel renders text with its top-left corner at (x, y) over a filled
// background box that extends LabelPadding pixels past the text bounds.
func drawLabel(dst draw.Image, face font.Face, x, y int, text string, background color.Color) {
	dot := fixed.Point26_6{
		X: fixed.I(x),
		Y: fixed.I(y) + face.Metrics().Ascent,
	}

	bounds, _ := font.BoundString(face, text)
	minX := (dot.X + bounds.Min.X).Floor()
	minY := (dot.Y + bounds.Min.Y).Floor()
	maxX := (dot.X + bounds.Max.X).Ceil()
	maxY := (dot.Y + bounds.Max.Y).Ceil()

	fillRect(dst, minX-LabelPadding, minY-LabelPadding, maxX+LabelPadding, maxY+LabelPadding, background)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(labelTextColor),
		Face: face,
		Dot:  dot,
	}
	d.DrawString(text)
}
