package detector

import (
	"image"
	"math"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// letterboxGray is the padding value YOLOv5 exports are trained against.
const letterboxGray = float32(114) / 255.0

// fillInput letterboxes img into a size x size square and writes it into dst
// as planar RGB scaled to [0, 1]. The image keeps its aspect ratio: it is
// scaled by one ratio, centered, and the border is filled with gray 114.
// The returned frame maps model coordinates back to img.
func fillInput(img image.Image, size int, dst []float32) (frame, error) {
	channel := size * size
	if len(dst) < channel*3 {
		return frame{}, errors.Errorf("input tensor holds %d floats, needs %d", len(dst), channel*3)
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return frame{}, errors.New("cannot run inference on an empty image")
	}

	ratio := math.Min(float64(size)/float64(b.Dx()), float64(size)/float64(b.Dy()))
	newW := clampInt(int(math.Round(float64(b.Dx())*ratio)), 1, size)
	newH := clampInt(int(math.Round(float64(b.Dy())*ratio)), 1, size)
	padX := (size - newW) / 2
	padY := (size - newH) / 2

	red := dst[0:channel]
	green := dst[channel : channel*2]
	blue := dst[channel*2 : channel*3]
	for i := 0; i < channel*3; i++ {
		dst[i] = letterboxGray
	}

	resized := resize.Resize(uint(newW), uint(newH), img, resize.Bilinear)
	rb := resized.Bounds()

	for y := 0; y < newH; y++ {
		row := (y + padY) * size
		for x := 0; x < newW; x++ {
			r, g, bl, _ := resized.At(rb.Min.X+x, rb.Min.Y+y).RGBA()
			i := row + x + padX
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(bl>>8) / 255.0
		}
	}

	return frame{
		ratio:  ratio,
		padX:   float64(padX),
		padY:   float64(padY),
		width:  b.Dx(),
		height: b.Dy(),
	}, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
