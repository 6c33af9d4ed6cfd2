package detector

import (
	"sort"

	"VisionPredictor/internal/entity"
)

// Layout describes how a YOLO export arranges its output tensor.
type Layout int

const (
	// LayoutYOLOv5 is [1, anchors, 5+classes]: cx, cy, w, h, objectness, class scores.
	LayoutYOLOv5 Layout = iota
	// LayoutYOLOv8 is [1, 4+classes, anchors] with no objectness column.
	LayoutYOLOv8
)

// frame maps model-space coordinates back onto the source image: the
// letterbox padding is removed first, then the uniform ratio is undone.
type frame struct {
	ratio         float64
	padX, padY    float64
	width, height int
}

func (f frame) box(cx, cy, w, h float32) (x1, y1, x2, y2 float64) {
	x1 = clamp(f.unscale(float64(cx-w/2), f.padX), 0, float64(f.width))
	y1 = clamp(f.unscale(float64(cy-h/2), f.padY), 0, float64(f.height))
	x2 = clamp(f.unscale(float64(cx+w/2), f.padX), 0, float64(f.width))
	y2 = clamp(f.unscale(float64(cy+h/2), f.padY), 0, float64(f.height))
	return
}

func (f frame) unscale(v, pad float64) float64 {
	if f.ratio == 0 {
		return v - pad
	}
	return (v - pad) / f.ratio
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// decodeYOLOv5 reads rows of (cx, cy, w, h, obj, cls...). A row is kept when
// both the objectness and obj*cls clear the confidence threshold.
func decodeYOLOv5(output []float32, anchors, numClasses int, f frame, confidence float64) []entity.RawDetection {
	cols := 5 + numClasses
	if anchors*cols > len(output) {
		return nil
	}

	out := make([]entity.RawDetection, 0, 64)
	for i := 0; i < anchors; i++ {
		row := output[i*cols : (i+1)*cols]
		obj := row[4]
		if float64(obj) < confidence {
			continue
		}

		classID, best := argmax(row[5:])
		score := float64(obj * best)
		if score < confidence {
			continue
		}

		x1, y1, x2, y2 := f.box(row[0], row[1], row[2], row[3])
		out = append(out, entity.RawDetection{
			X1: x1, Y1: y1, X2: x2, Y2: y2,
			Confidence: score,
			ClassIndex: classID,
		})
	}
	return out
}

// decodeYOLOv8 reads the transposed, objectness-free layout.
func decodeYOLOv8(output []float32, anchors, numClasses int, f frame, confidence float64) []entity.RawDetection {
	rows := 4 + numClasses
	if anchors*rows > len(output) {
		return nil
	}

	at := func(r, i int) float32 { return output[r*anchors+i] }

	out := make([]entity.RawDetection, 0, 64)
	for i := 0; i < anchors; i++ {
		classID, best := 0, float32(0)
		for c := 0; c < numClasses; c++ {
			if s := at(4+c, i); s > best {
				best = s
				classID = c
			}
		}
		if float64(best) < confidence {
			continue
		}

		x1, y1, x2, y2 := f.box(at(0, i), at(1, i), at(2, i), at(3, i))
		out = append(out, entity.RawDetection{
			X1: x1, Y1: y1, X2: x2, Y2: y2,
			Confidence: float64(best),
			ClassIndex: classID,
		})
	}
	return out
}

func argmax(scores []float32) (int, float32) {
	idx, best := 0, float32(0)
	for i, s := range scores {
		if s > best {
			best = s
			idx = i
		}
	}
	return idx, best
}

// nonMaxSuppression keeps the highest-scoring box of every overlapping group
// of the same class. The result is ordered by confidence, highest first.
func nonMaxSuppression(dets []entity.RawDetection, threshold float64, limit int) []entity.RawDetection {
	if len(dets) == 0 {
		return nil
	}

	sorted := make([]entity.RawDetection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	suppressed := make([]bool, len(sorted))
	kept := make([]entity.RawDetection, 0, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		if limit > 0 && len(kept) >= limit {
			break
		}
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] || sorted[j].ClassIndex != sorted[i].ClassIndex {
				continue
			}
			if intersectionOverUnion(sorted[i], sorted[j]) > threshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

func intersectionOverUnion(a, b entity.RawDetection) float64 {
	ix1 := max(a.X1, b.X1)
	iy1 := max(a.Y1, b.Y1)
	ix2 := min(a.X2, b.X2)
	iy2 := min(a.Y2, b.Y2)

	w, h := ix2-ix1, iy2-iy1
	if w <= 0 || h <= 0 {
		return 0
	}
	inter := w * h

	union := (a.X2-a.X1)*(a.Y2-a.Y1) + (b.X2-b.X1)*(b.Y2-b.Y1) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
