package entity

import "image"

type Method string

const (
	MethodModel          Method = "model"
	MethodNoDetection    Method = "no_detection"
	MethodModelNotLoaded Method = "model_not_loaded"
	MethodError          Method = "error"
)

const (
	UnknownLabel    = "unknown"
	DefaultFilename = "unknown.jpg"
)

// RawDetection is one box reported by the detector, in source image pixels.
type RawDetection struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float64 `json:"confidence"`
	ClassIndex int     `json:"class_index"`
}

// Rect is the box in whole pixels, truncated toward the origin.
func (d RawDetection) Rect() image.Rectangle {
	return image.Rect(int(d.X1), int(d.Y1), int(d.X2), int(d.Y2))
}

type PredictionResult struct {
	Label           string  `json:"label"`
	Confidence      float64 `json:"confidence"`
	Method          Method  `json:"method"`
	AnnotatedImage  string  `json:"annotated_image,omitempty"`
	DetectionsCount *int    `json:"detections_count,omitempty"`
	Filename        string  `json:"filename"`
}

func UnknownResult(method Method, filename string) *PredictionResult {
	return &PredictionResult{
		Label:      UnknownLabel,
		Confidence: 0.0,
		Method:     method,
		Filename:   filename,
	}
}
