// Package detector wraps the object-detection backends the predictor can run
// against. Every backend decides once, at construction, whether a model is
// available; an absent detector stays absent for the life of the process.
package detector

import (
	"image"

	"VisionPredictor/internal/entity"

	"golang.org/x/net/context"
)

const (
	DefaultConfidence  = 0.15
	DefaultIoU         = 0.45
	DefaultMaxDetected = 1000
)

type Status int

const (
	StatusAbsent Status = iota
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	default:
		return "absent"
	}
}

type Backend string

const (
	BackendONNX   Backend = "onnx"
	BackendRemote Backend = "remote"
)

type IDetector interface {
	// Detect must be safe for concurrent use and must not mutate img.
	Detect(ctx context.Context, img image.Image) ([]entity.RawDetection, error)
	Status() Status
	ModelPath() string
	Backend() Backend
	Confidence() float64
	Close() error
}

// Options are shared by every backend.
type Options struct {
	ModelPath   string
	Confidence  float64
	IoU         float64
	MaxDetected int
	NumClasses  int
}

func (o Options) withDefaults() Options {
	if o.Confidence <= 0 || o.Confidence > 1 {
		o.Confidence = DefaultConfidence
	}
	if o.IoU <= 0 || o.IoU > 1 {
		o.IoU = DefaultIoU
	}
	if o.MaxDetected <= 0 {
		o.MaxDetected = DefaultMaxDetected
	}
	return o
}

// absent is returned by constructors when no model could be loaded.
type absent struct {
	options Options
	backend Backend
}

func Absent(backend Backend, options Options) IDetector {
	return &absent{options: options.withDefaults(), backend: backend}
}

func (a *absent) Detect(context.Context, image.Image) ([]entity.RawDetection, error) {
	return nil, ErrModelNotLoaded
}

func (a *absent) Status() Status      { return StatusAbsent }
func (a *absent) ModelPath() string   { return a.options.ModelPath }
func (a *absent) Backend() Backend    { return a.backend }
func (a *absent) Confidence() float64 { return a.options.Confidence }
func (a *absent) Close() error        { return nil }
