package detector

import (
	"image"
	"os"
	"runtime"
	"sync"

	"VisionPredictor/internal/entity"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/net/context"
)

const defaultInputSize = 640

var (
	ortOnce sync.Once
	ortErr  error
)

// ONNXOptions configures the onnxruntime backend.
type ONNXOptions struct {
	Options
	SharedLibPath string
	PoolSize      int
	Threads       int
}

type onnxSession struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func (s *onnxSession) destroy() {
	if s.session != nil {
		_ = s.session.Destroy()
	}
	if s.input != nil {
		_ = s.input.Destroy()
	}
	if s.output != nil {
		_ = s.output.Destroy()
	}
}

type modelIO struct {
	inputName  string
	outputName string
	inputShape ort.Shape
	outShape   ort.Shape
	inputSize  int
	anchors    int
	numClasses int
	layout     Layout
}

type onnxDetector struct {
	options  ONNXOptions
	io       modelIO
	sessions chan *onnxSession
	all      []*onnxSession
	closed   sync.Once
	log      *logrus.Logger
}

// NewONNX loads a YOLO detection model exported to ONNX. When the file is
// missing or the runtime cannot load it, an absent detector is returned along
// with the reason.
func NewONNX(log *logrus.Logger, options ONNXOptions) (IDetector, error) {
	options.Options = options.Options.withDefaults()
	if options.PoolSize <= 0 {
		options.PoolSize = 1
	}

	if _, err := os.Stat(options.ModelPath); err != nil {
		return Absent(BackendONNX, options.Options), errors.Wrapf(ErrModelNotFound, "%s", options.ModelPath)
	}

	if err := initRuntime(options.SharedLibPath); err != nil {
		return Absent(BackendONNX, options.Options), err
	}

	io, err := inspectModel(options.ModelPath, options.NumClasses)
	if err != nil {
		return Absent(BackendONNX, options.Options), err
	}

	d := &onnxDetector{
		options:  options,
		io:       io,
		sessions: make(chan *onnxSession, options.PoolSize),
		log:      log,
	}

	for i := 0; i < options.PoolSize; i++ {
		s, err := d.newSession()
		if err != nil {
			d.Close()
			return Absent(BackendONNX, options.Options), errors.Wrapf(err, "failed to create session %d", i)
		}
		d.all = append(d.all, s)
		d.sessions <- s
	}

	log.WithFields(logrus.Fields{
		"model_path":  options.ModelPath,
		"input_size":  io.inputSize,
		"anchors":     io.anchors,
		"num_classes": io.numClasses,
		"pool_size":   options.PoolSize,
		"confidence":  options.Confidence,
	}).Info("ONNX model loaded")

	return d, nil
}

func initRuntime(libPath string) error {
	ortOnce.Do(func() {
		if libPath == "" {
			libPath = defaultSharedLibPath()
		}
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			ortErr = errors.Wrapf(err, "failed to initialize onnxruntime from %s", libPath)
		}
	})
	return ortErr
}

func defaultSharedLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "./third_party/onnxruntime.dll"
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.dylib"
		}
		return "./third_party/onnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so"
		}
		return "./third_party/onnxruntime.so"
	}
}

func inspectModel(path string, expectedClasses int) (modelIO, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return modelIO{}, errors.Wrap(err, "failed to read model inputs and outputs")
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return modelIO{}, errors.Wrap(ErrUnexpectedOutput, "model has no inputs or outputs")
	}

	in, out := inputs[0], outputs[0]
	if len(in.Dimensions) != 4 || len(out.Dimensions) != 3 {
		return modelIO{}, errors.Wrapf(ErrUnexpectedOutput, "input %v output %v", in.Dimensions, out.Dimensions)
	}

	size := int(in.Dimensions[3])
	if size <= 0 {
		size = defaultInputSize
	}

	dims := out.Dimensions
	if dims[1] <= 0 || dims[2] <= 0 {
		return modelIO{}, errors.Wrapf(ErrUnexpectedOutput, "dynamic output shape %v is not supported", dims)
	}

	mio := modelIO{
		inputName:  in.Name,
		outputName: out.Name,
		inputShape: ort.NewShape(1, 3, int64(size), int64(size)),
		outShape:   ort.NewShape(dims...),
		inputSize:  size,
	}

	switch {
	case expectedClasses > 0 && int(dims[2]) == 5+expectedClasses:
		mio.layout, mio.anchors, mio.numClasses = LayoutYOLOv5, int(dims[1]), expectedClasses
	case expectedClasses > 0 && int(dims[1]) == 4+expectedClasses:
		mio.layout, mio.anchors, mio.numClasses = LayoutYOLOv8, int(dims[2]), expectedClasses
	case dims[1] > dims[2] && dims[2] > 5:
		mio.layout, mio.anchors, mio.numClasses = LayoutYOLOv5, int(dims[1]), int(dims[2])-5
	case dims[2] > dims[1] && dims[1] > 4:
		mio.layout, mio.anchors, mio.numClasses = LayoutYOLOv8, int(dims[2]), int(dims[1])-4
	default:
		return modelIO{}, errors.Wrapf(ErrUnexpectedOutput, "cannot infer detection layout from %v", dims)
	}

	return mio, nil
}

func (d *onnxDetector) newSession() (*onnxSession, error) {
	input, err := ort.NewEmptyTensor[float32](d.io.inputShape)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}

	output, err := ort.NewEmptyTensor[float32](d.io.outShape)
	if err != nil {
		_ = input.Destroy()
		return nil, errors.Wrap(err, "error creating output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, errors.Wrap(err, "error creating session options")
	}
	defer options.Destroy()

	if d.options.Threads > 0 {
		_ = options.SetIntraOpNumThreads(d.options.Threads)
		_ = options.SetInterOpNumThreads(1)
	}

	session, err := ort.NewAdvancedSession(
		d.options.ModelPath,
		[]string{d.io.inputName},
		[]string{d.io.outputName},
		[]ort.Value{input},
		[]ort.Value{output},
		options,
	)
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, errors.Wrap(err, "error creating session")
	}

	return &onnxSession{session: session, input: input, output: output}, nil
}

// Detect borrows one session from the pool; a session's tensors are never
// shared between two in-flight calls.
func (d *onnxDetector) Detect(ctx context.Context, img image.Image) ([]entity.RawDetection, error) {
	var s *onnxSession
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case got, ok := <-d.sessions:
		if !ok {
			return nil, ErrModelNotLoaded
		}
		s = got
	}
	defer func() { d.sessions <- s }()

	f, err := fillInput(img, d.io.inputSize, s.input.GetData())
	if err != nil {
		return nil, err
	}

	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "failed to run inference")
	}

	var raw []entity.RawDetection
	if d.io.layout == LayoutYOLOv8 {
		raw = decodeYOLOv8(s.output.GetData(), d.io.anchors, d.io.numClasses, f, d.options.Confidence)
	} else {
		raw = decodeYOLOv5(s.output.GetData(), d.io.anchors, d.io.numClasses, f, d.options.Confidence)
	}

	return nonMaxSuppression(raw, d.options.IoU, d.options.MaxDetected), nil
}

func (d *onnxDetector) Status() Status      { return StatusReady }
func (d *onnxDetector) ModelPath() string   { return d.options.ModelPath }
func (d *onnxDetector) Backend() Backend    { return BackendONNX }
func (d *onnxDetector) Confidence() float64 { return d.options.Confidence }

// Close waits for in-flight sessions to be returned before destroying them.
func (d *onnxDetector) Close() error {
	d.closed.Do(func() {
		for range d.all {
			s := <-d.sessions
			s.destroy()
		}
		close(d.sessions)
	})
	return nil
}
