package config

import (
	"VisionPredictor/pkg/detector"
	"github.com/sirupsen/logrus"
)

// NewDetector builds the configured backend. A backend that cannot be
// brought up is returned absent and stays that way; the reason is logged.
func NewDetector(log *logrus.Logger, cfg AppConfig) detector.IDetector {
	options := detector.Options{
		ModelPath:  cfg.ModelPath,
		Confidence: cfg.Confidence,
		IoU:        cfg.IoU,
		NumClasses: cfg.Profile.Vocabulary.Len(),
	}

	var (
		d   detector.IDetector
		err error
	)
	switch cfg.Backend {
	case detector.BackendRemote:
		d, err = detector.NewRemote(log, detector.RemoteOptions{
			Options: options,
			URL:     cfg.DetectorURL,
		})
	default:
		d, err = detector.NewONNX(log, detector.ONNXOptions{
			Options:       options,
			SharedLibPath: cfg.OnnxLibPath,
			PoolSize:      cfg.PoolSize,
		})
	}

	if err != nil {
		log.WithFields(logrus.Fields{
			"backend":    cfg.Backend,
			"model_path": cfg.ModelPath,
		}).Errorf("Detector unavailable, predictions will report model_not_loaded: %v", err)
	}

	return d
}
