package predictionService

import (
	"VisionPredictor/internal/api/prediction"
	"VisionPredictor/internal/entity"
	"VisionPredictor/pkg/annotator"
	"VisionPredictor/pkg/detector"
	"VisionPredictor/pkg/imagecodec"
	"VisionPredictor/pkg/labels"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type IPredictionService interface {
	Predict(ctx context.Context, base64Image string, filename string) *entity.PredictionResult
	PredictBytes(ctx context.Context, data []byte, filename string) *entity.PredictionResult
	Labels() prediction.LabelsResponse
	Health() prediction.HealthResponse
}

type predictionService struct {
	log       *logrus.Logger
	detector  detector.IDetector
	codec     imagecodec.ICodec
	annotator annotator.IAnnotator
	profile   labels.Profile
}

func NewPredictionService(
	log *logrus.Logger,
	detector detector.IDetector,
	codec imagecodec.ICodec,
	annotator annotator.IAnnotator,
	profile labels.Profile,
) IPredictionService {
	return &predictionService{
		log:       log,
		detector:  detector,
		codec:     codec,
		annotator: annotator,
		profile:   profile,
	}
}
