package predictionService

import (
	"VisionPredictor/internal/api/prediction"
	"VisionPredictor/internal/entity"
	contextPkg "VisionPredictor/pkg/context"
	"VisionPredictor/pkg/detector"
	"fmt"
	"image"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

func (s *predictionService) Predict(ctx context.Context, base64Image string, filename string) (result *entity.PredictionResult) {
	defer s.recoverInto(ctx, filename, &result)

	img, err := s.codec.Decode(base64Image)
	if err != nil {
		return s.fail(ctx, filename, fmt.Errorf("%w: %v", prediction.ErrDecode, err))
	}

	return s.predictImage(ctx, img, filename)
}

func (s *predictionService) PredictBytes(ctx context.Context, data []byte, filename string) (result *entity.PredictionResult) {
	defer s.recoverInto(ctx, filename, &result)

	img, err := s.codec.DecodeBytes(data)
	if err != nil {
		return s.fail(ctx, filename, fmt.Errorf("%w: %v", prediction.ErrDecode, err))
	}

	return s.predictImage(ctx, img, filename)
}

func (s *predictionService) predictImage(ctx context.Context, img image.Image, filename string) *entity.PredictionResult {
	if s.detector.Status() != detector.StatusReady {
		s.entry(ctx, filename).WithFields(logrus.Fields{
			"method":     entity.MethodModelNotLoaded,
			"model_path": s.detector.ModelPath(),
		}).Error(prediction.ErrModelAbsent.Error())
		return entity.UnknownResult(entity.MethodModelNotLoaded, filename)
	}

	detections, err := s.detector.Detect(ctx, img)
	if err != nil {
		return s.fail(ctx, filename, fmt.Errorf("%w: inference: %v", prediction.ErrUnexpected, err))
	}

	s.entry(ctx, filename).WithField("detections_count", len(detections)).Debug("Inference finished")

	selection := SelectBest(detections, s.profile.Vocabulary)
	if selection.Outcome == OutcomeNoDetection {
		fields := logrus.Fields{
			"method": entity.MethodNoDetection,
			"reason": selection.Reason,
		}
		if selection.Reason == ReasonOutOfVocabulary {
			fields["class_index"] = selection.Best.ClassIndex
			fields["vocabulary_size"] = s.profile.Vocabulary.Len()
		}
		s.entry(ctx, filename).WithFields(fields).Warn(prediction.ErrNoDetection.Error())
		return entity.UnknownResult(entity.MethodNoDetection, filename)
	}

	annotated := s.annotator.Annotate(img, detections, s.profile.Vocabulary, s.profile.Legend)
	encoded, err := s.codec.Encode(annotated)
	if err != nil {
		return s.fail(ctx, filename, fmt.Errorf("%w: encode: %v", prediction.ErrUnexpected, err))
	}

	count := len(detections)
	s.entry(ctx, filename).WithFields(logrus.Fields{
		"method":           entity.MethodModel,
		"label":            selection.Label,
		"confidence":       fmt.Sprintf("%.2f%%", selection.Confidence*100),
		"detections_count": count,
	}).Info("Prediction successful")

	return &entity.PredictionResult{
		Label:           selection.Label,
		Confidence:      selection.Confidence,
		Method:          entity.MethodModel,
		AnnotatedImage:  encoded,
		DetectionsCount: &count,
		Filename:        filename,
	}
}

func (s *predictionService) Labels() prediction.LabelsResponse {
	return prediction.LabelsResponse{
		Labels:  s.profile.Vocabulary.Names(),
		Count:   s.profile.Vocabulary.Len(),
		Profile: s.profile.Name,
	}
}

func (s *predictionService) Health() prediction.HealthResponse {
	return prediction.HealthResponse{
		Status:              "healthy",
		ModelLoaded:         s.detector.Status() == detector.StatusReady,
		ModelPath:           s.detector.ModelPath(),
		Profile:             s.profile.Name,
		Backend:             string(s.detector.Backend()),
		ConfidenceThreshold: s.detector.Confidence(),
	}
}

func (s *predictionService) fail(ctx context.Context, filename string, err error) *entity.PredictionResult {
	s.entry(ctx, filename).WithFields(logrus.Fields{
		"method": entity.MethodError,
		"error":  err.Error(),
	}).Error("Prediction failed")
	return entity.UnknownResult(entity.MethodError, filename)
}

// recoverInto turns a panic anywhere in the pipeline into an error result.
func (s *predictionService) recoverInto(ctx context.Context, filename string, result **entity.PredictionResult) {
	if r := recover(); r != nil {
		*result = s.fail(ctx, filename, fmt.Errorf("%w: panic: %v", prediction.ErrUnexpected, r))
	}
}

func (s *predictionService) entry(ctx context.Context, filename string) *logrus.Entry {
	return s.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"filename":   filename,
		"profile":    s.profile.Name,
	})
}
