package predictionService

import (
	"VisionPredictor/internal/entity"
	"VisionPredictor/pkg/labels"
)

type Outcome int

const (
	OutcomeNoDetection Outcome = iota
	OutcomeMatched
)

// Reason explains a NoDetection outcome.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonEmpty           Reason = "empty"
	ReasonOutOfVocabulary Reason = "out_of_vocabulary"
)

type Selection struct {
	Outcome    Outcome
	Reason     Reason
	Label      string
	Confidence float64
	Best       entity.RawDetection
}

// SelectBest picks the detection with the highest confidence, keeping the
// earliest one on ties, and resolves its label. A winner whose class index is
// outside the vocabulary yields NoDetection with ReasonOutOfVocabulary.
func SelectBest(detections []entity.RawDetection, vocabulary labels.Vocabulary) Selection {
	if len(detections) == 0 {
		return Selection{Outcome: OutcomeNoDetection, Reason: ReasonEmpty}
	}

	best := detections[0]
	for _, d := range detections[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}

	label, ok := vocabulary.Lookup(best.ClassIndex)
	if !ok {
		return Selection{Outcome: OutcomeNoDetection, Reason: ReasonOutOfVocabulary, Best: best}
	}

	return Selection{
		Outcome:    OutcomeMatched,
		Label:      label,
		Confidence: best.Confidence,
		Best:       best,
	}
}
