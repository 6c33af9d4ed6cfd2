package predictionService

import (
	"testing"

	"VisionPredictor/internal/entity"
	"VisionPredictor/pkg/labels"

	"github.com/stretchr/testify/assert"
)

func TestSelectBest(t *testing.T) {
	vocabulary := labels.MustVocabulary("anger", "fear", "happy", "neutral", "sad")

	tests := []struct {
		name       string
		detections []entity.RawDetection
		outcome    Outcome
		reason     Reason
		label      string
		confidence float64
	}{
		{
			name:    "no detections",
			outcome: OutcomeNoDetection,
			reason:  ReasonEmpty,
		},
		{
			name: "highest confidence wins",
			detections: []entity.RawDetection{
				{Confidence: 0.40, ClassIndex: 0},
				{Confidence: 0.91, ClassIndex: 2},
				{Confidence: 0.55, ClassIndex: 4},
			},
			outcome:    OutcomeMatched,
			label:      "happy",
			confidence: 0.91,
		},
		{
			name: "ties keep the first detection",
			detections: []entity.RawDetection{
				{Confidence: 0.70, ClassIndex: 3},
				{Confidence: 0.70, ClassIndex: 1},
			},
			outcome:    OutcomeMatched,
			label:      "neutral",
			confidence: 0.70,
		},
		{
			name: "winner outside vocabulary",
			detections: []entity.RawDetection{
				{Confidence: 0.30, ClassIndex: 1},
				{Confidence: 0.95, ClassIndex: 5},
			},
			outcome: OutcomeNoDetection,
			reason:  ReasonOutOfVocabulary,
		},
		{
			name: "negative class index",
			detections: []entity.RawDetection{
				{Confidence: 0.50, ClassIndex: -1},
			},
			outcome: OutcomeNoDetection,
			reason:  ReasonOutOfVocabulary,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectBest(tt.detections, vocabulary)
			assert.Equal(t, tt.outcome, got.Outcome)
			assert.Equal(t, tt.reason, got.Reason)
			assert.Equal(t, tt.label, got.Label)
			assert.Equal(t, tt.confidence, got.Confidence)
		})
	}
}

func TestSelectBestIsPure(t *testing.T) {
	vocabulary := labels.MustVocabulary("a", "b")
	detections := []entity.RawDetection{
		{Confidence: 0.2, ClassIndex: 0},
		{Confidence: 0.8, ClassIndex: 1},
	}
	snapshot := append([]entity.RawDetection(nil), detections...)

	first := SelectBest(detections, vocabulary)
	second := SelectBest(detections, vocabulary)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, detections)
}
