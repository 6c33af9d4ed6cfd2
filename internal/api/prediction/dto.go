package prediction

import "VisionPredictor/internal/entity"

type PredictRequest struct {
	Image    string  `json:"image" validate:"required"`
	Filename *string `json:"filename"`
}

// FilenameOrDefault echoes the filename as sent, even when it is empty. Only a
// request without the field gets entity.DefaultFilename.
func (r PredictRequest) FilenameOrDefault() string {
	if r.Filename == nil {
		return entity.DefaultFilename
	}
	return *r.Filename
}

type LabelsResponse struct {
	Labels  []string `json:"labels"`
	Count   int      `json:"count"`
	Profile string   `json:"profile"`
}

type HealthResponse struct {
	Status              string  `json:"status"`
	ModelLoaded         bool    `json:"model_loaded"`
	ModelPath           string  `json:"model_path"`
	Profile             string  `json:"profile"`
	Backend             string  `json:"backend"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

// QueueMessage is one unit of work taken from the intake queue.
type QueueMessage struct {
	Type      string `json:"type"`
	Filename  string `json:"filename"`
	Data      string `json:"data" validate:"required"`
	Timestamp int64  `json:"timestamp"`
}

// QueueResult is published for every processed queue message. The annotated
// image is archived rather than echoed back.
type QueueResult struct {
	Filename        string  `json:"filename"`
	Label           string  `json:"label"`
	Confidence      float64 `json:"confidence"`
	Method          string  `json:"method"`
	DetectionsCount int     `json:"detections_count"`
	ArchivedAt      string  `json:"archived_at,omitempty"`
	ProcessedAt     int64   `json:"processed_at"`
}
