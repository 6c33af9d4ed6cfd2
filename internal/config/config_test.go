package config

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"VisionPredictor/internal/middleware"
	"VisionPredictor/pkg/detector"
	"VisionPredictor/pkg/labels"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"PREDICTOR_PROFILE", "APP_PORT", "MODEL_PATH", "DETECTOR_BACKEND",
		"DETECTOR_CONFIDENCE", "PREDICT_TIMEOUT", "QUEUE_NAME", "ARCHIVE_DIR", "QUEUE_ENABLED",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, labels.ProfileTeam, cfg.Profile.Name)
	assert.Equal(t, "5001", cfg.Port)
	assert.Equal(t, "models/team_model.onnx", cfg.ModelPath)
	assert.Equal(t, detector.BackendONNX, cfg.Backend)
	assert.Equal(t, detector.DefaultConfidence, cfg.Confidence)
	assert.Equal(t, 30*time.Second, cfg.PredictTimeout)
	assert.Equal(t, "team_queue", cfg.QueueName)
	assert.Equal(t, "./storage/images/team/processed", cfg.ArchiveDir)
	assert.False(t, cfg.QueueEnabled)
}

func TestLoadConfigEmotionProfile(t *testing.T) {
	t.Setenv("PREDICTOR_PROFILE", "emotion")
	t.Setenv("APP_PORT", "")
	t.Setenv("MODEL_PATH", "")
	t.Setenv("DETECTOR_BACKEND", "remote")
	t.Setenv("DETECTOR_CONFIDENCE", "0.4")
	t.Setenv("PREDICT_TIMEOUT", "5")
	t.Setenv("QUEUE_ENABLED", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, detector.BackendRemote, cfg.Backend)
	assert.Empty(t, cfg.ModelPath, "no onnx file is implied for the remote backend")
	assert.Equal(t, 0.4, cfg.Confidence)
	assert.Equal(t, 5*time.Second, cfg.PredictTimeout)
	assert.True(t, cfg.QueueEnabled)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{key: "PREDICTOR_PROFILE", value: "vehicles"},
		{key: "DETECTOR_BACKEND", value: "tensorrt"},
		{key: "DETECTOR_CONFIDENCE", value: "high"},
		{key: "PREDICT_TIMEOUT", value: "soon"},
		{key: "QUEUE_ENABLED", value: "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestNewDetectorRemoteReportsURL(t *testing.T) {
	t.Setenv("PREDICTOR_PROFILE", "team")
	t.Setenv("MODEL_PATH", "")
	t.Setenv("DETECTOR_BACKEND", "remote")
	t.Setenv("DETECTOR_URL", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	// unreachable worker: nothing listens on the discard port
	cfg.DetectorURL = "ws://127.0.0.1:9/detect"

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	d := NewDetector(logger, cfg)

	assert.Equal(t, detector.StatusAbsent, d.Status())
	assert.Equal(t, detector.BackendRemote, d.Backend())
	assert.Equal(t, "ws://127.0.0.1:9/detect", d.ModelPath())
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	server, err := NewServer(
		WithFiber(NewFiber(logger)),
		WithLogger(logger),
		WithValidator(NewValidator()),
		WithConfig(AppConfig{PredictTimeout: time.Second, ModelPath: "models/emotion_model.onnx"}),
		WithProfile(labels.EmotionProfile()),
		WithMiddleware(middleware.Config{}),
		WithUtils(),
	)
	require.NoError(t, err)

	server.RegisterHandler()
	server.Mount()
	return server
}

func TestNewServerRequiresProfile(t *testing.T) {
	logger := logrus.New()
	_, err := NewServer(WithFiber(NewFiber(logger)), WithLogger(logger))
	assert.Error(t, err)

	_, err = NewServer(WithLogger(logger), WithProfile(labels.TeamProfile()))
	assert.Error(t, err)
}

func TestServerRoutesWithoutModel(t *testing.T) {
	server := newTestServer(t)

	resp, err := server.engine.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = server.engine.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	var health map[string]interface{}
	require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, false, health["model_loaded"])
	assert.Equal(t, "emotion", health["profile"])
	assert.Equal(t, "models/emotion_model.onnx", health["model_path"])

	// an absent model still answers /predict with a well-formed result
	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(`{"image": "aGVsbG8="}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = server.engine.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]interface{}
	require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "unknown", result["label"])
	assert.Equal(t, "error", result["method"], "hello is not an image, decode fails before the model check")

	resp, err = server.engine.Test(httptest.NewRequest(http.MethodGet, "/emotions", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.NoError(t, server.RunConsumer(context.Background()))
	assert.NoError(t, server.detector.Close())
}
