package predictionHandler

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"VisionPredictor/internal/api/prediction"
	"VisionPredictor/internal/entity"
	"VisionPredictor/internal/middleware"
	"VisionPredictor/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

type fakeService struct {
	mu       sync.Mutex
	calls    int
	lastData []byte
	lastB64  string
	result   *entity.PredictionResult
	delay    time.Duration
}

func (f *fakeService) record(name string) *entity.PredictionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	r := *f.result
	r.Filename = name
	return &r
}

func (f *fakeService) Predict(ctx context.Context, base64Image string, filename string) *entity.PredictionResult {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(f.delay):
		}
	}
	f.mu.Lock()
	f.lastB64 = base64Image
	f.mu.Unlock()
	return f.record(filename)
}

func (f *fakeService) PredictBytes(_ context.Context, data []byte, filename string) *entity.PredictionResult {
	f.mu.Lock()
	f.lastData = data
	f.mu.Unlock()
	return f.record(filename)
}

func (f *fakeService) Labels() prediction.LabelsResponse {
	return prediction.LabelsResponse{Labels: []string{"anger", "fear"}, Count: 2, Profile: "emotion"}
}

func (f *fakeService) Health() prediction.HealthResponse {
	return prediction.HealthResponse{
		Status:              "healthy",
		ModelLoaded:         false,
		ModelPath:           "models/emotion_model.onnx",
		Profile:             "emotion",
		Backend:             "onnx",
		ConfidenceThreshold: 0.15,
	}
}

func (f *fakeService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestApp(t *testing.T, svc *fakeService, timeout time.Duration) *fiber.App {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	mw := middleware.New(logger, middleware.Config{})
	app := fiber.New(fiber.Config{
		StrictRouting: true,
		CaseSensitive: true,
		JSONEncoder:   jsoniter.Marshal,
		JSONDecoder:   jsoniter.Unmarshal,
	})
	app.Use(mw.NewRequestIDMiddleware())

	h := New(logger, validator.New(), mw, svc, utils.New(), "emotions", timeout)
	h.Start(app)
	h.Start(app.Group("/api/v1"))
	return app
}

func matchedResult() *entity.PredictionResult {
	count := 1
	return &entity.PredictionResult{
		Label:           "happy",
		Confidence:      0.91,
		Method:          entity.MethodModel,
		AnnotatedImage:  "/9j/4AAQ",
		DetectionsCount: &count,
	}
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&body))
	return body
}

func jsonRequest(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestPredictJSON(t *testing.T) {
	svc := &fakeService{result: matchedResult()}
	app := newTestApp(t, svc, time.Second)

	for _, path := range []string{"/predict", "/api/v1/predict"} {
		resp, err := app.Test(jsonRequest(path, `{"image": "aGVsbG8=", "filename": "face.jpg"}`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDKey))

		body := decodeBody(t, resp)
		assert.Equal(t, "happy", body["label"])
		assert.Equal(t, 0.91, body["confidence"])
		assert.Equal(t, "model", body["method"])
		assert.Equal(t, "face.jpg", body["filename"])
		assert.Equal(t, float64(1), body["detections_count"])
		assert.Equal(t, "/9j/4AAQ", body["annotated_image"])
	}
	assert.Equal(t, 2, svc.callCount())
}

func TestPredictJSONFilenameDefault(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{name: "field absent", body: `{"image": "aGVsbG8="}`, expected: entity.DefaultFilename},
		{name: "explicit empty", body: `{"image": "aGVsbG8=", "filename": ""}`, expected: ""},
		{name: "explicit name", body: `{"image": "aGVsbG8=", "filename": "crest.jpg"}`, expected: "crest.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, &fakeService{result: matchedResult()}, time.Second)

			resp, err := app.Test(jsonRequest("/predict", tt.body))
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.expected, decodeBody(t, resp)["filename"])
		})
	}
}

func TestPredictUnknownResultOmitsImage(t *testing.T) {
	svc := &fakeService{result: entity.UnknownResult(entity.MethodModelNotLoaded, "")}
	app := newTestApp(t, svc, time.Second)

	resp, err := app.Test(jsonRequest("/predict", `{"image": "aGVsbG8="}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "unknown", body["label"])
	assert.Equal(t, float64(0), body["confidence"])
	assert.Equal(t, "model_not_loaded", body["method"])
	assert.NotContains(t, body, "annotated_image")
	assert.NotContains(t, body, "detections_count")
}

func TestPredictRejectsMissingImage(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no image field", body: `{"filename": "x.jpg"}`},
		{name: "empty image", body: `{"image": ""}`},
		{name: "blank image", body: `{"image": "   "}`},
		{name: "not json", body: `image=abc`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{result: matchedResult()}
			app := newTestApp(t, svc, time.Second)

			resp, err := app.Test(jsonRequest("/predict", tt.body))
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, decodeBody(t, resp), "error")
			assert.Equal(t, 0, svc.callCount(), "the detector path is never reached")
		})
	}
}

func TestPredictMultipart(t *testing.T) {
	svc := &fakeService{result: matchedResult()}
	app := newTestApp(t, svc, time.Second)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="crest.png"`)
	header.Set("Content-Type", "image/png")
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG fake"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/predict", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "crest.png", decodeBody(t, resp)["filename"])
	assert.Equal(t, []byte("\x89PNG fake"), svc.lastData)
}

func TestPredictTimeout(t *testing.T) {
	svc := &fakeService{result: matchedResult(), delay: time.Second}
	app := newTestApp(t, svc, 20*time.Millisecond)

	resp, err := app.Test(jsonRequest("/predict", `{"image": "aGVsbG8="}`), 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusRequestTimeout, resp.StatusCode)
}

func TestLabelsHealthAndCollection(t *testing.T) {
	app := newTestApp(t, &fakeService{result: matchedResult()}, time.Second)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/labels", nil))
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.Equal(t, []interface{}{"anger", "fear"}, body["labels"])
	assert.Equal(t, float64(2), body["count"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/emotions", nil))
	require.NoError(t, err)
	body = decodeBody(t, resp)
	assert.Equal(t, []interface{}{"anger", "fear"}, body["emotions"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["model_loaded"])
	assert.Equal(t, "models/emotion_model.onnx", body["model_path"])
	assert.Equal(t, 0.15, body["confidence_threshold"])
}

func TestWebSocketRouteRequiresUpgrade(t *testing.T) {
	app := newTestApp(t, &fakeService{result: matchedResult()}, time.Second)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/predict/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestPredictFrame(t *testing.T) {
	svc := &fakeService{result: matchedResult()}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	h := New(logger, validator.New(), middleware.New(logger, middleware.Config{}), svc, utils.New(), "emotions", time.Second)

	reply, err := h.predictFrame("ws-1", websocket.TextMessage, []byte(`{"image": "aGVsbG8=", "filename": "a.jpg"}`))
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", reply.(*entity.PredictionResult).Filename)
	assert.Equal(t, "aGVsbG8=", svc.lastB64)

	reply, err = h.predictFrame("ws-2", websocket.BinaryMessage, []byte{0xff, 0xd8})
	require.NoError(t, err)
	assert.Equal(t, entity.DefaultFilename, reply.(*entity.PredictionResult).Filename)

	reply, err = h.predictFrame("ws-2b", websocket.TextMessage, []byte(`{"image": "aGVsbG8=", "filename": ""}`))
	require.NoError(t, err)
	assert.Equal(t, "", reply.(*entity.PredictionResult).Filename)

	_, err = h.predictFrame("ws-3", websocket.TextMessage, []byte(`{"filename": "a.jpg"}`))
	assert.ErrorIs(t, err, prediction.ErrImageRequired)

	_, err = h.predictFrame("ws-4", websocket.TextMessage, []byte(`not json`))
	assert.ErrorIs(t, err, prediction.ErrInvalidFrame)

	_, err = h.predictFrame("ws-5", websocket.BinaryMessage, nil)
	assert.ErrorIs(t, err, prediction.ErrImageRequired)
}
