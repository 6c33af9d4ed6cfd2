package predictionHandler

import (
	"VisionPredictor/internal/api/prediction"
	"VisionPredictor/internal/entity"
	"VisionPredictor/internal/middleware"
	contextPkg "VisionPredictor/pkg/context"
	"fmt"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/net/context"
	"strings"
	"time"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// handlePredictWebSocket answers every frame with one PredictionResult. Text
// frames carry a predict request; binary frames carry raw image bytes.
func (h *PredictionHandler) handlePredictWebSocket(c *websocket.Conn) {
	connID, _ := c.Locals(middleware.RequestIDKey).(string)
	if connID == "" {
		connID = "ws"
	}

	h.log.WithField("request_id", connID).Info("Prediction WebSocket client connected")
	defer h.log.WithField("request_id", connID).Info("Prediction WebSocket client disconnected")

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	for seq := 1; ; seq++ {
		if err := c.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			return
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Errorf("Prediction WebSocket error: %v", err)
			}
			return
		}

		reply, err := h.predictFrame(fmt.Sprintf("%s-%d", connID, seq), messageType, message)
		if err != nil {
			h.log.WithField("request_id", connID).Warnf("Rejected WebSocket frame: %v", err)
			reply = map[string]string{"error": err.Error()}
		}

		if err := c.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
			h.log.Errorf("Error setting write deadline: %v", err)
			return
		}
		if err := c.WriteJSON(reply); err != nil {
			h.log.Errorf("Error writing JSON response: %v", err)
			return
		}
	}
}

func (h *PredictionHandler) predictFrame(requestID string, messageType int, message []byte) (interface{}, error) {
	ctx, cancel := context.WithTimeout(contextPkg.NewRequestContext(context.Background(), requestID), h.timeout)
	defer cancel()

	switch messageType {
	case websocket.BinaryMessage:
		if len(message) == 0 {
			return nil, prediction.ErrImageRequired
		}
		return h.predictionService.PredictBytes(ctx, message, entity.DefaultFilename), nil

	case websocket.TextMessage:
		var req prediction.PredictRequest
		if err := jsoniter.Unmarshal(message, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", prediction.ErrInvalidFrame, err)
		}
		if strings.TrimSpace(req.Image) == "" {
			return nil, prediction.ErrImageRequired
		}
		if err := h.validator.Struct(req); err != nil {
			return nil, fmt.Errorf("%w: %v", prediction.ErrInvalidFrame, err)
		}
		return h.predictionService.Predict(ctx, req.Image, req.FilenameOrDefault()), nil

	default:
		return nil, fmt.Errorf("%w: unsupported message type %d", prediction.ErrInvalidFrame, messageType)
	}
}
