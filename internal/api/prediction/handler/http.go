package predictionHandler

import (
	predictionService "VisionPredictor/internal/api/prediction/service"
	"VisionPredictor/internal/middleware"
	"VisionPredictor/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"time"
)

const DefaultPredictTimeout = 30 * time.Second

type PredictionHandler struct {
	log               *logrus.Logger
	validator         *validator.Validate
	middleware        middleware.Middleware
	predictionService predictionService.IPredictionService
	utils             utils.IUtils
	collection        string
	timeout           time.Duration
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ps predictionService.IPredictionService,
	utils utils.IUtils,
	collection string,
	timeout time.Duration,
) *PredictionHandler {
	if timeout <= 0 {
		timeout = DefaultPredictTimeout
	}

	return &PredictionHandler{
		predictionService: ps,
		log:               log,
		validator:         validator,
		middleware:        middleware,
		utils:             utils,
		collection:        collection,
		timeout:           timeout,
	}
}

func (h *PredictionHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	srv.Get("/health", h.Health)
	srv.Get("/labels", h.Labels)
	if h.collection != "" {
		srv.Get("/"+h.collection, h.Collection)
	}

	srv.Get("/predict/ws", wsMiddleware, websocket.New(h.handlePredictWebSocket))
	srv.Post("/predict", h.middleware.NewRateLimiter, h.Predict)
}
