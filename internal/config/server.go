package config

import (
	predictionConsumer "VisionPredictor/internal/api/prediction/consumer"
	predictionHandler "VisionPredictor/internal/api/prediction/handler"
	predictionService "VisionPredictor/internal/api/prediction/service"
	"VisionPredictor/internal/middleware"
	"VisionPredictor/pkg/annotator"
	"VisionPredictor/pkg/archive"
	"VisionPredictor/pkg/detector"
	"VisionPredictor/pkg/imagecodec"
	"VisionPredictor/pkg/labels"
	"VisionPredictor/pkg/redis"
	"VisionPredictor/pkg/utils"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"time"
)

type ServerOption func(*Server) error

type Server struct {
	engine      *fiber.App
	log         *logrus.Logger
	middleware  middleware.Middleware
	validator   *validator.Validate
	utils       utils.IUtils
	profile     *labels.Profile
	detector    detector.IDetector
	annotator   annotator.IAnnotator
	redisServer redis.IQueue
	archive     archive.IArchive
	cfg         AppConfig
	handlers    []handler
	service     predictionService.IPredictionService
	consumer    *predictionConsumer.Consumer
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.profile == nil {
		return nil, fmt.Errorf("label profile is required")
	}
	if server.detector == nil {
		server.detector = detector.Absent(detector.BackendONNX, detector.Options{ModelPath: server.cfg.ModelPath})
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}
	if server.utils == nil {
		server.utils = utils.New()
	}
	if server.middleware == nil {
		server.middleware = middleware.New(server.log, middleware.Config{})
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

// WithConfig keeps the startup configuration for handler timeouts, queue
// naming and the listen port.
func WithConfig(cfg AppConfig) ServerOption {
	return func(s *Server) error {
		s.cfg = cfg
		return nil
	}
}

func WithProfile(profile labels.Profile) ServerOption {
	return func(s *Server) error {
		if profile.Vocabulary.Len() == 0 {
			return labels.ErrEmptyVocabulary
		}
		s.profile = &profile
		return nil
	}
}

func WithDetector(d detector.IDetector) ServerOption {
	return func(s *Server) error {
		s.detector = d
		return nil
	}
}

// WithAnnotator sets the annotator. Without it one is built from the
// configured font, falling back to the built-in face.
func WithAnnotator(a annotator.IAnnotator) ServerOption {
	return func(s *Server) error {
		s.annotator = a
		return nil
	}
}

func WithMiddleware(cfg middleware.Config) ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log, cfg)
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func WithRedisServer(redisServer redis.IQueue) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithArchive(store archive.IArchive) ServerOption {
	return func(s *Server) error {
		s.archive = store
		return nil
	}
}

func (s *Server) RegisterHandler() {
	if s.annotator == nil {
		fonts, err := annotator.LoadFontOrDefault(s.cfg.FontPath, s.cfg.FontSize)
		if err != nil {
			s.log.Warnf("Annotation font unavailable, using %s: %v", fonts.Name(), err)
		}
		s.annotator = annotator.New(fonts)
	}

	// Prediction
	s.service = predictionService.NewPredictionService(s.log, s.detector, imagecodec.New(), s.annotator, *s.profile)
	predictionHandlers := predictionHandler.New(
		s.log,
		s.validator,
		s.middleware,
		s.service,
		s.utils,
		s.profile.Collection,
		s.cfg.PredictTimeout,
	)

	// Queue intake
	if s.redisServer != nil {
		s.consumer = predictionConsumer.New(
			s.log,
			s.redisServer,
			s.service,
			s.archive,
			s.validator,
			s.utils,
			predictionConsumer.Config{
				Queue:   s.cfg.QueueName,
				Timeout: s.cfg.PredictTimeout,
			},
		)
	}

	s.handlers = append(s.handlers, predictionHandlers)
}

// Mount attaches middleware and routes. The prediction routes are served both
// at the root and under /api/v1.
func (s *Server) Mount() {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())
	s.setupHealthCheck()

	router := s.engine.Group("/api/v1")
	for _, h := range s.handlers {
		h.Start(s.engine)
		h.Start(router)
	}
}

func (s *Server) Run() error {
	s.Mount()

	port := s.cfg.Port
	if port == "" {
		port = s.profile.DefaultPort
	}

	s.log.WithFields(logrus.Fields{
		"profile":      s.profile.Name,
		"model_loaded": s.detector.Status() == detector.StatusReady,
		"backend":      s.detector.Backend(),
		"port":         port,
	}).Info("Starting prediction server")

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// RunConsumer blocks until ctx is done. It returns immediately when no queue
// was configured.
func (s *Server) RunConsumer(ctx context.Context) error {
	if s.consumer == nil {
		return nil
	}
	return s.consumer.Run(ctx)
}

func (s *Server) Shutdown(timeout time.Duration) error {
	var firstErr error

	if err := s.engine.ShutdownWithTimeout(timeout); err != nil {
		s.log.Errorf("Error shutting down HTTP server: %v", err)
		firstErr = err
	}

	if err := s.detector.Close(); err != nil {
		s.log.Errorf("Error closing detector: %v", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	if s.redisServer != nil {
		if err := s.redisServer.Close(); err != nil {
			s.log.Errorf("Error closing Redis client: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}
