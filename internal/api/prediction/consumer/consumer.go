package predictionConsumer

import (
	"VisionPredictor/internal/api/prediction"
	predictionService "VisionPredictor/internal/api/prediction/service"
	"VisionPredictor/internal/entity"
	"VisionPredictor/pkg/archive"
	contextPkg "VisionPredictor/pkg/context"
	"VisionPredictor/pkg/imagecodec"
	"VisionPredictor/pkg/redis"
	"VisionPredictor/pkg/utils"
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"time"
)

const (
	DefaultPollWait  = 5 * time.Second
	DefaultTimeout   = 30 * time.Second
	statusEvery      = 20
	retryBackoff     = 2 * time.Second
	unknownFileLabel = "Unknown"
)

type Config struct {
	Queue    string
	PollWait time.Duration
	Timeout  time.Duration
}

// ResultsQueue is where processed messages are published.
func (c Config) ResultsQueue() string { return c.Queue + ":results" }

// FailedQueue receives messages that could not be parsed.
func (c Config) FailedQueue() string { return c.Queue + ":failed" }

type Consumer struct {
	log               *logrus.Logger
	queue             redis.IQueue
	predictionService predictionService.IPredictionService
	archive           archive.IArchive
	validator         *validator.Validate
	utils             utils.IUtils
	cfg               Config
	now               func() time.Time

	processed int
	archived  int
	failed    int
}

func New(
	log *logrus.Logger,
	queue redis.IQueue,
	ps predictionService.IPredictionService,
	store archive.IArchive,
	validator *validator.Validate,
	utils utils.IUtils,
	cfg Config,
) *Consumer {
	if cfg.PollWait <= 0 {
		cfg.PollWait = DefaultPollWait
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Consumer{
		log:               log,
		queue:             queue,
		predictionService: ps,
		archive:           store,
		validator:         validator,
		utils:             utils,
		cfg:               cfg,
		now:               time.Now,
	}
}

// Run pops messages until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.WithFields(logrus.Fields{
		"queue":   c.cfg.Queue,
		"results": c.cfg.ResultsQueue(),
	}).Info("Queue consumer started")

	for {
		if ctx.Err() != nil {
			c.log.WithField("processed", c.processed).Info("Queue consumer stopped")
			return nil
		}

		payload, err := c.queue.Pop(ctx, c.cfg.Queue, c.cfg.PollWait)
		if err != nil {
			if errors.Is(err, redis.ErrEmpty) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}

			c.log.Errorf("Error reading from %s: %v", c.cfg.Queue, err)
			select {
			case <-ctx.Done():
			case <-time.After(retryBackoff):
			}
			continue
		}

		c.Handle(ctx, payload)
	}
}

// Handle processes a single raw queue message.
func (c *Consumer) Handle(ctx context.Context, payload []byte) {
	requestID, err := c.utils.NewULIDFromTimestamp(c.now())
	if err != nil {
		requestID = "unknown"
	}
	entry := c.log.WithField("request_id", requestID)

	var msg prediction.QueueMessage
	if err := jsoniter.Unmarshal(payload, &msg); err != nil {
		c.reject(ctx, entry, payload, fmt.Errorf("parse message: %w", err))
		return
	}
	if err := c.validator.Struct(msg); err != nil {
		c.reject(ctx, entry, payload, fmt.Errorf("validate message: %w", err))
		return
	}

	c.processed++
	if msg.Filename == "" {
		msg.Filename = entity.DefaultFilename
	}
	entry = entry.WithFields(logrus.Fields{"type": msg.Type, "filename": msg.Filename})
	entry.Debug("Processing queue message")

	predictCtx, cancel := context.WithTimeout(contextPkg.NewRequestContext(ctx, requestID), c.cfg.Timeout)
	defer cancel()

	var result *entity.PredictionResult
	original, err := imagecodec.DecodeBase64(msg.Data)
	if err != nil {
		result = c.predictionService.Predict(predictCtx, msg.Data, msg.Filename)
	} else {
		result = c.predictionService.PredictBytes(predictCtx, original, msg.Filename)
	}

	out := prediction.QueueResult{
		Filename:    result.Filename,
		Label:       result.Label,
		Confidence:  result.Confidence,
		Method:      string(result.Method),
		ProcessedAt: c.now().UnixMilli(),
	}
	if result.DetectionsCount != nil {
		out.DetectionsCount = *result.DetectionsCount
	}

	if result.Method != entity.MethodError && c.archive != nil {
		location, err := c.store(ctx, result, original)
		if err != nil {
			entry.Errorf("Error archiving image: %v", err)
		} else {
			c.archived++
			out.ArchivedAt = location
		}
	}

	encoded, err := jsoniter.Marshal(out)
	if err != nil {
		entry.Errorf("Error encoding result: %v", err)
	} else if err := c.queue.Push(ctx, c.cfg.ResultsQueue(), encoded); err != nil {
		entry.Errorf("Error publishing result: %v", err)
	}

	entry.WithFields(logrus.Fields{
		"label":      out.Label,
		"confidence": out.Confidence,
		"method":     out.Method,
	}).Info("Queue message processed")

	if c.processed%statusEvery == 0 {
		c.log.WithFields(logrus.Fields{
			"processed": c.processed,
			"archived":  c.archived,
			"failed":    c.failed,
		}).Info("Queue consumer status")
	}
}

// store archives the annotated image when there is one, else the original.
func (c *Consumer) store(ctx context.Context, result *entity.PredictionResult, original []byte) (string, error) {
	data := original
	if result.AnnotatedImage != "" {
		annotated, err := imagecodec.DecodeBase64(result.AnnotatedImage)
		if err != nil {
			return "", fmt.Errorf("decode annotated image: %w", err)
		}
		data = annotated
	}
	if len(data) == 0 {
		return "", errors.New("nothing to archive")
	}

	return c.archive.Save(ctx, c.ArchiveName(result.Label), data)
}

// ArchiveName builds "<label>_<unix millis>.jpg" with the label reduced to a
// safe file stem.
func (c *Consumer) ArchiveName(label string) string {
	return fmt.Sprintf("%s_%d.jpg", c.utils.SanitizeFileStem(label, unknownFileLabel), c.now().UnixMilli())
}

func (c *Consumer) reject(ctx context.Context, entry *logrus.Entry, payload []byte, err error) {
	c.failed++
	entry.Warnf("Rejected queue message: %v", err)

	if pushErr := c.queue.Push(ctx, c.cfg.FailedQueue(), payload); pushErr != nil {
		entry.Errorf("Error moving message to %s: %v", c.cfg.FailedQueue(), pushErr)
	}
}

// Stats reports processed, archived and rejected message counts.
func (c *Consumer) Stats() (processed, archived, failed int) {
	return c.processed, c.archived, c.failed
}
