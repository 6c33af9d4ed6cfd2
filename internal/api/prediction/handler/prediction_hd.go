package predictionHandler

import (
	"VisionPredictor/internal/api/prediction"
	"VisionPredictor/internal/entity"
	contextPkg "VisionPredictor/pkg/context"
	"VisionPredictor/pkg/handlerUtil"
	"VisionPredictor/pkg/log"
	"errors"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
	"strings"
)

func (h *PredictionHandler) Predict(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.timeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var result *entity.PredictionResult

	file, err := ctx.FormFile("image")
	if err == nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"file_name":  file.Filename,
			"file_size":  file.Size,
		}).Debug("Processing file upload")

		data, err := h.utils.ReadImageFile(file)
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_image_file")
		}

		result = h.predictionService.PredictBytes(c, data, ctx.FormValue("filename", file.Filename))
	} else {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
		}).Debug("Processing JSON request")

		var req prediction.PredictRequest
		if err := ctx.BodyParser(&req); err != nil {
			return errHandler.Handle(ctx, requestID, fiber.NewError(fiber.StatusBadRequest, "invalid request body"), ctx.Path(), "parse_request_body")
		}

		if err := h.validator.Struct(req); err != nil {
			return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
		}

		if strings.TrimSpace(req.Image) == "" {
			return errHandler.Handle(ctx, requestID, prediction.ErrImageRequired, ctx.Path(), "validate_request")
		}

		result = h.predictionService.Predict(c, req.Image, req.FilenameOrDefault())
	}

	select {
	case <-c.Done():
		if errors.Is(c.Err(), context.DeadlineExceeded) {
			return errHandler.HandleRequestTimeout(ctx)
		}
	default:
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"filename":   result.Filename,
		"label":      result.Label,
		"confidence": result.Confidence,
		"method":     result.Method,
	}).Info("Prediction served")

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
}

func (h *PredictionHandler) Labels(ctx *fiber.Ctx) error {
	return ctx.Status(fiber.StatusOK).JSON(h.predictionService.Labels())
}

// Collection serves the vocabulary under the profile's own key, e.g.
// {"teams": [...], "count": 20}.
func (h *PredictionHandler) Collection(ctx *fiber.Ctx) error {
	labels := h.predictionService.Labels()
	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		h.collection: labels.Labels,
		"count":      labels.Count,
	})
}

func (h *PredictionHandler) Health(ctx *fiber.Ctx) error {
	return ctx.Status(fiber.StatusOK).JSON(h.predictionService.Health())
}
