package prediction

import (
	"VisionPredictor/pkg/response"
	"net/http"
)

var (
	ErrDecode        = response.NewError(http.StatusUnprocessableEntity, "image could not be decoded")
	ErrModelAbsent   = response.NewError(http.StatusServiceUnavailable, "model not loaded")
	ErrNoDetection   = response.NewError(http.StatusOK, "no detection found")
	ErrUnexpected    = response.NewError(http.StatusInternalServerError, "unexpected prediction failure")
	ErrImageRequired = response.NewError(http.StatusBadRequest, "field image is required")
	ErrInvalidFrame  = response.NewError(http.StatusBadRequest, "invalid websocket frame")
)
