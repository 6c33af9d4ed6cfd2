package detector

import "github.com/pkg/errors"

var (
	ErrModelNotLoaded    = errors.New("model not loaded")
	ErrModelNotFound     = errors.New("model file not found")
	ErrUnexpectedOutput  = errors.New("unexpected model output shape")
	ErrRemoteUnavailable = errors.New("remote detector unavailable")
)
