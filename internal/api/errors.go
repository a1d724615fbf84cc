package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/samcharles93/glbopt/internal/optimize"
	"github.com/samcharles93/glbopt/internal/texture"
	"github.com/samcharles93/glbopt/pkg/glb"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(format string, args ...any) error {
	return invalidRequestError{msg: fmt.Sprintf(format, args...)}
}

// classify maps a pipeline error to an HTTP status and error type.
func classify(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "request_too_large"
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, optimize.ErrInvalidOptions):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, glb.ErrContainerFormat), errors.Is(err, glb.ErrMissingBuffer):
		return http.StatusUnprocessableEntity, "container_error"
	case errors.Is(err, texture.ErrUnsupportedImage):
		return http.StatusUnprocessableEntity, "unsupported_image"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "cancelled"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}
