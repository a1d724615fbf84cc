package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/glbopt/internal/optimize"
	"github.com/samcharles93/glbopt/internal/texture"
)

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, "")
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg, "")
}

func writeError(c *echo.Context, status int, errType, msg, param string) error {
	return c.JSON(status, ErrorResponse{
		Error: ResponseError{
			Message: msg,
			Type:    errType,
			Param:   param,
		},
		RequestID: c.Response().Header().Get(HeaderRequestID),
	})
}

func writePipelineError(c *echo.Context, err error) error {
	status, errType := classify(err)
	return writeError(c, status, errType, err.Error(), "")
}

// readBody reads at most limit bytes of the request body.
func readBody(c *echo.Context, limit int64) ([]byte, error) {
	req := c.Request()
	body := io.Reader(req.Body)
	if limit > 0 {
		body = http.MaxBytesReader(c.Response(), req.Body, limit)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, newInvalidRequest("request body is empty")
	}
	return data, nil
}

// optionsFromQuery overlays target_size, format and dedup query parameters on
// the server defaults.
func optionsFromQuery(c *echo.Context, defaults optimize.Options) (optimize.Options, error) {
	opts := defaults
	if v := strings.TrimSpace(c.QueryParam("target_size")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, newInvalidRequest("target_size must be a positive integer, got %q", v)
		}
		opts.TargetSize = n
	}
	if v := c.QueryParam("format"); v != "" {
		f, err := texture.ParseFormat(v)
		if err != nil {
			return opts, newInvalidRequest("format: %v", err)
		}
		opts.Format = f
	}
	if v := c.QueryParam("dedup"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, newInvalidRequest("dedup must be a boolean, got %q", v)
		}
		opts.Dedup = b
	}
	return opts, nil
}

func countTransformed(rep *optimize.Report) int {
	n := 0
	for _, img := range rep.Images {
		if !img.Skipped {
			n++
		}
	}
	return n
}
