// Package respond maps service errors onto HTTP responses.
package respond

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/xiaot623/nudge/internal/domain"
)

// Status returns the HTTP status for err.
func Status(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as a JSON error body. Client errors carry their message;
// upstream and internal failures get a generic one and are logged instead.
func Error(c echo.Context, logger *zap.Logger, err error) error {
	status := Status(err)
	if status != http.StatusInternalServerError {
		return c.JSON(status, map[string]string{"error": err.Error()})
	}

	logger.Error("request failed",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Error(err))

	if errors.Is(err, domain.ErrUpstreamUnavailable) {
		return c.JSON(status, map[string]interface{}{
			"error":     "a dependent service is unavailable, please retry",
			"retryable": true,
		})
	}
	return c.JSON(status, map[string]string{"error": "internal error"})
}

// BadBody is the response for an undecodable request body.
func BadBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
}
