package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/xiaot623/nudge/internal/domain"
	"github.com/xiaot623/nudge/internal/transport/http/respond"
)

// CreateNudge logs and delivers a nudge.
// POST /nudges/create
func (h *Handler) CreateNudge(c echo.Context) error {
	var req domain.NudgeRequest
	if err := c.Bind(&req); err != nil {
		return respond.BadBody(c)
	}

	res, err := h.service.CreateNudge(c.Request().Context(), callerID(c), req)
	if err != nil {
		if res == nil {
			return respond.Error(c, h.logger, err)
		}
		// The nudge is on record; only its delivery failed.
		h.logger.Error("nudge delivery failed",
			zap.String("nudge_id", res.Nudge.NudgeID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error":      "nudge recorded but delivery failed",
			"nudge":      res.Nudge,
			"delivered":  false,
			"deliveries": res.Deliveries,
			"retryable":  true,
		})
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"nudge":      res.Nudge,
		"delivered":  res.Delivered,
		"deliveries": res.Deliveries,
	})
}

// ListTaskNudges returns a task's nudge history.
// GET /tasks/:tid/nudges
func (h *Handler) ListTaskNudges(c echo.Context) error {
	nudges, err := h.service.ListTaskNudges(c.Request().Context(), callerID(c), c.Param("tid"))
	if err != nil {
		return respond.Error(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"nudges": nudges})
}
