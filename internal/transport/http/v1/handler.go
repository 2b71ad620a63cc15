// Package v1 provides the client-facing HTTP handlers.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/xiaot623/nudge/internal/service"
)

// HeaderUserID carries the caller identity set by the auth gateway.
const HeaderUserID = "X-User-ID"

const callerKey = "caller_id"

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	logger  *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers external routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("", RequireCaller)

	// Chats
	api.POST("/chats/create", h.OpenChat)
	api.GET("/chats", h.ListChats)
	api.GET("/chats/:cid", h.GetChat)
	api.POST("/chats/:cid/messages", h.SendMessage)
	api.POST("/chats/:cid/confirm", h.ConfirmMessage)
	api.POST("/chats/:cid/nugget", h.SendNuggetMessage)
	api.POST("/chats/:cid/nugget/retry", h.RetryAdvice)

	// Nudges
	api.POST("/nudges/create", h.CreateNudge)
	api.GET("/tasks/:tid/nudges", h.ListTaskNudges)

	e.GET("/health", h.Health)
}

// RequireCaller rejects requests without a caller identity.
func RequireCaller(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(HeaderUserID)
		if id == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing caller identity"})
		}
		c.Set(callerKey, id)
		return next(c)
	}
}

// callerID returns the identity stored by RequireCaller, falling back to the
// header when the handler is invoked directly.
func callerID(c echo.Context) string {
	if id, ok := c.Get(callerKey).(string); ok && id != "" {
		return id
	}
	return c.Request().Header.Get(HeaderUserID)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
