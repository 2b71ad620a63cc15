// Package internalapi provides HTTP handlers for internal APIs.
// These APIs are only accessible to the user and group services, which mirror
// their records here so chats and nudges can resolve identities.
package internalapi

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/xiaot623/nudge/internal/service"
)

// Handler handles internal HTTP requests.
type Handler struct {
	service *service.Service
	logger  *zap.Logger
}

// NewHandler creates a new internal API handler.
func NewHandler(service *service.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers internal routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Users
	e.PUT("/internal/users/:uid", h.UpsertUser)

	// Groups
	e.PUT("/internal/groups/:gid", h.UpsertGroup)
	e.POST("/internal/groups/:gid/members", h.AddGroupMember)

	// Tasks
	e.PUT("/internal/tasks/:tid", h.UpsertTask)
}
