package internalapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/nudge/internal/domain"
	"github.com/xiaot623/nudge/internal/transport/http/respond"
)

// UpsertUser mirrors a user.
// PUT /internal/users/:uid
func (h *Handler) UpsertUser(c echo.Context) error {
	var req domain.UpsertUserRequest
	if err := c.Bind(&req); err != nil {
		return respond.BadBody(c)
	}
	user, err := h.service.UpsertUser(c.Request().Context(), c.Param("uid"), req)
	if err != nil {
		return respond.Error(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, user)
}

// UpsertGroup mirrors a group and its members.
// PUT /internal/groups/:gid
func (h *Handler) UpsertGroup(c echo.Context) error {
	var req domain.UpsertGroupRequest
	if err := c.Bind(&req); err != nil {
		return respond.BadBody(c)
	}
	group, err := h.service.UpsertGroup(c.Request().Context(), c.Param("gid"), req)
	if err != nil {
		return respond.Error(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, group)
}

// AddGroupMember adds a member to a group.
// POST /internal/groups/:gid/members
func (h *Handler) AddGroupMember(c echo.Context) error {
	var req domain.AddMemberRequest
	if err := c.Bind(&req); err != nil {
		return respond.BadBody(c)
	}
	group, err := h.service.AddGroupMember(c.Request().Context(), c.Param("gid"), req)
	if err != nil {
		return respond.Error(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, group)
}

// UpsertTask mirrors a task.
// PUT /internal/tasks/:tid
func (h *Handler) UpsertTask(c echo.Context) error {
	var req domain.UpsertTaskRequest
	if err := c.Bind(&req); err != nil {
		return respond.BadBody(c)
	}
	task, err := h.service.UpsertTask(c.Request().Context(), c.Param("tid"), req)
	if err != nil {
		return respond.Error(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, task)
}
