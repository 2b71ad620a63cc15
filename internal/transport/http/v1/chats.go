package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/xiaot623/nudge/internal/domain"
	"github.com/xiaot623/nudge/internal/service"
	"github.com/xiaot623/nudge/internal/transport/http/respond"
)

// OpenChat finds or creates a chat with another group member.
// POST /chats/create
func (h *Handler) OpenChat(c echo.Context) error {
	var req domain.OpenChatRequest
	if err := c.Bind(&req); err != nil {
		return respond.BadBody(c)
	}

	chat, created, err := h.service.OpenChat(c.Request().Context(), callerID(c), req)
	if err != nil {
		return respond.Error(c, h.logger, err)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, map[string]interface{}{"chat": chat})
}

// ListChats lists the caller's chats in a group.
// GET /chats?gid=
func (h *Handler) ListChats(c echo.Context) error {
	chats, err := h.service.ListChats(c.Request().Context(), callerID(c), c.QueryParam("gid"))
	if err != nil {
		return respond.Error(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"chats": chats})
}

// GetChat returns one chat with its participants resolved.
// GET /chats/:cid
func (h *Handler) GetChat(c echo.Context) error {
	chat, err := h.service.GetChat(c.Request().Context(), callerID(c), c.Param("cid"))
	if err != nil {
		return respond.Error(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"chat": chat})
}

// SendMessage sends a peer message through moderation.
// POST /chats/:cid/messages
func (h *Handler) SendMessage(c echo.Context) error {
	var req domain.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return respond.BadBody(c)
	}

	res, err := h.service.SendMessage(c.Request().Context(), callerID(c), c.Param("cid"), req.Content)
	if err != nil {
		return respond.Error(c, h.logger, err)
	}

	if res.State == domain.MessageStateNeedsConfirmation {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"needsRevision": true,
			"original":      res.Original,
			"suggestion":    res.Suggestion,
		})
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":       "Message sent",
		"chat":          res.Chat,
		"needsRevision": false,
	})
}

// ConfirmMessage stores the wording chosen after a revision prompt.
// POST /chats/:cid/confirm
func (h *Handler) ConfirmMessage(c echo.Context) error {
	var req domain.ConfirmMessageRequest
	if err := c.Bind(&req); err != nil {
		return respond.BadBody(c)
	}

	res, err := h.service.ConfirmMessage(c.Request().Context(), callerID(c), c.Param("cid"), req.ChosenContent)
	if err != nil {
		return respond.Error(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "Message sent",
		"chat":    res.Chat,
	})
}

// SendNuggetMessage asks the coach.
// POST /chats/:cid/nugget
func (h *Handler) SendNuggetMessage(c echo.Context) error {
	var req domain.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return respond.BadBody(c)
	}

	chat, err := h.service.SendNuggetMessage(c.Request().Context(), callerID(c), c.Param("cid"), req.Content)
	if err != nil {
		return h.nuggetError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"chat": chat})
}

// RetryAdvice regenerates a missing coach reply.
// POST /chats/:cid/nugget/retry
func (h *Handler) RetryAdvice(c echo.Context) error {
	chat, err := h.service.RetryAdvice(c.Request().Context(), callerID(c), c.Param("cid"))
	if err != nil {
		return h.nuggetError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"chat": chat})
}

// nuggetError reports an advice failure with the chat as stored, so the
// client can show the owner's message and offer a retry.
func (h *Handler) nuggetError(c echo.Context, err error) error {
	var failure *service.AdviceFailure
	if !errors.As(err, &failure) {
		return respond.Error(c, h.logger, err)
	}
	h.logger.Warn("advice unavailable, owner message kept",
		zap.String("chat_id", failure.Chat.ChatID),
		zap.Error(failure.Err))
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error":     "advice is unavailable right now, please retry",
		"code":      "advice_unavailable",
		"retryable": true,
		"chat":      failure.Chat,
	})
}
