package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/anonto42/nano-midea/moments/internal/models"
	"github.com/anonto42/nano-midea/moments/internal/repositories"
	"github.com/labstack/echo/v4"
)

// ConversationHandler exposes the conversations story replies land in
type ConversationHandler struct {
	conversationRepository repositories.ConversationRepository
}

func NewConversationHandler(convRepo repositories.ConversationRepository) *ConversationHandler {
	return &ConversationHandler{conversationRepository: convRepo}
}

func (h *ConversationHandler) RegisterConversationRoutes(g *echo.Group) {
	g.GET("/conversations", h.ListConversations)
	g.GET("/conversations/unread-count", h.GetUnreadCount)
	g.PUT("/conversations/:id/read", h.MarkAsRead)
}

// ConversationSummary is a conversation with its latest message only
type ConversationSummary struct {
	ID            string          `json:"id"`
	Participants  []string        `json:"participants"`
	LastMessage   *models.Message `json:"last_message,omitempty"`
	LastMessageAt string          `json:"last_message_at"`
	Unread        bool            `json:"unread"`
}

func (h *ConversationHandler) ListConversations(c echo.Context) error {
	currentUserID, err := requireUserID(c)
	if err != nil {
		return err
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 100 {
		limit = 30
	}

	convs, err := h.conversationRepository.ListForUser(c.Request().Context(), currentUserID, int64(limit))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	summaries := make([]ConversationSummary, 0, len(convs))
	for i := range convs {
		conv := &convs[i]
		summary := ConversationSummary{
			ID:            conv.ID,
			Participants:  conv.Participants,
			LastMessageAt: conv.LastMessageAt.Format(time.RFC3339),
			Unread:        conv.UnreadFor(currentUserID),
		}
		if n := len(conv.Messages); n > 0 {
			summary.LastMessage = &conv.Messages[n-1]
		}
		summaries = append(summaries, summary)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"conversations": summaries}})
}

// GetUnreadCount returns how many conversations carry an unread message
func (h *ConversationHandler) GetUnreadCount(c echo.Context) error {
	currentUserID, err := requireUserID(c)
	if err != nil {
		return err
	}

	count, err := h.conversationRepository.CountUnread(c.Request().Context(), currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"count": count}})
}

func (h *ConversationHandler) MarkAsRead(c echo.Context) error {
	currentUserID, err := requireUserID(c)
	if err != nil {
		return err
	}

	err = h.conversationRepository.MarkRead(c.Request().Context(), c.Param("id"), currentUserID)
	if errors.Is(err, repositories.ErrConversationNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Conversation not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"success": true}})
}
