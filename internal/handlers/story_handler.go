package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/anonto42/nano-midea/moments/internal/engagement"
	"github.com/anonto42/nano-midea/moments/internal/models"
	"github.com/anonto42/nano-midea/moments/internal/reply"
	"github.com/anonto42/nano-midea/moments/internal/repositories"
	"github.com/anonto42/nano-midea/moments/internal/stories"
	"github.com/labstack/echo/v4"
)

// StoryHandler handles story-related HTTP requests
type StoryHandler struct {
	storyRepository repositories.StoryRepository
	userRepository  repositories.UserRepository
	index           *stories.Store
	tracker         *engagement.Tracker
	replies         *reply.Channel
}

func NewStoryHandler(
	storyRepo repositories.StoryRepository,
	userRepo repositories.UserRepository,
	index *stories.Store,
	tracker *engagement.Tracker,
	replies *reply.Channel,
) *StoryHandler {
	return &StoryHandler{
		storyRepository: storyRepo,
		userRepository:  userRepo,
		index:           index,
		tracker:         tracker,
		replies:         replies,
	}
}

// RegisterStoryRoutes registers story-related routes
func (h *StoryHandler) RegisterStoryRoutes(g *echo.Group) {
	g.GET("/stories", h.GetStories)
	g.POST("/stories", h.CreateStory)
	g.GET("/stories/:id", h.GetStory)
	g.DELETE("/stories/:id", h.DeleteStory)
	g.POST("/stories/:id/view", h.MarkAsViewed)
	g.POST("/stories/:id/reactions", h.ReactToStory)
	g.POST("/stories/:id/reply", h.ReplyToStory)
	g.PATCH("/stories/:id/caption", h.UpdateCaption)
	g.GET("/stories/:id/viewers", h.GetViewers)
}

// StoryItemResponse is a story item as seen by the caller
type StoryItemResponse struct {
	models.StoryItem
	RingRatio float64 `json:"ring_ratio"`
	Seen      bool    `json:"seen"`
}

// StoryGroupResponse is one author's stack in the story bar
type StoryGroupResponse struct {
	Author          models.UserCompact  `json:"author"`
	Items           []StoryItemResponse `json:"items"`
	HasUnseenItems  bool                `json:"has_unseen_items"`
	Own             bool                `json:"own"`
	LatestCreatedAt string              `json:"latest_created_at"`
}

func itemResponse(item models.StoryItem, viewerID string, now time.Time) StoryItemResponse {
	return StoryItemResponse{
		StoryItem: item.VisibleTo(viewerID),
		RingRatio: stories.RingRatio(item.CreatedAt, now),
		Seen:      item.AuthorID == viewerID || item.SeenBy(viewerID),
	}
}

// GetStories returns the caller's story bar: their own group and the groups
// of everyone they follow, newest first.
func (h *StoryHandler) GetStories(c echo.Context) error {
	currentUserID, err := requireUserID(c)
	if err != nil {
		return err
	}

	groups, err := h.index.Groups(c.Request().Context(), currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	now := h.index.Now()
	resp := make([]StoryGroupResponse, 0, len(groups))
	for _, g := range groups {
		items := make([]StoryItemResponse, len(g.Items))
		for i, item := range g.Items {
			items[i] = itemResponse(item, currentUserID, now)
		}
		resp = append(resp, StoryGroupResponse{
			Author: models.UserCompact{
				ID:        g.AuthorID,
				Name:      g.AuthorDisplayName,
				AvatarRef: g.AuthorAvatarRef,
			},
			Items:           items,
			HasUnseenItems:  !g.Own && g.HasUnseen(currentUserID),
			Own:             g.Own,
			LatestCreatedAt: g.LatestCreatedAt.Format(time.RFC3339),
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"groups": resp}})
}

// GetStory returns a single live story item
func (h *StoryHandler) GetStory(c echo.Context) error {
	currentUserID, err := requireUserID(c)
	if err != nil {
		return err
	}

	item, err := h.liveItem(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storyError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"story": itemResponse(item, currentUserID, h.index.Now())}})
}

// CreateStory publishes a new story item for the caller
func (h *StoryHandler) CreateStory(c echo.Context) error {
	currentUserID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req models.CreateStoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	item := &models.StoryItem{
		AuthorID:  currentUserID,
		MediaRef:  req.MediaRef,
		MediaKind: models.MediaKind(req.MediaKind),
		Caption:   req.Caption,
	}
	if h.userRepository != nil {
		if user, err := h.userRepository.GetUserByID(currentUserID); err == nil {
			item.AuthorDisplayName = user.Name
			item.AuthorAvatarRef = user.AvatarRef
		}
	}

	if err := h.storyRepository.CreateStoryItem(c.Request().Context(), item); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.index.Upsert(*item)

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": echo.Map{"story": itemResponse(*item, currentUserID, h.index.Now())}})
}

// MarkAsViewed records the caller as a viewer. Authors viewing their own
// items are not recorded.
func (h *StoryHandler) MarkAsViewed(c echo.Context) error {
	currentUserID, err := requireUserID(c)
	if err != nil {
		return err
	}

	item, err := h.liveItem(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storyError(err)
	}

	err = h.tracker.RecordView(c.Request().Context(), item, currentUserID)
	if errors.Is(err, engagement.ErrSelfView) {
		return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"recorded": false}})
	}
	if err != nil {
		return storyError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"recorded": true}})
}

// ReactToStory appends a reaction to the item's reaction log
func (h *StoryHandler) ReactToStory(c echo.Context) error {
	currentUserID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req models.ReactionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	item, err := h.liveItem(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storyError(err)
	}

	reaction, err := h.tracker.RecordReaction(c.Request().Context(), item, currentUserID, req.Emoji)
	if err != nil {
		return storyError(err)
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": echo.Map{"reaction": reaction}})
}

// ReplyToStory sends a story reply into the conversation with the author
func (h *StoryHandler) ReplyToStory(c echo.Context) error {
	currentUserID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req models.ReplyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	item, err := h.liveItem(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storyError(err)
	}

	conv, err := h.replies.SendReply(c.Request().Context(), reply.Reply{
		FromID:   currentUserID,
		ToID:     item.AuthorID,
		ItemID:   item.ID,
		MediaRef: item.MediaRef,
		Text:     req.Text,
	})
	switch {
	case errors.Is(err, reply.ErrEmptyText), errors.Is(err, reply.ErrSelfReply):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	data := echo.Map{"conversation_id": conv.ID}
	if n := len(conv.Messages); n > 0 {
		data["message"] = conv.Messages[n-1]
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": data})
}

// UpdateCaption replaces the caption of the caller's own item
func (h *StoryHandler) UpdateCaption(c echo.Context) error {
	currentUserID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req models.UpdateCaptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	item, err := h.liveItem(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storyError(err)
	}

	if err := h.tracker.UpdateCaption(c.Request().Context(), item, currentUserID, req.Caption); err != nil {
		return storyError(err)
	}

	item.Caption = req.Caption
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"story": itemResponse(item, currentUserID, h.index.Now())}})
}

// DeleteStory removes the caller's own item before it expires
func (h *StoryHandler) DeleteStory(c echo.Context) error {
	currentUserID, err := requireUserID(c)
	if err != nil {
		return err
	}

	item, err := h.liveItem(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storyError(err)
	}

	if err := h.tracker.DeleteItem(c.Request().Context(), item, currentUserID); err != nil {
		return storyError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"deleted": true}})
}

// GetViewers lists who viewed the caller's own item
func (h *StoryHandler) GetViewers(c echo.Context) error {
	currentUserID, err := requireUserID(c)
	if err != nil {
		return err
	}

	item, err := h.liveItem(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storyError(err)
	}
	if item.AuthorID != currentUserID {
		return storyError(stories.ErrNotOwner)
	}

	viewers := make([]models.UserCompact, 0, len(item.ViewerIDs))
	for _, id := range item.ViewerIDs {
		compact := models.UserCompact{ID: id}
		if h.userRepository != nil {
			if user, err := h.userRepository.GetUserByID(id); err == nil {
				compact = user.ToCompact()
			}
		}
		viewers = append(viewers, compact)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"viewers":   viewers,
			"reactions": item.Reactions,
		},
	})
}

// liveItem resolves an item from the live index, falling back to the store
// for items the index has not caught up with yet.
func (h *StoryHandler) liveItem(ctx context.Context, id string) (models.StoryItem, error) {
	if item, ok := h.index.Item(id); ok {
		return item, nil
	}
	item, err := h.storyRepository.GetStoryItem(ctx, id)
	if err != nil {
		return models.StoryItem{}, err
	}
	if !stories.Live(item, h.index.Now()) {
		return models.StoryItem{}, repositories.ErrStoryNotFound
	}
	return *item, nil
}
