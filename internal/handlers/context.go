package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/nano-midea/moments/internal/middleware"
	"github.com/anonto42/nano-midea/moments/internal/repositories"
	"github.com/anonto42/nano-midea/moments/internal/stories"
	"github.com/labstack/echo/v4"
)

func getUserIDFromContext(c echo.Context) string {
	id, _ := c.Get(middleware.UserIDKey).(string)
	return id
}

func requireUserID(c echo.Context) (string, error) {
	id := getUserIDFromContext(c)
	if id == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return id, nil
}

// storyError maps story domain errors onto HTTP errors
func storyError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrStoryNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Story not found")
	case errors.Is(err, stories.ErrNotOwner):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, stories.ErrOwnStory),
		errors.Is(err, stories.ErrEmptyReaction),
		errors.Is(err, stories.ErrEmptyReply):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
