package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/anonto42/nano-midea/moments/internal/clock"
	"github.com/anonto42/nano-midea/moments/internal/realtime"
	"github.com/anonto42/nano-midea/moments/internal/stories"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const storyChannel = "story"

// StorySessionHandler runs story viewer sessions over websockets. Clients send
// gesture frames and receive a snapshot frame after every state change.
type StorySessionHandler struct {
	index      *stories.Store
	effects    stories.Effects
	registry   *realtime.Registry
	tickPeriod time.Duration
	newTicker  clock.TickerFactory
	log        *logrus.Entry
}

func NewStorySessionHandler(index *stories.Store, effects stories.Effects, registry *realtime.Registry, tickPeriod time.Duration, newTicker clock.TickerFactory, log *logrus.Entry) *StorySessionHandler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &StorySessionHandler{
		index:      index,
		effects:    effects,
		registry:   registry,
		tickPeriod: tickPeriod,
		newTicker:  newTicker,
		log:        log.WithField("component", "story_session"),
	}
}

func (h *StorySessionHandler) RegisterStorySessionRoutes(g *echo.Group) {
	g.GET("/stories/session", h.Open)
}

type snapshotFrame struct {
	Type string `json:"type"`
	stories.Snapshot
}

// Open starts a viewer session at the group given by ?group= (default 0).
func (h *StorySessionHandler) Open(c echo.Context) error {
	currentUserID, err := requireUserID(c)
	if err != nil {
		return err
	}

	start := 0
	if raw := c.QueryParam("group"); raw != "" {
		start, err = strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid group index")
		}
	}

	groups, err := h.index.Groups(c.Request().Context(), currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	session, err := stories.Open(currentUserID, groups, start, h.effects)
	if errors.Is(err, stories.ErrNoSuchGroup) {
		return echo.NewHTTPError(http.StatusNotFound, "No stories at that position")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the response.
		session.Close()
		return nil
	}

	log := h.log.WithFields(logrus.Fields{"user_id": currentUserID, "session_id": session.ID()})
	conn := realtime.NewConnection(currentUserID, ws)
	h.registry.Attach(storyChannel, conn)

	player := stories.NewPlayer(session, h.tickPeriod, h.newTicker, func(snap stories.Snapshot) {
		if snap.Item != nil {
			visible := snap.Item.VisibleTo(currentUserID)
			snap.Item = &visible
		}
		_ = conn.SendJSON(snapshotFrame{Type: "snapshot", Snapshot: snap})
	}, log)
	player.Start()
	log.Debug("story session opened")

	defer func() {
		player.Stop()
		h.registry.Detach(storyChannel, conn)
		conn.Close(websocket.CloseNormalClosure, "session closed")
		log.Debug("story session closed")
	}()

	go func() {
		select {
		case <-player.Done():
			conn.Flush(time.Second)
			conn.Close(websocket.CloseNormalClosure, "session closed")
		case <-conn.Done():
		}
	}()

	prepareRead(ws)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !normalClose(err) {
				log.WithError(err).Debug("story session read ended")
			}
			return nil
		}

		var ev stories.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			replyError(conn, "bad_request", "invalid payload")
			continue
		}

		if err := player.Send(ev); err != nil {
			if errors.Is(err, stories.ErrSessionClosed) {
				return nil
			}
			replyError(conn, "rejected", err.Error())
		}
	}
}
