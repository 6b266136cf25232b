package handlers

import (
	"encoding/json"
	"time"

	"github.com/anonto42/nano-midea/moments/internal/clock"
	"github.com/anonto42/nano-midea/moments/internal/models"
	"github.com/anonto42/nano-midea/moments/internal/playback"
	"github.com/anonto42/nano-midea/moments/internal/realtime"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const playbackChannel = "playback"

// PlaybackHandler drives one feed's autoplay over a websocket. The client
// reports its feed items and their visible ratios; the server answers with
// activate and deactivate commands.
type PlaybackHandler struct {
	registry  *realtime.Registry
	window    time.Duration
	newTicker clock.TickerFactory
	log       *logrus.Entry
}

func NewPlaybackHandler(registry *realtime.Registry, window time.Duration, newTicker clock.TickerFactory, log *logrus.Entry) *PlaybackHandler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &PlaybackHandler{
		registry:  registry,
		window:    window,
		newTicker: newTicker,
		log:       log.WithField("component", "playback_ws"),
	}
}

func (h *PlaybackHandler) RegisterPlaybackRoutes(g *echo.Group) {
	g.GET("/feed/playback", h.Stream)
}

type playbackFrame struct {
	Type      string           `json:"type"`
	ItemID    string           `json:"item_id"`
	MediaKind models.MediaKind `json:"media_kind,omitempty"`
	Ratio     float64          `json:"ratio,omitempty"`
}

type ackFrame struct {
	Type   string `json:"type"`
	ItemID string `json:"item_id"`
}

// Stream serves one feed instance until the client disconnects. Leaving
// deactivates whatever was playing.
func (h *PlaybackHandler) Stream(c echo.Context) error {
	currentUserID, err := requireUserID(c)
	if err != nil {
		return err
	}

	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil
	}

	log := h.log.WithField("user_id", currentUserID)
	conn := realtime.NewConnection(currentUserID, ws)
	h.registry.Attach(playbackChannel, conn)

	feed := playback.NewFeed(h.window, h.newTicker, func(cmd playback.Command) {
		_ = conn.SendJSON(cmd)
	}, log)
	feed.Start()

	defer func() {
		feed.Stop()
		h.registry.Detach(playbackChannel, conn)
		conn.Flush(time.Second)
		conn.Close(websocket.CloseNormalClosure, "feed closed")
	}()

	prepareRead(ws)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !normalClose(err) {
				log.WithError(err).Debug("playback read ended")
			}
			return nil
		}

		var frame playbackFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.ItemID == "" {
			replyError(conn, "bad_request", "invalid payload")
			continue
		}

		switch frame.Type {
		case "register":
			kind := frame.MediaKind
			if kind != models.MediaVideo {
				kind = models.MediaImage
			}
			feed.Tracker.Register(frame.ItemID, kind)
			_ = conn.SendJSON(ackFrame{Type: "registered", ItemID: frame.ItemID})
		case "unregister":
			feed.Tracker.Unregister(frame.ItemID)
		case "visibility":
			if !feed.Tracker.Observe(frame.ItemID, frame.Ratio) {
				replyError(conn, "unregistered", "item is not registered")
			}
		default:
			replyError(conn, "unsupported_type", "unknown frame type")
		}
	}
}
