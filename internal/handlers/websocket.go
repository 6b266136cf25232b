package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/anonto42/nano-midea/moments/internal/realtime"
	"github.com/gorilla/websocket"
)

const (
	defaultReadTimeout = 60 * time.Second
	maxFrameSize       = 64 << 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type errorFrame struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

func replyError(conn *realtime.Connection, code, msg string) {
	_ = conn.SendJSON(errorFrame{Type: "error", Code: code, Error: msg})
}

func prepareRead(ws *websocket.Conn) {
	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
	})
}

// normalClose reports whether a read error is the client going away.
func normalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
		errors.Is(err, websocket.ErrCloseSent)
}
