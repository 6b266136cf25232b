package realtime

import (
	"sync"

	"github.com/gorilla/websocket"
)

// CloseReplaced is sent to a connection displaced by a newer one for the
// same user and channel.
const CloseReplaced = 4001

// Registry tracks one live connection per user and channel ("story",
// "playback"). A user opening a second story viewer replaces the first.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

func registryKey(channel, userID string) string {
	return channel + "/" + userID
}

// Attach starts conn and registers it, closing whatever it replaces.
func (r *Registry) Attach(channel string, conn *Connection) {
	key := registryKey(channel, conn.UserID)

	r.mu.Lock()
	previous := r.conns[key]
	r.conns[key] = conn
	r.mu.Unlock()

	conn.Start()

	if previous != nil {
		previous.Close(CloseReplaced, "session replaced")
	}
}

// Detach unregisters conn if it is still the current one for its key.
func (r *Registry) Detach(channel string, conn *Connection) {
	key := registryKey(channel, conn.UserID)

	r.mu.Lock()
	if current, ok := r.conns[key]; ok && current == conn {
		delete(r.conns, key)
	}
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Close terminates every tracked connection.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[string]*Connection)
	r.mu.Unlock()

	for _, c := range conns {
		c.Close(websocket.CloseGoingAway, "server shutdown")
	}
}
