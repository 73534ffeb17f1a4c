package wsapi

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/iptvgw/gateway/internal/activeuser"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades r to a WebSocket connection and serves it until
// the client disconnects. Mount at /ws.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	NewClient(h, conn).Serve()
}

// ActiveUserListener returns an activeuser.Event handler that
// translates user-admission events into wsapi broadcasts, for wiring
// into activeuser.Manager.OnEvent.
func ActiveUserListener(h *Hub) func(activeuser.Event) {
	return func(e activeuser.Event) {
		var kind string
		switch e.Kind {
		case activeuser.EventConnected:
			kind = "Connected"
		case activeuser.EventDisconnected:
			kind = "Disconnected"
		case activeuser.EventConnections:
			kind = "Connections"
		default:
			return
		}
		h.Broadcast(Event{
			Type: EventActiveUser,
			Data: ActiveUserData{Kind: kind, Username: e.Username, Count: e.Count, Total: e.Total},
		})
	}
}
