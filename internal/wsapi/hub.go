// Package wsapi implements the /ws event hub (spec §6): ServerStatus,
// ActiveUser(Connected|Disconnected|Connections), ActiveProvider(name,
// count), ConfigChange, and PlaylistUpdate(State|Progress) events,
// broadcast to every connected client over a version-prefixed,
// length-delimited JSON protocol.
package wsapi

import (
	"log"
	"sort"
	"sync"
)

// EventType names one of the wire event kinds spec §6 defines.
type EventType string

const (
	EventServerStatus   EventType = "ServerStatus"
	EventActiveUser     EventType = "ActiveUser"
	EventActiveProvider EventType = "ActiveProvider"
	EventConfigChange   EventType = "ConfigChange"
	EventPlaylistUpdate EventType = "PlaylistUpdate"
)

// Event is one broadcastable message; Data's shape depends on Type.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// ActiveUserData is Event.Data for EventActiveUser.
type ActiveUserData struct {
	Kind     string `json:"kind"` // "Connected", "Disconnected", "Connections"
	Username string `json:"username"`
	Count    int    `json:"count,omitempty"`
	Total    int    `json:"total,omitempty"`
}

// ActiveProviderData is Event.Data for EventActiveProvider.
type ActiveProviderData struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// PlaylistUpdateData is Event.Data for EventPlaylistUpdate.
type PlaylistUpdateData struct {
	Target   string `json:"target"`
	State    string `json:"state,omitempty"`    // "running", "completed", "failed"
	Progress int    `json:"progress,omitempty"` // 0-100, when State == "running"
	Error    string `json:"error,omitempty"`
}

// ServerStatusData is Event.Data for EventServerStatus.
type ServerStatusData struct {
	Status string `json:"status"` // "starting", "ready", "shutting_down"
}

// Hub fans Events out to every registered client, dropping clients
// that fall behind rather than blocking the broadcaster.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	broadcast  chan Event
	Register   chan *Client
	Unregister chan *Client
}

// NewHub builds an idle Hub; call Run to start its dispatch loop.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Event, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run dispatches registrations and broadcasts until done is closed,
// closing every connected client's send channel on exit.
func (h *Hub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			h.closeAll()
			return
		case c := <-h.Register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case ev := <-h.broadcast:
			h.dispatch(ev)
		}
	}
}

// Broadcast enqueues ev for delivery to all connected clients. It
// never blocks; if the hub's internal queue is full the event is
// dropped and logged.
func (h *Hub) Broadcast(ev Event) {
	select {
	case h.broadcast <- ev:
	default:
		log.Printf("wsapi: broadcast queue full, dropping %s event", ev.Type)
	}
}

func (h *Hub) dispatch(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, c := range clients {
		select {
		case c.send <- ev:
		default:
			log.Printf("wsapi: client %d send buffer full, disconnecting", c.id)
			close(c.send)
			delete(h.clients, c)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
