package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"emotional-cup-backend/internal/room"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 16
)

// StateMessage is pushed to websocket clients on every committed change.
type StateMessage struct {
	Type   string      `json:"type"`
	Origin room.Origin `json:"origin,omitempty"`
	State  room.State  `json:"state"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans room changes out to connected presentation clients.
type Hub struct {
	mu       sync.Mutex
	clients  map[*wsClient]struct{}
	upgrader websocket.Upgrader
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The UI may be served from a different origin than the daemon.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// OnChange is a room change listener.
func (h *Hub) OnChange(c room.Change) {
	msg, err := json.Marshal(StateMessage{Type: "state", Origin: c.Origin, State: c.Next})
	if err != nil {
		log.Printf("Hub: failed to encode state: %v", err)
		return
	}
	h.Broadcast(msg)
}

// Broadcast queues msg for every client. Clients that cannot keep up are
// disconnected.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		select {
		case cl.send <- msg:
		default:
			log.Println("Hub: dropping slow websocket client")
			h.removeLocked(cl)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		h.removeLocked(cl)
	}
}

func (h *Hub) removeLocked(cl *wsClient) {
	if _, ok := h.clients[cl]; !ok {
		return
	}
	delete(h.clients, cl)
	close(cl.send)
}

func (h *Hub) remove(cl *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(cl)
}

// ServeWS upgrades the request and streams state messages, starting with the
// current snapshot.
func (h *Hub) ServeWS(snapshot func() room.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("Hub: failed to upgrade: %v", err)
			return
		}

		cl := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}

		// Registered before the snapshot is taken, and seeded before any
		// broadcast can reach it.
		h.mu.Lock()
		h.clients[cl] = struct{}{}
		initial, err := json.Marshal(StateMessage{Type: "state", State: snapshot()})
		if err != nil {
			delete(h.clients, cl)
			h.mu.Unlock()
			conn.Close()
			return
		}
		cl.send <- initial
		h.mu.Unlock()

		go h.writePump(cl)
		h.readPump(cl)
	}
}

// readPump discards client input; it only tracks liveness.
func (h *Hub) readPump(cl *wsClient) {
	defer func() {
		h.remove(cl)
		cl.conn.Close()
	}()
	cl.conn.SetReadLimit(maxMessageSize)
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(cl *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
