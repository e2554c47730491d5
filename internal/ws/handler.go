package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/playmatatu/poolphys/internal/game"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are checked by middleware.WebSocketCORSCheck
	},
}

// Client represents a connected WebSocket viewer. Clients that connected
// with a valid operator or table token may also drive the table.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	clientID string
	tableID  string
	operator string // empty for plain viewers
	ip       string
	route    string
	send     chan []byte
}

// auditFunc records an action a client took on its table.
type auditFunc func(actor, ip, route, action string, details map[string]interface{}, success bool)

// Hub maintains the set of active clients grouped by table
type Hub struct {
	manager    *game.SessionManager
	clients    map[string]*Client            // clientID -> Client
	tableRooms map[string]map[string]*Client // tableID -> clientID -> Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	audit      auditFunc
	mu         sync.RWMutex
}

// NewHub creates a new Hub serving tables from sm
func NewHub(sm *game.SessionManager) *Hub {
	return &Hub{
		manager:    sm,
		clients:    make(map[string]*Client),
		tableRooms: make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Message types
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// BroadcastToTable sends a message to every viewer of a table
func (h *Hub) BroadcastToTable(tableID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if room, exists := h.tableRooms[tableID]; exists {
		for _, client := range room {
			select {
			case client.send <- data:
			default:
				// Client's buffer is full
				log.Printf("Client send buffer full for %s on table %s, dropping message", client.clientID, tableID)
			}
		}
	}
}

// SendToClient sends a message to a single viewer
func (h *Hub) SendToClient(clientID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if client, exists := h.clients[clientID]; exists {
		select {
		case client.send <- data:
		default:
			log.Printf("[WS] SendToClient dropped message for %s (buffer full)", clientID)
		}
	}
}

// RoomSize reports how many viewers are watching a table
func (h *Hub) RoomSize(tableID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tableRooms[tableID])
}

// BroadcastFrame streams intermediate ball positions while a shot runs.
func (h *Hub) BroadcastFrame(tableID string, frame int, balls []game.BallState) {
	h.BroadcastToTable(tableID, map[string]interface{}{
		"type":  "frame",
		"frame": frame,
		"balls": balls,
	})
}

// BroadcastShot sends the settled outcome of a shot.
func (h *Hub) BroadcastShot(tableID string, result *game.ShotResult) {
	h.BroadcastToTable(tableID, map[string]interface{}{
		"type":   "shot_result",
		"result": result,
	})
}

// BroadcastState sends the full table after placement, reset or close.
func (h *Hub) BroadcastState(tableID string, snap game.SessionSnapshot) {
	h.BroadcastToTable(tableID, tableStateMessage(snap))
}

func tableStateMessage(snap game.SessionSnapshot) map[string]interface{} {
	return map[string]interface{}{
		"type":         "table_state",
		"table_id":     snap.ID,
		"status":       snap.Status,
		"rack":         snap.Rack,
		"shot_number":  snap.ShotNumber,
		"ball_in_hand": snap.BallInHand,
		"balls":        snap.Balls,
	}
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error for %s: %v", c.clientID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("WebSocket ping error for %s: %v", c.clientID, err)
				return
			}
		}
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(message string) {
	c.hub.SendToClient(c.clientID, map[string]interface{}{
		"type":    "error",
		"message": message,
	})
}
