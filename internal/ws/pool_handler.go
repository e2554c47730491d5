package ws

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/poolphys/internal/config"
	"github.com/playmatatu/poolphys/internal/game"
	"github.com/playmatatu/poolphys/internal/middleware"
	"github.com/playmatatu/poolphys/internal/operator"
)

// Table-specific message data types
type TakeShotData struct {
	Angle   float64 `json:"angle"`
	Power   float64 `json:"power"`
	Screw   float64 `json:"screw"`
	English float64 `json:"english"`
}

type PlaceCueBallData struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// TableHub is the single hub for all tables served by this instance.
var TableHub *Hub

// StartHub creates the global hub for sm, wires it as the manager's
// broadcaster and starts its loop. Table actions are audited to db.
func StartHub(sm *game.SessionManager, db *sqlx.DB) *Hub {
	h := NewHub(sm)
	h.audit = func(actor, ip, route, action string, details map[string]interface{}, success bool) {
		operator.LogAction(db, actor, ip, route, action, details, success)
	}
	if sm != nil {
		sm.SetBroadcaster(h)
	}
	go h.Run()
	TableHub = h
	return h
}

// Stop ends the hub loop.
func (h *Hub) Stop() {
	close(h.done)
}

func newClientID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "v_" + hex.EncodeToString(b)
}

// HandleWebSocket upgrades a viewer connection for table :id. A valid
// operator JWT in access_token, or the table's own token in token, lets the
// connection drive the table too.
func HandleWebSocket(h *Hub, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h == nil || h.manager == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live updates unavailable"})
			return
		}

		tableID := c.Param("id")
		if _, err := h.manager.GetSession(c.Request.Context(), tableID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "table not found"})
			return
		}

		var operator string
		if token := c.Query("access_token"); token != "" {
			name, err := middleware.ParseToken(cfg, token)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			operator = name
		}
		if token := c.Query("token"); token != "" {
			if !h.manager.VerifyToken(c.Request.Context(), tableID, token) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid table token"})
				return
			}
			if operator == "" {
				operator = middleware.TableOwner(tableID)
			}
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade error: %v", err)
			return
		}

		client := &Client{
			hub:      h,
			conn:     conn,
			clientID: newClientID(),
			tableID:  tableID,
			operator: operator,
			ip:       c.ClientIP(),
			route:    c.FullPath(),
			send:     make(chan []byte, 256),
		}

		select {
		case h.register <- client:
		case <-h.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// Run processes registrations until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.clientID] = client
			if _, exists := h.tableRooms[client.tableID]; !exists {
				h.tableRooms[client.tableID] = make(map[string]*Client)
			}
			h.tableRooms[client.tableID][client.clientID] = client
			h.mu.Unlock()

			log.Printf("[WS] Viewer %s joined table %s (operator=%q)", client.clientID, client.tableID, client.operator)

			if s, err := h.manager.GetSession(context.Background(), client.tableID); err == nil {
				h.SendToClient(client.clientID, tableStateMessage(s.Snapshot()))
			} else {
				client.sendError("Table not found")
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[client.clientID]; ok && cur == client {
				delete(h.clients, client.clientID)
				if room, exists := h.tableRooms[client.tableID]; exists {
					delete(room, client.clientID)
					if len(room) == 0 {
						delete(h.tableRooms, client.tableID)
					}
				}
				close(client.send)
				log.Printf("[WS] Viewer %s left table %s", client.clientID, client.tableID)
			}
			h.mu.Unlock()

		case <-h.done:
			return
		}
	}
}

// readPump reads viewer messages.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error (unexpected) for %s: %v", c.clientID, err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError("Invalid message")
			continue
		}

		c.handleMessage(msg)
	}
}

// handleMessage processes incoming table messages.
func (c *Client) handleMessage(msg WSMessage) {
	ctx := context.Background()
	sm := c.hub.manager

	s, err := sm.GetSession(ctx, c.tableID)
	if err != nil {
		c.sendError("Table not found")
		return
	}

	switch msg.Type {
	case "get_state":
		c.hub.SendToClient(c.clientID, tableStateMessage(s.Snapshot()))

	case "take_shot":
		if c.operator == "" {
			c.sendError("Only operators can take shots")
			return
		}
		var data TakeShotData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("Invalid shot data")
			return
		}
		details := map[string]interface{}{"angle": data.Angle, "power": data.Power}
		// Frames and the result reach every viewer through the broadcaster
		result, err := sm.TakeShot(ctx, c.tableID, game.ShotParams{
			Angle:   data.Angle,
			Power:   data.Power,
			Screw:   data.Screw,
			English: data.English,
		})
		if err != nil {
			c.logAction("take_shot", details, false)
			c.sendError(err.Error())
			return
		}
		details["rack"] = result.Rack
		details["shot_number"] = result.ShotNumber
		c.logAction("take_shot", details, true)

	case "place_cue_ball":
		if c.operator == "" {
			c.sendError("Only operators can place the cue ball")
			return
		}
		var data PlaceCueBallData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("Invalid placement data")
			return
		}
		_, err := sm.PlaceCueBall(ctx, c.tableID, data.X, data.Z)
		c.logAction("place_cue_ball", map[string]interface{}{"x": data.X, "z": data.Z}, err == nil)
		if err != nil {
			c.sendError(err.Error())
		}

	case "reset":
		if c.operator == "" {
			c.sendError("Only operators can reset the table")
			return
		}
		_, err := sm.ResetSession(ctx, c.tableID)
		c.logAction("reset_table", map[string]interface{}{}, err == nil)
		if err != nil {
			c.sendError(err.Error())
		}

	default:
		c.sendError("Unknown message type")
	}
}

// logAction audits a table action taken over this connection, in the same
// shape the REST handlers use.
func (c *Client) logAction(action string, details map[string]interface{}, success bool) {
	if c.hub.audit == nil {
		return
	}
	details["table_id"] = c.tableID
	c.hub.audit(c.operator, c.ip, c.route, action, details, success)
}
