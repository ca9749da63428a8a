package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/roundscope/internal/auth"
	"github.com/freeeve/roundscope/internal/model"
	"github.com/freeeve/roundscope/internal/service"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 54 * time.Second // Must be less than pongWait
	maxMsgSize  = 4096
	sendBufSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS handled by middleware; tighten in production
	},
}

// SubscriptionTargets resolves what a WebSocket client asks to follow.
// *service.AnalysisService implements it.
type SubscriptionTargets interface {
	Recording(ctx context.Context, id string) (*model.Recording, error)
	HasMap(mapName string) bool
}

// WSHandler handles WebSocket connections.
type WSHandler struct {
	hub     *Hub
	jwtMgr  *auth.JWTManager
	targets SubscriptionTargets
}

// NewWSHandler creates a WSHandler.
func NewWSHandler(hub *Hub, jwtMgr *auth.JWTManager, targets SubscriptionTargets) *WSHandler {
	return &WSHandler{hub: hub, jwtMgr: jwtMgr, targets: targets}
}

// ServeWS handles GET /api/v1/ws and upgrades to WebSocket.
// Auth via ?token= query parameter (WebSocket can't send headers).
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, `{"error":"missing token parameter"}`, http.StatusUnauthorized)
		return
	}

	claims, err := h.jwtMgr.ValidateToken(tokenStr)
	if err != nil {
		http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSConn{
		conn:     conn,
		clientID: claims.ClientID,
		scope:    claims.Maps,
		send:     make(chan []byte, sendBufSize),
	}
	h.hub.Register(client)

	// Send a welcome message so the client can confirm the connection is live.
	welcome, _ := json.Marshal(WSEvent{Type: EventConnected, Data: map[string]any{}})
	client.send <- welcome

	go h.writePump(client)
	go h.readPump(client)

	log.Info().Str("client", claims.ClientID).Int("total", h.hub.ConnectionCount()).Msg("WebSocket client connected")
}

// readPump reads messages from the WebSocket connection.
func (h *WSHandler) readPump(c *WSConn) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
		log.Info().Str("client", c.clientID).Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("client", c.clientID).Msg("WebSocket unexpected close")
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.reply(WSEvent{Type: EventError, Data: map[string]string{"error": "invalid message"}})
			continue
		}
		h.handleMessage(context.Background(), c, msg)
	}
}

// handleMessage applies a subscribe or unsubscribe request. Subscriptions are
// checked against stored recordings, loaded maps and the client's scope, and
// answered with a subscribed or error event.
func (h *WSHandler) handleMessage(ctx context.Context, c *WSConn, msg ClientMessage) {
	fail := func(text string) {
		c.reply(WSEvent{Type: EventError, RecordingID: msg.RecordingID, Map: msg.Map, Data: map[string]string{"error": text}})
	}

	var topic, mapName string
	switch {
	case msg.RecordingID != "":
		topic = recordingTopic(msg.RecordingID)
		if msg.Action != "subscribe" {
			break
		}
		rec, err := h.targets.Recording(ctx, msg.RecordingID)
		if errors.Is(err, service.ErrRecordingNotFound) {
			fail("recording not found")
			return
		}
		if err != nil {
			log.Error().Err(err).Str("recording", msg.RecordingID).Msg("WebSocket subscription lookup failed")
			fail("internal error")
			return
		}
		mapName = rec.MapName
	case msg.Map != "":
		topic, mapName = mapTopic(msg.Map), msg.Map
		if msg.Action == "subscribe" && !h.targets.HasMap(msg.Map) {
			fail("map not found")
			return
		}
	default:
		fail("recording_id or map is required")
		return
	}

	switch msg.Action {
	case "subscribe":
		if !c.scope.Allows(mapName) {
			fail("map is outside this client's scope")
			return
		}
		h.hub.Subscribe(c, topic, msg.Metrics)
		c.reply(WSEvent{Type: EventSubscribed, RecordingID: msg.RecordingID, Map: mapName, Data: map[string]any{"metrics": msg.Metrics}})
	case "unsubscribe":
		h.hub.Unsubscribe(c, topic)
	default:
		fail("unknown action")
	}
}

// writePump writes messages to the WebSocket connection.
func (h *WSHandler) writePump(c *WSConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Drain queued messages into the same write
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
