package handler

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/roundscope/internal/auth"
)

// Events the hub sends on its own. Analysis events are defined by the
// service layer.
const (
	EventConnected  = "connected"
	EventSubscribed = "subscribed"
	EventError      = "error"
)

// WSEvent is the envelope for all WebSocket messages.
type WSEvent struct {
	Type        string `json:"type"`
	RecordingID string `json:"recording_id,omitempty"`
	Map         string `json:"map,omitempty"`
	Data        any    `json:"data"`
}

// ClientMessage is the envelope for messages sent from the client. A
// subscription names either a recording or a map; Metrics, when set, limits
// frame events to those metrics.
type ClientMessage struct {
	Action      string   `json:"action"` // "subscribe" or "unsubscribe"
	RecordingID string   `json:"recording_id"`
	Map         string   `json:"map"`
	Metrics     []string `json:"metrics"`
}

// WSConn wraps a WebSocket connection with its client and map scope.
type WSConn struct {
	conn     *websocket.Conn
	clientID string
	scope    auth.Scope
	send     chan []byte
}

// reply queues ev for c alone, dropping it if the buffer is full.
func (c *WSConn) reply(ev WSEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func recordingTopic(id string) string { return "recording:" + id }
func mapTopic(name string) string     { return "map:" + name }

// filter is the metric filter of one subscription; nil accepts every metric.
type filter []string

func (f filter) accepts(metric string) bool {
	return metric == "" || len(f) == 0 || slices.Contains(f, metric)
}

// Hub manages WebSocket connections and their recording and map
// subscriptions.
type Hub struct {
	mu          sync.RWMutex
	connections map[*WSConn]bool
	topics      map[string]map[*WSConn]filter // topic -> connection -> metric filter
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*WSConn]bool),
		topics:      make(map[string]map[*WSConn]filter),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true
}

// Unregister removes a connection from the hub and all its subscriptions.
func (h *Hub) Unregister(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connections[c] {
		return
	}
	delete(h.connections, c)
	for topic, conns := range h.topics {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.topics, topic)
		}
	}
	close(c.send)
}

// Subscribe adds a connection to a topic, replacing any earlier metric
// filter it had there.
func (h *Hub) Subscribe(c *WSConn, topic string, metrics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*WSConn]filter)
	}
	h.topics[topic][c] = filter(slices.Clone(metrics))
}

// Unsubscribe removes a connection from a topic.
func (h *Hub) Unsubscribe(c *WSConn, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.topics[topic]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.topics, topic)
		}
	}
}

// broadcast sends event to every connection subscribed to one of topics whose
// filter accepts metric. A connection subscribed to several topics receives
// the event once. Slow clients drop events rather than block analysis.
func (h *Hub) broadcast(event WSEvent, metric string, topics ...string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := make(map[*WSConn]bool)
	for _, topic := range topics {
		for c, f := range h.topics[topic] {
			if f.accepts(metric) {
				targets[c] = true
			}
		}
	}
	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("recording", event.RecordingID).Msg("Failed to marshal WebSocket event")
		return
	}
	for c := range targets {
		select {
		case c.send <- data:
		default:
			log.Warn().Str("client", c.clientID).Str("recording", event.RecordingID).Msg("Dropping WebSocket message, buffer full")
		}
	}
}

// ConnectionCount returns the total number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// SubscriberCount returns the number of connections subscribed to a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
