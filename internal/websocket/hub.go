package websocket

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

var ErrClientClosed = errors.New("client is closed")

// Conn is the hub's view of a connected client
type Conn interface {
	ID() string
	UserID() string
	Send(data []byte) error
	Close() error
}

// Hub tracks live connections per user. It is safe for concurrent use.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Conn
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]Conn)}
}

// Register adds c to its user's room
func (h *Hub) Register(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.UserID()]
	if !ok {
		room = make(map[string]Conn)
		h.rooms[c.UserID()] = room
	}
	room[c.ID()] = c

	log.Debug().Str("user_id", c.UserID()).Str("client_id", c.ID()).Msg("websocket client registered")
}

// Unregister removes c; unknown clients are ignored
func (h *Hub) Unregister(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.UserID()]
	if !ok {
		return
	}
	if _, ok := room[c.ID()]; !ok {
		return
	}
	delete(room, c.ID())
	if len(room) == 0 {
		delete(h.rooms, c.UserID())
	}

	log.Debug().Str("user_id", c.UserID()).Str("client_id", c.ID()).Msg("websocket client unregistered")
}

// Publish sends event to every connection of userID without blocking the caller
func (h *Hub) Publish(userID string, event Event) {
	data, err := event.ToJSON()
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("event_type", event.Type).Msg("failed to encode event")
		return
	}

	h.mu.RLock()
	targets := make([]Conn, 0, len(h.rooms[userID]))
	for _, c := range h.rooms[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		go func(c Conn) {
			if err := c.Send(data); err != nil {
				log.Warn().Err(err).Str("user_id", userID).Str("client_id", c.ID()).Msg("failed to deliver event")
			}
		}(c)
	}
}

// ClientCount returns the number of connections held by userID
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

// TotalClientCount returns the number of connections across all users
func (h *Hub) TotalClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, room := range h.rooms {
		n += len(room)
	}
	return n
}
