package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/bringtheheat/server/internal/engine"
	"github.com/bringtheheat/server/internal/events"
	"github.com/bringtheheat/server/internal/platform/logger"
)

// Message is the envelope for every server-to-client frame.
type Message struct {
	Type      string `json:"type"` // "session", "state", "event", "error"
	Timestamp int64  `json:"timestamp"`
	Payload   any    `json:"payload,omitempty"`
}

// Hub maintains the set of active clients, grouped by lobby, and fans
// game events out to them.
type Hub struct {
	engine *engine.Engine

	mu         sync.Mutex
	clients    map[*Client]bool
	lobbies    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	logger     *logger.Logger
}

// NewHub initializes a new WebSocket Hub.
func NewHub(eng *engine.Engine, log *logger.Logger) *Hub {
	return &Hub{
		engine:     eng,
		clients:    make(map[*Client]bool),
		lobbies:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     log,
	}
}

// Run starts the Hub's main loop to handle client connections.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket Hub shutting down.")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("New WebSocket client connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.detachLocked(client)
				close(client.send)
				h.logger.Info("WebSocket client disconnected")
			}
			h.mu.Unlock()
		}
	}
}

// attach binds a client to a lobby room once its session is minted.
func (h *Hub) attach(client *Client, code string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(client)
	if h.lobbies[code] == nil {
		h.lobbies[code] = make(map[*Client]bool)
	}
	h.lobbies[code][client] = true
}

func (h *Hub) detachLocked(client *Client) {
	for code, room := range h.lobbies {
		if room[client] {
			delete(room, client)
			if len(room) == 0 {
				delete(h.lobbies, code)
			}
		}
	}
}

// BroadcastToLobby sends a message to every client in one lobby.
func (h *Hub) BroadcastToLobby(code string, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to serialize message for broadcast: " + err.Error())
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.lobbies[code] {
		select {
		case client.send <- payload:
		default:
			close(client.send)
			delete(h.clients, client)
			delete(h.lobbies[code], client)
		}
	}
}

// StartEventPoller spawns a goroutine that tails the EventLog and pushes
// new events into their lobby's room. The Hub stays decoupled from the
// engine's write path while seeing the same history.
func (h *Hub) StartEventPoller(ctx context.Context, eventLog *events.EventLog) {
	go func() {
		poll := time.NewTicker(200 * time.Millisecond)
		defer poll.Stop()

		seen := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-poll.C:
				all := eventLog.Replay()
				for _, ev := range all[seen:] {
					if ev.Lobby == "" {
						continue
					}
					h.BroadcastToLobby(ev.Lobby, Message{
						Type:      "event",
						Timestamp: time.Now().Unix(),
						Payload:   ev,
					})
				}
				seen = len(all)
			}
		}
	}()
}
