// Package events provides the append-only audit log of game events.
// The store document holds the player-facing battle log; this log is the
// server-side record feeding the websocket broadcast and the write-behind
// sqlite persister.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a game event.
type EventType string

const (
	EventTypeLobbyCreated  EventType = "LOBBY_CREATED"
	EventTypePlayerJoined  EventType = "PLAYER_JOINED"
	EventTypeGameStarted   EventType = "GAME_STARTED"
	EventTypeVoteCast      EventType = "VOTE_CAST"
	EventTypeNodeResolved  EventType = "NODE_RESOLVED"
	EventTypeBattleStarted EventType = "BATTLE_STARTED"
	EventTypeCharge        EventType = "CHARGE"
	EventTypeDraw          EventType = "DRAW"
	EventTypeAttack        EventType = "ATTACK"
	EventTypeBust          EventType = "BUST"
	EventTypeEnemyTurn     EventType = "ENEMY_TURN"
	EventTypeForcedAction  EventType = "FORCED_ACTION"
	EventTypeVictory       EventType = "VICTORY"
	EventTypeDefeat        EventType = "DEFEAT"
	EventTypeRevival       EventType = "REVIVAL"
	EventTypePurchase      EventType = "PURCHASE"
	EventTypeEventChoice   EventType = "EVENT_CHOICE"
	EventTypeRest          EventType = "REST"
)

// GameEvent represents an immutable record of an action in the game.
type GameEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Lobby     string    `json:"lobby"`
	ActorID   string    `json:"actor_id"`
	Turn      int       `json:"turn"`
	Detail    string    `json:"detail,omitempty"`
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// EventLog is the in-memory append-only log of game events.
type EventLog struct {
	mu        sync.RWMutex
	events    []GameEvent
	persister EventPersister
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister) *EventLog {
	return &EventLog{
		events:    make([]GameEvent, 0),
		persister: persister,
	}
}

// Append adds a new event to the log. Events are immutable once appended.
func (el *EventLog) Append(event GameEvent) {
	el.mu.Lock()
	el.events = append(el.events, event)
	el.mu.Unlock()

	if el.persister != nil {
		// Write-behind; the in-memory log stays authoritative for reads.
		go func(e GameEvent) {
			_ = el.persister.Append(e)
		}(event)
	}
}

// Replay returns the full event history.
func (el *EventLog) Replay() []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	out := make([]GameEvent, len(el.events))
	copy(out, el.events)
	return out
}

// GetByLobby returns all events for a lobby, oldest first.
func (el *EventLog) GetByLobby(code string) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	var out []GameEvent
	for _, e := range el.events {
		if e.Lobby == code {
			out = append(out, e)
		}
	}
	return out
}

// New builds a stamped event.
func New(t EventType, lobbyCode, actorID string, turn int, detail string) GameEvent {
	return GameEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Type:      t,
		Lobby:     lobbyCode,
		ActorID:   actorID,
		Turn:      turn,
		Detail:    detail,
	}
}
