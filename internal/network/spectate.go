// Package network - spectate.go
// Read-only REST bridge for stream overlays and waiting friends: a
// sanitized lobby snapshot that never leaks deck order.
package network

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/bringtheheat/server/internal/domain/lobby"
	"github.com/bringtheheat/server/internal/engine"
	"github.com/bringtheheat/server/internal/platform/logger"
)

// SpectatorBridge serves lobby snapshots to unauthenticated viewers.
type SpectatorBridge struct {
	engine *engine.Engine
	logger *logger.Logger
}

// NewSpectatorBridge creates the spectator handler.
func NewSpectatorBridge(eng *engine.Engine, log *logger.Logger) *SpectatorBridge {
	return &SpectatorBridge{engine: eng, logger: log}
}

// SpectatorPlayer is the public view of one party member.
type SpectatorPlayer struct {
	Name     string `json:"name"`
	HP       int    `json:"hp"`
	MaxHP    int    `json:"maxHp"`
	Mana     int    `json:"mana"`
	Sum      int    `json:"sum"`
	Charge   int    `json:"charge"`
	Status   string `json:"status"`
	Gold     int    `json:"gold"`
	HandSize int    `json:"handSize"`
	DeckSize int    `json:"deckSize"`
}

// SpectatorView is the sanitized snapshot for one lobby.
type SpectatorView struct {
	Code        string                     `json:"code"`
	Status      string                     `json:"status"`
	Loop        int                        `json:"loop"`
	CurrentNode string                     `json:"currentNode,omitempty"`
	Players     map[string]SpectatorPlayer `json:"players"`
	Battle      *SpectatorBattle           `json:"battle,omitempty"`
	GeneratedAt string                     `json:"generatedAt"`
}

// SpectatorBattle is the public battle summary.
type SpectatorBattle struct {
	Phase        string            `json:"phase"`
	Turn         int               `json:"turn"`
	PhaseEndTime int64             `json:"phaseEndTime"`
	Debuff       string            `json:"debuff,omitempty"`
	Monsters     []SpectatorTarget `json:"monsters"`
	Log          []string          `json:"log"`
}

// SpectatorTarget is one monster's public state.
type SpectatorTarget struct {
	Name  string `json:"name"`
	HP    int    `json:"hp"`
	MaxHP int    `json:"maxHp"`
}

// HandleSpectate returns the sanitized snapshot for a lobby.
// GET /api/spectate/{code}
func (sb *SpectatorBridge) HandleSpectate(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if code == "" {
		sb.jsonError(w, "Missing lobby code", http.StatusBadRequest)
		return
	}

	l, err := sb.engine.GetLobby(r.Context(), code)
	if err != nil {
		sb.jsonError(w, "Lobby not found", http.StatusNotFound)
		return
	}

	view := SpectatorView{
		Code:        code,
		Status:      string(l.Game.Status),
		Loop:        l.Game.Loop,
		CurrentNode: l.Game.CurrentNodeID,
		Players:     map[string]SpectatorPlayer{},
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	view.Battle = spectatorBattle(&l)

	players := l.Players
	if l.Battle != nil {
		players = l.Battle.Players
	}
	for id, p := range players {
		view.Players[id] = SpectatorPlayer{
			Name:     p.Name,
			HP:       p.HP,
			MaxHP:    p.MaxHP,
			Mana:     p.Mana,
			Sum:      p.Sum,
			Charge:   p.Charge,
			Status:   string(p.Status),
			Gold:     p.Gold,
			HandSize: len(p.Hand),
			DeckSize: len(p.Deck),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(view)
}

func spectatorBattle(l *lobby.Lobby) *SpectatorBattle {
	b := l.Battle
	if b == nil {
		return nil
	}
	out := &SpectatorBattle{
		Phase:        string(b.Phase),
		Turn:         b.Turn,
		PhaseEndTime: b.PhaseEndTime,
		Debuff:       b.Debuff.Describe(),
	}
	for _, m := range b.Monsters {
		out.Monsters = append(out.Monsters, SpectatorTarget{Name: m.Name, HP: m.HP, MaxHP: m.MaxHP})
	}
	for _, entry := range b.Log {
		out.Log = append(out.Log, entry.Message)
	}
	return out
}

func (sb *SpectatorBridge) jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
