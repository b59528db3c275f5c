// Package network - replay.go
// JSON export of a run's immutable event history, for post-game recaps
// and debugging desync reports.
package network

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/bringtheheat/server/internal/events"
	"github.com/bringtheheat/server/internal/platform/logger"
)

// ReplayHandler provides the run replay API.
type ReplayHandler struct {
	eventLog *events.EventLog
	logger   *logger.Logger
}

// NewReplayHandler creates a new replay handler.
func NewReplayHandler(el *events.EventLog, log *logger.Logger) *ReplayHandler {
	return &ReplayHandler{eventLog: el, logger: log}
}

// ReplayEvent is one line of the public history.
type ReplayEvent struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Turn      int    `json:"turn"`
	Type      string `json:"type"`
	ActorID   string `json:"actor_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// ReplayResponse is the API response for a run replay.
type ReplayResponse struct {
	Lobby       string        `json:"lobby"`
	TotalEvents int           `json:"total_events"`
	FilteredBy  string        `json:"filtered_by,omitempty"`
	GeneratedAt string        `json:"generated_at"`
	Events      []ReplayEvent `json:"events"`
}

// HandleReplay returns the event history for a lobby.
// GET /api/replay?lobby=XXXX&turn=N&type=ATTACK
func (rh *ReplayHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	code := r.URL.Query().Get("lobby")
	if code == "" {
		rh.jsonError(w, "Missing lobby", http.StatusBadRequest)
		return
	}

	turnStr := r.URL.Query().Get("turn")
	eventType := r.URL.Query().Get("type")

	all := rh.eventLog.GetByLobby(code)

	var out []ReplayEvent
	filterDesc := ""
	for _, e := range all {
		if turnStr != "" {
			turn, _ := strconv.Atoi(turnStr)
			if e.Turn != turn {
				continue
			}
			filterDesc = "Turn " + turnStr
		}
		if eventType != "" && string(e.Type) != eventType {
			continue
		}
		out = append(out, ReplayEvent{
			ID:        e.ID,
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Turn:      e.Turn,
			Type:      string(e.Type),
			ActorID:   e.ActorID,
			Detail:    e.Detail,
		})
	}
	if eventType != "" {
		if filterDesc != "" {
			filterDesc += ", "
		}
		filterDesc += "Type " + eventType
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ReplayResponse{
		Lobby:       code,
		TotalEvents: len(out),
		FilteredBy:  filterDesc,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Events:      out,
	})
}

func (rh *ReplayHandler) jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
