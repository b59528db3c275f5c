// Package network - leaderboard.go
// Hall of fame API: the deepest finished runs, ranked by loops then
// nodes cleared.
package network

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/bringtheheat/server/internal/infra/storage"
	"github.com/bringtheheat/server/internal/platform/logger"
)

const defaultLeaderboardSize = 10

// LeaderboardHandler provides the hall of fame API.
type LeaderboardHandler struct {
	runs   *storage.SQLiteRunRepository
	logger *logger.Logger
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(runs *storage.SQLiteRunRepository, log *logger.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{runs: runs, logger: log}
}

// LeaderboardEntry is one ranked run.
type LeaderboardEntry struct {
	Rank         int      `json:"rank"`
	Lobby        string   `json:"lobby"`
	Outcome      string   `json:"outcome"`
	Loops        int      `json:"loops"`
	NodesCleared int      `json:"nodes_cleared"`
	Party        []string `json:"party"`
	FinishedAt   string   `json:"finished_at"`
}

// LeaderboardResponse is the API response for the hall of fame.
type LeaderboardResponse struct {
	GeneratedAt string             `json:"generated_at"`
	Entries     []LeaderboardEntry `json:"entries"`
}

// HandleLeaderboard returns the deepest runs, best first.
// GET /api/leaderboard?limit=N
func (lh *LeaderboardHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		lh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultLeaderboardSize
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 100 {
			lh.jsonError(w, "Bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	results, err := lh.runs.DeepestRuns(r.Context(), limit)
	if err != nil {
		lh.logger.Error("leaderboard query failed: " + err.Error())
		lh.jsonError(w, "Internal error", http.StatusInternalServerError)
		return
	}

	entries := make([]LeaderboardEntry, 0, len(results))
	for i, res := range results {
		party := make([]string, 0, len(res.Party))
		for _, p := range res.Party {
			party = append(party, p.Name)
		}
		sort.Strings(party)
		entries = append(entries, LeaderboardEntry{
			Rank:         i + 1,
			Lobby:        res.Lobby,
			Outcome:      res.Outcome,
			Loops:        res.Loops,
			NodesCleared: res.NodesCleared,
			Party:        party,
			FinishedAt:   res.FinishedAt.UTC().Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(LeaderboardResponse{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Entries:     entries,
	})
}

func (lh *LeaderboardHandler) jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
