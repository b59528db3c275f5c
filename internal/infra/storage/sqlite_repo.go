package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bringtheheat/server/internal/domain/combat"
	"github.com/bringtheheat/server/internal/events"
)

// SQLiteEventRepository persists the game event log. It satisfies
// events.EventPersister for the write-behind path.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

// Append writes one event. Called from the event log's write-behind
// goroutine, so it owns its context.
func (r *SQLiteEventRepository) Append(event events.GameEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO events (id, lobby, timestamp, event_type, actor_id, turn, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.Lobby, event.Timestamp, string(event.Type),
		event.ActorID, event.Turn, event.Detail,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...any) ([]events.GameEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.GameEvent
	for rows.Next() {
		var e events.GameEvent
		var typ string
		if err := rows.Scan(&e.ID, &e.Lobby, &e.Timestamp, &typ, &e.ActorID, &e.Turn, &e.Detail); err != nil {
			return nil, err
		}
		e.Type = events.EventType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteEventRepository) GetByLobby(ctx context.Context, code string) ([]events.GameEvent, error) {
	query := `SELECT id, lobby, timestamp, event_type, actor_id, turn, detail FROM events WHERE lobby = ? ORDER BY timestamp ASC`
	return r.getMany(ctx, query, code)
}

func (r *SQLiteEventRepository) GetByActorID(ctx context.Context, code, actorID string) ([]events.GameEvent, error) {
	query := `SELECT id, lobby, timestamp, event_type, actor_id, turn, detail FROM events WHERE lobby = ? AND actor_id = ? ORDER BY timestamp ASC`
	return r.getMany(ctx, query, code, actorID)
}

func (r *SQLiteEventRepository) GetByEventType(ctx context.Context, code string, eventType events.EventType) ([]events.GameEvent, error) {
	query := `SELECT id, lobby, timestamp, event_type, actor_id, turn, detail FROM events WHERE lobby = ? AND event_type = ? ORDER BY timestamp ASC`
	return r.getMany(ctx, query, code, string(eventType))
}

// ---------------------------------------------------------
// SQLiteRunRepository
// ---------------------------------------------------------

// RunResult is the durable record of one finished run.
type RunResult struct {
	ID           string                   `json:"id"`
	Lobby        string                   `json:"lobby"`
	FinishedAt   time.Time                `json:"finished_at"`
	Outcome      string                   `json:"outcome"` // "victory" loops>0, "defeat"
	Loops        int                      `json:"loops"`
	NodesCleared int                      `json:"nodes_cleared"`
	Party        map[string]combat.Player `json:"party"`
}

// SQLiteRunRepository stores finished-run summaries for the hall of fame.
type SQLiteRunRepository struct {
	db *sql.DB
}

func NewSQLiteRunRepository(db *sql.DB) *SQLiteRunRepository {
	return &SQLiteRunRepository{db: db}
}

func (r *SQLiteRunRepository) Record(ctx context.Context, result RunResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	partyBytes, err := json.Marshal(result.Party)
	if err != nil {
		return fmt.Errorf("failed to marshal party: %w", err)
	}

	query := `
		INSERT INTO run_results (id, lobby, finished_at, outcome, loops, nodes_cleared, party_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		result.ID, result.Lobby, result.FinishedAt, result.Outcome,
		result.Loops, result.NodesCleared, string(partyBytes),
	)
	if err != nil {
		return fmt.Errorf("failed to record run result: %w", err)
	}
	return nil
}

func (r *SQLiteRunRepository) GetByLobby(ctx context.Context, code string) ([]RunResult, error) {
	query := `SELECT id, lobby, finished_at, outcome, loops, nodes_cleared, party_json FROM run_results WHERE lobby = ? ORDER BY finished_at ASC`
	rows, err := r.db.QueryContext(ctx, query, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunResult
	for rows.Next() {
		var res RunResult
		var partyStr string
		if err := rows.Scan(&res.ID, &res.Lobby, &res.FinishedAt, &res.Outcome, &res.Loops, &res.NodesCleared, &partyStr); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(partyStr), &res.Party); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// DeepestRuns returns the best finished runs by loops cleared.
func (r *SQLiteRunRepository) DeepestRuns(ctx context.Context, limit int) ([]RunResult, error) {
	query := `SELECT id, lobby, finished_at, outcome, loops, nodes_cleared, party_json FROM run_results ORDER BY loops DESC, nodes_cleared DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunResult
	for rows.Next() {
		var res RunResult
		var partyStr string
		if err := rows.Scan(&res.ID, &res.Lobby, &res.FinishedAt, &res.Outcome, &res.Loops, &res.NodesCleared, &partyStr); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(partyStr), &res.Party); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
