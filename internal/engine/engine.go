// Package engine is the host-authoritative orchestrator. It owns every
// run-level state transition (lobby, map vote, node resolution, battle
// phases, shop, events) and performs them as store transactions so that
// concurrent clients and redundant host wake-ups collapse into no-ops.
package engine

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/bringtheheat/server/internal/domain/combat"
	"github.com/bringtheheat/server/internal/domain/lobby"
	"github.com/bringtheheat/server/internal/events"
	"github.com/bringtheheat/server/internal/platform/logger"
	"github.com/bringtheheat/server/internal/platform/metrics"
	"github.com/bringtheheat/server/internal/store"
)

// tickInterval drives the deadline poller for active runs.
const tickInterval = 1 * time.Second

// RunSummary describes a finished run for durable storage.
type RunSummary struct {
	Lobby        string
	Outcome      string // "victory" or "defeat"
	Loops        int
	NodesCleared int
	Party        map[string]combat.Player
}

// RunRecorder persists finished-run summaries. Optional; wired by main.
type RunRecorder interface {
	Record(ctx context.Context, run RunSummary) error
}

// Engine wires the pure domain rules to the shared store. One Engine
// serves every lobby on this server; each active run gets a watch loop.
type Engine struct {
	store   store.Store
	log     *logger.Logger
	events  *events.EventLog
	metrics *metrics.Collector
	rng     *rand.Rand
	runs    RunRecorder

	mu    sync.Mutex
	loops map[string]*runLoop
}

// SetRunRecorder wires durable finished-run storage.
func (e *Engine) SetRunRecorder(rec RunRecorder) { e.runs = rec }

// recordRun writes a finished-run summary behind the hot path.
func (e *Engine) recordRun(run RunSummary) {
	if e.runs == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.runs.Record(ctx, run); err != nil {
			e.log.With("lobby", run.Lobby).Warn("run record failed: " + err.Error())
		}
	}()
}

// runLoop is the per-lobby host watcher: a store subscription plus a
// deadline ticker feeding one evaluation goroutine.
type runLoop struct {
	cancel      func()
	unsubscribe func()
	wake        chan struct{}
}

// New builds an engine. The seed makes every random decision of the
// server reproducible in tests.
func New(st store.Store, log *logger.Logger, evlog *events.EventLog, mets *metrics.Collector, seed int64) *Engine {
	return &Engine{
		store:   st,
		log:     log,
		events:  evlog,
		metrics: mets,
		rng:     rand.New(&lockedSource{src: rand.NewSource(seed)}),
		loops:   make(map[string]*runLoop),
	}
}

// lockedSource makes a rand.Source safe for use from transaction
// callbacks and timer goroutines at once.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}

// Store path layout under each lobby document.

func lobbyPath(code string) string { return "lobbies/" + code }

func battlePath(code string) string { return lobbyPath(code) + "/battle" }

func battlePlayerPath(code, playerID string) string {
	return battlePath(code) + "/players/" + playerID
}

// WatchLobby registers fn for snapshot pushes of one lobby document.
// Returns the unsubscribe func.
func (e *Engine) WatchLobby(code string, fn func(snapshot json.RawMessage)) func() {
	return e.store.Subscribe(lobbyPath(code), fn)
}

// GetLobby reads the full lobby document.
func (e *Engine) GetLobby(ctx context.Context, code string) (lobby.Lobby, error) {
	var l lobby.Lobby
	err := e.store.Get(ctx, lobbyPath(code), &l)
	return l, err
}

// ensureLoop starts the host watcher for a lobby if it is not running.
func (e *Engine) ensureLoop(code string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.loops[code]; ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	loop := &runLoop{cancel: cancel, wake: make(chan struct{}, 1)}
	loop.unsubscribe = e.store.Subscribe(lobbyPath(code), func(json.RawMessage) {
		select {
		case loop.wake <- struct{}{}:
		default:
		}
	})
	e.loops[code] = loop

	go e.runHostLoop(ctx, code, loop)
	e.log.With("lobby", code).Info("host loop started")
}

// stopLoop tears the watcher down once the run is over.
func (e *Engine) stopLoop(code string) {
	e.mu.Lock()
	loop, ok := e.loops[code]
	if ok {
		delete(e.loops, code)
	}
	e.mu.Unlock()
	if !ok {
		return
	}
	loop.unsubscribe()
	loop.cancel()
	e.log.With("lobby", code).Info("host loop stopped")
}

// Close stops every active watcher.
func (e *Engine) Close() {
	e.mu.Lock()
	codes := make([]string, 0, len(e.loops))
	for code := range e.loops {
		codes = append(codes, code)
	}
	e.mu.Unlock()
	for _, code := range codes {
		e.stopLoop(code)
	}
}

// runHostLoop re-evaluates the run on every document change and once a
// second for deadlines. Evaluations are idempotent: each transition is
// a guarded transaction, so a duplicate wake-up writes nothing.
func (e *Engine) runHostLoop(ctx context.Context, code string, loop *runLoop) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-loop.wake:
		case <-ticker.C:
		}
		if done := e.evaluate(ctx, code); done {
			go e.stopLoop(code)
			return
		}
	}
}

// evaluate inspects the current document and drives whichever host
// transition is due. Returns true once the run no longer needs a loop.
func (e *Engine) evaluate(ctx context.Context, code string) bool {
	l, err := e.GetLobby(ctx, code)
	if err != nil {
		if err == store.ErrNotFound {
			return true
		}
		e.log.With("lobby", code).Error("host loop read failed: " + err.Error())
		return false
	}

	switch l.Game.Status {
	case lobby.StatusDefeat:
		return true
	case lobby.StatusBattle:
		e.evaluateBattle(ctx, code, &l)
	case lobby.StatusEvent:
		e.evaluateEvent(ctx, code, &l)
	case lobby.StatusVictory:
		if len(l.Rewards) == 0 {
			if err := e.returnToMap(ctx, code); err != nil {
				e.log.With("lobby", code).Warn("return to map failed: " + err.Error())
			}
		}
	}
	return false
}

// now is the single clock read used for deadlines, in unix millis.
func nowMillis() int64 { return time.Now().UnixMilli() }
