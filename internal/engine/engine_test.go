package engine

import (
	"context"
	"testing"
	"time"

	"github.com/bringtheheat/server/internal/domain/combat"
	"github.com/bringtheheat/server/internal/domain/lobby"
	"github.com/bringtheheat/server/internal/domain/monster"
	"github.com/bringtheheat/server/internal/events"
	"github.com/bringtheheat/server/internal/platform/logger"
	"github.com/bringtheheat/server/internal/platform/metrics"
	"github.com/bringtheheat/server/internal/store"
)

func newTestEngine(t *testing.T, seed int64) (*Engine, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	e := New(st, logger.NewTestLogger(), events.NewEventLog(nil), metrics.NewCollector(), seed)
	t.Cleanup(e.Close)
	return e, st
}

// setLobby writes a crafted lobby document straight into the store, so
// state-machine tests can start from an exact position without walking
// a whole run to get there.
func setLobby(t *testing.T, st *store.MemoryStore, code string, l lobby.Lobby) {
	t.Helper()
	if err := st.Set(context.Background(), lobbyPath(code), l); err != nil {
		t.Fatalf("seeding lobby failed: %v", err)
	}
}

func getLobby(t *testing.T, st *store.MemoryStore, code string) lobby.Lobby {
	t.Helper()
	var l lobby.Lobby
	if err := st.Get(context.Background(), lobbyPath(code), &l); err != nil {
		t.Fatalf("reading lobby failed: %v", err)
	}
	return l
}

func testMonster(hp int, tier monster.Tier) monster.Instance {
	return monster.Instance{
		ID: "m", Name: "Test Horror", HP: hp, MaxHP: 150,
		Attack: 5, HitChance: 0.5, Tier: tier, GoldMin: 10, GoldMax: 10,
	}
}

func testCombatant(name string, status combat.Status) combat.Player {
	return combat.Player{
		Name: name, HP: 100, MaxHP: 100, Mana: 100,
		DeckID: "deck1", Status: status,
	}
}

// captureRecorder collects finished-run summaries for assertion.
type captureRecorder struct {
	ch chan RunSummary
}

func (r *captureRecorder) Record(ctx context.Context, run RunSummary) error {
	r.ch <- run
	return nil
}

func waitSummary(t *testing.T, rec *captureRecorder) RunSummary {
	t.Helper()
	select {
	case run := <-rec.ch:
		return run
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for the run summary")
		return RunSummary{}
	}
}

func TestLockedSourceIsUsableConcurrently(t *testing.T) {
	e, _ := newTestEngine(t, 1)
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			for j := 0; j < 500; j++ {
				e.rng.Intn(100)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
}

func TestPathHelpers(t *testing.T) {
	if got := lobbyPath("HX3K"); got != "lobbies/HX3K" {
		t.Errorf("lobbyPath: got %s", got)
	}
	if got := battlePlayerPath("HX3K", "p-1"); got != "lobbies/HX3K/battle/players/p-1" {
		t.Errorf("battlePlayerPath: got %s", got)
	}
}

func TestEvaluateStopsDefeatedLobbies(t *testing.T) {
	e, st := newTestEngine(t, 1)
	setLobby(t, st, "DEAD", lobby.Lobby{
		Host:    "p-1",
		Players: map[string]combat.Player{"p-1": {Name: "Ana", HP: 0}},
		Game:    lobby.GameState{Status: lobby.StatusDefeat},
	})
	if !e.evaluate(context.Background(), "DEAD") {
		t.Errorf("A defeated lobby must report done so its loop stops")
	}
}

func TestEvaluateKeepsLiveLobbiesRunning(t *testing.T) {
	e, st := newTestEngine(t, 1)
	setLobby(t, st, "LIVE", lobby.Lobby{
		Host:    "p-1",
		Players: map[string]combat.Player{"p-1": testCombatant("Ana", combat.StatusNeedsMana)},
		Game:    lobby.GameState{Status: lobby.StatusLobby},
	})
	if e.evaluate(context.Background(), "LIVE") {
		t.Errorf("An open lobby must keep its loop alive")
	}
}
