// Package test - full_run.go
// End-to-end scenario: a two-player party plays an entire run against
// the in-memory store, through the real engine and host loop, until it
// beats the boss or dies trying.
package test

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bringtheheat/server/internal/domain/battle"
	"github.com/bringtheheat/server/internal/domain/combat"
	"github.com/bringtheheat/server/internal/domain/lobby"
	"github.com/bringtheheat/server/internal/engine"
	"github.com/bringtheheat/server/internal/events"
	"github.com/bringtheheat/server/internal/platform/logger"
	"github.com/bringtheheat/server/internal/platform/metrics"
	"github.com/bringtheheat/server/internal/store"
)

// TestResult captures the outcome of each scenario check.
type TestResult struct {
	ScenarioName string
	Detail       string
	Passed       bool
	Reason       string
}

// FullRunTest drives one complete run.
type FullRunTest struct {
	engine  *engine.Engine
	store   *store.MemoryStore
	logger  *logger.Logger
	host    engine.Session
	ally    engine.Session
	results []TestResult
}

// NewFullRunTest creates the scenario harness with a fixed seed.
func NewFullRunTest(seed int64) *FullRunTest {
	log := logger.NewTestLogger()
	st := store.NewMemoryStore()
	eng := engine.New(st, log, events.NewEventLog(nil), metrics.NewCollector(), seed)
	return &FullRunTest{engine: eng, store: st, logger: log}
}

func (t *FullRunTest) record(name, detail string, passed bool, reason string) {
	t.results = append(t.results, TestResult{ScenarioName: name, Detail: detail, Passed: passed, Reason: reason})
	mark := "PASS"
	if !passed {
		mark = "FAIL"
	}
	fmt.Printf("   [%s] %s %s %s\n", mark, name, detail, reason)
}

// GetResults returns the collected scenario outcomes.
func (t *FullRunTest) GetResults() []TestResult {
	return t.results
}

// RunTest plays the scenario.
func (t *FullRunTest) RunTest(ctx context.Context) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("SCENARIO: FULL RUN, TWO PLAYERS, FIRST LOOP")
	fmt.Println(strings.Repeat("=", 60))
	defer t.engine.Close()

	host, err := t.engine.CreateLobby(ctx, "Ana", "deck1")
	if err != nil {
		t.record("lobby", "create", false, err.Error())
		return
	}
	t.host = host
	ally, err := t.engine.JoinLobby(ctx, host.Lobby, "Bruno", "deck2")
	if err != nil {
		t.record("lobby", "join", false, err.Error())
		return
	}
	t.ally = ally
	t.record("lobby", "created and joined", true, "")

	if err := t.engine.StartGame(ctx, host); err != nil {
		t.record("start", "", false, err.Error())
		return
	}
	l, _ := t.engine.GetLobby(ctx, host.Lobby)
	t.record("start", "map generated", l.Map != nil && l.Game.Status == lobby.StatusMapVote, "")

	// Walk nodes until the run ends or we run out of patience.
	for step := 0; step < 40; step++ {
		l, err := t.engine.GetLobby(ctx, host.Lobby)
		if err != nil {
			t.record("walk", "read lobby", false, err.Error())
			return
		}
		switch l.Game.Status {
		case lobby.StatusMapVote:
			if !t.voteNext(ctx, &l) {
				return
			}
		case lobby.StatusBattle:
			if !t.playBattle(ctx) {
				return
			}
		case lobby.StatusRest, lobby.StatusShop:
			_ = t.engine.Continue(ctx, t.host)
		case lobby.StatusEvent:
			t.chooseEvent(ctx, &l)
		case lobby.StatusVictory:
			t.takeRewards(ctx, &l)
		case lobby.StatusDefeat:
			t.record("run", "party defeated", true, "defeat is a valid ending")
			return
		}
		if l.Game.Loop > 0 {
			t.record("run", "boss beaten, loop started", true, "")
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.record("run", "step limit", false, "run did not finish in 40 steps")
}

// voteNext has both players vote for the first reachable node.
func (t *FullRunTest) voteNext(ctx context.Context, l *lobby.Lobby) bool {
	votable := l.VotableNodes()
	if len(votable) == 0 {
		t.record("vote", "votable nodes", false, "nowhere to go")
		return false
	}
	target := votable[0]
	if err := t.engine.CastVote(ctx, t.host, target); err != nil {
		t.record("vote", target, false, err.Error())
		return false
	}
	// The second vote may arrive after the tally already resolved; only
	// a state error is acceptable then.
	if err := t.engine.CastVote(ctx, t.ally, target); err != nil && err != engine.ErrWrongStatus {
		t.record("vote", target, false, err.Error())
		return false
	}
	return true
}

// playBattle plays simple aggressive turns until the battle resolves.
func (t *FullRunTest) playBattle(ctx context.Context) bool {
	deadline := time.Now().Add(3 * time.Minute)
	for time.Now().Before(deadline) {
		l, err := t.engine.GetLobby(ctx, t.host.Lobby)
		if err != nil {
			t.record("battle", "read lobby", false, err.Error())
			return false
		}
		if l.Game.Status != lobby.StatusBattle || l.Battle == nil {
			return true // resolved to victory or defeat
		}
		if l.Battle.Phase != battle.PhasePlayerTurn {
			time.Sleep(250 * time.Millisecond)
			continue
		}
		for _, sess := range []engine.Session{t.host, t.ally} {
			p, ok := l.Battle.Players[sess.PlayerID]
			if !ok || !p.Alive() {
				continue
			}
			switch p.Status {
			case combat.StatusNeedsMana:
				amount := p.Mana / 4
				if amount < 1 {
					amount = 1
				}
				if err := t.engine.SubmitCharge(ctx, sess, amount); err != nil && err != engine.ErrWrongStatus && err != engine.ErrWrongPhase {
					t.record("battle", "charge", false, err.Error())
					return false
				}
			case combat.StatusActing:
				// One committed action per turn: press the luck on a
				// weak sum, cash out on a strong one.
				if p.Sum < 14 {
					_ = t.engine.SubmitDraw(ctx, sess)
					continue
				}
				if err := t.engine.SubmitAttack(ctx, sess, 0); err != nil && err != engine.ErrWrongStatus && err != engine.ErrWrongPhase {
					t.record("battle", "attack", false, err.Error())
					return false
				}
			}
		}
		time.Sleep(150 * time.Millisecond)
	}
	t.record("battle", "deadline", false, "battle did not resolve in 3 minutes")
	return false
}

func (t *FullRunTest) chooseEvent(ctx context.Context, l *lobby.Lobby) {
	if l.Event == nil || len(l.Event.Choices) == 0 {
		return
	}
	choice := l.Event.Choices[0]
	_ = t.engine.ChooseEventEffect(ctx, t.host, choice)
	_ = t.engine.ChooseEventEffect(ctx, t.ally, choice)
}

func (t *FullRunTest) takeRewards(ctx context.Context, l *lobby.Lobby) {
	for id, offered := range l.Rewards {
		if len(offered) == 0 {
			continue
		}
		sess := t.host
		if id == t.ally.PlayerID {
			sess = t.ally
		}
		_ = t.engine.ChooseReward(ctx, sess, offered[len(offered)-1])
	}
}
