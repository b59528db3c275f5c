package engine

import (
	"context"
	"testing"
	"time"

	"github.com/bringtheheat/server/internal/domain/battle"
	"github.com/bringtheheat/server/internal/domain/card"
	"github.com/bringtheheat/server/internal/domain/combat"
	"github.com/bringtheheat/server/internal/domain/item"
	"github.com/bringtheheat/server/internal/domain/lobby"
	"github.com/bringtheheat/server/internal/domain/monster"
	"github.com/bringtheheat/server/internal/mapgen"
)

// seedBattle writes a lobby mid-encounter, returning the acting session.
func seedBattle(t *testing.T, e *Engine, code string, b *battle.State) {
	t.Helper()
	l := lobby.Lobby{
		Host:    "p-1",
		Players: map[string]combat.Player{},
		Game:    lobby.GameState{Status: lobby.StatusBattle, CurrentNodeID: "node-2"},
		Battle:  b,
	}
	for id, p := range b.Players {
		l.Players[id] = p
	}
	if err := e.store.Set(context.Background(), lobbyPath(code), l); err != nil {
		t.Fatalf("seeding battle failed: %v", err)
	}
}

func playerTurnState(players map[string]combat.Player) *battle.State {
	return &battle.State{
		Phase:        battle.PhasePlayerTurn,
		PhaseEndTime: nowMillis() + time.Minute.Milliseconds(),
		Turn:         1,
		Monsters:     []monster.Instance{testMonster(150, monster.TierNormal)},
		Players:      players,
	}
}

func TestTierForMapsNodeTypes(t *testing.T) {
	if tierFor(mapgen.TypeElite) != monster.TierElite {
		t.Errorf("Elite node must spawn elites")
	}
	if tierFor(mapgen.TypeBoss) != monster.TierBoss {
		t.Errorf("Boss node must spawn the boss")
	}
	if tierFor(mapgen.TypeNormal) != monster.TierNormal {
		t.Errorf("Normal node must spawn normals")
	}
}

func TestBuildBattleScalesMonsterCountWithTheParty(t *testing.T) {
	e, _ := newTestEngine(t, 20)
	l := &lobby.Lobby{Players: map[string]combat.Player{
		"p-1": testCombatant("Ana", combat.StatusNeedsMana),
		"p-2": testCombatant("Bruno", combat.StatusNeedsMana),
		"p-3": testCombatant("Cleo", combat.StatusNeedsMana),
		"p-4": testCombatant("Dee", combat.StatusNeedsMana),
	}}

	b := e.buildBattle(l, mapgen.TypeNormal)
	if len(b.Monsters) != 2 {
		t.Errorf("Expected 2 normals for a party of 4, got %d", len(b.Monsters))
	}
	if b.Debuff.Kind != combat.DebuffNone {
		t.Errorf("Normal fights carry no debuff, got %s", b.Debuff.Kind)
	}

	b = e.buildBattle(l, mapgen.TypeBoss)
	if len(b.Monsters) != 1 {
		t.Errorf("Expected a single boss, got %d", len(b.Monsters))
	}
	if b.Debuff.Kind == combat.DebuffNone {
		t.Errorf("Boss fights must roll a debuff")
	}
	if b.Phase != battle.PhasePlayerTurn || b.Turn != 1 {
		t.Errorf("Fresh battles start on player turn 1, got %s turn %d", b.Phase, b.Turn)
	}
}

func TestBuildBattleBurnsConsumableCharges(t *testing.T) {
	e, _ := newTestEngine(t, 21)
	p := testCombatant("Ana", combat.StatusNeedsMana)
	p.Items = []string{string(item.ItemManaLattice)}
	l := &lobby.Lobby{
		Players: map[string]combat.Player{"p-1": p},
		Consumables: map[string]map[item.Consumable]int{
			"p-1": {
				item.ConsumableBonusMana:    1,
				item.ConsumableStartWithTen: 2,
				item.ConsumableDoubleGold:   1,
				item.ConsumableHalfHPEnemy:  1,
			},
		},
	}

	b := e.buildBattle(l, mapgen.TypeNormal)
	got := b.Players["p-1"]
	// 100 base + 20 lattice + 25 bonusMana.
	if got.Mana != 145 {
		t.Errorf("Expected 145 mana, got %d", got.Mana)
	}
	if len(got.Hand) != 1 || got.Hand[0] != card.NumericCard(10) {
		t.Errorf("Expected the free 10 in hand, got %v", got.Hand)
	}
	if got.Sum != 10 {
		t.Errorf("Expected sum 10, got %d", got.Sum)
	}
	if !b.DoubleGold["p-1"] {
		t.Errorf("Expected the doubleGold flag carried onto the battle")
	}
	for _, m := range b.Monsters {
		if m.HP != m.MaxHP/2 {
			t.Errorf("Expected enemies at half hp, got %d/%d", m.HP, m.MaxHP)
		}
	}

	left := l.Consumables["p-1"]
	if _, ok := left[item.ConsumableBonusMana]; ok {
		t.Errorf("Spent charges must be deleted, got %v", left)
	}
	if left[item.ConsumableStartWithTen] != 1 {
		t.Errorf("Expected one startWith10 charge left, got %d", left[item.ConsumableStartWithTen])
	}
}

func TestSubmitChargeHappyPathAndGuards(t *testing.T) {
	e, st := newTestEngine(t, 22)
	ctx := context.Background()
	sess := Session{Lobby: "BATL", PlayerID: "p-1"}

	seedBattle(t, e, "BATL", playerTurnState(map[string]combat.Player{
		"p-1": testCombatant("Ana", combat.StatusNeedsMana),
	}))

	if err := e.SubmitCharge(ctx, sess, 40); err != nil {
		t.Fatalf("SubmitCharge failed: %v", err)
	}
	l := getLobby(t, st, "BATL")
	got := l.Battle.Players["p-1"]
	if got.Status != combat.StatusActing || got.Charge != 40 || got.Mana != 60 {
		t.Errorf("Charge not applied: %+v", got)
	}

	// A second charge is stale.
	if err := e.SubmitCharge(ctx, sess, 10); err != ErrWrongStatus {
		t.Errorf("Expected ErrWrongStatus on a double charge, got %v", err)
	}
	if err := e.SubmitCharge(ctx, sess, -5); err != ErrWrongStatus {
		t.Errorf("Acting players cannot recharge regardless of amount, got %v", err)
	}
}

func TestSubmitChargeRejectsWrongPhase(t *testing.T) {
	e, _ := newTestEngine(t, 23)
	b := playerTurnState(map[string]combat.Player{
		"p-1": testCombatant("Ana", combat.StatusNeedsMana),
	})
	b.Phase = battle.PhaseEnemyTurn
	seedBattle(t, e, "ENMY", b)

	err := e.SubmitCharge(context.Background(), Session{Lobby: "ENMY", PlayerID: "p-1"}, 10)
	if err != ErrWrongPhase {
		t.Errorf("Expected ErrWrongPhase, got %v", err)
	}
}

func TestSubmitActionsNeedABattle(t *testing.T) {
	e, _ := newTestEngine(t, 24)
	sess := Session{Lobby: "NONE", PlayerID: "p-1"}
	if err := e.SubmitCharge(context.Background(), sess, 10); err != ErrNoBattle {
		t.Errorf("Expected ErrNoBattle, got %v", err)
	}
	if err := e.SubmitDraw(context.Background(), sess); err != ErrNoBattle {
		t.Errorf("Expected ErrNoBattle, got %v", err)
	}
}

func TestSubmitDrawCommitsThePlayersTurn(t *testing.T) {
	e, st := newTestEngine(t, 25)
	ctx := context.Background()
	sess := Session{Lobby: "DRAW", PlayerID: "p-1"}

	p := testCombatant("Ana", combat.StatusActing)
	p.Mana = 60
	p.Charge = 40
	p.Deck = []card.Card{"3", "5"}
	seedBattle(t, e, "DRAW", playerTurnState(map[string]combat.Player{"p-1": p}))

	if err := e.SubmitDraw(ctx, sess); err != nil {
		t.Fatalf("SubmitDraw failed: %v", err)
	}
	l := getLobby(t, st, "DRAW")
	got := l.Battle.Players["p-1"]
	if got.Status != combat.StatusWaiting {
		t.Errorf("Drawing ends the turn, expected waiting, got %s", got.Status)
	}
	if got.Sum != 5 {
		t.Errorf("Expected sum 5 after drawing the top card, got %d", got.Sum)
	}
	if got.Charge != 40 {
		t.Errorf("The banked charge must ride to the next turn, got %d", got.Charge)
	}
	if len(l.Battle.Log) == 0 {
		t.Errorf("Expected the draw echoed to the battle log")
	}

	// One action per turn: further draws bounce off the committed record.
	if err := e.SubmitDraw(ctx, sess); err != ErrWrongStatus {
		t.Errorf("Expected ErrWrongStatus on a second draw, got %v", err)
	}
	again := getLobby(t, st, "DRAW")
	if len(again.Battle.Players["p-1"].Hand) != 1 {
		t.Errorf("The second draw must not touch the hand: %v", again.Battle.Players["p-1"].Hand)
	}
}

func TestSubmitAttackHitsTheTarget(t *testing.T) {
	e, st := newTestEngine(t, 26)
	ctx := context.Background()
	sess := Session{Lobby: "ATCK", PlayerID: "p-1"}

	p := testCombatant("Ana", combat.StatusActing)
	p.Mana = 0
	p.Charge = 100
	p.Hand = []card.Card{"10", "8"}
	p.Sum = 18
	p.PermanentDamage = 5
	seedBattle(t, e, "ATCK", playerTurnState(map[string]combat.Player{"p-1": p}))

	// Attack is deterministic, so the expected damage comes from the
	// same resolution run against a copy.
	expected := combat.Attack(p, combat.NoDebuff()).DamageDealt + 5

	if err := e.SubmitAttack(ctx, sess, 0); err != nil {
		t.Fatalf("SubmitAttack failed: %v", err)
	}
	l := getLobby(t, st, "ATCK")
	m := l.Battle.Monsters[0]
	if m.HP != 150-expected {
		t.Errorf("Expected monster hp %d, got %d", 150-expected, m.HP)
	}
	got := l.Battle.Players["p-1"]
	if got.Status != combat.StatusWaiting {
		t.Errorf("Attacking commits the turn, expected waiting, got %s", got.Status)
	}
	if got.Mana <= 0 {
		t.Errorf("A near-jackpot volley must refund mana, got %d", got.Mana)
	}

	// The committed record refuses a recharge and a second volley.
	if err := e.SubmitCharge(ctx, sess, 10); err != ErrWrongStatus {
		t.Errorf("Expected ErrWrongStatus on a post-attack charge, got %v", err)
	}
	if err := e.SubmitAttack(ctx, sess, 0); err != ErrWrongStatus {
		t.Errorf("Expected ErrWrongStatus on a second attack, got %v", err)
	}
	again := getLobby(t, st, "ATCK")
	if again.Battle.Monsters[0].HP != 150-expected {
		t.Errorf("A rejected volley still landed: hp %d", again.Battle.Monsters[0].HP)
	}
}

func TestSubmitAttackRedirectsDeadTargets(t *testing.T) {
	e, st := newTestEngine(t, 27)
	ctx := context.Background()
	sess := Session{Lobby: "REDI", PlayerID: "p-1"}

	p := testCombatant("Ana", combat.StatusActing)
	p.Charge = 50
	p.Hand = []card.Card{"10"}
	p.Sum = 10
	b := playerTurnState(map[string]combat.Player{"p-1": p})
	b.Monsters = []monster.Instance{
		testMonster(0, monster.TierNormal),
		testMonster(150, monster.TierNormal),
	}
	seedBattle(t, e, "REDI", b)

	if err := e.SubmitAttack(ctx, sess, 0); err != nil {
		t.Fatalf("SubmitAttack failed: %v", err)
	}
	l := getLobby(t, st, "REDI")
	if l.Battle.Monsters[0].HP != 0 {
		t.Errorf("The corpse must stay at 0 hp")
	}
	if l.Battle.Monsters[1].HP >= 150 {
		t.Errorf("Expected the volley redirected to the living monster, hp still %d", l.Battle.Monsters[1].HP)
	}
}

func TestSubmitEndTurnIsIdempotent(t *testing.T) {
	e, st := newTestEngine(t, 28)
	ctx := context.Background()
	sess := Session{Lobby: "ENDT", PlayerID: "p-1"}

	p := testCombatant("Ana", combat.StatusActing)
	seedBattle(t, e, "ENDT", playerTurnState(map[string]combat.Player{"p-1": p}))

	if err := e.SubmitEndTurn(ctx, sess); err != nil {
		t.Fatalf("SubmitEndTurn failed: %v", err)
	}
	if err := e.SubmitEndTurn(ctx, sess); err != nil {
		t.Fatalf("A repeated end turn must be harmless: %v", err)
	}
	l := getLobby(t, st, "ENDT")
	if l.Battle.Players["p-1"].Status != combat.StatusWaiting {
		t.Errorf("Expected waiting, got %s", l.Battle.Players["p-1"].Status)
	}
}

func TestStartEnemyTurnGuardsPhaseAndTurn(t *testing.T) {
	e, st := newTestEngine(t, 29)
	ctx := context.Background()

	p := testCombatant("Ana", combat.StatusWaiting)
	seedBattle(t, e, "GRDS", playerTurnState(map[string]combat.Player{"p-1": p}))

	// A stale turn number writes nothing.
	e.startEnemyTurn(ctx, "GRDS", 99)
	l := getLobby(t, st, "GRDS")
	if l.Battle.Phase != battle.PhasePlayerTurn {
		t.Fatalf("A stale wake-up flipped the phase")
	}

	e.startEnemyTurn(ctx, "GRDS", 1)
	l = getLobby(t, st, "GRDS")
	if l.Battle.Phase != battle.PhaseEnemyTurn {
		t.Errorf("Expected the enemy phase, got %s", l.Battle.Phase)
	}

	// Calling again against the already-flipped phase is a no-op.
	end := l.Battle.PhaseEndTime
	e.startEnemyTurn(ctx, "GRDS", 1)
	l = getLobby(t, st, "GRDS")
	if l.Battle.PhaseEndTime != end {
		t.Errorf("A duplicate call moved the deadline")
	}
}

func TestBeginNextTurnRestoresTheParty(t *testing.T) {
	e, st := newTestEngine(t, 30)
	ctx := context.Background()

	banked := testCombatant("Ana", combat.StatusWaiting)
	banked.Charge = 30
	fresh := testCombatant("Bruno", combat.StatusWaiting)
	down := testCombatant("Cleo", combat.StatusDefeated)
	down.HP = 0

	b := playerTurnState(map[string]combat.Player{
		"p-1": banked, "p-2": fresh, "p-3": down,
	})
	b.Phase = battle.PhaseEnemyTurn
	seedBattle(t, e, "NEXT", b)

	e.beginNextTurn(ctx, "NEXT", 1)
	l := getLobby(t, st, "NEXT")
	if l.Battle.Turn != 2 || l.Battle.Phase != battle.PhasePlayerTurn {
		t.Fatalf("Expected player turn 2, got %s turn %d", l.Battle.Phase, l.Battle.Turn)
	}
	if got := l.Battle.Players["p-1"].Status; got != combat.StatusActing {
		t.Errorf("A banked charge resumes acting, got %s", got)
	}
	if got := l.Battle.Players["p-2"].Status; got != combat.StatusNeedsMana {
		t.Errorf("An empty charge must recommit, got %s", got)
	}
	if got := l.Battle.Players["p-3"].Status; got != combat.StatusDefeated {
		t.Errorf("The dead stay down, got %s", got)
	}
}

func TestForceResolveSettlesStragglers(t *testing.T) {
	e, st := newTestEngine(t, 31)
	ctx := context.Background()

	stranded := testCombatant("Ana", combat.StatusNeedsMana)
	stranded.Mana = 0
	hesitant := testCombatant("Bruno", combat.StatusNeedsMana)
	holding := testCombatant("Cleo", combat.StatusActing)
	holding.Charge = 20

	b := playerTurnState(map[string]combat.Player{
		"p-1": stranded, "p-2": hesitant, "p-3": holding,
	})
	b.PhaseEndTime = nowMillis() - 1000
	seedBattle(t, e, "FRCE", b)

	if !e.forceResolve(ctx, "FRCE", 1) {
		t.Fatalf("Expected forceResolve to commit past the deadline")
	}
	l := getLobby(t, st, "FRCE")
	if got := l.Battle.Players["p-1"]; got.HP != 0 || got.Status != combat.StatusDefeated {
		t.Errorf("No mana at the deadline is lethal, got hp=%d status=%s", got.HP, got.Status)
	}
	if got := l.Battle.Players["p-2"]; got.Status != combat.StatusWaiting || got.Mana != 100 {
		t.Errorf("The forced swing is damageless and free, got status=%s mana=%d", got.Status, got.Mana)
	}
	if got := l.Battle.Players["p-3"]; got.Status != combat.StatusWaiting {
		t.Errorf("An acting player locks their hand in, got %s", got.Status)
	}
	if l.Battle.Monsters[0].HP != 150 {
		t.Errorf("Forced resolutions must not hurt the monsters, hp %d", l.Battle.Monsters[0].HP)
	}
}

func TestForceResolveRespectsTheDeadline(t *testing.T) {
	e, st := newTestEngine(t, 32)
	b := playerTurnState(map[string]combat.Player{
		"p-1": testCombatant("Ana", combat.StatusNeedsMana),
	})
	seedBattle(t, e, "ERLY", b)

	if e.forceResolve(context.Background(), "ERLY", 1) {
		t.Errorf("forceResolve must not fire before the deadline")
	}
	l := getLobby(t, st, "ERLY")
	if l.Battle.Players["p-1"].Status != combat.StatusNeedsMana {
		t.Errorf("Early call mutated the party")
	}
}

func TestResolveEnemyAttacksLandsGuaranteedHits(t *testing.T) {
	e, st := newTestEngine(t, 40)
	ctx := context.Background()

	p := testCombatant("Ana", combat.StatusWaiting)
	b := playerTurnState(map[string]combat.Player{"p-1": p})
	b.Phase = battle.PhaseEnemyTurn
	m := testMonster(150, monster.TierNormal)
	m.HitChance = 1.0
	m.Attack = 25
	b.Monsters = []monster.Instance{m}
	seedBattle(t, e, "HITS", b)

	e.resolveEnemyAttacks(ctx, "HITS", 1)
	l := getLobby(t, st, "HITS")
	if got := l.Battle.Players["p-1"].HP; got != 75 {
		t.Errorf("Expected 75 hp after a guaranteed 25 hit, got %d", got)
	}
}

func TestResolveEnemyAttacksSkipsStaleTurns(t *testing.T) {
	e, st := newTestEngine(t, 41)
	ctx := context.Background()

	p := testCombatant("Ana", combat.StatusWaiting)
	b := playerTurnState(map[string]combat.Player{"p-1": p})
	b.Phase = battle.PhaseEnemyTurn
	m := testMonster(150, monster.TierNormal)
	m.HitChance = 1.0
	b.Monsters = []monster.Instance{m}
	seedBattle(t, e, "STAL", b)

	e.resolveEnemyAttacks(ctx, "STAL", 7)
	l := getLobby(t, st, "STAL")
	if got := l.Battle.Players["p-1"].HP; got != 100 {
		t.Errorf("A stale timer must write nothing, hp %d", got)
	}
}

func TestResolveVictoryPaysAndRollsRewards(t *testing.T) {
	e, st := newTestEngine(t, 33)
	ctx := context.Background()

	p := testCombatant("Ana", combat.StatusWaiting)
	p.Gold = 10
	b := playerTurnState(map[string]combat.Player{"p-1": p})
	b.Monsters = []monster.Instance{testMonster(0, monster.TierNormal)}
	seedBattle(t, e, "WIN1", b)

	e.resolveVictory(ctx, "WIN1")
	l := getLobby(t, st, "WIN1")
	if l.Game.Status != lobby.StatusVictory {
		t.Fatalf("Expected victory, got %s", l.Game.Status)
	}
	if l.Battle != nil {
		t.Errorf("The battle record must clear on victory")
	}
	// testMonster drops exactly 10 gold.
	if got := l.Players["p-1"].Gold; got != 20 {
		t.Errorf("Expected 20 gold after the payout, got %d", got)
	}
	if got := l.Players["p-1"].Status; got != combat.StatusNeedsMana {
		t.Errorf("Expected the roster reset to needs_mana, got %s", got)
	}
	if len(l.Rewards["p-1"]) != 3 {
		t.Errorf("Expected 3 reward choices, got %v", l.Rewards["p-1"])
	}
	if !l.Game.Cleared("node-2") {
		t.Errorf("Expected the node marked cleared")
	}

	// Re-running against the committed state writes nothing further.
	e.resolveVictory(ctx, "WIN1")
	again := getLobby(t, st, "WIN1")
	if again.Players["p-1"].Gold != 20 {
		t.Errorf("A duplicate resolution paid twice: %d", again.Players["p-1"].Gold)
	}
}

func TestResolveVictoryAppliesGoldModifiers(t *testing.T) {
	e, st := newTestEngine(t, 34)
	ctx := context.Background()

	p := testCombatant("Ana", combat.StatusWaiting)
	p.Items = []string{string(item.ItemLuckyCoin)}
	b := playerTurnState(map[string]combat.Player{"p-1": p})
	b.Monsters = []monster.Instance{testMonster(0, monster.TierNormal)}
	b.DoubleGold = map[string]bool{"p-1": true}
	seedBattle(t, e, "GLD2", b)

	e.resolveVictory(ctx, "GLD2")
	l := getLobby(t, st, "GLD2")
	// base 10, +20% coin = 12, doubled = 24.
	if got := l.Players["p-1"].Gold; got != 24 {
		t.Errorf("Expected 24 gold, got %d", got)
	}
}

func TestResolveVictoryBossStartsTheNextLoop(t *testing.T) {
	e, st := newTestEngine(t, 35)
	ctx := context.Background()
	rec := &captureRecorder{ch: make(chan RunSummary, 1)}
	e.SetRunRecorder(rec)

	p := testCombatant("Ana", combat.StatusWaiting)
	b := playerTurnState(map[string]combat.Player{"p-1": p})
	b.Monsters = []monster.Instance{testMonster(0, monster.TierBoss)}
	seedBattle(t, e, "BOSS", b)

	e.resolveVictory(ctx, "BOSS")
	l := getLobby(t, st, "BOSS")
	if l.Game.Loop != 1 {
		t.Errorf("Expected loop 1 after the boss, got %d", l.Game.Loop)
	}
	if l.Game.CurrentNodeID != "" || len(l.Game.ClearedNodes) != 0 {
		t.Errorf("Expected a clean slate for the new loop")
	}
	if l.Map == nil {
		t.Errorf("Expected a fresh map for the new loop")
	}

	run := waitSummary(t, rec)
	if run.Outcome != "victory" || run.Loops != 1 || run.Lobby != "BOSS" {
		t.Errorf("Bad run summary: %+v", run)
	}
}

func TestResolveDefeatEndsTheRun(t *testing.T) {
	e, st := newTestEngine(t, 36)
	ctx := context.Background()
	rec := &captureRecorder{ch: make(chan RunSummary, 1)}
	e.SetRunRecorder(rec)

	down := testCombatant("Ana", combat.StatusDefeated)
	down.HP = 0
	b := playerTurnState(map[string]combat.Player{"p-1": down})
	seedBattle(t, e, "LOSS", b)

	e.resolveDefeat(ctx, "LOSS")
	l := getLobby(t, st, "LOSS")
	if l.Game.Status != lobby.StatusDefeat {
		t.Errorf("Expected defeat, got %s", l.Game.Status)
	}
	if l.Battle != nil {
		t.Errorf("The battle record must clear on defeat")
	}

	run := waitSummary(t, rec)
	if run.Outcome != "defeat" {
		t.Errorf("Expected a defeat summary, got %+v", run)
	}
}

func TestGoldForStacksModifiers(t *testing.T) {
	p := testCombatant("Ana", combat.StatusWaiting)
	if got := goldFor(p, 100, false); got != 100 {
		t.Errorf("No modifiers: expected 100, got %d", got)
	}
	p.Items = []string{string(item.ItemLuckyCoin), string(item.ItemLuckyCoin)}
	if got := goldFor(p, 100, false); got != 140 {
		t.Errorf("Two coins: expected 140, got %d", got)
	}
	p.Items = append(p.Items, string(item.ItemMidasIdol))
	if got := goldFor(p, 100, false); got != 280 {
		t.Errorf("Coins then idol: expected 280, got %d", got)
	}
	if got := goldFor(p, 100, true); got != 560 {
		t.Errorf("With the consumable: expected 560, got %d", got)
	}
}
