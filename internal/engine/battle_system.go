package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bringtheheat/server/internal/domain/battle"
	"github.com/bringtheheat/server/internal/domain/card"
	"github.com/bringtheheat/server/internal/domain/combat"
	"github.com/bringtheheat/server/internal/domain/item"
	"github.com/bringtheheat/server/internal/domain/lobby"
	"github.com/bringtheheat/server/internal/domain/monster"
	"github.com/bringtheheat/server/internal/events"
	"github.com/bringtheheat/server/internal/mapgen"
	"github.com/bringtheheat/server/internal/store"
)

// enemyAttackDelay paces the enemy phase so clients see the transition
// before damage lands.
const enemyAttackDelay = 1 * time.Second

func tierFor(t mapgen.NodeType) monster.Tier {
	switch t {
	case mapgen.TypeElite:
		return monster.TierElite
	case mapgen.TypeBoss:
		return monster.TierBoss
	default:
		return monster.TierNormal
	}
}

// buildBattle assembles a fresh encounter for the node the party landed
// on. Consumable charges burn here, inside the caller's transaction, so
// the decrement and the effect commit together.
func (e *Engine) buildBattle(l *lobby.Lobby, nodeType mapgen.NodeType) *battle.State {
	tier := tierFor(nodeType)
	debuff := combat.NoDebuff()
	if tier != monster.TierNormal {
		debuff = e.rollDebuff()
	}

	living := l.LivingPlayers()
	count := 1
	if tier == monster.TierNormal {
		count = (len(living) + 1) / 2
		if count < 1 {
			count = 1
		}
	}
	monsters := make([]monster.Instance, 0, count)
	for i := 0; i < count; i++ {
		monsters = append(monsters, monster.Spawn(tier, l.Game.Loop, e.rng))
	}

	// One halfHpEnemies charge weakens the whole encounter; the first
	// holder in roster order pays it.
	for _, id := range living {
		if takeCharge(l, id, item.ConsumableHalfHPEnemy) {
			for i := range monsters {
				monsters[i].HP /= 2
			}
			break
		}
	}

	players := make(map[string]combat.Player, len(l.Players))
	doubleGold := map[string]bool{}
	for id, p := range l.Players {
		p = p.ResetForEncounter(e.rng)
		if p.Alive() {
			p.Mana = combat.StartingMana + item.StartingManaBonus(p.Items)
			if takeCharge(l, id, item.ConsumableBonusMana) {
				p.Mana += 25
			}
			if takeCharge(l, id, item.ConsumableStartWithTen) {
				p.Hand = append(p.Hand, card.NumericCard(10))
				p.Sum = combat.HandSum(p.Hand, debuff)
			}
			if takeCharge(l, id, item.ConsumableDoubleGold) {
				doubleGold[id] = true
			}
		}
		players[id] = p
	}

	b := &battle.State{
		Phase:        battle.PhasePlayerTurn,
		PhaseEndTime: nowMillis() + battle.PlayerTurnDuration.Milliseconds(),
		Monsters:     monsters,
		Players:      players,
		Turn:         1,
		Debuff:       debuff,
	}
	if len(doubleGold) > 0 {
		b.DoubleGold = doubleGold
	}

	names := make([]string, len(monsters))
	for i, m := range monsters {
		names[i] = m.Name
	}
	b.AppendLog(time.Now(), strings.Join(names, " and ")+" block the path!")
	if d := debuff.Describe(); d != "" {
		b.AppendLog(time.Now(), d)
	}
	return b
}

// rollDebuff picks the elite/boss modifier for an encounter.
func (e *Engine) rollDebuff() combat.Debuff {
	switch e.rng.Intn(3) {
	case 0:
		return combat.SumExclusion(2 + e.rng.Intn(8))
	case 1:
		return combat.DoubleJackpot()
	default:
		return combat.DrawDouble()
	}
}

// takeCharge burns one charge of a player's consumable, reporting
// whether there was one to burn.
func takeCharge(l *lobby.Lobby, id string, c item.Consumable) bool {
	m := l.Consumables[id]
	if m[c] <= 0 {
		return false
	}
	m[c]--
	if m[c] == 0 {
		delete(m, c)
	}
	return true
}

// ---- player actions -------------------------------------------------

// battleMeta is the battle-level context a player action needs before
// transacting on its own sub-record.
type battleMeta struct {
	debuff combat.Debuff
	phase  battle.Phase
	turn   int
}

func (e *Engine) loadBattleMeta(ctx context.Context, code string) (battleMeta, error) {
	var b battle.State
	err := e.store.Get(ctx, battlePath(code), &b)
	if err == store.ErrNotFound {
		return battleMeta{}, ErrNoBattle
	}
	if err != nil {
		return battleMeta{}, err
	}
	return battleMeta{debuff: b.Debuff, phase: b.Phase, turn: b.Turn}, nil
}

// SubmitCharge commits mana to the player's next volley.
func (e *Engine) SubmitCharge(ctx context.Context, sess Session, amount int) error {
	meta, err := e.loadBattleMeta(ctx, sess.Lobby)
	if err != nil {
		return err
	}
	if meta.phase != battle.PhasePlayerTurn {
		return ErrWrongPhase
	}

	err = e.store.Transaction(ctx, battlePlayerPath(sess.Lobby, sess.PlayerID), func(cur json.RawMessage) (any, error) {
		p, err := decodePlayer(cur)
		if err != nil {
			return nil, err
		}
		if p.Status != combat.StatusNeedsMana || p.HP <= 0 {
			return nil, ErrWrongStatus
		}
		next, err := combat.Charge(p, amount, meta.debuff)
		if err != nil {
			return nil, err
		}
		return next, nil
	})
	if err != nil {
		return err
	}
	e.metrics.Inc("actions_charge")
	e.events.Append(events.New(events.EventTypeCharge, sess.Lobby, sess.PlayerID, meta.turn, fmt.Sprintf("%d mana", amount)))
	return nil
}

// SubmitDraw pulls from the player's deck, risking a bust.
func (e *Engine) SubmitDraw(ctx context.Context, sess Session) error {
	meta, err := e.loadBattleMeta(ctx, sess.Lobby)
	if err != nil {
		return err
	}
	if meta.phase != battle.PhasePlayerTurn {
		return ErrWrongPhase
	}

	var res combat.Result
	err = e.store.Transaction(ctx, battlePlayerPath(sess.Lobby, sess.PlayerID), func(cur json.RawMessage) (any, error) {
		p, err := decodePlayer(cur)
		if err != nil {
			return nil, err
		}
		if p.Status != combat.StatusActing || p.HP <= 0 {
			return nil, ErrWrongStatus
		}
		res = combat.Draw(p, meta.debuff, e.rng)
		return res.Player, nil
	})
	if err != nil {
		return err
	}

	if len(res.Log) > 0 {
		e.appendBattleLog(ctx, sess.Lobby, res.Log...)
	}
	e.metrics.Inc("actions_draw")
	e.events.Append(events.New(events.EventTypeDraw, sess.Lobby, sess.PlayerID, meta.turn, fmt.Sprintf("sum %d", res.Player.Sum)))
	if res.Player.Busted {
		e.metrics.Inc("busts")
		e.events.Append(events.New(events.EventTypeBust, sess.Lobby, sess.PlayerID, meta.turn, ""))
	}
	return nil
}

// SubmitAttack resolves the player's volley against a monster.
func (e *Engine) SubmitAttack(ctx context.Context, sess Session, target int) error {
	meta, err := e.loadBattleMeta(ctx, sess.Lobby)
	if err != nil {
		return err
	}
	if meta.phase != battle.PhasePlayerTurn {
		return ErrWrongPhase
	}

	var res combat.Result
	err = e.store.Transaction(ctx, battlePlayerPath(sess.Lobby, sess.PlayerID), func(cur json.RawMessage) (any, error) {
		p, err := decodePlayer(cur)
		if err != nil {
			return nil, err
		}
		if p.Status != combat.StatusActing || p.HP <= 0 {
			return nil, ErrWrongStatus
		}
		res = combat.Attack(p, meta.debuff)
		return res.Player, nil
	})
	if err != nil {
		return err
	}

	damage := res.DamageDealt
	if damage > 0 {
		damage += res.Player.PermanentDamage
	}
	e.applyDamage(ctx, sess.Lobby, meta.turn, target, damage, res.Player.Name, res.Log)

	e.metrics.Inc("actions_attack")
	e.events.Append(events.New(events.EventTypeAttack, sess.Lobby, sess.PlayerID, meta.turn, fmt.Sprintf("%d damage", damage)))
	return nil
}

// SubmitEndTurn is a voluntary pass: the player commits their turn
// without acting, keeping a banked charge for the next one. Draw and
// attack lock the record themselves, so this is only for players who
// want neither.
func (e *Engine) SubmitEndTurn(ctx context.Context, sess Session) error {
	meta, err := e.loadBattleMeta(ctx, sess.Lobby)
	if err != nil {
		return err
	}
	if meta.phase != battle.PhasePlayerTurn {
		return ErrWrongPhase
	}
	return e.store.Transaction(ctx, battlePlayerPath(sess.Lobby, sess.PlayerID), func(cur json.RawMessage) (any, error) {
		p, err := decodePlayer(cur)
		if err != nil {
			return nil, err
		}
		if p.HP <= 0 || p.Status == combat.StatusDefeated {
			return nil, ErrWrongStatus
		}
		if p.Status == combat.StatusWaiting {
			return nil, nil
		}
		p.Status = combat.StatusWaiting
		return p, nil
	})
}

func decodePlayer(cur json.RawMessage) (combat.Player, error) {
	if cur == nil {
		return combat.Player{}, ErrNoBattle
	}
	var p combat.Player
	if err := json.Unmarshal(cur, &p); err != nil {
		return combat.Player{}, err
	}
	return p, nil
}

// applyDamage lands a player's volley on a monster and records the log
// lines in one transaction. Target indexes pointing at a corpse fall
// through to the first living monster.
func (e *Engine) applyDamage(ctx context.Context, code string, turn, target, damage int, attacker string, log []string) {
	err := e.store.Transaction(ctx, battlePath(code), func(cur json.RawMessage) (any, error) {
		if cur == nil {
			return nil, nil
		}
		var b battle.State
		if err := json.Unmarshal(cur, &b); err != nil {
			return nil, err
		}
		if b.Phase != battle.PhasePlayerTurn || b.Turn != turn {
			return nil, nil
		}
		b.AppendLog(time.Now(), log...)

		living := b.LivingMonsters()
		if damage > 0 && len(living) > 0 {
			idx := living[0]
			for _, i := range living {
				if i == target {
					idx = i
					break
				}
			}
			m := b.Monsters[idx]
			m.HP -= damage
			if m.HP < 0 {
				m.HP = 0
			}
			b.Monsters[idx] = m
			line := fmt.Sprintf("%s hits %s for %d damage!", attacker, m.Name, damage)
			if m.HP == 0 {
				line += fmt.Sprintf(" %s is slain!", m.Name)
			}
			b.AppendLog(time.Now(), line)
		}
		return b, nil
	})
	if err != nil {
		e.log.With("lobby", code).Warn("damage application failed: " + err.Error())
	}
}

// appendBattleLog adds player-facing lines to the shared battle log.
func (e *Engine) appendBattleLog(ctx context.Context, code string, lines ...string) {
	_ = e.store.Transaction(ctx, battlePath(code), func(cur json.RawMessage) (any, error) {
		if cur == nil {
			return nil, nil
		}
		var b battle.State
		if err := json.Unmarshal(cur, &b); err != nil {
			return nil, err
		}
		b.AppendLog(time.Now(), lines...)
		return b, nil
	})
}

// ---- host phase management ------------------------------------------

// evaluateBattle drives whichever host transition the current battle
// snapshot calls for.
func (e *Engine) evaluateBattle(ctx context.Context, code string, l *lobby.Lobby) {
	b := l.Battle
	if b == nil {
		return
	}
	if b.Lost() {
		e.resolveDefeat(ctx, code)
		return
	}
	if b.Won() {
		e.resolveVictory(ctx, code)
		return
	}

	now := nowMillis()
	switch b.Phase {
	case battle.PhasePlayerTurn:
		if b.AllWaiting() {
			e.startEnemyTurn(ctx, code, b.Turn)
			return
		}
		if now >= b.PhaseEndTime {
			if e.forceResolve(ctx, code, b.Turn) {
				e.startEnemyTurn(ctx, code, b.Turn)
			}
		}
	case battle.PhaseEnemyTurn:
		// Recovery: the timer chain died with a previous process.
		if now >= b.PhaseEndTime+2*tickInterval.Milliseconds() {
			e.beginNextTurn(ctx, code, b.Turn)
		}
	}
}

// startEnemyTurn flips the phase and schedules the enemy volley and the
// next-turn reset. The transaction's phase guard makes duplicate calls
// from redundant snapshots no-ops.
func (e *Engine) startEnemyTurn(ctx context.Context, code string, turn int) {
	committed := false
	err := e.store.Transaction(ctx, battlePath(code), func(cur json.RawMessage) (any, error) {
		committed = false
		if cur == nil {
			return nil, nil
		}
		var b battle.State
		if err := json.Unmarshal(cur, &b); err != nil {
			return nil, err
		}
		if b.Phase != battle.PhasePlayerTurn || b.Turn != turn {
			return nil, nil
		}
		b.Phase = battle.PhaseEnemyTurn
		b.PhaseEndTime = nowMillis() + battle.EnemyTurnDuration.Milliseconds()
		b.AppendLog(time.Now(), "The enemy stirs...")
		committed = true
		return b, nil
	})
	if err != nil {
		e.log.With("lobby", code).Warn("enemy turn start failed: " + err.Error())
		return
	}
	if !committed {
		return
	}

	e.events.Append(events.New(events.EventTypeEnemyTurn, code, "", turn, ""))
	time.AfterFunc(enemyAttackDelay, func() {
		e.resolveEnemyAttacks(context.Background(), code, turn)
	})
	time.AfterFunc(battle.EnemyTurnDuration, func() {
		e.beginNextTurn(context.Background(), code, turn)
	})
}

// resolveEnemyAttacks rolls each living monster's strike against a
// random living player. Guarded by phase and turn so a late timer from
// a superseded phase writes nothing.
func (e *Engine) resolveEnemyAttacks(ctx context.Context, code string, turn int) {
	err := e.store.Transaction(ctx, battlePath(code), func(cur json.RawMessage) (any, error) {
		if cur == nil {
			return nil, nil
		}
		var b battle.State
		if err := json.Unmarshal(cur, &b); err != nil {
			return nil, err
		}
		if b.Phase != battle.PhaseEnemyTurn || b.Turn != turn {
			return nil, nil
		}

		for _, m := range b.Monsters {
			if m.HP <= 0 {
				continue
			}
			targets := b.LivingPlayers()
			if len(targets) == 0 {
				break
			}
			id := targets[e.rng.Intn(len(targets))]
			if e.rng.Float64() >= m.HitChance {
				b.AppendLog(time.Now(), fmt.Sprintf("%s lunges at %s and misses.", m.Name, b.Players[id].Name))
				continue
			}
			p := b.Players[id]
			p.HP -= m.Attack
			line := fmt.Sprintf("%s hits %s for %d damage!", m.Name, p.Name, m.Attack)
			if p.HP <= 0 {
				p.HP = 0
				p.Status = combat.StatusDefeated
				line += fmt.Sprintf(" %s falls!", p.Name)
			}
			b.Players[id] = p
			b.AppendLog(time.Now(), line)
		}
		return b, nil
	})
	if err != nil {
		e.log.With("lobby", code).Warn("enemy attack resolution failed: " + err.Error())
	}
}

// beginNextTurn resets the party for a fresh player phase. Players who
// banked a charge resume acting; the rest must commit mana again.
func (e *Engine) beginNextTurn(ctx context.Context, code string, turn int) {
	err := e.store.Transaction(ctx, battlePath(code), func(cur json.RawMessage) (any, error) {
		if cur == nil {
			return nil, nil
		}
		var b battle.State
		if err := json.Unmarshal(cur, &b); err != nil {
			return nil, err
		}
		if b.Phase != battle.PhaseEnemyTurn || b.Turn != turn {
			return nil, nil
		}
		b.Turn++
		b.Phase = battle.PhasePlayerTurn
		b.PhaseEndTime = nowMillis() + battle.PlayerTurnDuration.Milliseconds()
		for id, p := range b.Players {
			if !p.Alive() {
				continue
			}
			if p.Charge > 0 {
				p.Status = combat.StatusActing
			} else {
				p.Status = combat.StatusNeedsMana
			}
			b.Players[id] = p
		}
		b.AppendLog(time.Now(), fmt.Sprintf("Turn %d. Place your bets.", b.Turn))
		return b, nil
	})
	if err != nil {
		e.log.With("lobby", code).Warn("next turn reset failed: " + err.Error())
	}
}

// forceResolve settles every player who let the turn clock run out:
// stranded with no mana means defeat, an uncommitted charge fires as a
// damageless attack, and a committed hand is simply locked in. Reports
// whether this call made the transition (and should start the enemy
// phase).
func (e *Engine) forceResolve(ctx context.Context, code string, turn int) bool {
	committed := false
	var forced []string
	err := e.store.Transaction(ctx, battlePath(code), func(cur json.RawMessage) (any, error) {
		committed = false
		forced = nil
		if cur == nil {
			return nil, nil
		}
		var b battle.State
		if err := json.Unmarshal(cur, &b); err != nil {
			return nil, err
		}
		if b.Phase != battle.PhasePlayerTurn || b.Turn != turn {
			return nil, nil
		}
		if nowMillis() < b.PhaseEndTime {
			return nil, nil
		}

		for id, p := range b.Players {
			if !p.Alive() || p.Status == combat.StatusWaiting {
				continue
			}
			forced = append(forced, p.Name)
			switch p.Status {
			case combat.StatusNeedsMana:
				if p.Mana <= 0 {
					p.HP = 0
					p.Status = combat.StatusDefeated
					b.AppendLog(time.Now(), fmt.Sprintf("%s ran out of time with no mana left. Down!", p.Name))
				} else {
					// A free, damageless volley keeps the turn moving.
					p.Charge = 0
					p.Status = combat.StatusActing
					res := combat.Attack(p, b.Debuff)
					p = res.Player
					b.AppendLog(time.Now(), fmt.Sprintf("%s hesitated too long and swings at nothing.", p.Name))
				}
			case combat.StatusActing:
				p.Status = combat.StatusWaiting
				b.AppendLog(time.Now(), fmt.Sprintf("%s holds their hand.", p.Name))
			}
			b.Players[id] = p
		}
		committed = true
		return b, nil
	})
	if err != nil {
		e.log.With("lobby", code).Warn("forced resolution failed: " + err.Error())
		return false
	}
	if committed && len(forced) > 0 {
		e.metrics.Inc("forced_resolutions")
		e.events.Append(events.New(events.EventTypeForcedAction, code, "", turn, strings.Join(forced, ", ")))
	}
	return committed
}

// ---- battle end -----------------------------------------------------

// syncRoster copies the battle records back onto the persistent roster;
// the combat record doubles as the progression record.
func syncRoster(l *lobby.Lobby, b *battle.State) {
	for id, p := range b.Players {
		l.Players[id] = p
	}
}

// resolveVictory pays the party out, rolls reward choices, and either
// reopens the map or, after a boss, starts the next loop on a fresh one.
func (e *Engine) resolveVictory(ctx context.Context, code string) {
	committed := false
	var detail string
	var summary *RunSummary
	err := e.store.Transaction(ctx, lobbyPath(code), func(cur json.RawMessage) (any, error) {
		committed = false
		if cur == nil {
			return nil, nil
		}
		var l lobby.Lobby
		if err := json.Unmarshal(cur, &l); err != nil {
			return nil, err
		}
		b := l.Battle
		if l.Game.Status != lobby.StatusBattle || b == nil || !b.Won() {
			return nil, nil
		}

		base := 0
		for _, m := range b.Monsters {
			base += m.RollGold(e.rng)
		}
		tier := monster.TierNormal
		if len(b.Monsters) > 0 {
			tier = b.Monsters[0].Tier
		}

		syncRoster(&l, b)
		rewards := map[string][]string{}
		for _, id := range b.LivingPlayers() {
			p := l.Players[id]
			p.Gold += goldFor(p, base, b.DoubleGold[id])
			p.Status = combat.StatusNeedsMana
			l.Players[id] = p
			rewards[id] = e.rollRewards(tier)
		}

		summary = nil
		if tier == monster.TierBoss {
			l.Game.Loop++
			summary = &RunSummary{
				Lobby:        code,
				Outcome:      "victory",
				Loops:        l.Game.Loop,
				NodesCleared: len(l.Game.ClearedNodes) + 1,
				Party:        l.Players,
			}
			m := mapgen.Generate(e.rng)
			l.Map = &m
			l.Game.ClearedNodes = nil
			l.Game.CurrentNodeID = ""
		} else if id := l.Game.CurrentNodeID; id != "" && !l.Game.Cleared(id) {
			l.Game.ClearedNodes = append(l.Game.ClearedNodes, id)
		}

		l.Battle = nil
		l.Rewards = rewards
		l.Game.Status = lobby.StatusVictory
		detail = fmt.Sprintf("%s tier, %d base gold", tier, base)
		committed = true
		return l, nil
	})
	if err != nil {
		e.log.With("lobby", code).Warn("victory resolution failed: " + err.Error())
		return
	}
	if committed {
		e.metrics.Inc("victories")
		e.events.Append(events.New(events.EventTypeVictory, code, "", 0, detail))
		e.log.With("lobby", code).Info("battle won: " + detail)
		if summary != nil {
			e.recordRun(*summary)
		}
	}
}

// resolveDefeat ends the run when the whole party is down.
func (e *Engine) resolveDefeat(ctx context.Context, code string) {
	committed := false
	var summary RunSummary
	err := e.store.Transaction(ctx, lobbyPath(code), func(cur json.RawMessage) (any, error) {
		committed = false
		if cur == nil {
			return nil, nil
		}
		var l lobby.Lobby
		if err := json.Unmarshal(cur, &l); err != nil {
			return nil, err
		}
		b := l.Battle
		if l.Game.Status != lobby.StatusBattle || b == nil || !b.Lost() {
			return nil, nil
		}
		syncRoster(&l, b)
		l.Battle = nil
		l.Game.Status = lobby.StatusDefeat
		summary = RunSummary{
			Lobby:        code,
			Outcome:      "defeat",
			Loops:        l.Game.Loop,
			NodesCleared: len(l.Game.ClearedNodes),
			Party:        l.Players,
		}
		committed = true
		return l, nil
	})
	if err != nil {
		e.log.With("lobby", code).Warn("defeat resolution failed: " + err.Error())
		return
	}
	if committed {
		e.metrics.Inc("defeats")
		e.events.Append(events.New(events.EventTypeDefeat, code, "", 0, ""))
		e.log.With("lobby", code).Info("run over: party defeated")
		e.recordRun(summary)
	}
}

// goldFor applies a player's gold modifiers to the rolled battle payout.
// Item effects come from the registry; doubled is the consumable flag.
func goldFor(p combat.Player, base int, doubled bool) int {
	g := item.BattleGold(base, p.Items)
	if doubled {
		g *= 2
	}
	return g
}
