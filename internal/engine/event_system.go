package engine

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/bringtheheat/server/internal/domain/card"
	"github.com/bringtheheat/server/internal/domain/combat"
	"github.com/bringtheheat/server/internal/domain/lobby"
	"github.com/bringtheheat/server/internal/events"
	"github.com/bringtheheat/server/internal/store"
)

// Effect pools for unknown-event nodes. Three of the five are offered;
// every player picks one. Encoded "kind:value" like reward choices.
var (
	blessingPool = []string{"gold:50", "maxhp:20", "heal:full", "damage:3", "card:10"}
	cursePool    = []string{"gold:-30", "maxhp:-15", "hp:-25", "card:2", "gold:-60"}
)

// rollEvent flips blessing or curse and deals three effects from the
// matching pool.
func (e *Engine) rollEvent() *lobby.EventState {
	blessing := e.rng.Intn(2) == 0
	pool := cursePool
	if blessing {
		pool = blessingPool
	}
	deck := make([]string, len(pool))
	copy(deck, pool)
	for i := len(deck) - 1; i > 0; i-- {
		j := e.rng.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return &lobby.EventState{Blessing: blessing, Choices: deck[:3]}
}

// ChooseEventEffect applies one of the offered effects to the calling
// player. Each player chooses exactly once per event; the flag on the
// player record makes retries and duplicate messages harmless.
func (e *Engine) ChooseEventEffect(ctx context.Context, sess Session, choice string) error {
	err := e.store.Transaction(ctx, lobbyPath(sess.Lobby), func(cur json.RawMessage) (any, error) {
		if cur == nil {
			return nil, store.ErrNotFound
		}
		var l lobby.Lobby
		if err := json.Unmarshal(cur, &l); err != nil {
			return nil, err
		}
		if l.Game.Status != lobby.StatusEvent || l.Event == nil {
			return nil, ErrWrongStatus
		}
		p, ok := l.Players[sess.PlayerID]
		if !ok || p.HP <= 0 || p.EventChosen {
			return nil, ErrWrongStatus
		}
		if !contains(l.Event.Choices, choice) {
			return nil, ErrUnknownWares
		}
		applyEventEffect(&p, choice)
		p.EventChosen = true
		l.Players[sess.PlayerID] = p
		return l, nil
	})
	if err != nil {
		return err
	}
	e.events.Append(events.New(events.EventTypeEventChoice, sess.Lobby, sess.PlayerID, 0, choice))
	return nil
}

// applyEventEffect mutates the player for a validated effect string.
// Curses never kill and never shrink a player below the floor values.
func applyEventEffect(p *combat.Player, effect string) {
	kind, value, _ := strings.Cut(effect, ":")
	switch kind {
	case "gold":
		n, _ := strconv.Atoi(value)
		p.Gold += n
		if p.Gold < 0 {
			p.Gold = 0
		}
	case "maxhp":
		n, _ := strconv.Atoi(value)
		p.MaxHP += n
		if p.MaxHP < 10 {
			p.MaxHP = 10
		}
		if p.HP > p.MaxHP {
			p.HP = p.MaxHP
		}
		if n > 0 {
			p.HP += n
		}
	case "hp":
		n, _ := strconv.Atoi(value)
		p.HP += n
		if p.HP < 1 {
			p.HP = 1
		}
		if p.HP > p.MaxHP {
			p.HP = p.MaxHP
		}
	case "heal":
		p.HP = p.MaxHP
	case "damage":
		n, _ := strconv.Atoi(value)
		p.PermanentDamage += n
	case "card":
		n, _ := strconv.Atoi(value)
		p.ExtraCards = append(p.ExtraCards, card.NumericCard(n))
	}
}

// evaluateEvent closes the event node once every living player has
// chosen, reopening the map.
func (e *Engine) evaluateEvent(ctx context.Context, code string, l *lobby.Lobby) {
	for _, id := range l.LivingPlayers() {
		if !l.Players[id].EventChosen {
			return
		}
	}

	err := e.store.Transaction(ctx, lobbyPath(code), func(cur json.RawMessage) (any, error) {
		if cur == nil {
			return nil, nil
		}
		var l lobby.Lobby
		if err := json.Unmarshal(cur, &l); err != nil {
			return nil, err
		}
		if l.Game.Status != lobby.StatusEvent {
			return nil, nil
		}
		for _, id := range l.LivingPlayers() {
			if !l.Players[id].EventChosen {
				return nil, nil
			}
		}
		if id := l.Game.CurrentNodeID; id != "" && !l.Game.Cleared(id) {
			l.Game.ClearedNodes = append(l.Game.ClearedNodes, id)
		}
		l.Event = nil
		for id, p := range l.Players {
			p.EventChosen = false
			l.Players[id] = p
		}
		l.Game.Status = lobby.StatusMapVote
		return l, nil
	})
	if err != nil {
		e.log.With("lobby", code).Warn("event close failed: " + err.Error())
	}
}
