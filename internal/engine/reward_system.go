package engine

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/bringtheheat/server/internal/domain/card"
	"github.com/bringtheheat/server/internal/domain/combat"
	"github.com/bringtheheat/server/internal/domain/item"
	"github.com/bringtheheat/server/internal/domain/lobby"
	"github.com/bringtheheat/server/internal/domain/monster"
	"github.com/bringtheheat/server/internal/store"
)

// Reward choices are encoded as "kind:value" strings so they survive
// the JSON round trip through the store untyped:
//
//	card:7            add a 7 to your deck
//	item:Lucky Coin   take the item
//	gold:40           take the money
func rewardCard(v int) string     { return "card:" + strconv.Itoa(v) }
func rewardItem(k item.Kind) string { return "item:" + string(k) }
func rewardGold(n int) string     { return "gold:" + strconv.Itoa(n) }

// rollRewards builds one player's post-victory choice list for the
// beaten tier. Gold is always the fallback option.
func (e *Engine) rollRewards(tier monster.Tier) []string {
	switch tier {
	case monster.TierElite:
		items := e.pickItems(2)
		return []string{rewardItem(items[0]), rewardItem(items[1]), rewardGold(40)}
	case monster.TierBoss:
		items := e.pickItems(2)
		return []string{rewardItem(items[0]), rewardItem(items[1]), rewardGold(100)}
	default:
		a := 2 + e.rng.Intn(9)
		b := 2 + e.rng.Intn(9)
		for b == a {
			b = 2 + e.rng.Intn(9)
		}
		return []string{rewardCard(a), rewardCard(b), rewardGold(20)}
	}
}

// pickItems draws n distinct item kinds. Registry keys are sorted first
// so the seeded draw is reproducible.
func (e *Engine) pickItems(n int) []item.Kind {
	kinds := make([]item.Kind, 0, len(item.Registry))
	for k := range item.Registry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	e.shuffleKinds(kinds)
	if n > len(kinds) {
		n = len(kinds)
	}
	return kinds[:n]
}

func (e *Engine) shuffleKinds(kinds []item.Kind) {
	for i := len(kinds) - 1; i > 0; i-- {
		j := e.rng.Intn(i + 1)
		kinds[i], kinds[j] = kinds[j], kinds[i]
	}
}

// ChooseReward takes one of the player's rolled victory choices. Once
// every player has picked, the host loop returns the party to the map.
func (e *Engine) ChooseReward(ctx context.Context, sess Session, choice string) error {
	return e.store.Transaction(ctx, lobbyPath(sess.Lobby), func(cur json.RawMessage) (any, error) {
		if cur == nil {
			return nil, store.ErrNotFound
		}
		var l lobby.Lobby
		if err := json.Unmarshal(cur, &l); err != nil {
			return nil, err
		}
		if l.Game.Status != lobby.StatusVictory {
			return nil, ErrWrongStatus
		}
		offered, ok := l.Rewards[sess.PlayerID]
		if !ok {
			return nil, ErrWrongStatus
		}
		if !contains(offered, choice) {
			return nil, ErrUnknownWares
		}

		p := l.Players[sess.PlayerID]
		applyRewardChoice(&p, choice)
		l.Players[sess.PlayerID] = p
		delete(l.Rewards, sess.PlayerID)
		return l, nil
	})
}

// applyRewardChoice mutates the player for a validated "kind:value"
// choice. A unique item the player already owns converts to half its
// shop price in gold.
func applyRewardChoice(p *combat.Player, choice string) {
	kind, value, _ := strings.Cut(choice, ":")
	switch kind {
	case "gold":
		n, _ := strconv.Atoi(value)
		p.Gold += n
	case "card":
		n, _ := strconv.Atoi(value)
		p.ExtraCards = append(p.ExtraCards, card.NumericCard(n))
	case "item":
		def, ok := item.Lookup(item.Kind(value))
		if !ok {
			return
		}
		if def.Unique && p.HasItem(string(def.Name)) {
			p.Gold += def.Cost / 2
			return
		}
		grantItem(p, def)
	}
}

// grantItem applies an item's immediate effects and adds it to the
// player's inventory. Gold and revival modifiers are read at their
// point of use instead.
func grantItem(p *combat.Player, def item.Definition) {
	p.Items = append(p.Items, string(def.Name))
	p.PermanentDamage += def.PermanentDamage
	if def.MaxHPBonus > 0 {
		p.MaxHP += def.MaxHPBonus
		p.HP += def.MaxHPBonus
	}
	for i := 0; i < def.ExtraDrawCards; i++ {
		p.ExtraCards = append(p.ExtraCards, card.CardDrawTwo)
	}
}
