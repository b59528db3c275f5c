package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bringtheheat/server/internal/domain/card"
	"github.com/bringtheheat/server/internal/domain/combat"
	"github.com/bringtheheat/server/internal/domain/item"
	"github.com/bringtheheat/server/internal/domain/lobby"
	"github.com/bringtheheat/server/internal/events"
	"github.com/bringtheheat/server/internal/store"
)

// shopStockSize is how many wares a visit puts on the shelf, before the
// two card services.
const shopStockSize = 5

// rollShop draws the visit's stock: five wares without replacement from
// the combined item and consumable pools, plus the card services.
func (e *Engine) rollShop() *lobby.ShopState {
	var pool []lobby.ShopEntry
	itemKinds := make([]item.Kind, 0, len(item.Registry))
	for k := range item.Registry {
		itemKinds = append(itemKinds, k)
	}
	sort.Slice(itemKinds, func(i, j int) bool { return itemKinds[i] < itemKinds[j] })
	for _, k := range itemKinds {
		def := item.Registry[k]
		pool = append(pool, lobby.ShopEntry{Kind: "item", Item: string(def.Name), Cost: def.Cost, Description: def.Description})
	}
	conKinds := make([]item.Consumable, 0, len(item.Consumables))
	for k := range item.Consumables {
		conKinds = append(conKinds, k)
	}
	sort.Slice(conKinds, func(i, j int) bool { return conKinds[i] < conKinds[j] })
	for _, k := range conKinds {
		def := item.Consumables[k]
		pool = append(pool, lobby.ShopEntry{Kind: "consumable", Item: string(def.Name), Cost: def.Cost, Description: def.Description})
	}

	for i := len(pool) - 1; i > 0; i-- {
		j := e.rng.Intn(i + 1)
		pool[i], pool[j] = pool[j], pool[i]
	}
	stock := pool[:shopStockSize]
	stock = append(stock, lobby.ShopEntry{Kind: "addCard", Cost: lobby.AddCardCost, Description: "Add a card of your choice to your deck."})
	stock = append(stock, lobby.ShopEntry{Kind: "removeCard", Cost: lobby.RemoveCardCost, Description: "Strike one card from your deck. Once per visit."})
	return &lobby.ShopState{Stock: stock}
}

// Purchase buys the item or consumable at a stock index. Bought wares
// leave the shelf; the whole party shares the stock.
func (e *Engine) Purchase(ctx context.Context, sess Session, index int) error {
	var bought string
	err := e.store.Transaction(ctx, lobbyPath(sess.Lobby), func(cur json.RawMessage) (any, error) {
		if cur == nil {
			return nil, store.ErrNotFound
		}
		var l lobby.Lobby
		if err := json.Unmarshal(cur, &l); err != nil {
			return nil, err
		}
		if l.Game.Status != lobby.StatusShop || l.Shop == nil {
			return nil, ErrWrongStatus
		}
		if index < 0 || index >= len(l.Shop.Stock) {
			return nil, ErrUnknownWares
		}
		entry := l.Shop.Stock[index]
		p := l.Players[sess.PlayerID]
		if p.Gold < entry.Cost {
			return nil, ErrNotAfford
		}

		switch entry.Kind {
		case "item":
			def, ok := item.Lookup(item.Kind(entry.Item))
			if !ok {
				return nil, ErrUnknownWares
			}
			if def.Unique && p.HasItem(string(def.Name)) {
				return nil, ErrAlreadyOwned
			}
			p.Gold -= entry.Cost
			grantItem(&p, def)
		case "consumable":
			def, ok := item.Consumables[item.Consumable(entry.Item)]
			if !ok {
				return nil, ErrUnknownWares
			}
			p.Gold -= entry.Cost
			if l.Consumables == nil {
				l.Consumables = map[string]map[item.Consumable]int{}
			}
			if l.Consumables[sess.PlayerID] == nil {
				l.Consumables[sess.PlayerID] = map[item.Consumable]int{}
			}
			l.Consumables[sess.PlayerID][def.Name] += def.Charges
		default:
			// Card services go through their own entry points.
			return nil, ErrUnknownWares
		}

		l.Players[sess.PlayerID] = p
		l.Shop.Stock = append(l.Shop.Stock[:index], l.Shop.Stock[index+1:]...)
		bought = entry.Item
		return l, nil
	})
	if err != nil {
		return err
	}
	e.metrics.Inc("purchases")
	e.events.Append(events.New(events.EventTypePurchase, sess.Lobby, sess.PlayerID, 0, bought))
	return nil
}

// BeginAddCard opens the add-a-card flow. No gold moves until the card
// is actually chosen.
func (e *Engine) BeginAddCard(ctx context.Context, sess Session) error {
	return e.store.Transaction(ctx, lobbyPath(sess.Lobby), func(cur json.RawMessage) (any, error) {
		if cur == nil {
			return nil, store.ErrNotFound
		}
		var l lobby.Lobby
		if err := json.Unmarshal(cur, &l); err != nil {
			return nil, err
		}
		if l.Game.Status != lobby.StatusShop || l.Shop == nil {
			return nil, ErrWrongStatus
		}
		if l.Players[sess.PlayerID].Gold < lobby.AddCardCost {
			return nil, ErrNotAfford
		}
		if l.Shop.PendingCardAdds == nil {
			l.Shop.PendingCardAdds = map[string]bool{}
		}
		l.Shop.PendingCardAdds[sess.PlayerID] = true
		return l, nil
	})
}

// ChooseAddCard completes the add-a-card flow: charges the fee and adds
// the chosen value to the player's permanent deck customizations.
func (e *Engine) ChooseAddCard(ctx context.Context, sess Session, value int) error {
	if value < 2 || value > 10 {
		return ErrUnknownWares
	}
	err := e.store.Transaction(ctx, lobbyPath(sess.Lobby), func(cur json.RawMessage) (any, error) {
		if cur == nil {
			return nil, store.ErrNotFound
		}
		var l lobby.Lobby
		if err := json.Unmarshal(cur, &l); err != nil {
			return nil, err
		}
		if l.Game.Status != lobby.StatusShop || l.Shop == nil || !l.Shop.PendingCardAdds[sess.PlayerID] {
			return nil, ErrWrongStatus
		}
		p := l.Players[sess.PlayerID]
		if p.Gold < lobby.AddCardCost {
			return nil, ErrNotAfford
		}
		p.Gold -= lobby.AddCardCost
		p.ExtraCards = append(p.ExtraCards, card.NumericCard(value))
		l.Players[sess.PlayerID] = p
		delete(l.Shop.PendingCardAdds, sess.PlayerID)
		return l, nil
	})
	if err != nil {
		return err
	}
	e.events.Append(events.New(events.EventTypePurchase, sess.Lobby, sess.PlayerID, 0, fmt.Sprintf("added a %d to their deck", value)))
	return nil
}

// RemoveCard strikes one copy of a card value from the player's deck,
// once per shop visit.
func (e *Engine) RemoveCard(ctx context.Context, sess Session, value int) error {
	err := e.store.Transaction(ctx, lobbyPath(sess.Lobby), func(cur json.RawMessage) (any, error) {
		if cur == nil {
			return nil, store.ErrNotFound
		}
		var l lobby.Lobby
		if err := json.Unmarshal(cur, &l); err != nil {
			return nil, err
		}
		if l.Game.Status != lobby.StatusShop || l.Shop == nil {
			return nil, ErrWrongStatus
		}
		if l.Shop.CardRemovals[sess.PlayerID] {
			return nil, ErrWrongStatus
		}
		p := l.Players[sess.PlayerID]
		if p.Gold < lobby.RemoveCardCost {
			return nil, ErrNotAfford
		}
		target := card.NumericCard(value)
		if !deckContains(p, target) {
			return nil, ErrUnknownWares
		}
		p.Gold -= lobby.RemoveCardCost
		p.RemovedCards = append(p.RemovedCards, target)
		l.Players[sess.PlayerID] = p
		if l.Shop.CardRemovals == nil {
			l.Shop.CardRemovals = map[string]bool{}
		}
		l.Shop.CardRemovals[sess.PlayerID] = true
		return l, nil
	})
	if err != nil {
		return err
	}
	e.events.Append(events.New(events.EventTypePurchase, sess.Lobby, sess.PlayerID, 0, fmt.Sprintf("removed a %d from their deck", value)))
	return nil
}

// deckContains checks the player's effective deck template for at least
// one copy of the card.
func deckContains(p combat.Player, target card.Card) bool {
	cfg, ok := card.Lookup(p.DeckID)
	if !ok {
		return false
	}
	for _, c := range cfg.Build(p.ExtraCards, p.RemovedCards) {
		if c == target {
			return true
		}
	}
	return false
}
