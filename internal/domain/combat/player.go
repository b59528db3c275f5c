package combat

import (
	"math/rand"

	"github.com/bringtheheat/server/internal/domain/card"
)

// Status is the per-player turn state machine position.
type Status string

const (
	// StatusNeedsMana means the player must commit a charge before acting.
	StatusNeedsMana Status = "needs_mana"
	// StatusActing means a charge is committed and the player may draw
	// or attack.
	StatusActing Status = "acting"
	// StatusWaiting means the player's turn is committed; no further
	// actions until the next player phase.
	StatusWaiting Status = "waiting"
	// StatusDefeated is terminal for the encounter.
	StatusDefeated Status = "defeated"
)

// Player is one living participant's combat record inside an active
// encounter. It doubles as the persisted progression record across
// encounters (gold, items, deck customizations).
type Player struct {
	Name  string `json:"name"`
	HP    int    `json:"hp"`
	MaxHP int    `json:"maxHp"`
	Mana  int    `json:"mana"`

	// Deck is the ordered draw stack; the top is the last element.
	Deck   []card.Card `json:"deck"`
	DeckID string      `json:"deckId"`
	Hand   []card.Card `json:"hand"`

	// Sum caches the numeric hand total under the active debuff; the
	// invariant Sum == HandSum(Hand, debuff) holds after every engine
	// call.
	Sum    int    `json:"sum"`
	Charge int    `json:"charge"`
	Status Status `json:"status"`
	Busted bool   `json:"busted"`

	// Progression, persisted across encounters.
	Gold            int         `json:"gold"`
	Items           []string    `json:"items,omitempty"`
	PermanentDamage int         `json:"permanentDamage"`
	DeathCount      int         `json:"deathCount"`
	ExtraCards      []card.Card `json:"extraCards,omitempty"`
	RemovedCards    []card.Card `json:"removedCards,omitempty"`

	// EventChosen guards unknown-event effects against double application.
	EventChosen bool `json:"eventChosen,omitempty"`
}

// Starting vitals. Tuned constants.
const (
	StartingHP   = 100
	StartingMana = 100
)

// NewPlayer constructs a fully defaulted combat record for an encounter.
// Every field gets its default here, never ad hoc at access sites.
func NewPlayer(name, deckID string, rng *rand.Rand) Player {
	p := Player{
		Name:   name,
		HP:     StartingHP,
		MaxHP:  StartingHP,
		Mana:   StartingMana,
		DeckID: deckID,
		Hand:   []card.Card{},
		Status: StatusNeedsMana,
	}
	if cfg, ok := card.Lookup(deckID); ok {
		p.Deck = card.Shuffle(cfg.Build(nil, nil), rng)
	}
	return p
}

// ResetForEncounter rebuilds the transient combat fields while keeping
// progression (gold, items, deck customizations, death count).
func (p Player) ResetForEncounter(rng *rand.Rand) Player {
	p.Hand = []card.Card{}
	p.Sum = 0
	p.Charge = 0
	p.Busted = false
	p.EventChosen = false
	p.Status = StatusNeedsMana
	if p.HP <= 0 {
		p.Status = StatusDefeated
	}
	if cfg, ok := card.Lookup(p.DeckID); ok {
		p.Deck = card.Shuffle(cfg.Build(p.ExtraCards, p.RemovedCards), rng)
	}
	return p
}

// Alive reports whether the player can still take part in the encounter.
func (p Player) Alive() bool {
	return p.HP > 0 && p.Status != StatusDefeated
}

// HasItem reports whether the player owns at least one copy of an item.
func (p Player) HasItem(name string) bool {
	for _, it := range p.Items {
		if it == name {
			return true
		}
	}
	return false
}

// ItemCount counts copies of a stackable item.
func (p Player) ItemCount(name string) int {
	n := 0
	for _, it := range p.Items {
		if it == name {
			n++
		}
	}
	return n
}

// cloneCards copies a card slice so value-semantics updates never alias
// the caller's backing array.
func cloneCards(cs []card.Card) []card.Card {
	out := make([]card.Card, len(cs))
	copy(out, cs)
	return out
}
