// Package card defines card tokens and deck configurations.
// This package is PURE and must NOT import any infrastructure packages.
package card

import (
	"math/rand"
	"strconv"
)

// Card is a single deck token. Numeric tokens ("2".."10", possibly
// negative) accumulate into the hand sum. Symbolic tokens trigger a
// one-shot effect at draw time and contribute nothing to the sum.
type Card string

// Symbolic effect tokens.
const (
	CardBonusMana Card = "+2 mana"
	CardBonusHP   Card = "+1 hp"
	CardBonusGold Card = "+5 gold"
	CardDrawTwo   Card = "draw2"
)

// NumericCard builds a numeric token from a value.
func NumericCard(v int) Card {
	return Card(strconv.Itoa(v))
}

// Numeric reports the integer value of the token and whether it is
// numeric at all. Symbolic tokens return (0, false).
func (c Card) Numeric() (int, bool) {
	v, err := strconv.Atoi(string(c))
	if err != nil {
		return 0, false
	}
	return v, true
}

// Count is one entry of a deck's static card population.
type Count struct {
	Value Card `json:"value"`
	N     int  `json:"count"`
}

// Config is the static description of a deck archetype. The multiplier
// curve is a normalized exponential ease from Base (sum 0) to Peak
// (sum == jackpot): base + (peak-base) * (e^(k*x)-1)/(e^(k)-1).
type Config struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Jackpot   int     `json:"jackpot"`
	Base      float64 `json:"base"`
	Peak      float64 `json:"peak"`
	Steepness float64 `json:"steepness"`
	Cards     []Count `json:"cards"`
}

// Build expands the static population into a concrete deck, applying the
// player's persisted customizations. Removed cards knock out one copy
// each; extra cards append one copy each.
func (c Config) Build(extra, removed []Card) []Card {
	deck := make([]Card, 0, 64)
	for _, cc := range c.Cards {
		for i := 0; i < cc.N; i++ {
			deck = append(deck, cc.Value)
		}
	}
	for _, rm := range removed {
		for i, card := range deck {
			if card == rm {
				deck = append(deck[:i], deck[i+1:]...)
				break
			}
		}
	}
	deck = append(deck, extra...)
	return deck
}

// Shuffle permutes a deck in place using the supplied RNG and returns it.
// The top of the deck is the last element; draws pop from the end.
func Shuffle(deck []Card, rng *rand.Rand) []Card {
	for i := len(deck) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck
}
