package card

import (
	"math/rand"
	"testing"
)

func TestLookupKnowsAllFourDecks(t *testing.T) {
	for _, id := range []string{"deck1", "deck2", "deck3", "deck4"} {
		cfg, ok := Lookup(id)
		if !ok {
			t.Errorf("Expected deck %s in the registry", id)
			continue
		}
		if cfg.Jackpot <= 0 {
			t.Errorf("Deck %s has a non-positive jackpot %d", id, cfg.Jackpot)
		}
		if cfg.Peak <= cfg.Base {
			t.Errorf("Deck %s curve must rise: base=%v peak=%v", id, cfg.Base, cfg.Peak)
		}
	}
	if _, ok := Lookup("deck99"); ok {
		t.Errorf("Expected an unknown deck id to miss")
	}
}

func TestNumericParsesOnlyNumberTokens(t *testing.T) {
	if v, ok := Card("7").Numeric(); !ok || v != 7 {
		t.Errorf("Expected (7, true), got (%d, %v)", v, ok)
	}
	if v, ok := Card("-3").Numeric(); !ok || v != -3 {
		t.Errorf("Expected (-3, true), got (%d, %v)", v, ok)
	}
	if _, ok := CardDrawTwo.Numeric(); ok {
		t.Errorf("Symbolic token must not parse as numeric")
	}
}

func TestBuildAppliesCustomizations(t *testing.T) {
	cfg, _ := Lookup("deck1")
	base := cfg.Build(nil, nil)
	if len(base) != 36 {
		t.Fatalf("Expected 36 cards in deck1, got %d", len(base))
	}

	deck := cfg.Build([]Card{"10", CardDrawTwo}, []Card{"2", "2"})
	if len(deck) != 36 {
		t.Errorf("Expected 36 cards after +2/-2 customization, got %d", len(deck))
	}
	twos := 0
	for _, c := range deck {
		if c == "2" {
			twos++
		}
	}
	if twos != 2 {
		t.Errorf("Expected 2 copies of the 2 left after removals, got %d", twos)
	}
	found := false
	for _, c := range deck {
		if c == CardDrawTwo {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected the extra draw2 token in the built deck")
	}
}

func TestBuildIgnoresRemovalsNotInTheDeck(t *testing.T) {
	cfg, _ := Lookup("deck4")
	deck := cfg.Build(nil, []Card{"10"})
	if len(deck) != 36 {
		t.Errorf("Removing an absent card must be a no-op, got %d cards", len(deck))
	}
}

func TestShuffleKeepsThePopulation(t *testing.T) {
	cfg, _ := Lookup("deck2")
	rng := rand.New(rand.NewSource(7))

	count := func(deck []Card) map[Card]int {
		m := map[Card]int{}
		for _, c := range deck {
			m[c]++
		}
		return m
	}

	before := count(cfg.Build(nil, nil))
	after := count(Shuffle(cfg.Build(nil, nil), rng))
	for c, n := range before {
		if after[c] != n {
			t.Errorf("Shuffle changed the count of %s: %d -> %d", c, n, after[c])
		}
	}
}

func TestMultiplierIsMonotonicUpToTheJackpot(t *testing.T) {
	for id := range Registry {
		cfg := Registry[id]
		jackpot := float64(cfg.Jackpot)
		prev := cfg.Multiplier(0, jackpot)
		if prev != cfg.Base {
			t.Errorf("Deck %s: sum 0 must pay the base %v, got %v", id, cfg.Base, prev)
		}
		for sum := 1; sum <= cfg.Jackpot; sum++ {
			m := cfg.Multiplier(sum, jackpot)
			if m < prev {
				t.Errorf("Deck %s: multiplier fell from %v to %v at sum %d", id, prev, m, sum)
			}
			prev = m
		}
	}
}

func TestMultiplierClampsBeyondTheJackpot(t *testing.T) {
	cfg, _ := Lookup("deck3")
	atJackpot := cfg.Multiplier(cfg.Jackpot, float64(cfg.Jackpot))
	beyond := cfg.Multiplier(cfg.Jackpot+50, float64(cfg.Jackpot))
	if beyond != atJackpot {
		t.Errorf("Expected clamp at the peak: %v vs %v", beyond, atJackpot)
	}
}
