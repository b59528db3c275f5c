package combat

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/bringtheheat/server/internal/domain/card"
)

// ErrInvalidCharge is returned for a charge outside [0, mana]. The input
// record is never mutated on a validation failure.
var ErrInvalidCharge = errors.New("invalid mana investment")

// Result carries the outcome of a draw, attack, or rest resolution.
type Result struct {
	Player      Player
	DamageDealt int
	Log         []string
}

// Rest healing bounds, as fractions of max HP. Tuned constants.
const (
	restHealMin = 0.20
	restHealMax = 0.25
)

// HandSum sums the numeric tokens of a hand under the active debuff.
// Symbolic tokens contribute zero; under a sum-exclusion debuff, tokens
// equal to the excluded value are skipped. Idempotent, order-independent.
func HandSum(hand []card.Card, debuff Debuff) int {
	sum := 0
	for _, c := range hand {
		v, ok := c.Numeric()
		if !ok {
			continue
		}
		if debuff.Kind == DebuffSumExclusion && v == debuff.Value {
			continue
		}
		sum += v
	}
	return sum
}

// Jackpot computes the player's bust threshold under the active debuff.
// Returns +Inf when the deck config is unknown, which disables busting.
func Jackpot(p Player, debuff Debuff) float64 {
	cfg, ok := card.Lookup(p.DeckID)
	if !ok {
		return math.Inf(1)
	}
	base := float64(cfg.Jackpot)
	switch debuff.Kind {
	case DebuffDoubleJackpot:
		return base * debuff.Factor
	case DebuffDrawDouble:
		// Raising the jackpot, not the sum, is the intended compensation
		// for the doubled draw rate.
		return math.Floor(base * debuff.Factor)
	}
	return base
}

// IsBusted reports whether the hand sum exceeds the jackpot threshold.
func IsBusted(p Player, debuff Debuff) bool {
	return float64(HandSum(p.Hand, debuff)) > Jackpot(p, debuff)
}

// Charge commits mana to the pending attack: needs_mana -> acting.
// A charge attempt with no mana left is terminal defeat. Calls against
// any other status are stale no-ops.
func Charge(p Player, amount int, debuff Debuff) (Player, error) {
	if p.Status != StatusNeedsMana || p.HP <= 0 {
		return p, nil
	}
	if p.Mana <= 0 {
		p.HP = 0
		p.Status = StatusDefeated
		return p, nil
	}
	if amount < 0 || amount > p.Mana {
		return p, ErrInvalidCharge
	}
	p.Charge = amount
	p.Mana -= amount
	p.Status = StatusActing
	p.Sum = HandSum(p.Hand, debuff)
	return p, nil
}

// Draw resolves one draw action: pops a card (reshuffling the deck from
// its static template when empty), applies symbolic effects, and checks
// for a bust after every card. The draw is the player's committed action
// for the turn: a clean draw locks the record to waiting with the charge
// banked, a bust forfeits everything back to needs_mana. Calls against
// any status but acting are stale no-ops.
func Draw(p Player, debuff Debuff, rng *rand.Rand) Result {
	if p.HP <= 0 || p.Status != StatusActing {
		return Result{Player: p}
	}
	if len(p.Deck) == 0 {
		if _, ok := card.Lookup(p.DeckID); !ok {
			// Nothing to draw and no template to reshuffle from.
			return Result{Player: p}
		}
	}

	p.Deck = cloneCards(p.Deck)
	p.Hand = cloneCards(p.Hand)

	var log []string
	busted := false
	for i := 0; i < debuff.DrawCount() && !busted; i++ {
		p, busted, log = drawOne(p, debuff, rng, log, 0)
	}

	if busted {
		over := HandSum(p.Hand, debuff) - int(Jackpot(p, debuff))
		log = append(log, fmt.Sprintf("%s busted, %d over the jackpot!", p.Name, over))
		p = clearBusted(p, &log)
	} else {
		p.Busted = false
		p.Sum = HandSum(p.Hand, debuff)
		p.Status = StatusWaiting
		log = append(log, fmt.Sprintf("%s drew a card.", p.Name))
	}
	return Result{Player: p, Log: log}
}

// drawOne pops a single card and applies its effect. The draw-two token
// chains up to two more draws, bust-checked after each; depth caps the
// chain so a degenerate all-draw2 deck terminates.
func drawOne(p Player, debuff Debuff, rng *rand.Rand, log []string, depth int) (Player, bool, []string) {
	if len(p.Deck) == 0 {
		cfg, ok := card.Lookup(p.DeckID)
		if !ok {
			return p, false, log
		}
		// Decks are templates, not finite resources: reshuffle fresh.
		p.Deck = card.Shuffle(cfg.Build(p.ExtraCards, p.RemovedCards), rng)
		log = append(log, fmt.Sprintf("%s reshuffles a fresh deck.", p.Name))
	}

	drawn := p.Deck[len(p.Deck)-1]
	p.Deck = p.Deck[:len(p.Deck)-1]

	switch drawn {
	case card.CardBonusMana:
		p.Mana += 2
		log = append(log, fmt.Sprintf("%s found a mana surge (+2 mana).", p.Name))
	case card.CardBonusHP:
		p.HP++
		if p.HP > p.MaxHP {
			p.HP = p.MaxHP
		}
		log = append(log, fmt.Sprintf("%s found a salve (+1 hp).", p.Name))
	case card.CardBonusGold:
		p.Gold += 5
		log = append(log, fmt.Sprintf("%s found a coin purse (+5 gold).", p.Name))
	case card.CardDrawTwo:
		log = append(log, fmt.Sprintf("%s drew a chain card!", p.Name))
		if depth < 3 {
			for i := 0; i < 2; i++ {
				var busted bool
				p, busted, log = drawOne(p, debuff, rng, log, depth+1)
				if busted {
					return p, true, log
				}
			}
		}
	default:
		p.Hand = append(p.Hand, drawn)
	}

	p.Sum = HandSum(p.Hand, debuff)
	return p, float64(p.Sum) > Jackpot(p, debuff), log
}

// clearBusted forfeits the hand and the committed charge. A bust with no
// mana in reserve is lethal.
func clearBusted(p Player, log *[]string) Player {
	p.Hand = []card.Card{}
	p.Sum = 0
	p.Charge = 0
	p.Busted = true
	p.Status = StatusNeedsMana
	if p.Mana <= 0 {
		*log = append(*log, fmt.Sprintf("%s had no mana to fall back on!", p.Name))
		p.HP = 0
		p.Status = StatusDefeated
	}
	return p
}

// Attack resolves the committed charge against the current hand sum and
// ends the player's turn: acting -> waiting. Busting at attack time
// behaves exactly like a mid-draw bust and deals no damage. The refund
// is floored once on the combined profit term so fractional multipliers
// cannot leak mana. Calls against any status but acting are stale no-ops
// with zero damage.
func Attack(p Player, debuff Debuff) Result {
	if p.HP <= 0 || p.Status != StatusActing {
		return Result{Player: p}
	}

	p.Sum = HandSum(p.Hand, debuff)
	jackpot := Jackpot(p, debuff)
	if float64(p.Sum) > jackpot {
		var log []string
		log = append(log, fmt.Sprintf("%s busted at the moment of attack!", p.Name))
		p.Hand = cloneCards(p.Hand)
		p = clearBusted(p, &log)
		return Result{Player: p, Log: log}
	}

	cfg, _ := card.Lookup(p.DeckID)
	mult := cfg.Multiplier(p.Sum, jackpot)
	damage := int(math.Floor(float64(p.Charge) * mult))
	refund := p.Charge + int(math.Floor(float64(p.Charge)*(mult-1.0)))

	log := []string{fmt.Sprintf("%s attacks for %d damage!", p.Name, damage)}

	p.Mana += refund
	p.Hand = []card.Card{}
	p.Sum = 0
	p.Charge = 0
	p.Busted = false
	if p.Mana <= 0 {
		log = append(log, fmt.Sprintf("%s's attack wasn't enough to sustain them!", p.Name))
		p.HP = 0
		p.Status = StatusDefeated
	} else {
		p.Status = StatusWaiting
	}
	return Result{Player: p, DamageDealt: damage, Log: log}
}

// Rest heals a single uniform fraction of max HP, clamped.
func Rest(p Player, rng *rand.Rand) Result {
	frac := restHealMin + rng.Float64()*(restHealMax-restHealMin)
	heal := int(math.Floor(frac * float64(p.MaxHP)))
	p.HP += heal
	if p.HP > p.MaxHP {
		p.HP = p.MaxHP
	}
	return Result{
		Player: p,
		Log:    []string{fmt.Sprintf("%s rests and recovers %d hp.", p.Name, heal)},
	}
}
