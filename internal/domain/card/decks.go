package card

import "math"

// Registry contains the four playable deck archetypes. Jackpots and curve
// parameters are tuned constants, not derived values.
var Registry = map[string]Config{
	"deck1": {
		ID: "deck1", Name: "Standard Issue",
		Jackpot: 21, Base: 0.45, Peak: 9.0, Steepness: 3.0,
		Cards: []Count{
			{Value: "2", N: 4}, {Value: "3", N: 4}, {Value: "4", N: 4},
			{Value: "5", N: 4}, {Value: "6", N: 4}, {Value: "7", N: 4},
			{Value: "8", N: 4}, {Value: "9", N: 4}, {Value: "10", N: 4},
		},
	},
	"deck2": {
		ID: "deck2", Name: "Pyramid Scheme",
		Jackpot: 20, Base: 0.40, Peak: 7.0, Steepness: 2.6,
		Cards: []Count{
			{Value: "1", N: 1}, {Value: "2", N: 2}, {Value: "3", N: 3},
			{Value: "4", N: 4}, {Value: "5", N: 5}, {Value: "6", N: 6},
			{Value: "7", N: 7}, {Value: "8", N: 8},
		},
	},
	"deck3": {
		ID: "deck3", Name: "High Stakes",
		Jackpot: 10, Base: 0.30, Peak: 14.0, Steepness: 4.2,
		Cards: []Count{
			{Value: "1", N: 10}, {Value: "2", N: 10}, {Value: "3", N: 10},
			{Value: "10", N: 6},
		},
	},
	"deck4": {
		ID: "deck4", Name: "Low Roller",
		Jackpot: 21, Base: 0.55, Peak: 4.5, Steepness: 2.0,
		Cards: []Count{
			{Value: "1", N: 12}, {Value: "2", N: 12}, {Value: "3", N: 12},
		},
	},
}

// Lookup returns the config for a deck id.
func Lookup(id string) (Config, bool) {
	c, ok := Registry[id]
	return c, ok
}

// Multiplier evaluates the deck's payout curve for a hand sum against a
// (possibly debuff-scaled) jackpot. Monotonically non-decreasing on
// [0, jackpot]. Sums beyond the jackpot clamp to the peak; busted hands
// never reach this point through the engine.
func (c Config) Multiplier(sum int, jackpot float64) float64 {
	if jackpot <= 0 || math.IsInf(jackpot, 1) {
		return c.Base
	}
	x := float64(sum) / jackpot
	if x < 0 {
		x = 0
	}
	if x > 1 {
		x = 1
	}
	k := c.Steepness
	return c.Base + (c.Peak-c.Base)*(math.Expm1(k*x))/(math.Expm1(k))
}
