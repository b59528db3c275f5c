// Package combat contains the pure turn-resolution engine for battles.
// This package is PURE and must NOT import any infrastructure packages.
// Functions take a player record by value and return the updated record;
// they never touch the store or the network.
package combat

// DebuffKind identifies an encounter-wide modifier. The set is closed;
// consumers switch exhaustively over it rather than matching strings.
type DebuffKind string

const (
	DebuffNone          DebuffKind = ""
	DebuffSumExclusion  DebuffKind = "sum_exclusion"
	DebuffDoubleJackpot DebuffKind = "double_jackpot"
	DebuffDrawDouble    DebuffKind = "draw_double"
)

// Debuff is a single encounter-wide modifier applied to elite and boss
// fights. One debuff is active for the whole encounter, or none.
type Debuff struct {
	Kind DebuffKind `json:"kind,omitempty"`
	// Value parameterizes DebuffSumExclusion: numeric cards equal to
	// Value are skipped when computing the hand sum.
	Value int `json:"value,omitempty"`
	// Factor parameterizes the jackpot-scaling kinds.
	Factor float64 `json:"factor,omitempty"`
}

// NoDebuff is the zero modifier.
func NoDebuff() Debuff { return Debuff{} }

// SumExclusion skips cards of the given value from the hand sum.
func SumExclusion(value int) Debuff {
	return Debuff{Kind: DebuffSumExclusion, Value: value}
}

// DoubleJackpot doubles the deck's jackpot threshold.
func DoubleJackpot() Debuff {
	return Debuff{Kind: DebuffDoubleJackpot, Factor: 2.0}
}

// DrawDouble makes every draw action pull two cards. As balance
// compensation the jackpot is raised by the factor (floored) rather than
// the sum being scaled; the asymmetry is deliberate.
func DrawDouble() Debuff {
	return Debuff{Kind: DebuffDrawDouble, Factor: 1.5}
}

// DrawCount reports how many cards a single draw action pulls under the
// debuff.
func (d Debuff) DrawCount() int {
	if d.Kind == DebuffDrawDouble {
		return 2
	}
	return 1
}

// Describe returns the player-facing name of the debuff, empty for none.
func (d Debuff) Describe() string {
	switch d.Kind {
	case DebuffSumExclusion:
		return "Cursed Count: some cards count for nothing"
	case DebuffDoubleJackpot:
		return "Double Jackpot"
	case DebuffDrawDouble:
		return "Frenzied Draw: every draw pulls two cards"
	}
	return ""
}
