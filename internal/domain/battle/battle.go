// Package battle defines the shared encounter state owned by the host.
// This package is PURE and must NOT import any infrastructure packages.
package battle

import (
	"time"

	"github.com/bringtheheat/server/internal/domain/combat"
	"github.com/bringtheheat/server/internal/domain/monster"
)

// Phase is the encounter's coarse turn phase.
type Phase string

const (
	PhasePlayerTurn Phase = "PLAYER_TURN"
	PhaseEnemyTurn  Phase = "ENEMY_TURN"
)

// Turn timing. Tuned constants.
const (
	PlayerTurnDuration = 25 * time.Second
	EnemyTurnDuration  = 3 * time.Second
	MaxLogEntries      = 100
)

// LogEntry is one line of the append-only battle log.
type LogEntry struct {
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"` // unix millis
}

// State is the canonical shared battle record. Only the host writes
// phase, monster, and turn fields; each player writes their own
// sub-record via store transactions.
type State struct {
	Phase        Phase                    `json:"phase"`
	PhaseEndTime int64                    `json:"phaseEndTime"` // unix millis deadline
	Monsters     []monster.Instance       `json:"monsters"`
	Players      map[string]combat.Player `json:"players"`
	Turn         int                      `json:"turn"`
	Debuff       combat.Debuff            `json:"debuff,omitempty"`
	Log          []LogEntry               `json:"log,omitempty"`
	// DoubleGold marks players whose doubleGold consumable burned a
	// charge at encounter init; applied when rewards are rolled.
	DoubleGold map[string]bool `json:"doubleGold,omitempty"`
}

// AppendLog adds messages to the battle log, trimming the oldest entries
// past the cap.
func (b *State) AppendLog(now time.Time, messages ...string) {
	for _, m := range messages {
		b.Log = append(b.Log, LogEntry{Message: m, Timestamp: now.UnixMilli()})
	}
	if len(b.Log) > MaxLogEntries {
		b.Log = b.Log[len(b.Log)-MaxLogEntries:]
	}
}

// LivingPlayers returns the ids of players still in the fight.
func (b *State) LivingPlayers() []string {
	var out []string
	for id, p := range b.Players {
		if p.Alive() {
			out = append(out, id)
		}
	}
	return out
}

// AllWaiting reports whether every living player has committed their
// turn; the host advances to the enemy phase when this holds.
func (b *State) AllWaiting() bool {
	living := 0
	for _, p := range b.Players {
		if !p.Alive() {
			continue
		}
		living++
		if p.Status != combat.StatusWaiting {
			return false
		}
	}
	return living > 0
}

// LivingMonsters returns indexes of monsters with hp above zero.
func (b *State) LivingMonsters() []int {
	var out []int
	for i, m := range b.Monsters {
		if m.HP > 0 {
			out = append(out, i)
		}
	}
	return out
}

// Won reports whether every monster is down.
func (b *State) Won() bool {
	return len(b.LivingMonsters()) == 0
}

// Lost reports whether the whole party is down.
func (b *State) Lost() bool {
	return len(b.LivingPlayers()) == 0
}
