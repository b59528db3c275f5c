// Package monster defines the encounter bestiary and difficulty tiers.
// This package is PURE and must NOT import any infrastructure packages.
package monster

import (
	"math"
	"math/rand"
)

// Tier groups monsters by the map-node difficulty that spawns them.
type Tier string

const (
	TierNormal Tier = "normal"
	TierElite  Tier = "elite"
	TierBoss   Tier = "boss"
)

// Spec is the static description of a monster type.
type Spec struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	HP        int     `json:"hp"`
	Attack    int     `json:"attack"`
	HitChance float64 `json:"hitChance"`
	Tier      Tier    `json:"tier"`
	GoldMin   int     `json:"goldMin"`
	GoldMax   int     `json:"goldMax"`
}

// Instance is one live monster inside a battle.
type Instance struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	HP        int     `json:"hp"`
	MaxHP     int     `json:"maxHp"`
	Attack    int     `json:"attack"`
	HitChance float64 `json:"hitChance"`
	Tier      Tier    `json:"tier"`
	GoldMin   int     `json:"goldMin"`
	GoldMax   int     `json:"goldMax"`
}

// Bestiary holds every monster type, keyed by tier.
var Bestiary = map[Tier][]Spec{
	TierNormal: {
		{ID: "slime", Name: "Vicious Slime", HP: 150, Attack: 5, HitChance: 0.30, Tier: TierNormal, GoldMin: 7, GoldMax: 15},
		{ID: "goblin", Name: "Cave Goblin", HP: 120, Attack: 10, HitChance: 0.40, Tier: TierNormal, GoldMin: 10, GoldMax: 20},
	},
	TierElite: {
		{ID: "stoneGolem", Name: "Stone Golem", HP: 250, Attack: 15, HitChance: 0.60, Tier: TierElite, GoldMin: 40, GoldMax: 60},
		{ID: "arcaneSprite", Name: "Arcane Sprite", HP: 100, Attack: 25, HitChance: 0.50, Tier: TierElite, GoldMin: 50, GoldMax: 75},
	},
	TierBoss: {
		{ID: "nodeGuardian", Name: "The Node Guardian", HP: 300, Attack: 15, HitChance: 0.50, Tier: TierBoss, GoldMin: 200, GoldMax: 250},
	},
}

// loopScale grows monster hp/attack by 35% per completed map loop.
const loopScale = 0.35

// Spawn instantiates a random monster of the tier, scaled for the run's
// loop count. Loop 0 is the first pass.
func Spawn(tier Tier, loop int, rng *rand.Rand) Instance {
	specs := Bestiary[tier]
	s := specs[rng.Intn(len(specs))]
	scale := 1.0 + loopScale*float64(loop)
	hp := int(math.Floor(float64(s.HP) * scale))
	return Instance{
		ID:        s.ID,
		Name:      s.Name,
		HP:        hp,
		MaxHP:     hp,
		Attack:    int(math.Floor(float64(s.Attack) * scale)),
		HitChance: s.HitChance,
		Tier:      s.Tier,
		GoldMin:   int(math.Floor(float64(s.GoldMin) * scale)),
		GoldMax:   int(math.Floor(float64(s.GoldMax) * scale)),
	}
}

// RollGold draws the gold reward for a defeated monster, uniform within
// its configured drop range.
func (m Instance) RollGold(rng *rand.Rand) int {
	if m.GoldMax <= m.GoldMin {
		return m.GoldMin
	}
	return m.GoldMin + rng.Intn(m.GoldMax-m.GoldMin+1)
}
