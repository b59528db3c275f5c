// Package item defines the permanent item and consumable registries.
// This package is PURE and must NOT import any infrastructure packages.
package item

// Kind names a permanent item. Items marked unique may be owned once;
// the rest stack, each copy applying its effect again.
type Kind string

const (
	ItemWhetstone      Kind = "Whetstone"           // +2 permanent damage, stackable
	ItemHeavyWhetstone Kind = "Heavy Whetstone"     // +5 permanent damage, stackable
	ItemLuckyCoin      Kind = "Lucky Coin"          // +20% gold from battles, stackable
	ItemMidasIdol      Kind = "Midas Idol (unique)" // double gold from battles
	ItemPhoenixFeather Kind = "Phoenix Feather (unique)"
	ItemHeartAmulet    Kind = "Heart Amulet"    // +15 max hp, stackable
	ItemManaLattice    Kind = "Mana Lattice"    // +20 starting mana, stackable
	ItemTrickDeck      Kind = "Trick Deck (unique)"
)

// Definition carries an item's shop metadata and numeric effect.
type Definition struct {
	Name        Kind
	Description string
	Cost        int
	Unique      bool

	// Effects. Zero values mean the item does not touch that stat.
	PermanentDamage int
	GoldBonusPct    int  // additive percentage on battle gold
	DoubleGold      bool // multiplies battle gold by 2
	RevivalDiscount bool // 20% off revival cost
	MaxHPBonus      int
	StartingMana    int
	ExtraDrawCards  int // "draw2" tokens shuffled into the deck
}

// Registry is the master shop list.
var Registry = map[Kind]Definition{
	ItemWhetstone: {
		Name: ItemWhetstone, Cost: 40,
		Description: "A coarse stone. Every attack hits a little harder.",
		PermanentDamage: 2,
	},
	ItemHeavyWhetstone: {
		Name: ItemHeavyWhetstone, Cost: 90,
		Description: "Grinds an edge that does not dull.",
		PermanentDamage: 5,
	},
	ItemLuckyCoin: {
		Name: ItemLuckyCoin, Cost: 50,
		Description: "Monsters drop 20% more gold.",
		GoldBonusPct: 20,
	},
	ItemMidasIdol: {
		Name: ItemMidasIdol, Cost: 150, Unique: true,
		Description: "Everything the party slays turns to gold. Twice over.",
		DoubleGold:  true,
	},
	ItemPhoenixFeather: {
		Name: ItemPhoenixFeather, Cost: 80, Unique: true,
		Description: "Coming back from the dead costs 20% less.",
		RevivalDiscount: true,
	},
	ItemHeartAmulet: {
		Name: ItemHeartAmulet, Cost: 60,
		Description: "+15 max hp, healed on purchase.",
		MaxHPBonus:  15,
	},
	ItemManaLattice: {
		Name: ItemManaLattice, Cost: 70,
		Description: "Start every encounter with +20 mana.",
		StartingMana: 20,
	},
	ItemTrickDeck: {
		Name: ItemTrickDeck, Cost: 100, Unique: true,
		Description: "Two chain cards shuffled into your deck for good.",
		ExtraDrawCards: 2,
	},
}

// Lookup returns the definition for an item kind.
func Lookup(k Kind) (Definition, bool) {
	def, ok := Registry[k]
	return def, ok
}

// RevivalDiscountPct is the flat discount a revival-discount item takes
// off the revival price.
const RevivalDiscountPct = 20

// StartingManaBonus sums the starting-mana effects of the owned items.
// Stacked copies each count.
func StartingManaBonus(owned []string) int {
	bonus := 0
	for _, name := range owned {
		bonus += Registry[Kind(name)].StartingMana
	}
	return bonus
}

// BattleGold applies the owned items' gold effects to a base payout:
// the additive percentage bonuses first, then the doubling.
func BattleGold(base int, owned []string) int {
	pct := 0
	doubled := false
	for _, name := range owned {
		def := Registry[Kind(name)]
		pct += def.GoldBonusPct
		doubled = doubled || def.DoubleGold
	}
	g := base + base*pct/100
	if doubled {
		g *= 2
	}
	return g
}

// HasRevivalDiscount reports whether any owned item discounts revival.
func HasRevivalDiscount(owned []string) bool {
	for _, name := range owned {
		if Registry[Kind(name)].RevivalDiscount {
			return true
		}
	}
	return false
}

// Consumable names a limited-use run modifier. Consumables are counters:
// N remaining encounters, decremented exactly once per encounter they
// affect, applied at encounter initialization.
type Consumable string

const (
	ConsumableDoubleGold   Consumable = "doubleGold"
	ConsumableHalfHPEnemy  Consumable = "halfHpEnemies"
	ConsumableBonusMana    Consumable = "bonusMana"
	ConsumableStartWithTen Consumable = "startWith10"
)

// ConsumableDef describes a consumable's shop entry.
type ConsumableDef struct {
	Name        Consumable
	Description string
	Cost        int
	Charges     int
}

// Consumables is the purchasable consumable list.
var Consumables = map[Consumable]ConsumableDef{
	ConsumableDoubleGold: {
		Name: ConsumableDoubleGold, Cost: 45, Charges: 3,
		Description: "Double gold for the next 3 battles.",
	},
	ConsumableHalfHPEnemy: {
		Name: ConsumableHalfHPEnemy, Cost: 65, Charges: 2,
		Description: "Enemies start at half hp for the next 2 battles.",
	},
	ConsumableBonusMana: {
		Name: ConsumableBonusMana, Cost: 35, Charges: 3,
		Description: "+25 mana at the start of the next 3 battles.",
	},
	ConsumableStartWithTen: {
		Name: ConsumableStartWithTen, Cost: 55, Charges: 2,
		Description: "Begin the next 2 battles with a sum of 10 already dealt.",
	},
}
