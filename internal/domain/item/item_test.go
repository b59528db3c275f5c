package item

import "testing"

func TestStartingManaBonusStacks(t *testing.T) {
	if got := StartingManaBonus(nil); got != 0 {
		t.Errorf("Expected 0 with no items, got %d", got)
	}
	owned := []string{string(ItemManaLattice), string(ItemManaLattice), string(ItemWhetstone)}
	if got := StartingManaBonus(owned); got != 40 {
		t.Errorf("Expected 40 from two lattices, got %d", got)
	}
}

func TestBattleGoldAppliesBonusesThenDoubling(t *testing.T) {
	if got := BattleGold(100, nil); got != 100 {
		t.Errorf("No items: expected 100, got %d", got)
	}
	coins := []string{string(ItemLuckyCoin), string(ItemLuckyCoin)}
	if got := BattleGold(100, coins); got != 140 {
		t.Errorf("Two coins: expected 140, got %d", got)
	}
	withIdol := append(coins, string(ItemMidasIdol))
	if got := BattleGold(100, withIdol); got != 280 {
		t.Errorf("Coins then idol: expected 280, got %d", got)
	}
}

func TestHasRevivalDiscount(t *testing.T) {
	if HasRevivalDiscount([]string{string(ItemWhetstone)}) {
		t.Errorf("A whetstone must not discount revival")
	}
	if !HasRevivalDiscount([]string{string(ItemPhoenixFeather)}) {
		t.Errorf("The feather must discount revival")
	}
}

func TestRegistryEffectsAreDeclared(t *testing.T) {
	// The engine reads these effects off the registry, so the entries
	// that advertise a number must carry it.
	if Registry[ItemManaLattice].StartingMana != 20 {
		t.Errorf("Mana Lattice must declare its starting mana")
	}
	if Registry[ItemLuckyCoin].GoldBonusPct != 20 {
		t.Errorf("Lucky Coin must declare its gold bonus")
	}
	if !Registry[ItemMidasIdol].DoubleGold {
		t.Errorf("Midas Idol must declare gold doubling")
	}
	if !Registry[ItemPhoenixFeather].RevivalDiscount {
		t.Errorf("Phoenix Feather must declare the revival discount")
	}
}
