package battle

import (
	"fmt"
	"testing"
	"time"

	"github.com/bringtheheat/server/internal/domain/combat"
	"github.com/bringtheheat/server/internal/domain/monster"
)

func TestAppendLogTrimsPastTheCap(t *testing.T) {
	b := &State{}
	now := time.Now()
	for i := 0; i < MaxLogEntries+20; i++ {
		b.AppendLog(now, fmt.Sprintf("line %d", i))
	}
	if len(b.Log) != MaxLogEntries {
		t.Errorf("Expected %d log entries, got %d", MaxLogEntries, len(b.Log))
	}
	if b.Log[0].Message != "line 20" {
		t.Errorf("Expected the oldest entries dropped, first is %q", b.Log[0].Message)
	}
	if b.Log[len(b.Log)-1].Message != fmt.Sprintf("line %d", MaxLogEntries+19) {
		t.Errorf("Expected the newest entry kept, last is %q", b.Log[len(b.Log)-1].Message)
	}
}

func TestAllWaitingIgnoresTheDead(t *testing.T) {
	b := &State{Players: map[string]combat.Player{
		"p-1": {HP: 50, Status: combat.StatusWaiting},
		"p-2": {HP: 0, Status: combat.StatusDefeated},
	}}
	if !b.AllWaiting() {
		t.Errorf("A dead player must not block the enemy phase")
	}

	b.Players["p-1"] = combat.Player{HP: 50, Status: combat.StatusActing}
	if b.AllWaiting() {
		t.Errorf("An acting player must block the enemy phase")
	}
}

func TestAllWaitingFalseWithNoneLeft(t *testing.T) {
	b := &State{Players: map[string]combat.Player{
		"p-1": {HP: 0, Status: combat.StatusDefeated},
	}}
	if b.AllWaiting() {
		t.Errorf("A wiped party is a loss, not an enemy turn")
	}
}

func TestWonAndLost(t *testing.T) {
	b := &State{
		Monsters: []monster.Instance{{ID: "slime", HP: 0}, {ID: "goblin", HP: 10}},
		Players:  map[string]combat.Player{"p-1": {HP: 20, Status: combat.StatusWaiting}},
	}
	if b.Won() {
		t.Errorf("A living monster means the fight is still on")
	}
	if b.Lost() {
		t.Errorf("A living player means no loss")
	}

	b.Monsters[1].HP = 0
	if !b.Won() {
		t.Errorf("Expected a win with all monsters down")
	}

	b.Players["p-1"] = combat.Player{HP: 0, Status: combat.StatusDefeated}
	if !b.Lost() {
		t.Errorf("Expected a loss with the party down")
	}
}

func TestLivingMonstersReturnsIndexes(t *testing.T) {
	b := &State{Monsters: []monster.Instance{
		{ID: "a", HP: 0}, {ID: "b", HP: 5}, {ID: "c", HP: 1},
	}}
	idx := b.LivingMonsters()
	if len(idx) != 2 || idx[0] != 1 || idx[1] != 2 {
		t.Errorf("Expected living indexes [1 2], got %v", idx)
	}
}
