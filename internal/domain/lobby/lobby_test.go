package lobby

import (
	"math/rand"
	"testing"

	"github.com/bringtheheat/server/internal/domain/combat"
	"github.com/bringtheheat/server/internal/mapgen"
)

func testMap() *mapgen.Map {
	m := mapgen.Generate(rand.New(rand.NewSource(5)))
	return &m
}

func TestVotableNodesStartFromTheEntry(t *testing.T) {
	l := &Lobby{
		Game: GameState{Status: StatusMapVote},
		Map:  testMap(),
	}
	nodes := l.VotableNodes()
	if len(nodes) == 0 {
		t.Fatalf("Expected votable successors from the start node")
	}
	for _, id := range nodes {
		if id == l.Map.StartID() {
			t.Errorf("The start node must not be votable")
		}
	}
}

func TestVotableNodesSkipClearedStops(t *testing.T) {
	l := &Lobby{
		Game: GameState{Status: StatusMapVote},
		Map:  testMap(),
	}
	all := l.VotableNodes()
	if len(all) == 0 {
		t.Fatalf("Need at least one successor for this test")
	}
	l.Game.ClearedNodes = []string{all[0]}

	remaining := l.VotableNodes()
	for _, id := range remaining {
		if id == all[0] {
			t.Errorf("Cleared node %s still offered", id)
		}
	}
	if len(remaining) != len(all)-1 {
		t.Errorf("Expected %d votable nodes, got %d", len(all)-1, len(remaining))
	}
}

func TestVotableNodesOnlyDuringMapVote(t *testing.T) {
	l := &Lobby{
		Game: GameState{Status: StatusBattle},
		Map:  testMap(),
	}
	if nodes := l.VotableNodes(); nodes != nil {
		t.Errorf("Expected no votable nodes outside map_vote, got %v", nodes)
	}
	l.Map = nil
	l.Game.Status = StatusMapVote
	if nodes := l.VotableNodes(); nodes != nil {
		t.Errorf("Expected no votable nodes without a map, got %v", nodes)
	}
}

func TestClearedLookup(t *testing.T) {
	g := GameState{ClearedNodes: []string{"node-3", "node-7"}}
	if !g.Cleared("node-3") {
		t.Errorf("Expected node-3 cleared")
	}
	if g.Cleared("node-4") {
		t.Errorf("Expected node-4 uncleared")
	}
}

func TestLivingPlayersFiltersTheDead(t *testing.T) {
	l := &Lobby{Players: map[string]combat.Player{
		"p-1": {Name: "Ana", HP: 40},
		"p-2": {Name: "Bruno", HP: 0},
	}}
	living := l.LivingPlayers()
	if len(living) != 1 || living[0] != "p-1" {
		t.Errorf("Expected only p-1 living, got %v", living)
	}
}
