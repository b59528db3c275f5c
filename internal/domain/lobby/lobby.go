// Package lobby defines the top-level shared document for one party:
// roster, run progress, map, votes, and the nested battle/shop/event
// state for the current node.
// This package is PURE and must NOT import any infrastructure packages.
package lobby

import (
	"github.com/bringtheheat/server/internal/domain/battle"
	"github.com/bringtheheat/server/internal/domain/combat"
	"github.com/bringtheheat/server/internal/domain/item"
	"github.com/bringtheheat/server/internal/mapgen"
)

// Status is the run-level state machine position.
type Status string

const (
	StatusLobby   Status = "lobby"
	StatusMapVote Status = "map_vote"
	StatusBattle  Status = "battle"
	StatusRest    Status = "rest"
	StatusShop    Status = "shop"
	StatusEvent   Status = "event"
	StatusVictory Status = "victory"
	StatusDefeat  Status = "defeat"
)

// MaxPlayers caps the party size.
const MaxPlayers = 4

// GameState tracks the party's progress through the run.
type GameState struct {
	Status        Status   `json:"status"`
	CurrentNodeID string   `json:"currentNodeId,omitempty"`
	ClearedNodes  []string `json:"clearedNodes,omitempty"`
	// Loop counts completed boss kills; monster scaling and rewards key
	// off it.
	Loop int `json:"loop"`
}

// Cleared reports whether a node was already resolved this loop.
func (g GameState) Cleared(nodeID string) bool {
	for _, id := range g.ClearedNodes {
		if id == nodeID {
			return true
		}
	}
	return false
}

// ShopState is the stock presented on a shop node visit.
type ShopState struct {
	Stock []ShopEntry `json:"stock"`
	// CardRemovals tracks which players already used their one card
	// removal this visit.
	CardRemovals map[string]bool `json:"cardRemovals,omitempty"`
	// PendingCardAdds holds playerIDs mid way through the add-card
	// sub-interaction; gold is charged only when the card is chosen.
	PendingCardAdds map[string]bool `json:"pendingCardAdds,omitempty"`
}

// ShopEntry is one purchasable line: a permanent item, a consumable, or
// one of the card services.
type ShopEntry struct {
	Kind        string `json:"kind"` // "item", "consumable", "addCard", "removeCard"
	Item        string `json:"item,omitempty"`
	Cost        int    `json:"cost"`
	Description string `json:"description,omitempty"`
}

// Card service pricing. Tuned constants.
const (
	AddCardCost    = 30
	RemoveCardCost = 40
)

// EventState is an unrolled unknown-event node: a blessing or a curse
// with three offered effects.
type EventState struct {
	Blessing bool     `json:"blessing"`
	Choices  []string `json:"choices"`
}

// Lobby is the whole shared document for one party, rooted at
// lobbies/{code} in the store.
type Lobby struct {
	Host    string                   `json:"host"`
	Players map[string]combat.Player `json:"players"`
	Game    GameState                `json:"gameState"`
	Map     *mapgen.Map              `json:"map,omitempty"`
	Votes   map[string]string        `json:"votes,omitempty"`
	Battle  *battle.State            `json:"battle,omitempty"`
	Shop    *ShopState               `json:"shop,omitempty"`
	Event   *EventState              `json:"event,omitempty"`
	// Consumables: playerID -> consumable -> remaining encounter charges.
	Consumables map[string]map[item.Consumable]int `json:"consumables,omitempty"`
	// Rewards: per-player post-victory choices not yet taken. The run
	// returns to the map once the map is empty.
	Rewards map[string][]string `json:"rewards,omitempty"`
}

// LivingPlayers returns ids of roster members with hp above zero.
func (l *Lobby) LivingPlayers() []string {
	var out []string
	for id, p := range l.Players {
		if p.HP > 0 {
			out = append(out, id)
		}
	}
	return out
}

// VotableNodes returns the ids the party may vote for from its current
// position: the successors of the current node not yet cleared, or the
// start node's successors on a fresh map.
func (l *Lobby) VotableNodes() []string {
	if l.Map == nil || l.Game.Status != StatusMapVote {
		return nil
	}
	from := l.Game.CurrentNodeID
	if from == "" {
		from = l.Map.StartID()
	}
	var out []string
	for _, id := range l.Map.Successors(from) {
		if !l.Game.Cleared(id) {
			out = append(out, id)
		}
	}
	return out
}
