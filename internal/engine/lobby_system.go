package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/bringtheheat/server/internal/domain/combat"
	"github.com/bringtheheat/server/internal/domain/item"
	"github.com/bringtheheat/server/internal/domain/lobby"
	"github.com/bringtheheat/server/internal/events"
	"github.com/bringtheheat/server/internal/mapgen"
	"github.com/bringtheheat/server/internal/store"
)

// codeAlphabet excludes the easily confused glyphs (0/O, 1/I).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 4

// CreateLobby opens a new run with the caller as host.
func (e *Engine) CreateLobby(ctx context.Context, name, deckID string) (Session, error) {
	playerID := "p-" + uuid.NewString()[:8]

	var code string
	for attempt := 0; ; attempt++ {
		code = e.newCode()
		err := e.store.Get(ctx, lobbyPath(code), &struct{}{})
		if err == store.ErrNotFound {
			break
		}
		if err != nil {
			return Session{}, err
		}
		if attempt >= 16 {
			return Session{}, fmt.Errorf("engine: could not allocate a lobby code")
		}
	}

	l := lobby.Lobby{
		Host:    playerID,
		Players: map[string]combat.Player{playerID: combat.NewPlayer(name, deckID, e.rng)},
		Game:    lobby.GameState{Status: lobby.StatusLobby},
	}
	if err := e.store.Set(ctx, lobbyPath(code), l); err != nil {
		return Session{}, err
	}

	e.ensureLoop(code)
	e.metrics.Inc("lobbies_created")
	e.events.Append(events.New(events.EventTypeLobbyCreated, code, playerID, 0, name))
	e.log.With("lobby", code).Infof("lobby created by %s", name)
	return Session{Lobby: code, PlayerID: playerID, IsHost: true}, nil
}

// JoinLobby adds a player to an open lobby.
func (e *Engine) JoinLobby(ctx context.Context, code, name, deckID string) (Session, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	playerID := "p-" + uuid.NewString()[:8]

	err := e.store.Transaction(ctx, lobbyPath(code), func(cur json.RawMessage) (any, error) {
		if cur == nil {
			return nil, store.ErrNotFound
		}
		var l lobby.Lobby
		if err := json.Unmarshal(cur, &l); err != nil {
			return nil, err
		}
		if l.Game.Status != lobby.StatusLobby {
			return nil, ErrLobbyClosed
		}
		if len(l.Players) >= lobby.MaxPlayers {
			return nil, ErrLobbyFull
		}
		l.Players[playerID] = combat.NewPlayer(name, deckID, e.rng)
		return l, nil
	})
	if err != nil {
		return Session{}, err
	}

	e.ensureLoop(code)
	e.events.Append(events.New(events.EventTypePlayerJoined, code, playerID, 0, name))
	return Session{Lobby: code, PlayerID: playerID}, nil
}

// StartGame moves the lobby to the map vote. Host only.
func (e *Engine) StartGame(ctx context.Context, sess Session) error {
	if err := requireHost(sess); err != nil {
		return err
	}
	err := e.store.Transaction(ctx, lobbyPath(sess.Lobby), func(cur json.RawMessage) (any, error) {
		if cur == nil {
			return nil, store.ErrNotFound
		}
		var l lobby.Lobby
		if err := json.Unmarshal(cur, &l); err != nil {
			return nil, err
		}
		if l.Game.Status != lobby.StatusLobby {
			return nil, ErrWrongStatus
		}
		m := mapgen.Generate(e.rng)
		l.Map = &m
		l.Game.Status = lobby.StatusMapVote
		l.Game.CurrentNodeID = ""
		l.Game.ClearedNodes = nil
		return l, nil
	})
	if err != nil {
		return err
	}
	e.metrics.Inc("games_started")
	e.events.Append(events.New(events.EventTypeGameStarted, sess.Lobby, sess.PlayerID, 0, ""))
	return nil
}

// CastVote records a player's pick for the next node. When the last
// living player votes, the same transaction tallies and resolves the
// winning node, so the vote and its consequence commit together.
func (e *Engine) CastVote(ctx context.Context, sess Session, nodeID string) error {
	var resolved mapgen.NodeType

	err := e.store.Transaction(ctx, lobbyPath(sess.Lobby), func(cur json.RawMessage) (any, error) {
		resolved = ""
		if cur == nil {
			return nil, store.ErrNotFound
		}
		var l lobby.Lobby
		if err := json.Unmarshal(cur, &l); err != nil {
			return nil, err
		}
		if l.Game.Status != lobby.StatusMapVote {
			return nil, ErrWrongStatus
		}
		if !contains(l.VotableNodes(), nodeID) {
			return nil, ErrNotVotable
		}
		if l.Votes == nil {
			l.Votes = map[string]string{}
		}
		l.Votes[sess.PlayerID] = nodeID

		living := l.LivingPlayers()
		for _, id := range living {
			if _, ok := l.Votes[id]; !ok {
				return l, nil // still waiting on votes
			}
		}

		winner := e.tally(l.Votes)
		l.Votes = nil
		l.Game.CurrentNodeID = winner
		node := l.Map.Nodes[winner]
		resolved = node.Type
		e.resolveNode(&l, node)
		return l, nil
	})
	if err != nil {
		return err
	}

	e.events.Append(events.New(events.EventTypeVoteCast, sess.Lobby, sess.PlayerID, 0, nodeID))
	if resolved != "" {
		e.metrics.Inc("nodes_resolved")
		e.events.Append(events.New(events.EventTypeNodeResolved, sess.Lobby, "", 0, string(resolved)))
		e.log.With("lobby", sess.Lobby).Infof("party moved to a %s node", resolved)
	}
	return nil
}

// tally picks the most-voted node, breaking ties at random.
func (e *Engine) tally(votes map[string]string) string {
	counts := map[string]int{}
	best := 0
	for _, node := range votes {
		counts[node]++
		if counts[node] > best {
			best = counts[node]
		}
	}
	var top []string
	for node, n := range counts {
		if n == best {
			top = append(top, node)
		}
	}
	// Map iteration order is random but not seedable; sort before the
	// seeded pick so replays stay deterministic.
	sort.Strings(top)
	return top[e.rng.Intn(len(top))]
}

// resolveNode mutates the lobby for the node type the party landed on.
func (e *Engine) resolveNode(l *lobby.Lobby, node mapgen.Node) {
	switch node.Type {
	case mapgen.TypeNormal, mapgen.TypeElite, mapgen.TypeBoss:
		l.Battle = e.buildBattle(l, node.Type)
		l.Game.Status = lobby.StatusBattle
	case mapgen.TypeRest:
		for _, id := range l.LivingPlayers() {
			res := combat.Rest(l.Players[id], e.rng)
			l.Players[id] = res.Player
		}
		l.Game.Status = lobby.StatusRest
	case mapgen.TypeShop:
		l.Shop = e.rollShop()
		l.Game.Status = lobby.StatusShop
	case mapgen.TypeEvent:
		l.Event = e.rollEvent()
		for id, p := range l.Players {
			p.EventChosen = false
			l.Players[id] = p
		}
		l.Game.Status = lobby.StatusEvent
	}
}

// Continue brings the party back to the map from a rest, shop, or
// victory screen. Host only.
func (e *Engine) Continue(ctx context.Context, sess Session) error {
	if err := requireHost(sess); err != nil {
		return err
	}
	return e.returnToMap(ctx, sess.Lobby)
}

// returnToMap closes out the current node and reopens voting.
func (e *Engine) returnToMap(ctx context.Context, code string) error {
	return e.store.Transaction(ctx, lobbyPath(code), func(cur json.RawMessage) (any, error) {
		if cur == nil {
			return nil, store.ErrNotFound
		}
		var l lobby.Lobby
		if err := json.Unmarshal(cur, &l); err != nil {
			return nil, err
		}
		switch l.Game.Status {
		case lobby.StatusRest, lobby.StatusShop, lobby.StatusVictory:
		default:
			return nil, nil // already back, redundant wake-up
		}
		if l.Game.Status == lobby.StatusVictory && len(l.Rewards) > 0 {
			return nil, nil // reward picks still outstanding
		}
		if id := l.Game.CurrentNodeID; id != "" && !l.Game.Cleared(id) {
			l.Game.ClearedNodes = append(l.Game.ClearedNodes, id)
		}
		l.Shop = nil
		l.Event = nil
		l.Rewards = nil
		l.Votes = nil
		l.Game.Status = lobby.StatusMapVote
		return l, nil
	})
}

// Revive brings a fallen player back at full health, paid from their
// own purse. Gold is personal, so teammates cannot foot the bill. The
// price climbs with every death; a Phoenix Feather takes 20% off.
func (e *Engine) Revive(ctx context.Context, sess Session, targetID string) error {
	if targetID != sess.PlayerID {
		return ErrWrongStatus
	}
	var detail string
	err := e.store.Transaction(ctx, lobbyPath(sess.Lobby), func(cur json.RawMessage) (any, error) {
		if cur == nil {
			return nil, store.ErrNotFound
		}
		var l lobby.Lobby
		if err := json.Unmarshal(cur, &l); err != nil {
			return nil, err
		}
		if l.Game.Status == lobby.StatusBattle {
			return nil, ErrWrongStatus
		}
		target, ok := l.Players[targetID]
		if !ok || target.HP > 0 {
			return nil, ErrWrongStatus
		}

		cost := RevivalCost(target)
		if target.Gold < cost {
			return nil, ErrNotAfford
		}
		target.Gold -= cost
		target.HP = target.MaxHP
		target.Status = combat.StatusNeedsMana
		target.DeathCount++
		l.Players[targetID] = target
		detail = fmt.Sprintf("%s paid %d gold to rise again", target.Name, cost)
		return l, nil
	})
	if err != nil {
		return err
	}
	e.metrics.Inc("revivals")
	e.events.Append(events.New(events.EventTypeRevival, sess.Lobby, sess.PlayerID, 0, detail))
	return nil
}

// RevivalCost is 50 gold plus 50 per prior death, discounted per the
// item registry when the target owns a revival-discount item.
func RevivalCost(target combat.Player) int {
	cost := 50 + 50*target.DeathCount
	if item.HasRevivalDiscount(target.Items) {
		cost = cost * (100 - item.RevivalDiscountPct) / 100
	}
	return cost
}

func (e *Engine) newCode() string {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[e.rng.Intn(len(codeAlphabet))]
	}
	return string(b)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

