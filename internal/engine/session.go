package engine

import "errors"

// Session identifies one connected player's capabilities. It is minted
// by CreateLobby/JoinLobby and carried by the network layer; engine
// methods trust it instead of re-deriving identity from the store.
type Session struct {
	Lobby    string `json:"lobby"`
	PlayerID string `json:"playerId"`
	// IsHost gates the run-level actions (start, continue, tally).
	// Hostship is fixed at creation; it does not migrate.
	IsHost bool `json:"isHost"`
}

// Capability and state errors surfaced to clients.
var (
	ErrNotHost      = errors.New("engine: action requires the host")
	ErrLobbyFull    = errors.New("engine: lobby is full")
	ErrLobbyClosed  = errors.New("engine: game already started")
	ErrNoBattle     = errors.New("engine: no active battle")
	ErrWrongPhase   = errors.New("engine: not the player turn phase")
	ErrWrongStatus  = errors.New("engine: action not allowed in this state")
	ErrNotVotable   = errors.New("engine: node is not reachable from here")
	ErrNotAfford    = errors.New("engine: not enough gold")
	ErrUnknownWares = errors.New("engine: no such shop entry")
	ErrAlreadyOwned = errors.New("engine: unique item already owned")
)

// requireHost rejects run-level actions from non-host sessions.
func requireHost(sess Session) error {
	if !sess.IsHost {
		return ErrNotHost
	}
	return nil
}
