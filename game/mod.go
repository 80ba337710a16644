// Package game declares the narrow contract the referee needs from a game
// engine. The engine itself -- state creation, legal action generation,
// chance sampling, observation tensors -- is an external collaborator; this
// package only names the shape the referee depends on, so that it can be
// supplied by any engine that implements it.
package game

// Action identifies a move a player can submit. The wire protocol carries
// actions as decimal integers, so Action is just an int.
type Action int

// InvalidAction is never a legal action for any state; it is used
// internally by the referee to mark a not-yet-decided slot in a vector of
// per-player actions before substitution logic fills it in.
const InvalidAction Action = -1

// ActionProb pairs a chance outcome with its probability, as returned by
// State.ChanceOutcomes.
type ActionProb struct {
	Action Action
	Prob   float64
}

// Game creates initial states and reports the number of seats. It is the
// factory a Referee is constructed against.
type Game interface {
	// Name identifies the game on the wire handshake, e.g. "pennies".
	Name() string
	// NumPlayers is the number of bot seats this game is played with.
	NumPlayers() int
	// NewInitialState returns a fresh state at the start of a match.
	NewInitialState() State
	// MakeObserver returns an Observer producing either the public or the
	// private view of a state, depending on private.
	MakeObserver(private bool) Observer
}

// State is a single, possibly-terminal point in a match. Implementations
// are not required to be immutable; the referee only ever holds one State
// per match and advances it in place via ApplyAction/ApplyActions.
type State interface {
	// IsTerminal reports whether the match has ended.
	IsTerminal() bool
	// IsChanceNode reports whether the next transition is resolved by
	// sampling from ChanceOutcomes rather than by player action.
	IsChanceNode() bool
	// IsSimultaneousNode reports whether every acting player submits an
	// action in the same turn, to be applied together via ApplyActions.
	IsSimultaneousNode() bool
	// IsPlayerActing reports whether seat pl is expected to submit an
	// action this turn (false for a chance node, for eliminated players,
	// or for a sequential node when pl is not CurrentPlayer).
	IsPlayerActing(pl int) bool
	// CurrentPlayer is the acting seat at a sequential node. Its value is
	// unspecified at a chance or simultaneous node.
	CurrentPlayer() int
	// LegalActions lists the actions seat pl may submit this turn. Empty
	// at a chance node or for a non-acting seat.
	LegalActions(pl int) []Action
	// ChanceOutcomes lists the possible outcomes and their probabilities
	// at a chance node. Probabilities sum to 1.
	ChanceOutcomes() []ActionProb
	// ApplyAction advances a sequential or chance node by one action.
	ApplyAction(a Action)
	// ApplyActions advances a simultaneous node; actions is indexed by
	// seat and has one entry per player, including non-acting seats
	// (whose entry is ignored).
	ApplyActions(actions []Action)
	// Returns gives the terminal payoff per seat. Only meaningful once
	// IsTerminal is true.
	Returns() []float64
	// History is the sequence of actions (player and chance) applied so
	// far, used for logging and CSV export.
	History() []Action
}

// Observation is the compressed, byte-level view of a state from one
// player's perspective, ready to be base64-encoded onto the wire. The
// referee never inspects its contents.
type Observation interface {
	// SetFrom recomputes the observation for (state, pl).
	SetFrom(s State, pl int)
	// Bytes returns the compressed tensor.
	Bytes() []byte
}

// Observer constructs Observations. A Game exposes one Observer for the
// public observation type and one for the private type.
type Observer interface {
	NewObservation() Observation
}
