// Package refgame implements one small reference game, matching pennies,
// against the game package's contract. The referee's own concern is the
// protocol and tournament machinery, not game rules; this package exists
// only to give that machinery something real to referee in tests and as
// the CLI's default game.
package refgame

import (
	"bytes"
	"encoding/gob"

	"github.com/klauspost/compress/flate"

	"referee/game"
)

// choiceActions are the only two legal actions at the simultaneous-move
// round: guess heads (0) or tails (1).
var choiceActions = []game.Action{0, 1}

type pennies struct{}

// NewPennies returns the matching-pennies reference game: a chance node
// picks a "first" seat, then both seats simultaneously guess 0 or 1, and
// whoever's guesses differ splits +1/-1 (a match on the same guess ties).
func NewPennies() game.Game { return pennies{} }

func (pennies) Name() string    { return "pennies" }
func (pennies) NumPlayers() int { return 2 }

func (pennies) NewInitialState() game.State {
	return &state{firstPlayer: -1, choices: [2]game.Action{game.InvalidAction, game.InvalidAction}}
}

func (pennies) MakeObserver(private bool) game.Observer {
	return observer{private: private}
}

// phase tracks progress through the match: the chance node that assigns a
// first player, the simultaneous guessing round, and the terminal state.
type phase int

const (
	phaseChance phase = iota
	phaseChoice
	phaseTerminal
)

type state struct {
	phase       phase
	firstPlayer int
	choices     [2]game.Action
	history     []game.Action
}

func (s *state) IsTerminal() bool           { return s.phase == phaseTerminal }
func (s *state) IsChanceNode() bool         { return s.phase == phaseChance }
func (s *state) IsSimultaneousNode() bool   { return s.phase == phaseChoice }
func (s *state) IsPlayerActing(pl int) bool { return s.phase == phaseChoice }

// CurrentPlayer is unspecified at pennies' chance and simultaneous nodes;
// there is no sequential node in this game.
func (s *state) CurrentPlayer() int { return -1 }

func (s *state) LegalActions(pl int) []game.Action {
	if s.phase != phaseChoice {
		return nil
	}
	return choiceActions
}

func (s *state) ChanceOutcomes() []game.ActionProb {
	if s.phase != phaseChance {
		return nil
	}
	return []game.ActionProb{{Action: 0, Prob: 0.5}, {Action: 1, Prob: 0.5}}
}

func (s *state) ApplyAction(a game.Action) {
	if s.phase != phaseChance {
		panic("refgame: ApplyAction called outside the chance node")
	}
	s.firstPlayer = int(a)
	s.history = append(s.history, a)
	s.phase = phaseChoice
}

func (s *state) ApplyActions(actions []game.Action) {
	if s.phase != phaseChoice {
		panic("refgame: ApplyActions called outside the simultaneous node")
	}
	s.choices[0] = actions[0]
	s.choices[1] = actions[1]
	s.history = append(s.history, actions[0], actions[1])
	s.phase = phaseTerminal
}

func (s *state) Returns() []float64 {
	if s.phase != phaseTerminal {
		return []float64{0, 0}
	}
	if s.choices[0] == s.choices[1] {
		return []float64{0, 0}
	}
	if s.choices[0] == 0 {
		return []float64{1, -1}
	}
	return []float64{-1, 1}
}

func (s *state) History() []game.Action { return s.history }

// observer produces either the public or the private observation of a
// pennies state.
type observer struct {
	private bool
}

func (o observer) NewObservation() game.Observation {
	return &observation{private: o.private}
}

// payload is the gob-encoded, then DEFLATE-compressed, wire form of a
// pennies observation. OwnChoice is only populated in the private view.
type payload struct {
	Phase       int
	FirstPlayer int
	History     []int
	OwnChoice   int
}

type observation struct {
	private bool
	bytes   []byte
}

func (o *observation) SetFrom(s game.State, pl int) {
	st := s.(*state)

	p := payload{
		Phase:       int(st.phase),
		FirstPlayer: st.firstPlayer,
		OwnChoice:   int(game.InvalidAction),
	}
	for _, a := range st.history {
		p.History = append(p.History, int(a))
	}
	if o.private {
		p.OwnChoice = int(st.choices[pl])
	}

	var encoded bytes.Buffer
	if err := gob.NewEncoder(&encoded).Encode(p); err != nil {
		panic(err) // payload is a plain value type; encoding cannot fail.
	}

	var compressed bytes.Buffer
	fw, err := flate.NewWriter(&compressed, flate.DefaultCompression)
	if err != nil {
		panic(err) // flate.NewWriter only fails on an invalid compression level.
	}
	if _, err := fw.Write(encoded.Bytes()); err != nil {
		panic(err)
	}
	if err := fw.Close(); err != nil {
		panic(err)
	}

	o.bytes = compressed.Bytes()
}

func (o *observation) Bytes() []byte { return o.bytes }
