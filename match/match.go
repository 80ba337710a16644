// Package match plays a single match of the game between N already-started
// bot channels, enforcing the per-turn protocol state machine: observation
// dispatch, act/ponder waits under a deadline, response validation, and
// game-state advancement.
package match

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/exp/rand"

	"referee/channel"
	"referee/game"
	"referee/protocol"
	"referee/settings"
)

// Play runs one match to completion and returns the terminal state. errs
// must have one entry per seat and is updated in place with the errors
// accumulated during this match; callers reset it before calling Play.
func Play(rng *rand.Rand, g game.Game, bots []*channel.Channel, errs []*protocol.Errors, cfg settings.TournamentSettings) game.State {
	n := g.NumPlayers()

	startPhase(bots, errs, cfg)

	state := g.NewInitialState()
	publicObs := g.MakeObserver(false)
	privateObs := g.MakeObserver(true)

	for !state.IsTerminal() {
		playTurn(rng, state, bots, errs, cfg, n, publicObs, privateObs)
	}

	matchOverPhase(bots, errs, cfg, state)

	return state
}

// startPhase waits, for each bot, for the unprompted "start" acknowledgement
// a bot sends at the beginning of every match (the initial "ready" handshake
// already told it the game; nothing needs to be sent here).
func startPhase(bots []*channel.Channel, errs []*protocol.Errors, cfg settings.TournamentSettings) {
	for _, b := range bots {
		b.StartRead(cfg.TimeoutStartMs)
	}
	time.Sleep(time.Duration(cfg.TimeoutStartMs) * time.Millisecond)
	for pl, b := range bots {
		checkResponse(b, protocol.Start, errs[pl])
	}
}

func playTurn(rng *rand.Rand, state game.State, bots []*channel.Channel, errs []*protocol.Errors, cfg settings.TournamentSettings, n int, publicObs, privateObs game.Observer) {
	onlyPonder := state.IsChanceNode()

	isActing := make([]bool, n)
	for pl := 0; pl < n; pl++ {
		isActing[pl] = state.IsPlayerActing(pl)
	}

	order := rng.Perm(n)

	for _, pl := range order {
		sendObservation(state, bots[pl], pl, isActing[pl], publicObs, privateObs)
	}

	start := time.Now()
	for _, pl := range order {
		if isActing[pl] {
			bots[pl].StartRead(cfg.TimeoutActMs)
		} else {
			bots[pl].StartRead(cfg.TimeoutPonderMs)
		}
	}

	time.Sleep(time.Duration(cfg.TimeoutPonderMs) * time.Millisecond)
	for pl := 0; pl < n; pl++ {
		if isActing[pl] {
			continue
		}
		checkPonder(bots[pl], errs[pl])
	}

	if !onlyPonder {
		deadline := time.Duration(cfg.TimeoutActMs) * time.Millisecond
		for {
			allDone := true
			for pl := 0; pl < n; pl++ {
				if isActing[pl] && !bots[pl].HasRead() {
					allDone = false
					break
				}
			}
			if allDone || time.Since(start) >= deadline {
				break
			}
			time.Sleep(time.Millisecond)
		}
		for _, b := range bots {
			b.CancelReadBlocking()
		}
	}

	actions := make([]game.Action, n)
	for pl := 0; pl < n; pl++ {
		actions[pl] = game.InvalidAction
		if !isActing[pl] {
			continue
		}
		actions[pl] = resolveAction(rng, bots[pl], state.LegalActions(pl), errs[pl], cfg)
	}

	applyTurn(rng, state, actions)
}

func sendObservation(state game.State, bot *channel.Channel, pl int, acting bool, publicObs, privateObs game.Observer) {
	pub := publicObs.NewObservation()
	pub.SetFrom(state, pl)
	priv := privateObs.NewObservation()
	priv.SetFrom(state, pl)

	line := base64.StdEncoding.EncodeToString(pub.Bytes()) + " " + base64.StdEncoding.EncodeToString(priv.Bytes())
	if acting {
		for _, a := range state.LegalActions(pl) {
			line += " " + strconv.Itoa(int(a))
		}
	}
	line += "\n"

	bot.WriteStdin([]byte(line))
}

// checkPonder validates a non-acting bot's response, which must be exactly
// "ponder". A timed-out ponder counts as both a ponder error and a timeout.
// It cancels the read first, for the same reason checkResponse does.
func checkPonder(b *channel.Channel, errs *protocol.Errors) {
	b.CancelReadBlocking()
	if b.IsTimeOut() {
		errs.PonderError++
		errs.TimeOver++
		return
	}
	if !b.HasRead() || b.Response() != protocol.Ponder {
		errs.PonderError++
	}
}

// checkResponse validates that a bot replied with exactly want, counting a
// timeout as both a protocol error and a time-over. It cancels the read
// first so that a reader still in flight is forced to settle on a final
// timedOut/cancelled/lineComplete outcome before being inspected.
func checkResponse(b *channel.Channel, want string, errs *protocol.Errors) {
	b.CancelReadBlocking()
	if b.IsTimeOut() {
		errs.TimeOver++
		errs.ProtocolError++
		return
	}
	if !b.HasRead() || b.Response() != want {
		errs.ProtocolError++
	}
}

// resolveAction turns an acting bot's response into a legal action,
// substituting a uniformly random legal action on any misbehavior, or if
// the bot has already exceeded its error budget for this match.
func resolveAction(rng *rand.Rand, b *channel.Channel, legal []game.Action, errs *protocol.Errors, cfg settings.TournamentSettings) game.Action {
	switch {
	case b.IsTimeOut():
		errs.TimeOver++
		return randomLegal(rng, legal)
	case !b.HasRead():
		errs.ProtocolError++
		return randomLegal(rng, legal)
	}

	value, err := strconv.Atoi(b.Response())
	if err != nil {
		errs.ProtocolError++
		return randomLegal(rng, legal)
	}

	action := game.Action(value)
	if !containsAction(legal, action) {
		errs.IllegalActions++
		return randomLegal(rng, legal)
	}

	if errs.TotalErrors() > cfg.MaxInvalidBehaviors {
		return randomLegal(rng, legal)
	}

	return action
}

func containsAction(legal []game.Action, a game.Action) bool {
	for _, la := range legal {
		if la == a {
			return true
		}
	}
	return false
}

func randomLegal(rng *rand.Rand, legal []game.Action) game.Action {
	if len(legal) == 0 {
		return game.InvalidAction
	}
	return legal[rng.Intn(len(legal))]
}

func applyTurn(rng *rand.Rand, state game.State, actions []game.Action) {
	switch {
	case state.IsChanceNode():
		state.ApplyAction(sampleChance(rng, state.ChanceOutcomes()))
	case state.IsSimultaneousNode():
		state.ApplyActions(actions)
	default:
		state.ApplyAction(actions[state.CurrentPlayer()])
	}
}

func sampleChance(rng *rand.Rand, outcomes []game.ActionProb) game.Action {
	u := rng.Float64()
	cumulative := 0.0
	for _, o := range outcomes {
		cumulative += o.Prob
		if u < cumulative {
			return o.Action
		}
	}
	if len(outcomes) == 0 {
		return game.InvalidAction
	}
	return outcomes[len(outcomes)-1].Action
}

func matchOverPhase(bots []*channel.Channel, errs []*protocol.Errors, cfg settings.TournamentSettings, state game.State) {
	returns := state.Returns()
	for pl, b := range bots {
		score := int(returns[pl])
		b.WriteStdin([]byte(fmt.Sprintf("match over %d\n", score)))
		b.StartRead(cfg.TimeoutMatchOverMs)
	}
	time.Sleep(time.Duration(cfg.TimeoutMatchOverMs) * time.Millisecond)
	for pl, b := range bots {
		checkResponse(b, protocol.MatchOver, errs[pl])
	}
}
