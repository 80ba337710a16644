// Package referee runs a tournament: it owns one channel per bot seat,
// drives matches through the match package, maintains per-bot error
// counters, and applies the restart/disqualification policy between
// matches.
package referee

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"

	"referee/channel"
	"referee/game"
	"referee/match"
	"referee/metrics"
	"referee/protocol"
	"referee/results"
	"referee/settings"
)

// Referee owns the bot channels for one tournament and drives it to
// completion.
type Referee struct {
	game        game.Game
	executables []string
	settings    settings.TournamentSettings
	rng         *rand.Rand
	sink        *channel.Sink
	log         zerolog.Logger

	bots []*channel.Channel
	errs []protocol.Errors

	metrics *metrics.Recorder

	// botArgs/botEnv let tests within this package launch each bot with
	// distinct args/environment (e.g. to re-exec the test binary as a
	// scripted bot per seat); both are nil in normal use, in which case
	// StartPlayer launches the bare executable with no extra args and an
	// inherited environment.
	botArgs [][]string
	botEnv  [][]string
}

// AttachMetrics enables Prometheus instrumentation of subsequent matches.
// Purely additive: it never changes PlayTournament's return value or
// control flow.
func (r *Referee) AttachMetrics(rec *metrics.Recorder) { r.metrics = rec }

// New validates its arguments and returns a Referee ready to play a
// tournament. It fails if executables is empty, its length does not match
// the game's seat count, or any entry does not exist or is not executable.
func New(g game.Game, executables []string, cfg settings.TournamentSettings, seed uint64, logger zerolog.Logger) (*Referee, error) {
	if len(executables) == 0 {
		return nil, errors.New("referee: executables list is empty")
	}
	if len(executables) != g.NumPlayers() {
		return nil, fmt.Errorf("referee: got %d executables, game %q needs %d players", len(executables), g.Name(), g.NumPlayers())
	}
	for i, exe := range executables {
		info, err := os.Stat(exe)
		if err != nil {
			return nil, fmt.Errorf("referee: bot#%d executable %q: %w", i, exe, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("referee: bot#%d executable %q is a directory", i, exe)
		}
		if info.Mode()&0111 == 0 {
			return nil, fmt.Errorf("referee: bot#%d executable %q is not executable", i, exe)
		}
	}

	n := g.NumPlayers()
	return &Referee{
		game:        g,
		executables: executables,
		settings:    cfg,
		rng:         rand.New(rand.NewSource(seed)),
		sink:        channel.NewSink(os.Stderr),
		log:         logger,
		bots:        make([]*channel.Channel, n),
		errs:        make([]protocol.Errors, n),
	}, nil
}

// StartPlayers starts every bot and performs its initial handshake,
// returning a per-seat boolean reporting whether it replied "ready" in
// time.
func (r *Referee) StartPlayers() []bool {
	ready := make([]bool, r.game.NumPlayers())
	for pl := range ready {
		ready[pl] = r.StartPlayer(pl)
	}
	return ready
}

// StartPlayer launches bot pl's executable and sends the handshake
// (game name, then seat index), returning whether it replied "ready"
// within TimeoutReadyMs.
func (r *Referee) StartPlayer(pl int) bool {
	var args, env []string
	if r.botArgs != nil {
		args = r.botArgs[pl]
	}
	if r.botEnv != nil {
		env = r.botEnv[pl]
	}
	ch, err := channel.Start(pl, r.executables[pl], args, env, r.sink)
	if err != nil {
		r.log.Error().Err(err).Int("bot", pl).Msg("failed to start bot")
		return false
	}
	r.bots[pl] = ch

	if err := ch.WriteStdin([]byte(fmt.Sprintf("%s\n%d\n", r.game.Name(), pl))); err != nil {
		r.log.Error().Err(err).Int("bot", pl).Msg("failed to send handshake")
		return false
	}

	ch.StartRead(r.settings.TimeoutReadyMs)
	time.Sleep(time.Duration(r.settings.TimeoutReadyMs) * time.Millisecond)
	ch.CancelReadBlocking()

	ok := ch.HasRead() && !ch.IsTimeOut() && ch.Response() == protocol.Ready
	if !ok {
		r.log.Warn().Int("bot", pl).Str("response", ch.Response()).Bool("timed_out", ch.IsTimeOut()).Msg("bot failed ready handshake")
	}
	return ok
}

// ShutDownPlayers shuts down and releases every started bot.
func (r *Referee) ShutDownPlayers() {
	for pl := range r.bots {
		r.ShutDownPlayer(pl)
	}
}

// ShutDownPlayer shuts down, joins, and releases bot pl's channel, if any.
func (r *Referee) ShutDownPlayer(pl int) {
	ch := r.bots[pl]
	if ch == nil {
		return
	}
	ch.ShutDown()
	ch.Wait()
	if err := ch.Release(); err != nil {
		r.log.Debug().Err(err).Int("bot", pl).Msg("bot process exited")
	}
	r.bots[pl] = nil
}

// RestartPlayer shuts down and relaunches bot pl, returning whether the
// new instance passed its ready handshake.
func (r *Referee) RestartPlayer(pl int) bool {
	r.ShutDownPlayer(pl)
	return r.StartPlayer(pl)
}

// TournamentOver notifies every live bot that the tournament has ended and
// waits out the grace delay. No responses are checked.
func (r *Referee) TournamentOver() {
	for _, ch := range r.bots {
		if ch != nil {
			ch.WriteStdin([]byte(protocol.TournamentOver + "\n"))
		}
	}
	time.Sleep(time.Duration(r.settings.TimeTournamentOverMs) * time.Millisecond)
}

// PlayTournament plays up to numMatches matches, applying the
// restart/disqualification policy between them, and returns the
// accumulated results.
func (r *Referee) PlayTournament(numMatches int) *results.TournamentResults {
	n := r.game.NumPlayers()
	res := results.New(n)

	ready := r.StartPlayers()
	anyFailed := false
	for pl, ok := range ready {
		if !ok {
			res.CorruptedMatches[pl] = numMatches
			anyFailed = true
		}
	}
	if anyFailed {
		r.log.Error().Msg("not all bots passed the ready handshake; tournament aborted")
		r.ShutDownPlayers()
		return res
	}

	threshold := r.settings.CorruptionThreshold(numMatches)

	for m := 1; m <= numMatches; m++ {
		for pl := range r.errs {
			r.errs[pl].Reset()
		}

		matchStart := time.Now()
		state := match.Play(r.rng, r.game, r.bots, r.errsPointers(), r.settings)

		r.log.Debug().Int("match", m).Interface("returns", state.Returns()).Msg("match complete")

		res.Update(results.MatchResult{
			State:  state,
			Errors: append([]protocol.Errors(nil), r.errs...),
		})

		if r.metrics != nil {
			counts := make([][4]int, n)
			for pl, e := range r.errs {
				counts[pl] = [4]int{e.ProtocolError, e.IllegalActions, e.PonderError, e.TimeOver}
			}
			r.metrics.RecordMatch(time.Since(matchStart), counts)
		}

		disqualifiedNow := false
		for pl := 0; pl < n; pl++ {
			if !results.Corrupted(r.errs[pl], r.settings.MaxInvalidBehaviors) {
				continue
			}
			res.CorruptedMatches[pl]++
			if res.CorruptedMatches[pl] > threshold {
				res.Disqualified[pl] = true
				disqualifiedNow = true
				r.log.Warn().Int("bot", pl).Int("match", m).Msg("bot disqualified")
				continue
			}
			res.Restarts[pl]++
			r.RestartPlayer(pl)
		}

		if disqualifiedNow {
			r.TournamentOver()
			r.ShutDownPlayers()
			return res
		}
	}

	r.TournamentOver()
	r.ShutDownPlayers()
	return res
}

func (r *Referee) errsPointers() []*protocol.Errors {
	ptrs := make([]*protocol.Errors, len(r.errs))
	for i := range r.errs {
		ptrs[i] = &r.errs[i]
	}
	return ptrs
}
