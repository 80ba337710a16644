// Package settings holds the configuration a tournament is run with: the
// per-phase deadlines and the disqualification policy, shared by the
// match and referee packages without either depending on the other.
package settings

// TournamentSettings configures the timing and disqualification policy of
// a tournament. There is no live reconfiguration: a Referee is constructed
// with one TournamentSettings value for its whole lifetime.
type TournamentSettings struct {
	// TimeoutReadyMs bounds the initial handshake reply.
	TimeoutReadyMs int
	// TimeoutStartMs bounds the per-match "start" reply.
	TimeoutStartMs int
	// TimeoutActMs bounds an acting player's move reply.
	TimeoutActMs int
	// TimeoutPonderMs bounds a non-acting player's ponder reply. Must be
	// <= TimeoutActMs.
	TimeoutPonderMs int
	// TimeoutMatchOverMs bounds the end-of-match acknowledgement.
	TimeoutMatchOverMs int
	// TimeTournamentOverMs is the grace delay after the tournament-over
	// message before the referee stops waiting on bots entirely.
	TimeTournamentOverMs int
	// MaxInvalidBehaviors is the per-match error budget above which a
	// bot's moves are replaced by uniform-random legal moves for the
	// remainder of that match.
	MaxInvalidBehaviors int
	// DisqualificationRate is the fraction, in [0,1], of matches a bot
	// may corrupt before being disqualified from the rest of the
	// tournament.
	DisqualificationRate float64
}

// Default mirrors the reference referee's own defaults.
func Default() TournamentSettings {
	return TournamentSettings{
		TimeoutReadyMs:       200,
		TimeoutStartMs:       100,
		TimeoutActMs:         100,
		TimeoutPonderMs:      50,
		TimeoutMatchOverMs:   100,
		TimeTournamentOverMs: 100,
		MaxInvalidBehaviors:  1,
		DisqualificationRate: 0.1,
	}
}

// CorruptionThreshold returns the number of corrupted matches a bot may
// accumulate, out of numMatches, before being disqualified.
func (s TournamentSettings) CorruptionThreshold(numMatches int) int {
	return int(float64(numMatches) * s.DisqualificationRate)
}
