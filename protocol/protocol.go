// Package protocol names the five reserved messages bots exchange with the
// referee and the per-bot error taxonomy the referee accumulates while
// enforcing them. See referee/match for where these are produced and
// consumed.
package protocol

// Reserved messages the wire protocol recognizes. Bots must reply with
// exactly one of these (modulo the decimal action ids, which are not
// reserved words) at the corresponding point in the protocol.
const (
	Ready          = "ready"
	Start          = "start"
	Ponder         = "ponder"
	MatchOver      = "match over"
	TournamentOver = "tournament over"
)

// Errors tallies the four kinds of bot misbehavior the referee recovers
// from within a single match. It is reset at the start of every match.
type Errors struct {
	ProtocolError  int
	IllegalActions int
	PonderError    int
	TimeOver       int
}

// TotalErrors is the sum of the four counters.
func (e Errors) TotalErrors() int {
	return e.ProtocolError + e.IllegalActions + e.PonderError + e.TimeOver
}

// Reset zeroes all four counters in place.
func (e *Errors) Reset() {
	*e = Errors{}
}
