// Package results accumulates tournament-wide statistics across matches:
// online mean/variance of per-bot returns and mean match length, plus the
// per-bot corruption/disqualification/restart counts, with human-readable
// and CSV views.
package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"referee/game"
	"referee/protocol"
)

// MatchResult is the outcome of one match: the terminal state (carrying
// full action history and final returns) and a snapshot of each bot's
// error counters at match end.
type MatchResult struct {
	State  game.State
	Errors []protocol.Errors
}

// Corrupted reports whether a bot's match counts as corrupted against
// maxInvalidBehaviors: its total errors exceeded the budget, or it
// committed any protocol error at all.
func Corrupted(e protocol.Errors, maxInvalidBehaviors int) bool {
	return e.TotalErrors() > maxInvalidBehaviors || e.ProtocolError > 0
}

// TournamentResults accumulates statistics across all matches played so
// far in a tournament.
type TournamentResults struct {
	NumPlayers int

	returnsMean []float64
	returnsAgg  []float64

	historyLenMean float64

	CorruptedMatches []int
	Disqualified     []bool
	Restarts         []int

	Matches []MatchResult
}

// New returns an empty TournamentResults for a game with numPlayers seats.
func New(numPlayers int) *TournamentResults {
	return &TournamentResults{
		NumPlayers:       numPlayers,
		returnsMean:      make([]float64, numPlayers),
		returnsAgg:       make([]float64, numPlayers),
		CorruptedMatches: make([]int, numPlayers),
		Disqualified:     make([]bool, numPlayers),
		Restarts:         make([]int, numPlayers),
	}
}

// ReturnsMean is the running arithmetic mean of bot pl's per-match return.
func (r *TournamentResults) ReturnsMean(pl int) float64 { return r.returnsMean[pl] }

// ReturnsVariance is the running population variance of bot pl's
// per-match return.
func (r *TournamentResults) ReturnsVariance(pl int) float64 {
	m := len(r.Matches)
	if m == 0 {
		return 0
	}
	return r.returnsAgg[pl] / float64(m)
}

// HistoryLenMean is the running mean match length, in applied actions.
func (r *TournamentResults) HistoryLenMean() float64 { return r.historyLenMean }

// Update records mr as the next completed match, Welford-updating the
// per-bot return statistics and the mean match length.
func (r *TournamentResults) Update(mr MatchResult) {
	r.Matches = append(r.Matches, mr)
	m := float64(len(r.Matches))

	returns := mr.State.Returns()
	for pl := 0; pl < r.NumPlayers; pl++ {
		delta := returns[pl] - r.returnsMean[pl]
		r.returnsMean[pl] += delta / m
		delta2 := returns[pl] - r.returnsMean[pl]
		r.returnsAgg[pl] += delta * delta2
	}

	historyLen := float64(len(mr.State.History()))
	r.historyLenMean += (historyLen - r.historyLenMean) / m
}

// PrintVerbose writes a human-readable summary: one header line per match
// plus a final per-bot tally.
func (r *TournamentResults) PrintVerbose(w io.Writer) {
	for i, mr := range r.Matches {
		fmt.Fprintf(w, "match %d: history=%v returns=%v\n", i+1, mr.State.History(), mr.State.Returns())
		for pl, e := range mr.Errors {
			fmt.Fprintf(w, "  bot#%d: protocol_error=%d illegal_actions=%d ponder_error=%d time_over=%d\n",
				pl, e.ProtocolError, e.IllegalActions, e.PonderError, e.TimeOver)
		}
	}
	fmt.Fprintln(w, "--- summary ---")
	for pl := 0; pl < r.NumPlayers; pl++ {
		fmt.Fprintf(w, "bot#%d: returns_mean=%.4f returns_variance=%.4f corrupted_matches=%d restarts=%d disqualified=%v\n",
			pl, r.returnsMean[pl], r.ReturnsVariance(pl), r.CorruptedMatches[pl], r.Restarts[pl], r.Disqualified[pl])
	}
	fmt.Fprintf(w, "history_len_mean=%.4f matches=%d\n", r.historyLenMean, len(r.Matches))
}

// PrintCSV writes one row per match, as described in the data model: the
// full action history as space-separated integers, followed by
// returns/protocol_error/illegal_actions/ponder_error/time_over for each
// bot in seat order. header controls whether a header row is emitted first.
func (r *TournamentResults) PrintCSV(w io.Writer, header bool) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if header {
		row := []string{"history"}
		for pl := 0; pl < r.NumPlayers; pl++ {
			row = append(row,
				fmt.Sprintf("returns_%d", pl),
				fmt.Sprintf("protocol_error_%d", pl),
				fmt.Sprintf("illegal_actions_%d", pl),
				fmt.Sprintf("ponder_error_%d", pl),
				fmt.Sprintf("time_over_%d", pl),
			)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	for _, mr := range r.Matches {
		row := []string{historyString(mr.State.History())}
		returns := mr.State.Returns()
		for pl, e := range mr.Errors {
			row = append(row,
				strconv.FormatFloat(returns[pl], 'f', -1, 64),
				strconv.Itoa(e.ProtocolError),
				strconv.Itoa(e.IllegalActions),
				strconv.Itoa(e.PonderError),
				strconv.Itoa(e.TimeOver),
			)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func historyString(h []game.Action) string {
	s := ""
	for i, a := range h {
		if i > 0 {
			s += " "
		}
		s += strconv.Itoa(int(a))
	}
	return s
}
