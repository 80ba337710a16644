package results

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referee/game"
	"referee/protocol"
)

// fakeState is a terminal state carrying a fixed return/history pair, used
// to drive TournamentResults.Update without a real game engine.
type fakeState struct {
	returns []float64
	history []game.Action
}

func (f fakeState) IsTerminal() bool                 { return true }
func (f fakeState) IsChanceNode() bool               { return false }
func (f fakeState) IsSimultaneousNode() bool         { return false }
func (f fakeState) IsPlayerActing(pl int) bool       { return false }
func (f fakeState) CurrentPlayer() int               { return -1 }
func (f fakeState) LegalActions(pl int) []game.Action { return nil }
func (f fakeState) ChanceOutcomes() []game.ActionProb { return nil }
func (f fakeState) ApplyAction(a game.Action)         {}
func (f fakeState) ApplyActions(actions []game.Action) {}
func (f fakeState) Returns() []float64                { return f.returns }
func (f fakeState) History() []game.Action             { return f.history }

func TestCorrupted(t *testing.T) {
	assert.False(t, Corrupted(protocol.Errors{}, 1))
	assert.False(t, Corrupted(protocol.Errors{IllegalActions: 1}, 1))
	assert.True(t, Corrupted(protocol.Errors{IllegalActions: 2}, 1))
	assert.True(t, Corrupted(protocol.Errors{ProtocolError: 1}, 5))
}

// TestUpdateComputesPopulationMeanAndVariance checks the Welford
// accumulator in TournamentResults.Update against the closed-form
// arithmetic mean and population variance of the same sample.
func TestUpdateComputesPopulationMeanAndVariance(t *testing.T) {
	returns := []float64{1, -1, 0, 2, -2, 1, 1, -3}

	res := New(2)
	for _, r := range returns {
		res.Update(MatchResult{
			State:  fakeState{returns: []float64{r, -r}},
			Errors: []protocol.Errors{{}, {}},
		})
	}

	wantMean := 0.0
	for _, r := range returns {
		wantMean += r
	}
	wantMean /= float64(len(returns))

	wantVar := 0.0
	for _, r := range returns {
		wantVar += (r - wantMean) * (r - wantMean)
	}
	wantVar /= float64(len(returns))

	assert.InDelta(t, wantMean, res.ReturnsMean(0), 1e-9)
	assert.InDelta(t, wantVar, res.ReturnsVariance(0), 1e-9)
	assert.InDelta(t, -wantMean, res.ReturnsMean(1), 1e-9)
}

func TestUpdateTracksMeanHistoryLength(t *testing.T) {
	res := New(1)
	res.Update(MatchResult{
		State:  fakeState{returns: []float64{0}, history: []game.Action{1, 2, 3}},
		Errors: []protocol.Errors{{}},
	})
	res.Update(MatchResult{
		State:  fakeState{returns: []float64{0}, history: []game.Action{1}},
		Errors: []protocol.Errors{{}},
	})

	assert.InDelta(t, 2.0, res.HistoryLenMean(), 1e-9)
}

func TestReturnsVarianceIsZeroBeforeAnyMatch(t *testing.T) {
	res := New(2)
	assert.Equal(t, 0.0, res.ReturnsVariance(0))
}

func TestPrintCSVRoundTripsHistoryAndCounters(t *testing.T) {
	res := New(2)
	res.Update(MatchResult{
		State: fakeState{returns: []float64{1, -1}, history: []game.Action{0, 1, 0}},
		Errors: []protocol.Errors{
			{ProtocolError: 0, IllegalActions: 1, PonderError: 0, TimeOver: 0},
			{ProtocolError: 0, IllegalActions: 0, PonderError: 0, TimeOver: 1},
		},
	})

	var buf bytes.Buffer
	require.NoError(t, res.PrintCSV(&buf, true))

	out := buf.String()
	assert.Contains(t, out, "history")
	assert.Contains(t, out, "returns_0")
	assert.Contains(t, out, "0 1 0")
}

func TestPrintVerboseReportsErrorsAndSummary(t *testing.T) {
	res := New(1)
	res.Update(MatchResult{
		State:  fakeState{returns: []float64{1}, history: []game.Action{0}},
		Errors: []protocol.Errors{{ProtocolError: 1}},
	})

	var buf bytes.Buffer
	res.PrintVerbose(&buf)

	assert.Contains(t, buf.String(), "protocol_error=1")
	assert.Contains(t, buf.String(), "--- summary ---")
}
