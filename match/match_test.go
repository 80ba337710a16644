package match

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"referee/channel"
	"referee/game"
	"referee/internal/bottest"
	"referee/protocol"
	"referee/refgame"
	"referee/settings"
)

func TestMain(m *testing.M) {
	if bottest.IsHelperProcess() {
		bottest.RunHelper()
		return
	}
	os.Exit(m.Run())
}

func TestHelperProcess(t *testing.T) {
	if !bottest.IsHelperProcess() {
		t.Skip("only runs as a re-exec'd helper process")
	}
}

func TestContainsAction(t *testing.T) {
	legal := []game.Action{1, 3, 5}
	assert.True(t, containsAction(legal, 3))
	assert.False(t, containsAction(legal, 4))
}

func TestSampleChanceReturnsAnOutcome(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	outcomes := []game.ActionProb{{Action: 0, Prob: 0.5}, {Action: 1, Prob: 0.5}}
	for i := 0; i < 20; i++ {
		a := sampleChance(rng, outcomes)
		assert.True(t, a == 0 || a == 1)
	}
}

func TestRandomLegalOnEmptySetIsInvalid(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.Equal(t, game.InvalidAction, randomLegal(rng, nil))
}

func testSettings() settings.TournamentSettings {
	return settings.TournamentSettings{
		TimeoutStartMs:       150,
		TimeoutActMs:         150,
		TimeoutPonderMs:      50,
		TimeoutMatchOverMs:   150,
		MaxInvalidBehaviors:  1,
		DisqualificationRate: 0.1,
	}
}

func startBot(t *testing.T, index int, script string) *channel.Channel {
	t.Helper()
	sink := channel.NewSink(os.Stderr)
	ch, err := channel.Start(index, bottest.Executable(), bottest.Args(), bottest.Env(script), sink)
	require.NoError(t, err)
	t.Cleanup(func() {
		ch.ShutDown()
		ch.Wait()
		ch.Release()
	})
	return ch
}

// TestPlayHappyPath drives a full pennies match (S1): both bots cooperate
// perfectly through the chance node, the simultaneous choice round, and
// match-over, and no errors should be recorded.
func TestPlayHappyPath(t *testing.T) {
	script := "send:start;recv;send:ponder;recv;send:0;recv;send:match over"
	bots := []*channel.Channel{
		startBot(t, 0, script),
		startBot(t, 1, script),
	}
	errs := []*protocol.Errors{{}, {}}

	rng := rand.New(rand.NewSource(1))
	g := refgame.NewPennies()

	state := Play(rng, g, bots, errs, testSettings())

	require.True(t, state.IsTerminal())
	for _, e := range errs {
		assert.Equal(t, 0, e.TotalErrors())
	}
}

// TestPlayIllegalActionSubstitutesRandomLegalMove is S3: an acting bot
// replies with an action outside the legal set.
func TestPlayIllegalActionSubstitutesRandomLegalMove(t *testing.T) {
	script := "send:start;recv;send:ponder;recv;send:999999;recv;send:match over"
	bots := []*channel.Channel{
		startBot(t, 0, script),
		startBot(t, 1, script),
	}
	errs := []*protocol.Errors{{}, {}}

	rng := rand.New(rand.NewSource(1))
	g := refgame.NewPennies()

	state := Play(rng, g, bots, errs, testSettings())

	require.True(t, state.IsTerminal())
	assert.Equal(t, 1, errs[0].IllegalActions)
	assert.Equal(t, 1, errs[1].IllegalActions)
}

// TestPlayTrailingGarbageIsProtocolError is S6: "3x" is not a clean
// integer, so it must be treated as a protocol error and substituted.
func TestPlayTrailingGarbageIsProtocolError(t *testing.T) {
	script := "send:start;recv;send:ponder;recv;send:3x;recv;send:match over"
	bots := []*channel.Channel{
		startBot(t, 0, script),
		startBot(t, 1, script),
	}
	errs := []*protocol.Errors{{}, {}}

	rng := rand.New(rand.NewSource(1))
	g := refgame.NewPennies()

	state := Play(rng, g, bots, errs, testSettings())

	require.True(t, state.IsTerminal())
	assert.Equal(t, 1, errs[0].ProtocolError)
	assert.Equal(t, 1, errs[1].ProtocolError)
}

// TestPlayBadPonderIsPonderError is S4: a non-acting bot replies with
// something other than "ponder".
func TestPlayBadPonderIsPonderError(t *testing.T) {
	script := "send:start;recv;send:ready;recv;send:0;recv;send:match over"
	bots := []*channel.Channel{
		startBot(t, 0, script),
		startBot(t, 1, script),
	}
	errs := []*protocol.Errors{{}, {}}

	rng := rand.New(rand.NewSource(1))
	g := refgame.NewPennies()

	state := Play(rng, g, bots, errs, testSettings())

	require.True(t, state.IsTerminal())
	assert.Equal(t, 1, errs[0].PonderError)
	assert.Equal(t, 1, errs[1].PonderError)
	assert.Equal(t, 0, errs[0].IllegalActions)
}

// TestPlayActTimeoutSubstitutesRandomMove is S2: an acting bot sleeps past
// its act deadline without replying, then acknowledges match-over within
// that window. A late action line would stay in the pipe and be read as
// the match-over reply, so the bot sends none.
func TestPlayActTimeoutSubstitutesRandomMove(t *testing.T) {
	script := "send:start;recv;send:ponder;recv;sleep:60;recv;send:match over"
	bots := []*channel.Channel{
		startBot(t, 0, script),
		startBot(t, 1, script),
	}
	errs := []*protocol.Errors{{}, {}}

	rng := rand.New(rand.NewSource(1))
	g := refgame.NewPennies()

	cfg := testSettings()
	cfg.TimeoutPonderMs = 10
	cfg.TimeoutActMs = 30

	state := Play(rng, g, bots, errs, cfg)

	require.True(t, state.IsTerminal())
	// The slow bot loses its act window; the reader's own deadline check
	// always wins over a pending cancel, so this is a clean timeout, never
	// a protocol error or a parsed action.
	for _, e := range errs {
		assert.Equal(t, 1, e.TimeOver)
		assert.Equal(t, 0, e.ProtocolError)
		assert.Equal(t, 0, e.IllegalActions)
	}
}
