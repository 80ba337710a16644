package channel

import (
	"bytes"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"referee/internal/bottest"
)

// syncBuffer is a bytes.Buffer safe for the concurrent writer (the
// channel's stderr goroutine) and reader (the test goroutine's polling
// assertions) this test harness needs.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func (s *syncBuffer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

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

func startScripted(t *testing.T, script string) (*Channel, *Sink, *syncBuffer) {
	t.Helper()
	stderr := &syncBuffer{}
	sink := NewSink(stderr)
	ch, err := Start(0, bottest.Executable(), bottest.Args(), bottest.Env(script), sink)
	require.NoError(t, err)
	t.Cleanup(func() {
		ch.ShutDown()
		ch.Wait()
		ch.Release()
	})
	return ch, sink, stderr
}

func TestStartReadCompletesOnLine(t *testing.T) {
	ch, _, _ := startScripted(t, "recv;send:ready")

	require.NoError(t, ch.WriteStdin([]byte("hello\n")))
	ch.StartRead(200)

	require.Eventually(t, ch.HasRead, time.Second, time.Millisecond)
	require.False(t, ch.IsTimeOut())
	require.Equal(t, "ready", ch.Response())
}

func TestStartReadTimesOutWhenBotIsSlow(t *testing.T) {
	ch, _, _ := startScripted(t, "recv;sleep:200;send:late")

	require.NoError(t, ch.WriteStdin([]byte("hello\n")))
	ch.StartRead(20)

	require.Eventually(t, ch.IsTimeOut, time.Second, time.Millisecond)
	require.False(t, ch.HasRead())
}

func TestCancelReadBlockingIsIdempotentWhenIdle(t *testing.T) {
	ch, _, _ := startScripted(t, "")
	ch.CancelReadBlocking()
	ch.CancelReadBlocking()
}

func TestPartialLineSurvivesAcrossStartRead(t *testing.T) {
	// The bot sends its line in two chunks with a pause in between, so
	// the first StartRead's deadline elapses mid-line; the byte(s)
	// already read must not be dropped when the second StartRead commits
	// the rest of the line.
	ch, _, _ := startScripted(t, "recv;put:o;sleep:400;send:k")

	require.NoError(t, ch.WriteStdin([]byte("go\n")))
	ch.StartRead(150)
	require.Eventually(t, ch.IsTimeOut, time.Second, time.Millisecond)

	ch.StartRead(500)
	require.Eventually(t, ch.HasRead, time.Second, time.Millisecond)
	require.Equal(t, "ok", ch.Response())
}

func TestStderrForwardedWithBotPrefix(t *testing.T) {
	_, _, stderr := startScripted(t, "err:oops")

	require.Eventually(t, func() bool {
		return stderr.Len() > 0
	}, time.Second, time.Millisecond)
	require.Equal(t, "Bot#0: oops\n", stderr.String())
}

func TestSinkSerializesAndPrefixesChunks(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(&buf)

	sink.Write(3, []byte("oops\n"))

	require.Equal(t, "Bot#3: oops\n", buf.String())
}
