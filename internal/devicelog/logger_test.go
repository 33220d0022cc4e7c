package devicelog

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
)

// pipeSource hands out one in-memory pipe per Open.
type pipeSource struct {
	mu      sync.Mutex
	opens   int
	writers chan *io.PipeWriter
}

func newPipeSource() *pipeSource {
	return &pipeSource{writers: make(chan *io.PipeWriter, 16)}
}

func (s *pipeSource) String() string { return "pipe" }

func (s *pipeSource) Open(context.Context) (io.ReadCloser, error) {
	s.mu.Lock()
	s.opens++
	s.mu.Unlock()
	r, w := io.Pipe()
	s.writers <- w
	return r, nil
}

func (s *pipeSource) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

func (s *pipeSource) next(t *testing.T) *io.PipeWriter {
	t.Helper()
	select {
	case w := <-s.writers:
		return w
	case <-time.After(5 * time.Second):
		t.Fatal("source was not opened")
		return nil
	}
}

func startLogger(t *testing.T, opts Options) *Logger {
	t.Helper()
	l := New(opts)
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() { _ = l.Stop() })
	return l
}

func TestTriggerMatching(t *testing.T) {
	src := newPipeSource()
	out := filepath.Join(t.TempDir(), "logs", "logcat.log")
	l := startLogger(t, Options{Name: "logcat", Source: src, OutputPath: out, PollInterval: 10 * time.Millisecond})

	l.AddTriggerMessage("BOOT_COMPLETED")
	w := src.next(t)
	_, err := io.WriteString(w, "I/system: starting\nI/boot: BOOT_COMPLETED\n")
	require.NoError(t, err)

	got, err := l.IsMessageReceived(context.Background(), "BOOT_COMPLETED", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"I/boot: BOOT_COMPLETED"}, got)

	l.ResetTriggerMessage("BOOT_COMPLETED")
	assert.Empty(t, l.MessageTriggeredStatus("BOOT_COMPLETED"))
	assert.Equal(t, []string{"BOOT_COMPLETED"}, l.Triggers())

	require.NoError(t, l.Stop())
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "I/system: starting\nI/boot: BOOT_COMPLETED\n", string(data))
}

func TestMessageNotReceived(t *testing.T) {
	l := New(Options{Name: "idle", Source: newPipeSource(), PollInterval: 10 * time.Millisecond})
	l.AddTriggerMessage("never")

	got, err := l.IsMessageReceived(context.Background(), "never", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = l.IsMessageReceived(context.Background(), "unregistered", time.Millisecond)
	assert.True(t, api.HasCode(err, api.InvalidParameter))
}

func TestAddRemoveTriggerRestoresState(t *testing.T) {
	l := New(Options{Name: "state", Source: newPipeSource()})
	l.AddTriggerMessage("kept")
	before := l.Triggers()

	l.AddTriggerMessage("temporary")
	l.RemoveTriggerMessage("temporary")

	assert.Equal(t, before, l.Triggers())
	assert.Nil(t, l.MessageTriggeredStatus("temporary"))
}

func TestWatchdogRestartsSilentSource(t *testing.T) {
	src := newPipeSource()
	l := startLogger(t, Options{
		Name:            "silent",
		Source:          src,
		WatchdogLogTime: 20 * time.Millisecond,
		RetryDelay:      5 * time.Millisecond,
	})

	src.next(t)
	src.next(t)

	assert.GreaterOrEqual(t, l.Restarts(), 1)
	assert.GreaterOrEqual(t, src.openCount(), 2)
}

func TestReaderReopensEndedStream(t *testing.T) {
	src := newPipeSource()
	l := startLogger(t, Options{Name: "reopen", Source: src, RetryDelay: 5 * time.Millisecond, PollInterval: 10 * time.Millisecond})
	l.AddTriggerMessage("second")

	w := src.next(t)
	io.WriteString(w, "first\n")
	w.Close()

	w = src.next(t)
	io.WriteString(w, "second stream\n")

	got, err := l.IsMessageReceived(context.Background(), "second", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"second stream"}, got)
	assert.Equal(t, 0, l.Restarts())
}

func TestPTISourceFollowsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pti")
	require.NoError(t, os.WriteFile(path, []byte("old line\n"), 0o644))

	l := startLogger(t, Options{
		Name:         "pti",
		Source:       PTISource{Path: path},
		PollInterval: 10 * time.Millisecond,
	})
	l.AddTriggerMessage("line")
	// Give the reader time to open and seek to the end.
	time.Sleep(100 * time.Millisecond)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("new line\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := l.IsMessageReceived(context.Background(), "line", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"new line"}, got)
}

func TestPTISourceMissingFile(t *testing.T) {
	_, err := PTISource{Path: filepath.Join(t.TempDir(), "absent")}.Open(context.Background())
	assert.True(t, api.HasCode(err, api.FileNotFound))
}

type recordingRunner struct {
	mu   sync.Mutex
	cmds []string
}

func (r *recordingRunner) RunCmd(_ context.Context, cmd string, _ time.Duration) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
	return "", nil
}

func TestLogcatSourceClearsOnce(t *testing.T) {
	runner := &recordingRunner{}
	// "true" exits at once; only the clear command matters here.
	src := &LogcatSource{Serial: "R58M1234", Adb: "true", Runner: runner}

	for i := 0; i < 2; i++ {
		rc, err := src.Open(context.Background())
		require.NoError(t, err)
		_, _ = io.ReadAll(rc)
		require.NoError(t, rc.Close())
	}
	require.Len(t, runner.cmds, 1)
	assert.True(t, strings.HasSuffix(runner.cmds[0], "-s R58M1234 logcat -c"))
}
