package devicelog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// Options configures a Logger.
type Options struct {
	Name   string
	Source Source
	// OutputPath is the file the writer appends lines to. Empty disables
	// writing until SetOutputPath is called.
	OutputPath string
	// WatchdogLogTime is the expected maximum silence of the source. The
	// reader is restarted after 2×WatchdogLogTime without a line. Zero
	// disables the watchdog.
	WatchdogLogTime time.Duration
	// PollInterval is the IsMessageReceived polling period, 1s when zero.
	PollInterval time.Duration
	// QueueSize bounds the reader → analyzer and reader → writer queues.
	QueueSize int
	// RetryDelay is the pause before reopening a source that failed or
	// ended, 1s when zero.
	RetryDelay time.Duration
}

// Logger reads one log source and matches its lines against registered
// trigger messages. It runs three tasks: a reader feeding two bounded
// queues, an analyzer and a writer, plus a watchdog.
type Logger struct {
	opts Options

	mu       sync.Mutex
	triggers map[string][]string
	output   string

	// current is the open stream, closed by the watchdog to force a
	// restart.
	curMu   sync.Mutex
	current io.ReadCloser

	lastLine atomic.Int64
	restarts atomic.Int64

	runMu  sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

// New returns a stopped logger.
func New(opts Options) *Logger {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	return &Logger{opts: opts, triggers: make(map[string][]string), output: opts.OutputPath}
}

// Name returns the logger name.
func (l *Logger) Name() string { return l.opts.Name }

// Start launches the logger tasks. Starting a running logger is a no-op.
func (l *Logger) Start(ctx context.Context) error {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	if l.group != nil {
		return nil
	}
	if l.opts.Source == nil {
		return api.NewError(api.InvalidParameter, "logger %s has no source", l.opts.Name)
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	lines := make(chan string, l.opts.QueueSize)
	toWriter := make(chan string, l.opts.QueueSize)
	l.lastLine.Store(time.Now().UnixNano())

	g.Go(func() error { return l.read(gctx, lines, toWriter) })
	g.Go(func() error { l.analyze(lines); return nil })
	g.Go(func() error { return l.write(toWriter) })
	if l.opts.WatchdogLogTime > 0 {
		g.Go(func() error { l.watchdog(gctx); return nil })
	}

	l.cancel = cancel
	l.group = g
	logging.Info("DeviceLogger", "Started %s on %s", l.opts.Name, l.opts.Source)
	return nil
}

// Stop ends every task and waits for them.
func (l *Logger) Stop() error {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	if l.group == nil {
		return nil
	}
	l.cancel()
	l.closeCurrent()
	err := l.group.Wait()
	l.group, l.cancel = nil, nil
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logging.Info("DeviceLogger", "Stopped %s", l.opts.Name)
	return err
}

// Restarts returns how many times the watchdog restarted the reader.
func (l *Logger) Restarts() int { return int(l.restarts.Load()) }

// SetOutputPath changes the file lines are appended to. The writer switches
// on its next line.
func (l *Logger) SetOutputPath(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = path
}

func (l *Logger) outputPath() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.output
}

// AddTriggerMessage registers pattern. Lines containing it are recorded.
func (l *Logger) AddTriggerMessage(pattern string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.triggers[pattern]; !ok {
		l.triggers[pattern] = []string{}
	}
}

// RemoveTriggerMessage unregisters pattern and drops its matches.
func (l *Logger) RemoveTriggerMessage(pattern string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.triggers, pattern)
}

// ResetTriggerMessage drops the matches of pattern and keeps it registered.
func (l *Logger) ResetTriggerMessage(pattern string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.triggers[pattern]; ok {
		l.triggers[pattern] = []string{}
	}
}

// MessageTriggeredStatus returns the lines matched by pattern so far.
func (l *Logger) MessageTriggeredStatus(pattern string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.triggers[pattern])
}

// Triggers returns the registered patterns, sorted.
func (l *Logger) Triggers() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.triggers))
	for p := range l.triggers {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// IsMessageReceived polls the matches of pattern until one is recorded or
// timeout elapses. It returns the matched lines, empty on timeout.
func (l *Logger) IsMessageReceived(ctx context.Context, pattern string, timeout time.Duration) ([]string, error) {
	l.mu.Lock()
	_, registered := l.triggers[pattern]
	l.mu.Unlock()
	if !registered {
		return nil, api.NewError(api.InvalidParameter, "trigger message %q is not registered on %s", pattern, l.opts.Name)
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(l.opts.PollInterval)
	defer ticker.Stop()
	for {
		if got := l.MessageTriggeredStatus(pattern); len(got) > 0 {
			return got, nil
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// read is the single producer of both queues. It reopens the source when a
// stream ends until ctx is done.
func (l *Logger) read(ctx context.Context, lines, toWriter chan<- string) error {
	defer close(lines)
	defer close(toWriter)

	for ctx.Err() == nil {
		rc, err := l.opts.Source.Open(ctx)
		if err != nil {
			logging.Warn("DeviceLogger", "%s: cannot open %s: %v", l.opts.Name, l.opts.Source, err)
			if !pause(ctx, l.opts.RetryDelay) {
				break
			}
			continue
		}
		l.setCurrent(rc)
		if ctx.Err() != nil {
			l.closeCurrent()
			break
		}

		sc := bufio.NewScanner(rc)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			line := sc.Text()
			l.lastLine.Store(time.Now().UnixNano())
			select {
			case lines <- line:
			case <-ctx.Done():
			}
			select {
			case toWriter <- line:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
		l.closeCurrent()
		if err := sc.Err(); err != nil && ctx.Err() == nil {
			logging.Debug("DeviceLogger", "%s: stream ended: %v", l.opts.Name, err)
		}
		if ctx.Err() == nil && !pause(ctx, l.opts.RetryDelay) {
			break
		}
	}
	return nil
}

func (l *Logger) analyze(lines <-chan string) {
	for line := range lines {
		l.mu.Lock()
		for pattern, got := range l.triggers {
			if strings.Contains(line, pattern) {
				l.triggers[pattern] = append(got, line)
			}
		}
		l.mu.Unlock()
	}
}

func (l *Logger) write(lines <-chan string) error {
	var (
		f    *os.File
		path string
		w    *bufio.Writer
	)
	closeFile := func() {
		if f != nil {
			w.Flush()
			f.Close()
			f, w = nil, nil
		}
	}
	defer closeFile()

	for line := range lines {
		if p := l.outputPath(); p != path {
			closeFile()
			path = p
			if p != "" {
				var err error
				if f, err = openAppend(p); err != nil {
					logging.Error("DeviceLogger", err, "%s: cannot write %s", l.opts.Name, p)
					f = nil
				} else {
					w = bufio.NewWriter(f)
				}
			}
		}
		if w != nil {
			fmt.Fprintln(w, line)
			if len(lines) == 0 {
				w.Flush()
			}
		}
	}
	return nil
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// watchdog closes the current stream when the source stays silent for
// 2×WatchdogLogTime; read then reopens it.
func (l *Logger) watchdog(ctx context.Context) {
	limit := 2 * l.opts.WatchdogLogTime
	ticker := time.NewTicker(max(l.opts.WatchdogLogTime/2, 10*time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		last := time.Unix(0, l.lastLine.Load())
		if time.Since(last) < limit {
			continue
		}
		l.restarts.Add(1)
		l.lastLine.Store(time.Now().UnixNano())
		logging.Warn("DeviceLogger", "%s: no line for %s, restarting %s", l.opts.Name, limit, l.opts.Source)
		l.closeCurrent()
	}
}

func (l *Logger) setCurrent(rc io.ReadCloser) {
	l.curMu.Lock()
	defer l.curMu.Unlock()
	l.current = rc
}

func (l *Logger) closeCurrent() {
	l.curMu.Lock()
	rc := l.current
	l.current = nil
	l.curMu.Unlock()
	if rc != nil {
		rc.Close()
	}
}

func pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
