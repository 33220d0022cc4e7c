package devicelog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.bug.st/serial"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/procutil"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// Source opens a stream of log lines. A Logger reopens its source after the
// stream ends or the watchdog fires.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// CommandRunner is the slice of a device a logger may use to issue
// commands.
type CommandRunner interface {
	RunCmd(ctx context.Context, cmd string, timeout time.Duration) (string, error)
}

// LogcatSource streams "adb -s <serial> logcat".
type LogcatSource struct {
	Serial string
	// Adb is the adb command, "adb" when empty.
	Adb string
	// Runner clears the logcat buffer before the first stream when set.
	Runner CommandRunner

	cleared bool
}

func (s *LogcatSource) adb() string {
	if s.Adb == "" {
		return "adb"
	}
	return s.Adb
}

func (s *LogcatSource) String() string { return "logcat:" + s.Serial }

func (s *LogcatSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.Runner != nil && !s.cleared {
		s.cleared = true
		cmd := fmt.Sprintf("%s -s %s logcat -c", s.adb(), s.Serial)
		if _, err := s.Runner.RunCmd(ctx, cmd, 10*time.Second); err != nil {
			logging.Warn("DeviceLogger", "Could not clear logcat of %s: %v", s.Serial, err)
		}
	}
	p, out, err := procutil.Start(s.adb(), "-s", s.Serial, "logcat", "-v", "threadtime")
	if err != nil {
		return nil, err
	}
	return &processReader{ReadCloser: out, p: p}, nil
}

type processReader struct {
	io.ReadCloser
	p *procutil.Process
}

func (r *processReader) Close() error {
	_ = r.p.Stop()
	return r.ReadCloser.Close()
}

// SerialSource reads a serial console.
type SerialSource struct {
	Port     string
	BaudRate int
}

func (s SerialSource) String() string { return "serial:" + s.Port }

func (s SerialSource) Open(context.Context) (io.ReadCloser, error) {
	baud := s.BaudRate
	if baud == 0 {
		baud = 115200
	}
	port, err := serial.Open(s.Port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, api.WrapError(api.PlatformError, err, "cannot open serial port %s", s.Port)
	}
	return port, nil
}

// PTISource tails a trace capture file written by an external tool.
type PTISource struct {
	Path string
	// FromStart reads the existing content before following new writes.
	FromStart bool
}

func (s PTISource) String() string { return "pti:" + s.Path }

func (s PTISource) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, api.WrapError(api.FileNotFound, err, "capture file %s not found", s.Path)
		}
		return nil, api.WrapError(api.PlatformError, err, "cannot open capture file %s", s.Path)
	}
	if !s.FromStart {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, fmt.Errorf("seek %s: %w", s.Path, err)
		}
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return nil, api.WrapError(api.PlatformError, err, "cannot watch %s", s.Path)
	}
	if err := w.Add(s.Path); err != nil {
		w.Close()
		f.Close()
		return nil, api.WrapError(api.PlatformError, err, "cannot watch %s", s.Path)
	}
	return &tailReader{ctx: ctx, f: f, w: w, done: make(chan struct{})}, nil
}

// tailReader returns the bytes appended to a file, blocking on fsnotify
// events at end of file. It ends when the file is removed or renamed.
type tailReader struct {
	ctx  context.Context
	f    *os.File
	w    *fsnotify.Watcher
	done chan struct{}
	once sync.Once
}

func (t *tailReader) Read(p []byte) (int, error) {
	for {
		n, err := t.f.Read(p)
		if n > 0 || (err != nil && !errors.Is(err, io.EOF)) {
			return n, err
		}
		select {
		case <-t.done:
			return 0, io.EOF
		case <-t.ctx.Done():
			return 0, io.EOF
		case ev, ok := <-t.w.Events:
			if !ok || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				return 0, io.EOF
			}
		case err, ok := <-t.w.Errors:
			if !ok {
				return 0, io.EOF
			}
			return 0, err
		}
	}
}

func (t *tailReader) Close() error {
	var err error
	t.once.Do(func() {
		close(t.done)
		err = errors.Join(t.w.Close(), t.f.Close())
	})
	return err
}
