package procutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// KillGrace is how long a process group gets between SIGTERM and SIGKILL.
var KillGrace = 2 * time.Second

// Result is the outcome of a command that ran to completion.
type Result struct {
	Output   string
	ExitCode int
}

// Shell returns the argv that runs cmdline through the host shell.
func Shell(cmdline string) []string {
	return shellArgs(cmdline)
}

// Run starts argv in its own process group and waits for it. Stdout and
// stderr are combined. A non-zero exit status is not an error; it is
// reported in Result.ExitCode. When timeout elapses the whole group is
// terminated and a TIMEOUT error is returned; when ctx is done the group is
// terminated and ctx.Err() is returned.
func Run(ctx context.Context, timeout time.Duration, argv ...string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, api.NewError(api.InvalidParameter, "empty command")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	cmd.WaitDelay = KillGrace
	setGroup(cmd)

	if err := cmd.Start(); err != nil {
		return Result{}, api.WrapError(api.PlatformError, err, "cannot start %s", argv[0])
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case err := <-done:
		res := Result{Output: buf.String()}
		if err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				return res, api.WrapError(api.PlatformError, err, "%s failed", argv[0])
			}
			res.ExitCode = exitErr.ExitCode()
		}
		return res, nil
	case <-expired:
		terminate(cmd, done)
		return Result{Output: buf.String(), ExitCode: -1},
			api.NewError(api.Timeout, "%q timed out after %s", strings.Join(argv, " "), timeout)
	case <-ctx.Done():
		terminate(cmd, done)
		return Result{Output: buf.String(), ExitCode: -1}, fmt.Errorf("%s cancelled: %w", argv[0], ctx.Err())
	}
}

// terminate signals the group of cmd, escalating to SIGKILL when it does not
// exit within KillGrace, and waits for Wait to return.
func terminate(cmd *exec.Cmd, done <-chan error) {
	pid := cmd.Process.Pid
	if err := signalGroup(cmd, false); err != nil {
		logging.Debug("Procutil", "Terminate of process group %d failed: %v", pid, err)
	}
	select {
	case <-done:
		return
	case <-time.After(KillGrace):
	}
	if err := signalGroup(cmd, true); err != nil {
		logging.Debug("Procutil", "Kill of process group %d failed: %v", pid, err)
	}
	<-done
}

// Process is a long-running child started in its own process group, such
// as a log reader.
type Process struct {
	cmd  *exec.Cmd
	done chan error
	once sync.Once
	err  error
}

// Start launches argv in its own process group and returns its stdout.
// Stderr is discarded.
func Start(argv ...string) (*Process, io.ReadCloser, error) {
	if len(argv) == 0 {
		return nil, nil, api.NewError(api.InvalidParameter, "empty command")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	setGroup(cmd)
	// The read end belongs to the caller so that Wait does not close it
	// while lines are still buffered.
	out, w, err := os.Pipe()
	if err != nil {
		return nil, nil, api.WrapError(api.PlatformError, err, "cannot pipe %s", argv[0])
	}
	cmd.Stdout = w
	err = cmd.Start()
	w.Close()
	if err != nil {
		out.Close()
		return nil, nil, api.WrapError(api.PlatformError, err, "cannot start %s", argv[0])
	}
	p := &Process{cmd: cmd, done: make(chan error, 1)}
	go func() { p.done <- cmd.Wait() }()
	logging.Debug("Procutil", "Started %s (pid %d)", strings.Join(argv, " "), cmd.Process.Pid)
	return p, out, nil
}

// Pid returns the process id of the group leader.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Stop terminates the process group and waits for the leader. It is safe
// to call more than once.
func (p *Process) Stop() error {
	p.once.Do(func() {
		select {
		case p.err = <-p.done:
			return
		default:
		}
		terminate(p.cmd, p.done)
	})
	return p.err
}
