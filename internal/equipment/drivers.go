package equipment

import (
	"bufio"
	"context"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/config"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/procutil"
)

// Driver parameter keys, read from the merged catalog and bench values.
const (
	ParamBinaryFolder   = "binaryFolder"
	ParamCommandTimeout = "commandTimeout"
	ParamDaemonAddress  = "daemonAddress"
)

// Call is one action recorded by a simulated driver.
type Call struct {
	Action string
	Args   []string
}

// simulated records actions and succeeds, unless a failure is scripted
// through the "failActions" parameter (a ';' separated action list).
type simulated struct {
	mu    sync.Mutex
	calls []Call
	fail  map[string]bool
}

func newSimulated(params config.Values) *simulated {
	s := &simulated{fail: make(map[string]bool)}
	for _, a := range strings.Split(params.GetString("failActions", ""), ";") {
		if a = strings.TrimSpace(a); a != "" {
			s.fail[a] = true
		}
	}
	return s
}

func (s *simulated) init(context.Context) error { return nil }

func (s *simulated) do(_ context.Context, action string, args []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Action: action, Args: append([]string(nil), args...)})
	if s.fail[action] {
		return api.NewError(api.SpecificEqtError, "simulated failure of %s", action)
	}
	return nil
}

func (s *simulated) close() error { return nil }

func (s *simulated) recorded() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Calls returns the actions recorded by a simulated instance, or nil for
// any other kind.
func (i *Instance) Calls() []Call {
	if s, ok := i.driver.(*simulated); ok {
		return s.recorded()
	}
	return nil
}

// executable runs "<binary> <action> <args...>" for every action.
type executable struct {
	name    string
	binary  string
	folder  string
	timeout time.Duration
}

func newExecutable(name, binary string, params config.Values) *executable {
	return &executable{
		name:    name,
		binary:  binary,
		folder:  params.GetString(ParamBinaryFolder, ""),
		timeout: params.GetDuration(ParamCommandTimeout, 30*time.Second),
	}
}

func (e *executable) init(context.Context) error {
	path := e.binary
	if !filepath.IsAbs(path) && e.folder != "" {
		path = filepath.Join(e.folder, path)
	}
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err != nil {
			return api.WrapError(api.BinaryFolderPathError, err, "equipment %s: executable %s not found", e.name, path)
		}
		e.binary = path
		return nil
	}
	found, err := exec.LookPath(path)
	if err != nil {
		return api.WrapError(api.BinaryFolderPathError, err, "equipment %s: executable %s not found", e.name, path)
	}
	e.binary = found
	return nil
}

func (e *executable) do(ctx context.Context, action string, args []string) error {
	argv := append([]string{e.binary, action}, args...)
	res, err := procutil.Run(ctx, e.timeout, argv...)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return api.NewError(api.SpecificEqtError, "%s %s exited with %d: %s",
			filepath.Base(e.binary), action, res.ExitCode, strings.TrimSpace(res.Output))
	}
	return nil
}

func (e *executable) close() error { return nil }

// daemon sends "<action> <args...>\n" to a TCP equipment daemon and expects
// a line starting with "OK".
type daemon struct {
	name    string
	addr    string
	timeout time.Duration
}

func newDaemon(name string, params config.Values) *daemon {
	return &daemon{
		name:    name,
		addr:    params.GetString(ParamDaemonAddress, ""),
		timeout: params.GetDuration(ParamCommandTimeout, 10*time.Second),
	}
}

func (d *daemon) init(context.Context) error {
	if d.addr == "" {
		return api.NewError(api.InvalidBenchConfig, "equipment %s: %s is required", d.name, ParamDaemonAddress)
	}
	return nil
}

func (d *daemon) do(ctx context.Context, action string, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", d.addr)
	if err != nil {
		return api.WrapError(api.DaemonDriverError, err, "equipment %s: cannot reach daemon %s", d.name, d.addr)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	line := strings.Join(append([]string{action}, args...), " ") + "\n"
	if _, err := conn.Write([]byte(line)); err != nil {
		return api.WrapError(api.DaemonDriverError, err, "equipment %s: write to daemon failed", d.name)
	}
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return api.WrapError(api.DaemonDriverError, err, "equipment %s: no reply from daemon", d.name)
	}
	reply = strings.TrimSpace(reply)
	if !strings.HasPrefix(reply, "OK") {
		return api.NewError(api.DaemonDriverError, "equipment %s: daemon replied %q", d.name, reply)
	}
	return nil
}

func (d *daemon) close() error { return nil }

// sharedLibrary equipment needs a native driver library; this build links
// none, so initialisation always fails.
type sharedLibrary struct{ name string }

func (s sharedLibrary) init(context.Context) error {
	return api.NewError(api.CLibraryError, "equipment %s: shared-library drivers are not available in this build", s.name)
}

func (s sharedLibrary) do(context.Context, string, []string) error {
	return api.NewError(api.CLibraryError, "equipment %s: not initialised", s.name)
}

func (s sharedLibrary) close() error { return nil }
