package device

import (
	"context"
	"strings"
	"time"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/procutil"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// Runner runs a host command line on behalf of a device.
type Runner interface {
	Run(ctx context.Context, cmd string, timeout time.Duration) (string, error)
}

// ShellRunner runs command lines through the host shell, each in its own
// process group.
type ShellRunner struct{}

// Run returns the combined output of cmd. A non-zero exit status is an
// OPERATION_FAILED error carrying the output; expiry of timeout is a
// TIMEOUT error and the process group is killed.
func (ShellRunner) Run(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	start := time.Now()
	res, err := procutil.Run(ctx, timeout, procutil.Shell(cmd)...)
	logging.Debug("DeviceShell", "%q exited %d after %s", cmd, res.ExitCode, time.Since(start).Round(time.Millisecond))
	if err != nil {
		return res.Output, err
	}
	if res.ExitCode != 0 {
		return res.Output, api.NewError(api.OperationFailed, "%q exited with %d: %s", cmd, res.ExitCode, strings.TrimSpace(res.Output))
	}
	return res.Output, nil
}
