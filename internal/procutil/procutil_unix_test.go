//go:build !windows

package procutil

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
)

func TestRunCollectsOutput(t *testing.T) {
	res, err := Run(context.Background(), 5*time.Second, Shell("echo out; echo err >&2; exit 3")...)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.Output, "out")
	assert.Contains(t, res.Output, "err")
}

func TestRunTimeoutKillsGroup(t *testing.T) {
	start := time.Now()
	// The grandchild keeps the output pipe open; only a group kill ends it.
	_, err := Run(context.Background(), 200*time.Millisecond, Shell("sleep 30 & sleep 30")...)
	assert.True(t, api.HasCode(err, api.Timeout))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRunCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	_, err := Run(ctx, 0, "sleep", "30")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunMissingBinary(t *testing.T) {
	_, err := Run(context.Background(), time.Second, "/nonexistent/acs-binary")
	assert.True(t, api.HasCode(err, api.PlatformError))
}

func TestStartStop(t *testing.T) {
	p, out, err := Start(Shell("echo ready; sleep 30")...)
	require.NoError(t, err)

	buf := make([]byte, 6)
	_, err = io.ReadFull(out, buf)
	require.NoError(t, err)
	assert.Equal(t, "ready\n", string(buf))

	_ = p.Stop()
	_ = p.Stop()
}
