package equipment

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/catalog"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/config"
)

func newTestManager(models map[string]catalog.EquipmentEntry, bench map[string]config.EquipmentConfig) *Manager {
	return NewManager(
		&config.BenchConfig{Equipments: bench},
		catalog.NewStore(catalog.KindEquipment, models),
	)
}

func TestManagerBuildsSimulated(t *testing.T) {
	m := newTestManager(
		map[string]catalog.EquipmentEntry{"RELAY": {ID: "RELAY", Kind: KindSimulated, Capabilities: []string{CapPowerButton}}},
		map[string]config.EquipmentConfig{"IO_CARD": {Name: "IO_CARD", Model: "RELAY"}},
	)
	ctx := context.Background()

	inst, err := m.Get(ctx, "IO_CARD")
	require.NoError(t, err)
	require.NoError(t, inst.PressPowerButton(ctx, 3*time.Second))

	err = inst.CutDevicePower(ctx)
	assert.True(t, api.HasCode(err, api.SpecificEqtError))

	assert.Equal(t, []Call{{Action: ActionPressPowerButton, Args: []string{"3"}}}, inst.Calls())
	assert.Equal(t, []string{"IO_CARD"}, m.Loaded())
	require.NoError(t, m.CloseAll())
	assert.Empty(t, m.Loaded())
}

func TestManagerSharesInitialisation(t *testing.T) {
	m := newTestManager(
		map[string]catalog.EquipmentEntry{"RELAY": {ID: "RELAY", Kind: KindSimulated}},
		map[string]config.EquipmentConfig{"IO_CARD": {Name: "IO_CARD", Model: "RELAY"}},
	)

	var wg sync.WaitGroup
	got := make([]*Instance, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inst, err := m.Get(context.Background(), "IO_CARD")
			assert.NoError(t, err)
			got[i] = inst
		}(i)
	}
	wg.Wait()
	for _, inst := range got {
		assert.Same(t, got[0], inst)
	}
}

func TestManagerErrors(t *testing.T) {
	m := newTestManager(
		map[string]catalog.EquipmentEntry{"NATIVE": {ID: "NATIVE", Kind: KindSharedLibrary}},
		map[string]config.EquipmentConfig{
			"LIB":   {Name: "LIB", Model: "NATIVE"},
			"GHOST": {Name: "GHOST", Model: "UNKNOWN"},
		},
	)
	ctx := context.Background()

	_, err := m.Get(ctx, "MISSING")
	assert.True(t, api.HasCode(err, api.InvalidBenchConfig))

	_, err = m.Get(ctx, "GHOST")
	assert.True(t, api.HasCode(err, api.InvalidBenchConfig))

	_, err = m.Get(ctx, "LIB")
	assert.True(t, api.HasCode(err, api.CLibraryError))
}

func TestSimulatedScriptedFailure(t *testing.T) {
	inst := NewSimulated("PSU", config.NewValues(map[string]string{"failActions": ActionPlugPower}))
	err := inst.PlugDevicePower(context.Background())
	assert.True(t, api.HasCode(err, api.SpecificEqtError))
	assert.NoError(t, inst.CutDevicePower(context.Background()))
}

func TestExecutableDriver(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script driver")
	}
	dir := t.TempDir()
	log := filepath.Join(dir, "calls.log")
	script := "#!/bin/sh\necho \"$@\" >> " + log + "\n[ \"$1\" = cut_device_power ] && { echo relay stuck; exit 2; }\nexit 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "relay.sh"), []byte(script), 0o755))

	m := newTestManager(
		map[string]catalog.EquipmentEntry{"SCRIPT": {ID: "SCRIPT", Kind: KindExternalExecutable, Executable: "relay.sh", Capabilities: AllCapabilities}},
		map[string]config.EquipmentConfig{"PSU": {Name: "PSU", Model: "SCRIPT", Values: config.NewValues(map[string]string{ParamBinaryFolder: dir})}},
	)
	ctx := context.Background()
	inst, err := m.Get(ctx, "PSU")
	require.NoError(t, err)

	require.NoError(t, inst.PressKeyCombo(ctx, []string{"POWER", "VOLUME_DOWN"}, 500*time.Millisecond))
	err = inst.CutDevicePower(ctx)
	assert.True(t, api.HasCode(err, api.SpecificEqtError))
	assert.Contains(t, err.Error(), "relay stuck")

	data, err := os.ReadFile(log)
	require.NoError(t, err)
	assert.Equal(t, "press_key_combo 0.5 POWER VOLUME_DOWN\ncut_device_power\n", string(data))
}

func TestExecutableMissingBinary(t *testing.T) {
	m := newTestManager(
		map[string]catalog.EquipmentEntry{"SCRIPT": {ID: "SCRIPT", Kind: KindExternalExecutable, Executable: "no-such-relay-tool"}},
		map[string]config.EquipmentConfig{"PSU": {Name: "PSU", Model: "SCRIPT", Values: config.NewValues(map[string]string{ParamBinaryFolder: t.TempDir()})}},
	)
	_, err := m.Get(context.Background(), "PSU")
	assert.True(t, api.HasCode(err, api.BinaryFolderPathError))
}

func TestDaemonDriver(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan string, 2)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			line, _ := bufio.NewReader(conn).ReadString('\n')
			line = strings.TrimSpace(line)
			received <- line
			if strings.HasPrefix(line, ActionCutPower) {
				conn.Write([]byte("ERR busy\n"))
			} else {
				conn.Write([]byte("OK\n"))
			}
			conn.Close()
		}
	}()

	m := newTestManager(
		map[string]catalog.EquipmentEntry{"DAEMON": {ID: "DAEMON", Kind: KindExternalDaemon, Capabilities: []string{CapPowerSupply}}},
		map[string]config.EquipmentConfig{"PSU": {Name: "PSU", Model: "DAEMON", Values: config.NewValues(map[string]string{ParamDaemonAddress: ln.Addr().String()})}},
	)
	ctx := context.Background()
	inst, err := m.Get(ctx, "PSU")
	require.NoError(t, err)

	require.NoError(t, inst.PlugDevicePower(ctx))
	assert.Equal(t, ActionPlugPower, <-received)

	err = inst.CutDevicePower(ctx)
	assert.True(t, api.HasCode(err, api.DaemonDriverError))
	assert.Equal(t, ActionCutPower, <-received)
}

func TestDaemonWithoutAddress(t *testing.T) {
	m := newTestManager(
		map[string]catalog.EquipmentEntry{"DAEMON": {ID: "DAEMON", Kind: KindExternalDaemon}},
		map[string]config.EquipmentConfig{"PSU": {Name: "PSU", Model: "DAEMON"}},
	)
	_, err := m.Get(context.Background(), "PSU")
	assert.True(t, api.HasCode(err, api.InvalidBenchConfig))
}
