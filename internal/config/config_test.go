package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
)

func TestValuesGetters(t *testing.T) {
	v := NewValues(map[string]string{
		"bootTimeout": "120",
		"ratio":       "0.25",
		"enabled":     "Yes",
		"wait":        "1m30s",
		"bad":         "x",
	})

	assert.Equal(t, 120, v.GetInt("bootTimeout", 0))
	assert.Equal(t, 120, v.GetInt("BOOTTIMEOUT", 0), "case-insensitive fallback")
	assert.Equal(t, 7, v.GetInt("bad", 7))
	assert.InDelta(t, 0.25, v.GetFloat("ratio", 0), 1e-9)
	assert.True(t, v.GetBool("enabled", false))
	assert.Equal(t, 120*time.Second, v.GetDuration("bootTimeout", 0))
	assert.Equal(t, 90*time.Second, v.GetDuration("wait", 0))
	assert.Equal(t, "def", v.GetString("missing", "def"))
}

func TestValuesMergeIsImmutable(t *testing.T) {
	base := NewValues(map[string]string{"serialNumber": "A", "bootTimeout": "60"})
	over := NewValues(map[string]string{"SERIALNUMBER": "B"})

	merged := base.Merge(over)

	assert.Equal(t, "B", merged.GetString("serialNumber", ""))
	assert.Equal(t, 2, merged.Len())
	assert.Equal(t, "A", base.GetString("serialNumber", ""), "base must not change")
}

func TestMergeDeviceConfigPrecedence(t *testing.T) {
	model := NewValues(map[string]string{"bootTimeout": "60", "serialNumber": "model"})
	bench := NewValues(map[string]string{"serialNumber": "bench"})
	cli, err := ParseOverrides([]string{"bootTimeout=10"})
	require.NoError(t, err)

	dc := MergeDeviceConfig("PHONE1", "GENERIC", model, bench, cli)

	assert.Equal(t, "bench", dc.GetString(KeySerialNumber, ""))
	assert.Equal(t, 10, dc.GetInt(KeyBootTimeout, 0))
	assert.Equal(t, "PHONE1(GENERIC)", dc.String())
}

func TestParseOverridesRejectsMalformed(t *testing.T) {
	_, err := ParseOverrides([]string{"noequals"})
	require.Error(t, err)
	assert.True(t, api.HasCode(err, api.InvalidParameter))
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{
			name: "valid",
			opts: Options{CampaignPath: "c.xml", RunNumber: 1, Credentials: "me:pw"},
		},
		{
			name:    "missing campaign",
			opts:    Options{RunNumber: 1},
			wantErr: "campaign",
		},
		{
			name: "camp gen needs no campaign",
			opts: Options{CampaignGenerate: true, RunNumber: 1},
		},
		{
			name:    "bad run number",
			opts:    Options{CampaignPath: "c.xml"},
			wantErr: "run_nb",
		},
		{
			name:    "bad uuid",
			opts:    Options{CampaignPath: "c.xml", RunNumber: 1, MetacampaignUUID: "nope"},
			wantErr: "metacampaign_uuid",
		},
		{
			name:    "bad creds",
			opts:    Options{CampaignPath: "c.xml", RunNumber: 1, Credentials: "nocolon"},
			wantErr: "creds",
		},
		{
			name:    "bad log level",
			opts:    Options{CampaignPath: "c.xml", RunNumber: 1, LogLevel: "LOUD"},
			wantErr: "log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, api.IsConfigurationError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCredentialsSplit(t *testing.T) {
	o := Options{Credentials: "alice@example.com:s3:cret"}
	assert.Equal(t, "alice@example.com", o.Username())
	assert.Equal(t, "s3:cret", o.Password())
}

func TestDefaultPathsFromEnv(t *testing.T) {
	t.Setenv(EnvExecutionConfigPath, "/opt/exec")
	t.Setenv(EnvCatalogPath, "/a"+string(os.PathListSeparator)+"/b")

	p := DefaultPaths()
	assert.Equal(t, "/opt/exec", p.ExecutionConfig)
	assert.Equal(t, []string{"/a", "/b"}, p.Catalogs)
	assert.Equal(t, DefaultReportPath, p.Reports)
	assert.Equal(t, "/tmp/r", p.WithReportFolder("/tmp/r").Reports)
}

const benchXML = `<?xml version="1.0"?>
<BenchConfig>
  <Phones>
    <Phone name="PHONE1" deviceModel="GENERIC">
      <Parameter name="serialNumber" value="R58M1234"/>
      <Parameter name="Connection">
        <Parameter name="Port" value="5555"/>
      </Parameter>
    </Phone>
  </Phones>
  <Equipments>
    <Equipment name="IO_CARD" model="USB_RLY08">
      <Parameters>
        <Parameter name="ComPort" value="/dev/ttyACM0"/>
      </Parameters>
    </Equipment>
  </Equipments>
</BenchConfig>`

func TestLoadBenchConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.xml")
	require.NoError(t, os.WriteFile(path, []byte(benchXML), 0644))

	bench, err := LoadBenchConfig(path)
	require.NoError(t, err)

	require.Len(t, bench.Devices, 1)
	dev, ok := bench.Device("PHONE1")
	require.True(t, ok)
	assert.Equal(t, "GENERIC", dev.Model)
	assert.Equal(t, "R58M1234", dev.GetString("serialNumber", ""))
	assert.Equal(t, "5555", dev.GetString("Connection.Port", ""))

	v, ok := bench.Lookup("IO_CARD", "ComPort")
	assert.True(t, ok)
	assert.Equal(t, "/dev/ttyACM0", v)
	v, ok = bench.Lookup("IO_CARD", "model")
	assert.True(t, ok)
	assert.Equal(t, "USB_RLY08", v)
	_, ok = bench.Lookup("NOPE", "x")
	assert.False(t, ok)
	assert.Equal(t, []string{"IO_CARD"}, bench.EquipmentNames())
}

func TestLoadBenchConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadBenchConfig(filepath.Join(dir, "missing.xml"))
	assert.True(t, api.HasCode(err, api.FileNotFound))

	broken := filepath.Join(dir, "broken.xml")
	require.NoError(t, os.WriteFile(broken, []byte(`<BenchConfig><Phones name=></Phones></BenchConfig>`), 0644))
	_, err = LoadBenchConfig(broken)
	assert.True(t, api.HasCode(err, api.XMLParsingError))

	dup := filepath.Join(dir, "dup.xml")
	require.NoError(t, os.WriteFile(dup, []byte(`<BenchConfig><Phones><Phone name="P"/><Phone name="P"/></Phones></BenchConfig>`), 0644))
	_, err = LoadBenchConfig(dup)
	assert.True(t, api.HasCode(err, api.InvalidBenchConfig))
}

func TestConfigurationErrorCollection(t *testing.T) {
	c := NewConfigurationErrorCollection()
	assert.NoError(t, c.AsError())

	c.AddError("/x/a.xml", "a.xml", "usecase", api.XMLParsingError, "unexpected EOF")
	c.AddError("/x/b.xml", "b.xml", "usecase", api.ProhibitiveBehavior, "duplicate id NOOP")

	assert.Equal(t, 2, c.Count())
	assert.Len(t, c.GetErrorsByCode(api.ProhibitiveBehavior), 1)
	assert.Contains(t, c.GetSummary(), "duplicate id NOOP")

	err := c.AsError()
	require.Error(t, err)
	assert.True(t, api.HasCode(err, api.XMLParsingError))
}
