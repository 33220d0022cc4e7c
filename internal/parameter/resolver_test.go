package parameter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/catalog"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/config"
)

type benchStub map[string]map[string]string

func (b benchStub) Lookup(name, key string) (string, bool) {
	v, ok := b[name][key]
	return v, ok
}

func newResolver() *Resolver {
	return &Resolver{
		Devices: DeviceConfigs{
			config.MergeDeviceConfig("PHONE1", "GENERIC",
				config.NewValues(map[string]string{"serialNumber": "R58M", "bootTimeout": "90"}),
				config.Values{}, config.Values{}),
		},
		Bench: benchStub{"IO_CARD": {"ComPort": "/dev/ttyACM0"}},
		TC:    map[string]string{"APN": "internet", "COUNT": "3"},
	}
}

func TestResolveReferences(t *testing.T) {
	r := newResolver()
	desc := map[string]catalog.ParamDescriptor{
		"SERIAL":  {Name: "SERIAL", Type: "STRING"},
		"PORT":    {Name: "PORT", Type: "STRING"},
		"TIMEOUT": {Name: "TIMEOUT", Type: "INTEGER", Default: "30", HasDefault: true},
		"LABEL":   {Name: "LABEL", Type: "STRING"},
		"COUNT":   {Name: "COUNT", Type: "int", PossibleValues: "[1:10]"},
		"TARGETS": {Name: "TARGETS", Type: "LIST"},
		"WAITS":   {Name: "WAITS", Type: "float"},
	}
	raw := map[string]string{
		"SERIAL":  "FROM_DEVICE:PHONE1:serialNumber",
		"PORT":    "FROM_BENCH:IO_CARD:ComPort",
		"TIMEOUT": "DEFAULT",
		"LABEL":   "apn_[+]FROM_TC:APN[+]_FROM_DEVICE:PHONE1:bootTimeout",
		"COUNT":   "FROM_TC:COUNT",
		"TARGETS": "a[|]FROM_TC:APN[|]b[+]c",
		"WAITS":   "0.5[|]1.5",
	}

	v, err := r.Resolve(raw, desc, nil)
	require.NoError(t, err)

	assert.Equal(t, "R58M", v.String("SERIAL"))
	assert.Equal(t, "/dev/ttyACM0", v.String("PORT"))
	assert.Equal(t, 30, v.Int("TIMEOUT"))
	assert.Equal(t, 3, v.Int("COUNT"))
	assert.Equal(t, "apn_internet_FROM_DEVICE:PHONE1:bootTimeout", v.String("LABEL"),
		"a reference must be a whole operand")
	if diff := cmp.Diff([]string{"a", "internet", "bc"}, v.List("TARGETS")); diff != "" {
		t.Errorf("TARGETS mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"0.5", "1.5"}, v.List("WAITS"))
}

func TestStaticThenDynamic(t *testing.T) {
	r := newResolver()
	desc := map[string]catalog.ParamDescriptor{
		"DELAY": {Name: "DELAY", Type: "INTEGER", PossibleValues: "[0:]"},
		"NAME":  {Name: "NAME", Type: "STRING"},
	}
	raw := map[string]string{"DELAY": "FROM_CTX:delay", "NAME": "FROM_TC:APN"}

	p, err := r.ResolveStatic(raw, desc)
	require.NoError(t, err)
	assert.True(t, p.Dynamic())

	_, err = r.ResolveDynamic(p, MapContext{})
	require.Error(t, err)
	assert.True(t, api.HasCode(err, api.InvalidParameter))
	assert.Contains(t, err.Error(), "DELAY")
	assert.Contains(t, err.Error(), "FROM_CTX:delay")

	v, err := r.ResolveDynamic(p, MapContext{"delay": "12"})
	require.NoError(t, err)
	assert.Equal(t, 12, v.Int("DELAY"))
	assert.Equal(t, "internet", v.String("NAME"))

	_, err = r.ResolveDynamic(p, MapContext{"delay": "-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"-1"`)
}

func TestRejectionsNameParameterAndValue(t *testing.T) {
	tests := []struct {
		name  string
		desc  catalog.ParamDescriptor
		value string
	}{
		{"blank", catalog.ParamDescriptor{Type: "STRING"}, "  "},
		{"enum", catalog.ParamDescriptor{Type: "STRING", PossibleValues: "ON;OFF"}, "MAYBE"},
		{"range low", catalog.ParamDescriptor{Type: "INTEGER", PossibleValues: "[5:10]"}, "4"},
		{"range high", catalog.ParamDescriptor{Type: "FLOAT", PossibleValues: "[:1.5]"}, "2.25"},
		{"range not number", catalog.ParamDescriptor{Type: "STRING", PossibleValues: "[0:9]"}, "nine"},
		{"int cast", catalog.ParamDescriptor{Type: "INTEGER"}, "12abc"},
		{"float cast", catalog.ParamDescriptor{Type: "FLOAT"}, "one"},
		{"bool cast", catalog.ParamDescriptor{Type: "BOOLEAN"}, "perhaps"},
		{"unknown type", catalog.ParamDescriptor{Type: "COMPLEX"}, "1+2i"},
		{"unknown device", catalog.ParamDescriptor{Type: "STRING"}, "FROM_DEVICE:PHONE9:serialNumber"},
		{"unknown bench", catalog.ParamDescriptor{Type: "STRING"}, "FROM_BENCH:RELAY:port"},
		{"unknown tc", catalog.ParamDescriptor{Type: "STRING"}, "FROM_TC:NOPE"},
		{"malformed device", catalog.ParamDescriptor{Type: "STRING"}, "FROM_DEVICE:PHONE1"},
	}
	r := newResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const param = "MY_PARAM"
			tt.desc.Name = param
			_, err := r.Resolve(map[string]string{param: tt.value},
				map[string]catalog.ParamDescriptor{param: tt.desc}, nil)
			require.Error(t, err)
			assert.True(t, api.HasCode(err, api.InvalidParameter))
			assert.Contains(t, err.Error(), param)
			assert.Contains(t, err.Error(), tt.value)
		})
	}
}

func TestBlankAndOptional(t *testing.T) {
	r := newResolver()
	desc := map[string]catalog.ParamDescriptor{
		"OPT_INT":  {Name: "OPT_INT", Type: "INTEGER", Optional: true},
		"BLANK_OK": {Name: "BLANK_OK", Type: "STRING", BlankAllowed: true},
		"FLAG":     {Name: "FLAG", Type: "BOOLEAN"},
	}
	v, err := r.Resolve(map[string]string{"BLANK_OK": "", "FLAG": "on"}, desc, nil)
	require.NoError(t, err)

	assert.False(t, v.Has("OPT_INT"))
	assert.True(t, v.Has("BLANK_OK"))
	assert.Equal(t, "", v.String("BLANK_OK"))
	assert.True(t, v.Bool("FLAG"))

	_, err = r.Resolve(map[string]string{}, map[string]catalog.ParamDescriptor{
		"REQUIRED": {Name: "REQUIRED", Type: "STRING"},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUIRED")
}

func TestDefaultWithoutDefaultValue(t *testing.T) {
	_, err := newResolver().Resolve(map[string]string{"X": "DEFAULT"},
		map[string]catalog.ParamDescriptor{"X": {Name: "X", Type: "STRING"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"X"`)
	assert.Contains(t, err.Error(), "DEFAULT")
}

func TestUndeclaredParametersStayStrings(t *testing.T) {
	v, err := newResolver().Resolve(map[string]string{"FREE": "FROM_TC:COUNT"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "3", v.String("FREE"))
	assert.Equal(t, map[string]string{"FREE": "3"}, v.Strings())
}

func TestResolveString(t *testing.T) {
	s, err := newResolver().ResolveString("cmd", "echo [+]FROM_CTX:word", MapContext{"word": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "echo hi", s)
}

func TestNormalizeType(t *testing.T) {
	for in, want := range map[string]string{"int": TypeInteger, "Bool": TypeBoolean, "str": TypeString, "list": TypeList, "FLOAT": TypeFloat} {
		got, ok := NormalizeType(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := NormalizeType("map")
	assert.False(t, ok)
}
