package campaign

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/catalog"
)

type classSet map[string]bool

func (c classSet) Has(class string) bool { return c[class] }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func testCaseXML(useCase string, extra string) string {
	return `<?xml version="1.0"?>
<TestCase>
  <UseCase>` + useCase + `</UseCase>
  ` + extra + `
  <Parameters>
    <Parameter><Name>DURATION</Name><Value>1</Value></Parameter>
    <Parameter Name="MODE" Value="fast"/>
  </Parameters>
</TestCase>`
}

// newExecRoot lays out an execution-config root with test cases a, b, c, d.
func newExecRoot(t *testing.T) (string, *Loader) {
	t.Helper()
	root := t.TempDir()
	for _, n := range []string{"a", "b", "c", "d"} {
		writeFile(t, filepath.Join(root, "TC", n+".xml"), testCaseXML("NOOP", ""))
	}
	l := &Loader{
		ExecConfigRoot: root,
		WorkDir:        t.TempDir(),
		UseCases: catalog.NewStore(catalog.KindUseCase, map[string]catalog.UseCaseEntry{
			"NOOP":      {ID: "NOOP", ClassName: "NOOP"},
			"NOT_BUILT": {ID: "NOT_BUILT", ClassName: "MISSING_CLASS"},
		}),
		Classes: classSet{"NOOP": true, "SLEEP": true},
	}
	return root, l
}

func names(cases []TestCaseConf) []string {
	out := make([]string, len(cases))
	for i, tc := range cases {
		out[i] = filepath.ToSlash(tc.Name)
	}
	return out
}

func TestEmptyTestCases(t *testing.T) {
	root, l := newExecRoot(t)
	writeFile(t, filepath.Join(root, "empty.xml"), `<Campaign><TestCases></TestCases></Campaign>`)

	res, err := l.Load(filepath.Join(root, "empty.xml"))
	require.NoError(t, err)
	assert.Empty(t, res.TestCases)
	assert.Empty(t, res.SubCampaigns)
}

func TestLoadSingleTestCase(t *testing.T) {
	root, l := newExecRoot(t)
	writeFile(t, filepath.Join(root, "camp.xml"), `<Campaign>
  <Parameters><Parameter stopCampaignOnCriticalFailure="true"/><Parameter loggingLevel="debug"/></Parameters>
  <Targets><Target targetPassRate="95"/></Targets>
  <TestCases><TestCase Id="TC/a" TcMaxAttempt="3"/></TestCases>
</Campaign>`)

	res, err := l.Load("camp")
	require.NoError(t, err, "campaign ids resolve against the exec root without extension")

	require.Len(t, res.TestCases, 1)
	tc := res.TestCases[0]
	assert.True(t, tc.Valid, tc.Messages)
	assert.Equal(t, filepath.Join("TC", "a"), tc.Name)
	assert.Equal(t, "NOOP", tc.UseCaseClass)
	assert.Equal(t, 3, tc.MaxAttempt(), "campaign attributes override the file")
	assert.Equal(t, map[string]string{"DURATION": "1", "MODE": "fast"}, tc.ParamMap())
	assert.Equal(t, "camp", tc.Campaign)

	assert.True(t, res.Campaign.StopOnCriticalFailure())
	assert.Equal(t, "debug", res.Campaign.Parameters.GetString("loggingLevel", ""))
	assert.InDelta(t, 95.0, res.Campaign.TargetPassRate(), 1e-9)
}

func TestPathResolutionOrder(t *testing.T) {
	root, l := newExecRoot(t)
	// A test case next to the sub-campaign, not under the exec root.
	writeFile(t, filepath.Join(root, "sub", "local.xml"), testCaseXML("NOOP", ""))
	writeFile(t, filepath.Join(root, "sub", "s.xml"), `<Campaign><TestCases>
  <TestCase Id="local"/>
  <TestCase Id="TC/b.xml"/>
</TestCases></Campaign>`)
	writeFile(t, filepath.Join(root, "main.xml"), `<Campaign><TestCases><SubCampaign Name="sub/s"/></TestCases></Campaign>`)

	res, err := l.Load(filepath.Join(root, "main.xml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"sub/local", "TC/b"}, names(res.TestCases))
	for _, tc := range res.TestCases {
		assert.True(t, tc.Valid, tc.Messages)
	}
	require.Len(t, res.SubCampaigns, 1)
	assert.Equal(t, filepath.Join("sub", "s"), res.SubCampaigns[0].Name)
	assert.Equal(t, 1, res.SubCampaigns[0].RunNumber)
}

func TestInvalidEntriesAreKept(t *testing.T) {
	root, l := newExecRoot(t)
	writeFile(t, filepath.Join(root, "TC", "unknown.xml"), testCaseXML("NO_SUCH_UC", ""))
	writeFile(t, filepath.Join(root, "TC", "unbuilt.xml"), testCaseXML("NOT_BUILT", ""))
	writeFile(t, filepath.Join(root, "TC", "broken.xml"), `<TestCase><UseCase>NOOP</UseCase><Parameters x=></Parameters></TestCase>`)
	writeFile(t, filepath.Join(root, "camp.xml"), `<Campaign><TestCases>
  <TestCase Id="TC/missing"/>
  <TestCase Id="TC/unknown"/>
  <TestCase Id="TC/unbuilt"/>
  <TestCase Id="TC/broken"/>
  <TestCase Id="TC/a"/>
</TestCases></Campaign>`)

	res, err := l.Load(filepath.Join(root, "camp.xml"))
	require.NoError(t, err)
	require.Len(t, res.TestCases, 5)

	for _, tc := range res.TestCases[:4] {
		assert.False(t, tc.Valid, tc.Name)
		assert.NotEmpty(t, tc.Messages, tc.Name)
	}
	assert.Contains(t, res.TestCases[0].Messages[0], "not found")
	assert.Contains(t, res.TestCases[2].Messages[0], "MISSING_CLASS")
	assert.True(t, res.TestCases[4].Valid)
}

func TestSubCampaignRunNumberMultiplies(t *testing.T) {
	root, l := newExecRoot(t)
	writeFile(t, filepath.Join(root, "inner.xml"), `<Campaign><TestCases>
  <TestCase Id="TC/b"/><TestCase Id="TC/c"/>
</TestCases></Campaign>`)
	writeFile(t, filepath.Join(root, "mid.xml"), `<Campaign><TestCases>
  <TestCase Id="TC/d"/>
  <SubCampaign Name="inner" runNumber="2"/>
</TestCases></Campaign>`)
	writeFile(t, filepath.Join(root, "top.xml"), `<Campaign><TestCases>
  <TestCase Id="TC/a"/>
  <SubCampaign Name="mid" runNumber="3"/>
</TestCases></Campaign>`)

	res, err := l.Load(filepath.Join(root, "top.xml"))
	require.NoError(t, err)

	// 1 + 3 × (1 + 2 × 2)
	assert.Len(t, res.TestCases, 16)
	assert.Equal(t, []string{"TC/a", "TC/d", "TC/b", "TC/c", "TC/b", "TC/c", "TC/d"}, names(res.TestCases)[:7])

	require.Len(t, res.SubCampaigns, 2)
	assert.Equal(t, "mid", res.SubCampaigns[0].Name)
	assert.Equal(t, 3, res.SubCampaigns[0].RunNumber)
	assert.Equal(t, "inner", res.SubCampaigns[1].Name)
	assert.Len(t, res.SubCampaigns[1].Parents, 2)
}

func TestSubCampaignCycle(t *testing.T) {
	root, l := newExecRoot(t)
	writeFile(t, filepath.Join(root, "A.xml"), `<Campaign><TestCases><SubCampaign Name="B"/></TestCases></Campaign>`)
	writeFile(t, filepath.Join(root, "B.xml"), `<Campaign><TestCases><SubCampaign Name="A"/></TestCases></Campaign>`)

	_, err := l.Load(filepath.Join(root, "A.xml"))
	require.Error(t, err)
	assert.True(t, api.HasCode(err, api.InvalidParameter))
	assert.Contains(t, err.Error(), "parent chain")
	assert.Contains(t, err.Error(), "A.xml -> B.xml -> A.xml")
}

func TestSelfReferenceIsACycle(t *testing.T) {
	root, l := newExecRoot(t)
	writeFile(t, filepath.Join(root, "self.xml"), `<Campaign><TestCases><SubCampaign Name="self.xml"/></TestCases></Campaign>`)

	_, err := l.Load(filepath.Join(root, "self.xml"))
	assert.True(t, api.HasCode(err, api.InvalidParameter))
}

func TestInvalidRunNumber(t *testing.T) {
	root, l := newExecRoot(t)
	writeFile(t, filepath.Join(root, "inner.xml"), `<Campaign><TestCases/></Campaign>`)
	for _, rn := range []string{"0", "-2", "two"} {
		writeFile(t, filepath.Join(root, "top.xml"), `<Campaign><TestCases><SubCampaign Name="inner" runNumber="`+rn+`"/></TestCases></Campaign>`)
		_, err := l.Load(filepath.Join(root, "top.xml"))
		assert.True(t, api.HasCode(err, api.InvalidParameter), rn)
	}
}

func TestMalformedCampaign(t *testing.T) {
	root, l := newExecRoot(t)
	cases := map[string]string{
		"root.xml":   `<Plan/>`,
		"nested.xml": `<Campaign><TestCases><RANDOM><RANDOM/></RANDOM></TestCases></Campaign>`,
		"group.xml":  `<Campaign><TestCases><GROUP><TestCase Id="TC/a"/></GROUP></TestCases></Campaign>`,
		"noid.xml":   `<Campaign><TestCases><TestCase/></TestCases></Campaign>`,
	}
	for file, content := range cases {
		writeFile(t, filepath.Join(root, file), content)
		_, err := l.Load(filepath.Join(root, file))
		assert.True(t, api.HasCode(err, api.XMLParsingError), file)
	}

	_, err := l.Load(filepath.Join(root, "nope.xml"))
	assert.True(t, api.HasCode(err, api.FileNotFound))
}

func TestRandomGroupsGetFreshIDs(t *testing.T) {
	root, l := newExecRoot(t)
	writeFile(t, filepath.Join(root, "camp.xml"), `<Campaign><TestCases>
  <TestCase Id="TC/d"/>
  <RANDOM>
    <GROUP><TestCase Id="TC/a"/><TestCase Id="TC/b"/></GROUP>
    <TestCase Id="TC/c"/>
    <GROUP><TestCase Id="TC/d"/></GROUP>
  </RANDOM>
</TestCases></Campaign>`)

	res, err := l.Load(filepath.Join(root, "camp.xml"))
	require.NoError(t, err)
	require.Len(t, res.TestCases, 5)

	assert.False(t, res.TestCases[0].IsRandom)
	for _, tc := range res.TestCases[1:] {
		assert.True(t, tc.IsRandom)
	}
	assert.Equal(t, 1, res.TestCases[1].GroupID)
	assert.Equal(t, 1, res.TestCases[2].GroupID)
	assert.Equal(t, 0, res.TestCases[3].GroupID)
	assert.Equal(t, 2, res.TestCases[4].GroupID)
}

func TestRandomGroupOrdering(t *testing.T) {
	root, l := newExecRoot(t)
	writeFile(t, filepath.Join(root, "camp.xml"), `<Campaign><TestCases>
  <RANDOM><GROUP><TestCase Id="TC/a"/><TestCase Id="TC/b"/></GROUP><TestCase Id="TC/c"/></RANDOM>
</TestCases></Campaign>`)

	res, err := l.Load(filepath.Join(root, "camp.xml"))
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))
	seen := map[string]int{}
	for i := 0; i < 200; i++ {
		order := strings.Join(names(Shuffle(res.TestCases, rng)), ",")
		seen[order]++
		assert.Contains(t, []string{"TC/a,TC/b,TC/c", "TC/c,TC/a,TC/b"}, order)
	}
	assert.Len(t, seen, 2, "c must appear both before and after the group")
}

func TestShuffleKeepsNonRandomInPlace(t *testing.T) {
	cases := []TestCaseConf{
		{Name: "fixed1"},
		{Name: "r1", IsRandom: true},
		{Name: "r2", IsRandom: true},
		{Name: "fixed2"},
		{Name: "r3", IsRandom: true},
	}
	rng := rand.New(rand.NewPCG(7, 7))
	for i := 0; i < 50; i++ {
		got := Shuffle(cases, rng)
		assert.Equal(t, "fixed1", got[0].Name)
		assert.Equal(t, "fixed2", got[3].Name)
		assert.Equal(t, "r3", got[4].Name)
		assert.ElementsMatch(t, []string{"r1", "r2"}, []string{got[1].Name, got[2].Name})
	}

	marked := MarkRandom(cases)
	assert.False(t, cases[0].IsRandom, "input is not modified")
	for _, tc := range marked {
		assert.True(t, tc.IsRandom)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	root, l := newExecRoot(t)
	writeFile(t, filepath.Join(root, "inner.xml"), `<Campaign><TestCases><TestCase Id="TC/c"/></TestCases></Campaign>`)
	path := filepath.Join(root, "camp.xml")
	writeFile(t, path, `<Campaign>
  <Parameters><Parameter powerCycleOnFailure="true"/></Parameters>
  <TestCases>
    <TestCase Id="TC/a" isWarning="true"/>
    <RANDOM><GROUP><TestCase Id="TC/b"/><TestCase Id="TC/d"/></GROUP><TestCase Id="TC/a"/></RANDOM>
    <SubCampaign Name="inner" runNumber="2"/>
  </TestCases>
</Campaign>`)

	first, err := l.Load(path)
	require.NoError(t, err)

	require.NoError(t, WriteFile(path, first.Document))

	second, err := l.Load(path)
	require.NoError(t, err)

	assert.Equal(t, first.CampaignPath, second.CampaignPath)
	if diff := cmp.Diff(first.TestCases, second.TestCases); diff != "" {
		t.Errorf("test cases differ after round trip (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.SubCampaigns, second.SubCampaigns); diff != "" {
		t.Errorf("sub-campaigns differ after round trip (-first +second):\n%s", diff)
	}
	assert.True(t, second.Campaign.PowerCycleOnFailure())
}

func TestTuningAccessors(t *testing.T) {
	tc := TestCaseConf{Attrs: map[string]string{}}
	assert.Equal(t, 1, tc.MaxAttempt())
	assert.Equal(t, 1, tc.AcceptanceCriteria())
	assert.Equal(t, 1, tc.B2BIteration())
	assert.Equal(t, api.VerdictPass, tc.ExpectedResult())
	assert.True(t, tc.DeviceConnection())

	tc.Attrs[AttrMaxRetry] = "4"
	assert.Equal(t, 4, tc.MaxAttempt())
	tc.Attrs[AttrMaxAttempt] = "2"
	assert.Equal(t, 2, tc.MaxAttempt(), "TcMaxAttempt wins over TcMaxRetry")
	tc.Attrs[AttrAcceptanceCriteria] = "3"
	assert.Equal(t, 3, tc.MaxAttempt(), "never below the acceptance criteria")

	tc.Attrs[AttrExpectedResult] = "fail"
	tc.Attrs[AttrB2BIteration] = "5"
	tc.Attrs[AttrB2BContinuousMode] = "True"
	tc.Attrs[AttrIsCritical] = "true"
	assert.Equal(t, api.VerdictFail, tc.ExpectedResult())
	assert.Equal(t, 5, tc.B2BIteration())
	assert.True(t, tc.B2BContinuous())
	assert.True(t, tc.IsCritical())

	tc.Attrs[AttrExpectedResult] = "INCONCLUSIVE"
	assert.Equal(t, api.VerdictPass, tc.ExpectedResult(), "only PASS, FAIL and BLOCKED are expected results")
}

func TestUnsupportedExpectedResultIsInvalid(t *testing.T) {
	root, l := newExecRoot(t)
	writeFile(t, filepath.Join(root, "camp.xml"), `<Campaign><TestCases>
  <TestCase Id="TC/a" TcExpectedResult="BLOCKED"/>
  <TestCase Id="TC/b" TcExpectedResult="VALID"/>
  <TestCase Id="TC/c" TcExpectedResult="bogus"/>
</TestCases></Campaign>`)

	res, err := l.Load(filepath.Join(root, "camp.xml"))
	require.NoError(t, err)
	require.Len(t, res.TestCases, 3)

	assert.True(t, res.TestCases[0].Valid)
	assert.Equal(t, api.VerdictBlocked, res.TestCases[0].ExpectedResult())
	for _, tc := range res.TestCases[1:] {
		assert.False(t, tc.Valid, tc.Name)
		require.NotEmpty(t, tc.Messages)
		assert.Contains(t, tc.Messages[0], AttrExpectedResult)
	}
}

func TestTestCaseFileTuningElements(t *testing.T) {
	root, l := newExecRoot(t)
	writeFile(t, filepath.Join(root, "TC", "tuned.xml"), testCaseXML("NOOP",
		`<TcMaxAttempt>2</TcMaxAttempt><b2bIteration>3</b2bIteration><Phase>CORE</Phase>
  <TestSteps><TestStep Id="WAIT" DURATION="1"/></TestSteps>`))
	writeFile(t, filepath.Join(root, "camp.xml"), `<Campaign><TestCases><TestCase Id="TC/tuned"/></TestCases></Campaign>`)

	res, err := l.Load(filepath.Join(root, "camp.xml"))
	require.NoError(t, err)
	tc := res.TestCases[0]
	assert.Equal(t, 2, tc.MaxAttempt())
	assert.Equal(t, 3, tc.B2BIteration())
	assert.Equal(t, "CORE", tc.Phase)
	require.Len(t, tc.Steps, 1)
	assert.Equal(t, StepDecl{ID: "WAIT", Attrs: map[string]string{"DURATION": "1"}}, tc.Steps[0])
}
