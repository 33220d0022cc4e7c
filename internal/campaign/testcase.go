package campaign

import (
	"errors"
	"io/fs"
	"slices"
	"strings"

	"github.com/beevik/etree"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/config"
)

// Tuning attribute names of a test case.
const (
	AttrB2BIteration       = "b2bIteration"
	AttrB2BContinuousMode  = "b2bContinuousMode"
	AttrIsProvisioning     = "IsProvisioning"
	AttrDeviceConnection   = "DeviceConnection"
	AttrIsCritical         = "IsCritical"
	AttrAcceptanceCriteria = "TcAcceptanceCriteria"
	AttrMaxAttempt         = "TcMaxAttempt"
	AttrMaxRetry           = "TcMaxRetry"
	AttrExpectedResult     = "TcExpectedResult"
	AttrIsWarning          = "isWarning"
	AttrDescription        = "Description"
	AttrSavePatRawData     = "SavePatRawData"
)

var tuningAttrs = []string{
	AttrB2BIteration, AttrB2BContinuousMode, AttrIsProvisioning, AttrDeviceConnection,
	AttrIsCritical, AttrAcceptanceCriteria, AttrMaxAttempt, AttrMaxRetry,
	AttrExpectedResult, AttrIsWarning, AttrDescription, AttrSavePatRawData,
}

// Param is one Parameters/Parameter entry of a test case.
type Param struct {
	Name  string
	Value string
}

// StepDecl is one TestSteps/TestStep entry of a test case.
type StepDecl struct {
	ID    string
	Attrs map[string]string
}

// TestCaseConf is one entry of the flat run list.
type TestCaseConf struct {
	// Name is the test case path relative to the execution-config root,
	// without extension and with host separators.
	Name         string
	Path         string
	UseCaseName  string
	UseCaseClass string
	Phase        string
	Type         string
	Domain       string
	IsRandom     bool
	GroupID      int
	Attrs        map[string]string
	Params       []Param
	Steps        []StepDecl
	Valid        bool
	Messages     []string
	// Campaign is the name of the campaign file that referenced the case.
	Campaign string
}

func (tc *TestCaseConf) invalidate(msg string) {
	tc.Valid = false
	tc.Messages = append(tc.Messages, msg)
}

// Clone returns a deep copy.
func (tc TestCaseConf) Clone() TestCaseConf {
	c := tc
	c.Attrs = make(map[string]string, len(tc.Attrs))
	for k, v := range tc.Attrs {
		c.Attrs[k] = v
	}
	c.Params = append([]Param(nil), tc.Params...)
	c.Steps = make([]StepDecl, len(tc.Steps))
	for i, s := range tc.Steps {
		attrs := make(map[string]string, len(s.Attrs))
		for k, v := range s.Attrs {
			attrs[k] = v
		}
		c.Steps[i] = StepDecl{ID: s.ID, Attrs: attrs}
	}
	c.Messages = append([]string(nil), tc.Messages...)
	return c
}

// ParamMap returns the parameters as a map. A repeated name keeps its last
// value.
func (tc TestCaseConf) ParamMap() map[string]string {
	m := make(map[string]string, len(tc.Params))
	for _, p := range tc.Params {
		m[p.Name] = p.Value
	}
	return m
}

func (tc TestCaseConf) attrs() config.Values { return config.NewValues(tc.Attrs) }

// B2BIteration returns the back-to-back iteration count, at least 1.
func (tc TestCaseConf) B2BIteration() int {
	return max(1, tc.attrs().GetInt(AttrB2BIteration, 1))
}

func (tc TestCaseConf) B2BContinuous() bool {
	return tc.attrs().GetBool(AttrB2BContinuousMode, false)
}

func (tc TestCaseConf) IsCritical() bool { return tc.attrs().GetBool(AttrIsCritical, false) }

func (tc TestCaseConf) IsWarning() bool { return tc.attrs().GetBool(AttrIsWarning, false) }

func (tc TestCaseConf) IsProvisioning() bool { return tc.attrs().GetBool(AttrIsProvisioning, false) }

// DeviceConnection reports whether the case needs a connected device.
func (tc TestCaseConf) DeviceConnection() bool {
	return tc.attrs().GetBool(AttrDeviceConnection, true)
}

func (tc TestCaseConf) SavePatRawData() bool { return tc.attrs().GetBool(AttrSavePatRawData, false) }

func (tc TestCaseConf) Description() string { return tc.attrs().GetString(AttrDescription, "") }

// AcceptanceCriteria returns the number of passing attempts required.
func (tc TestCaseConf) AcceptanceCriteria() int {
	return max(1, tc.attrs().GetInt(AttrAcceptanceCriteria, 1))
}

// MaxAttempt returns the maximum number of attempts. TcMaxAttempt wins over
// the legacy TcMaxRetry; neither means a single attempt. The result is never
// lower than the acceptance criteria.
func (tc TestCaseConf) MaxAttempt() int {
	a := tc.attrs()
	n := 1
	if a.Has(AttrMaxAttempt) {
		n = a.GetInt(AttrMaxAttempt, 1)
	} else if a.Has(AttrMaxRetry) {
		n = a.GetInt(AttrMaxRetry, 1)
	}
	return max(n, 1, tc.AcceptanceCriteria())
}

// ExpectedResult returns TcExpectedResult, PASS by default or when the
// attribute is not one of PASS, FAIL and BLOCKED.
func (tc TestCaseConf) ExpectedResult() api.Verdict {
	v, _ := tc.expectedResult()
	return v
}

var expectedResults = []api.Verdict{api.VerdictPass, api.VerdictFail, api.VerdictBlocked}

func (tc TestCaseConf) expectedResult() (api.Verdict, bool) {
	s := tc.attrs().GetString(AttrExpectedResult, "")
	if s == "" {
		return api.VerdictPass, true
	}
	if v, ok := api.ParseVerdict(s); ok && slices.Contains(expectedResults, v) {
		return v, true
	}
	return api.VerdictPass, false
}

// parseTestCaseFile fills tc from the test-case XML at tc.Path.
func parseTestCaseFile(tc *TestCaseConf) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(tc.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return api.WrapError(api.FileNotFound, err, "test case %s not found", tc.Path)
		}
		return api.WrapError(api.XMLParsingError, err, "cannot parse test case %s", tc.Path)
	}
	root := doc.Root()
	if root == nil || root.Tag != "TestCase" {
		return api.NewError(api.XMLParsingError, "%s: root element must be TestCase", tc.Path)
	}

	text := func(tag string) string {
		if c := root.SelectElement(tag); c != nil {
			return strings.TrimSpace(c.Text())
		}
		return ""
	}
	tc.UseCaseName = text("UseCase")
	if tc.UseCaseName == "" {
		return api.NewError(api.XMLParsingError, "%s: UseCase is missing", tc.Path)
	}
	tc.UseCaseClass = text("ClassName")
	tc.Phase = text("Phase")
	tc.Type = text("Type")
	tc.Domain = text("Domain")

	fileAttrs := make(map[string]string)
	for _, name := range tuningAttrs {
		if v := root.SelectAttr(name); v != nil {
			fileAttrs[name] = v.Value
		}
		if c := root.SelectElement(name); c != nil {
			fileAttrs[name] = strings.TrimSpace(c.Text())
		}
	}
	// Attributes from the campaign reference override the file.
	for k, v := range tc.Attrs {
		fileAttrs[k] = v
	}
	tc.Attrs = fileAttrs

	if params := root.SelectElement("Parameters"); params != nil {
		for _, p := range params.SelectElements("Parameter") {
			name := p.SelectAttrValue("Name", "")
			value, hasValue := "", false
			if v := p.SelectAttr("Value"); v != nil {
				value, hasValue = v.Value, true
			}
			if n := p.SelectElement("Name"); n != nil {
				name = strings.TrimSpace(n.Text())
			}
			if v := p.SelectElement("Value"); v != nil {
				value, hasValue = strings.TrimSpace(v.Text()), true
			}
			if name == "" {
				return api.NewError(api.XMLParsingError, "%s: Parameter without Name", tc.Path)
			}
			if !hasValue {
				value = ""
			}
			tc.Params = append(tc.Params, Param{Name: name, Value: value})
		}
	}

	if steps := root.SelectElement("TestSteps"); steps != nil {
		for _, s := range steps.SelectElements("TestStep") {
			decl := StepDecl{ID: s.SelectAttrValue("Id", ""), Attrs: make(map[string]string)}
			if decl.ID == "" {
				return api.NewError(api.XMLParsingError, "%s: TestStep without Id", tc.Path)
			}
			for _, a := range s.Attr {
				if a.Key != "Id" {
					decl.Attrs[a.Key] = a.Value
				}
			}
			tc.Steps = append(tc.Steps, decl)
		}
	}
	return nil
}
