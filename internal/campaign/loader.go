package campaign

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/catalog"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/config"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// CampaignConf is a sub-campaign reference met during expansion.
type CampaignConf struct {
	Name      string
	Path      string
	RunNumber int
	// Parents lists the campaign files from the root down to the file that
	// referenced this one.
	Parents []string
}

// ClassResolver tells whether a use-case class id has an implementation.
type ClassResolver interface {
	Has(class string) bool
}

// Result is the outcome of loading a campaign.
type Result struct {
	CampaignPath string
	Campaign     config.CampaignConfig
	TestCases    []TestCaseConf
	SubCampaigns []CampaignConf
	// Document is the root campaign as parsed, used to write it back.
	Document Document
}

// Loader expands campaign files into a flat run list.
type Loader struct {
	ExecConfigRoot string
	UseCases       *catalog.Store[catalog.UseCaseEntry]
	Classes        ClassResolver
	// WorkDir is the first directory references are resolved against.
	// Empty means the process working directory.
	WorkDir string

	nextGroup int
}

// Load parses the campaign at path and expands it.
func (l *Loader) Load(path string) (*Result, error) {
	resolved, ok := l.resolve(path, "")
	if !ok {
		return nil, api.NewError(api.FileNotFound, "campaign %s not found", path)
	}
	doc, err := readCampaign(resolved)
	if err != nil {
		return nil, err
	}

	l.nextGroup = 0
	res := &Result{
		CampaignPath: resolved,
		Campaign: config.CampaignConfig{
			Name:       strings.TrimSuffix(filepath.Base(resolved), filepath.Ext(resolved)),
			Path:       resolved,
			Parameters: config.NewValues(doc.Parameters),
			Targets:    config.NewValues(doc.Targets),
		},
		Document: doc,
	}

	cases, subs, err := l.expand(doc.Nodes, resolved, []string{resolved}, false, 0)
	if err != nil {
		return nil, err
	}
	res.TestCases = cases
	res.SubCampaigns = subs

	invalid := 0
	for _, tc := range cases {
		if !tc.Valid {
			invalid++
		}
	}
	logging.Info("CampaignLoader", "Campaign %s: %d test case(s), %d sub-campaign(s), %d invalid",
		res.Campaign.Name, len(cases), len(subs), invalid)
	return res, nil
}

// expand walks nodes in document order.
func (l *Loader) expand(nodes []Node, file string, parents []string, random bool, group int) ([]TestCaseConf, []CampaignConf, error) {
	var cases []TestCaseConf
	var subs []CampaignConf

	for _, n := range nodes {
		switch n.Kind {
		case NodeTestCase:
			cases = append(cases, l.testCase(n, file, random, group))

		case NodeRandom:
			c, s, err := l.expand(n.Children, file, parents, true, 0)
			if err != nil {
				return nil, nil, err
			}
			cases = append(cases, c...)
			subs = append(subs, s...)

		case NodeGroup:
			l.nextGroup++
			c, s, err := l.expand(n.Children, file, parents, random, l.nextGroup)
			if err != nil {
				return nil, nil, err
			}
			cases = append(cases, c...)
			subs = append(subs, s...)

		case NodeSubCampaign:
			c, s, err := l.subCampaign(n, file, parents)
			if err != nil {
				return nil, nil, err
			}
			cases = append(cases, c...)
			subs = append(subs, s...)
		}
	}
	return cases, subs, nil
}

func (l *Loader) subCampaign(n Node, file string, parents []string) ([]TestCaseConf, []CampaignConf, error) {
	if n.RunNumber < 1 {
		return nil, nil, api.NewError(api.InvalidParameter,
			"%s: sub-campaign %s has runNumber %d, must be at least 1", filepath.Base(file), n.ID, n.RunNumber)
	}
	path, ok := l.resolve(n.ID, filepath.Dir(file))
	if !ok {
		return nil, nil, api.NewError(api.FileNotFound, "%s: sub-campaign %s not found", filepath.Base(file), n.ID)
	}
	for _, p := range parents {
		if p == path {
			chain := make([]string, 0, len(parents)+1)
			for _, q := range append(parents, path) {
				chain = append(chain, filepath.Base(q))
			}
			return nil, nil, api.NewError(api.InvalidParameter,
				"sub-campaign %s is already on its parent chain: %s", n.ID, strings.Join(chain, " -> "))
		}
	}

	doc, err := readCampaign(path)
	if err != nil {
		return nil, nil, err
	}
	chain := append(append([]string(nil), parents...), path)
	conf := CampaignConf{
		Name:      l.relativeName(path),
		Path:      path,
		RunNumber: n.RunNumber,
		Parents:   append([]string(nil), parents...),
	}

	inner, innerSubs, err := l.expand(doc.Nodes, path, chain, false, 0)
	if err != nil {
		return nil, nil, err
	}

	cases := make([]TestCaseConf, 0, len(inner)*n.RunNumber)
	for run := 0; run < n.RunNumber; run++ {
		remap := make(map[int]int)
		for _, tc := range inner {
			c := tc.Clone()
			if run > 0 && c.GroupID != 0 {
				// Each repetition gets its own groups.
				if _, ok := remap[c.GroupID]; !ok {
					l.nextGroup++
					remap[c.GroupID] = l.nextGroup
				}
				c.GroupID = remap[c.GroupID]
			}
			cases = append(cases, c)
		}
	}

	subs := append([]CampaignConf{conf}, innerSubs...)
	return cases, subs, nil
}

func (l *Loader) testCase(n Node, file string, random bool, group int) TestCaseConf {
	tc := TestCaseConf{
		Name:     n.ID,
		IsRandom: random,
		GroupID:  group,
		Attrs:    make(map[string]string),
		Valid:    true,
		Campaign: l.relativeName(file),
	}
	for k, v := range n.Attrs {
		tc.Attrs[k] = v
	}

	path, ok := l.resolve(n.ID, filepath.Dir(file))
	if !ok {
		tc.invalidate("test case file " + n.ID + " not found")
		return tc
	}
	tc.Path = path
	tc.Name = l.relativeName(path)

	if err := parseTestCaseFile(&tc); err != nil {
		tc.invalidate(err.Error())
		return tc
	}

	class := tc.UseCaseClass
	if class == "" {
		uc, err := l.UseCases.Get(tc.UseCaseName)
		switch {
		case err == nil:
			class = uc.ClassName
		case l.Classes != nil && l.Classes.Has(tc.UseCaseName):
			class = tc.UseCaseName
		default:
			tc.invalidate(err.Error())
			return tc
		}
	}
	if l.Classes != nil && !l.Classes.Has(class) {
		tc.invalidate("use case class " + class + " is not registered")
		return tc
	}
	tc.UseCaseClass = class
	if _, ok := tc.expectedResult(); !ok {
		tc.invalidate(AttrExpectedResult + " " + tc.attrs().GetString(AttrExpectedResult, "") + " is not one of PASS, FAIL, BLOCKED")
	}
	return tc
}

// resolve finds id in the working directory, the execution-config root and
// dir, in that order, with and without the .xml extension.
func (l *Loader) resolve(id, dir string) (string, bool) {
	id = filepath.FromSlash(strings.TrimSpace(id))
	if id == "" {
		return "", false
	}
	names := []string{id}
	if !strings.EqualFold(filepath.Ext(id), ".xml") {
		names = append(names, id+".xml")
	}

	var bases []string
	if filepath.IsAbs(id) {
		bases = []string{""}
	} else {
		wd := l.WorkDir
		if wd == "" {
			wd, _ = os.Getwd()
		}
		bases = []string{wd, l.ExecConfigRoot}
		if dir != "" {
			bases = append(bases, dir)
		}
	}

	for _, base := range bases {
		for _, name := range names {
			candidate := name
			if base != "" {
				candidate = filepath.Join(base, name)
			}
			if st, err := os.Stat(candidate); err == nil && st.Mode().IsRegular() {
				if abs, err := filepath.Abs(candidate); err == nil {
					return filepath.Clean(abs), true
				}
				return filepath.Clean(candidate), true
			}
		}
	}
	return "", false
}

// relativeName returns path relative to the execution-config root without
// its extension, or the cleaned path when it lies outside the root.
func (l *Loader) relativeName(path string) string {
	name := path
	if root, err := filepath.Abs(l.ExecConfigRoot); err == nil {
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			name = rel
		}
	}
	return strings.TrimSuffix(filepath.Clean(name), filepath.Ext(name))
}

func readCampaign(path string) (Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, api.WrapError(api.FileNotFound, err, "campaign %s not found", path)
		}
		return Document{}, api.WrapError(api.XMLParsingError, err, "cannot parse campaign %s", path)
	}
	return parseDocument(doc, path)
}

func parseDocument(doc *etree.Document, path string) (Document, error) {
	root := doc.Root()
	if root == nil || root.Tag != "Campaign" {
		return Document{}, api.NewError(api.XMLParsingError, "%s: root element must be Campaign", path)
	}
	d := Document{Parameters: mergedAttrs(root.SelectElement("Parameters")), Targets: mergedAttrs(root.SelectElement("Targets"))}

	tcs := root.SelectElement("TestCases")
	if tcs == nil {
		return d, nil
	}
	nodes, err := parseNodes(tcs, path, true)
	if err != nil {
		return Document{}, err
	}
	d.Nodes = nodes
	return d, nil
}

func parseNodes(parent *etree.Element, path string, top bool) ([]Node, error) {
	var nodes []Node
	for _, el := range parent.ChildElements() {
		switch el.Tag {
		case "TestCase":
			n := Node{Kind: NodeTestCase, ID: el.SelectAttrValue("Id", ""), Attrs: map[string]string{}}
			if n.ID == "" {
				return nil, api.NewError(api.XMLParsingError, "%s: TestCase without Id", path)
			}
			for _, a := range el.Attr {
				if a.Key != "Id" {
					n.Attrs[a.Key] = a.Value
				}
			}
			nodes = append(nodes, n)

		case "SubCampaign":
			if !top {
				return nil, api.NewError(api.XMLParsingError, "%s: SubCampaign is not allowed inside %s", path, parent.Tag)
			}
			n := Node{Kind: NodeSubCampaign, ID: el.SelectAttrValue("Name", el.SelectAttrValue("Id", "")), RunNumber: 1}
			if n.ID == "" {
				return nil, api.NewError(api.XMLParsingError, "%s: SubCampaign without Name", path)
			}
			if s := el.SelectAttrValue("runNumber", ""); s != "" {
				rn, err := strconv.Atoi(strings.TrimSpace(s))
				if err != nil {
					return nil, api.NewError(api.InvalidParameter, "%s: sub-campaign %s has invalid runNumber %q", path, n.ID, s)
				}
				n.RunNumber = rn
			}
			nodes = append(nodes, n)

		case "RANDOM":
			if !top {
				return nil, api.NewError(api.XMLParsingError, "%s: RANDOM cannot be nested", path)
			}
			children, err := parseNodes(el, path, false)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, Node{Kind: NodeRandom, Children: children})

		case "GROUP":
			if parent.Tag != "RANDOM" {
				return nil, api.NewError(api.XMLParsingError, "%s: GROUP is only allowed inside RANDOM", path)
			}
			children, err := parseNodes(el, path, false)
			if err != nil {
				return nil, err
			}
			for _, c := range children {
				if c.Kind != NodeTestCase {
					return nil, api.NewError(api.XMLParsingError, "%s: GROUP may only contain TestCase", path)
				}
			}
			nodes = append(nodes, Node{Kind: NodeGroup, Children: children})

		default:
			return nil, api.NewError(api.XMLParsingError, "%s: unexpected element %s in %s", path, el.Tag, parent.Tag)
		}
	}
	return nodes, nil
}

func mergedAttrs(el *etree.Element) map[string]string {
	out := make(map[string]string)
	if el == nil {
		return out
	}
	for _, a := range el.Attr {
		out[a.Key] = a.Value
	}
	for _, c := range el.ChildElements() {
		for _, a := range c.Attr {
			out[a.Key] = a.Value
		}
	}
	return out
}
