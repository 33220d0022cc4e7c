package campaign

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/beevik/etree"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
)

// NodeKind is the kind of a TestCases child.
type NodeKind int

const (
	NodeTestCase NodeKind = iota
	NodeSubCampaign
	NodeRandom
	NodeGroup
)

func (k NodeKind) String() string {
	switch k {
	case NodeTestCase:
		return "TestCase"
	case NodeSubCampaign:
		return "SubCampaign"
	case NodeRandom:
		return "RANDOM"
	case NodeGroup:
		return "GROUP"
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// Node is one element of a campaign TestCases tree.
type Node struct {
	Kind NodeKind
	// ID is the test case Id or the sub-campaign Name.
	ID        string
	RunNumber int
	// Attrs are the extra attributes of a TestCase reference; they override
	// the tuning attributes of the test-case file.
	Attrs    map[string]string
	Children []Node
}

// Document is a campaign file as written on disk, before expansion.
type Document struct {
	Parameters map[string]string
	Targets    map[string]string
	Nodes      []Node
}

// Write serialises d as a campaign XML document.
func Write(w io.Writer, d Document) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("Campaign")

	writeAttrs(root.CreateElement("Parameters"), "Parameter", d.Parameters)
	writeAttrs(root.CreateElement("Targets"), "Target", d.Targets)

	tcs := root.CreateElement("TestCases")
	if err := writeNodes(tcs, d.Nodes); err != nil {
		return err
	}

	doc.Indent(2)
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write campaign: %w", err)
	}
	return nil
}

// WriteFile writes d to path.
func WriteFile(path string, d Document) error {
	f, err := os.Create(path)
	if err != nil {
		return api.WrapError(api.FileNotFound, err, "cannot create campaign %s", path)
	}
	if err := Write(f, d); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeAttrs(parent *etree.Element, tag string, attrs map[string]string) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parent.CreateElement(tag).CreateAttr(k, attrs[k])
	}
}

func writeNodes(parent *etree.Element, nodes []Node) error {
	for _, n := range nodes {
		switch n.Kind {
		case NodeTestCase:
			el := parent.CreateElement("TestCase")
			el.CreateAttr("Id", n.ID)
			keys := make([]string, 0, len(n.Attrs))
			for k := range n.Attrs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				el.CreateAttr(k, n.Attrs[k])
			}
		case NodeSubCampaign:
			el := parent.CreateElement("SubCampaign")
			el.CreateAttr("Name", n.ID)
			el.CreateAttr("runNumber", strconv.Itoa(max(n.RunNumber, 1)))
		case NodeRandom, NodeGroup:
			if err := writeNodes(parent.CreateElement(n.Kind.String()), n.Children); err != nil {
				return err
			}
		default:
			return fmt.Errorf("cannot write node kind %v", n.Kind)
		}
	}
	return nil
}
