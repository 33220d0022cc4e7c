package catalog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/beevik/etree"
)

// node describes one element of a catalog document: the attributes it must
// and may carry and the children it accepts.
type node struct {
	required []string
	optional []string
	children map[string]occurs
}

type occurs struct {
	node     *node
	min, max int // max 0 means unbounded
}

func one(n *node) occurs      { return occurs{node: n, min: 1, max: 1} }
func optional(n *node) occurs { return occurs{node: n, min: 0, max: 1} }
func many(n *node) occurs     { return occurs{node: n} }

// leaf is a text-only element.
var leaf = &node{}

var descriptorNode = &node{
	optional: []string{"Id", "Ref"},
	children: map[string]occurs{
		"Name":           optional(leaf),
		"Type":           optional(leaf),
		"DefaultValue":   optional(leaf),
		"PossibleValues": optional(leaf),
		"IsOptional":     optional(leaf),
		"BlankAllowed":   optional(leaf),
		"Description":    optional(leaf),
	},
}

var componentNode = &node{
	required: []string{"Id", "Domain", "SubDomain", "Feature"},
	optional: []string{"Status"},
	children: map[string]occurs{
		"ClassName":   one(leaf),
		"Description": optional(leaf),
		"Parameters": optional(&node{children: map[string]occurs{
			"Parameter": many(descriptorNode),
		}}),
	},
}

var namedParameterNode = &node{
	required: []string{"name"},
	optional: []string{"value"},
}

func init() {
	// Parameter elements of device models may nest.
	namedParameterNode.children = map[string]occurs{"Parameter": many(namedParameterNode)}
}

// schemas maps each catalog kind to its root element and entry element.
var schemas = map[Kind]struct {
	root  string
	entry string
	node  *node
}{
	KindUseCase:  {"UseCases", "UseCase", componentNode},
	KindTestStep: {"TestSteps", "TestStep", componentNode},
	KindParameter: {"Parameters", "Parameter", &node{
		required: []string{"Id"},
		children: descriptorNode.children,
	}},
	KindEquipment: {"Equipments", "Equipment", &node{
		required: []string{"Id", "Kind"},
		optional: []string{"Capabilities", "Executable", "Description"},
		children: map[string]occurs{"Parameter": many(namedParameterNode)},
	}},
	KindDeviceModel: {"DeviceModels", "DeviceModel", &node{
		required: []string{"Id"},
		optional: []string{"Description"},
		children: map[string]occurs{"Parameter": many(namedParameterNode)},
	}},
}

// validateDocument checks the whole document against the schema of kind.
func validateDocument(kind Kind, doc *etree.Document) error {
	s, ok := schemas[kind]
	if !ok {
		return fmt.Errorf("no schema for catalog kind %q", kind)
	}
	root := doc.Root()
	if root == nil {
		return fmt.Errorf("document is empty")
	}
	if root.Tag != s.root {
		return fmt.Errorf("root element is %q, expected %q", root.Tag, s.root)
	}
	rootNode := &node{children: map[string]occurs{s.entry: many(s.node)}}
	return validateElement(root, rootNode, s.root)
}

func validateElement(el *etree.Element, n *node, path string) error {
	for _, name := range n.required {
		if strings.TrimSpace(el.SelectAttrValue(name, "")) == "" {
			return fmt.Errorf("%s: missing required attribute %q", path, name)
		}
	}
	for _, a := range el.Attr {
		if a.Space == "xmlns" || a.Key == "xmlns" || a.Space == "xsi" {
			continue
		}
		if !slices.Contains(n.required, a.Key) && !slices.Contains(n.optional, a.Key) {
			return fmt.Errorf("%s: attribute %q is not allowed", path, a.Key)
		}
	}

	counts := make(map[string]int)
	for _, child := range el.ChildElements() {
		rule, ok := n.children[child.Tag]
		if !ok {
			return fmt.Errorf("%s: element %q is not allowed", path, child.Tag)
		}
		counts[child.Tag]++
		if rule.max > 0 && counts[child.Tag] > rule.max {
			return fmt.Errorf("%s: element %q occurs more than %d time(s)", path, child.Tag, rule.max)
		}
		if err := validateElement(child, rule.node, path+"/"+child.Tag); err != nil {
			return err
		}
	}
	for name, rule := range n.children {
		if counts[name] < rule.min {
			return fmt.Errorf("%s: missing required element %q", path, name)
		}
	}
	return nil
}
