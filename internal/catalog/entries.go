package catalog

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/config"
)

// Kind identifies a catalog family.
type Kind string

const (
	KindUseCase     Kind = "usecase"
	KindTestStep    Kind = "teststep"
	KindParameter   Kind = "parameter"
	KindEquipment   Kind = "equipment"
	KindDeviceModel Kind = "devicemodel"
)

// Dir returns the sub-directory of a catalog root holding files of kind k.
func (k Kind) Dir() string {
	switch k {
	case KindUseCase:
		return "UseCase"
	case KindTestStep:
		return "TestStep"
	case KindParameter:
		return "Parameter"
	case KindEquipment:
		return "Equipment"
	case KindDeviceModel:
		return "DeviceModel"
	}
	return string(k)
}

// ParamDescriptor declares one parameter of a use case or test step.
type ParamDescriptor struct {
	Name           string
	Type           string
	Default        string
	HasDefault     bool
	PossibleValues string
	BlankAllowed   bool
	Optional       bool
	Description    string
}

// ComponentEntry is a use-case or test-step catalog entry.
type ComponentEntry struct {
	ID          string
	ClassName   string
	Domain      string
	SubDomain   string
	Feature     string
	Description string
	File        string
	Parameters  map[string]ParamDescriptor
}

type (
	UseCaseEntry  = ComponentEntry
	TestStepEntry = ComponentEntry
)

// Parameter returns the descriptor of the named parameter.
func (e ComponentEntry) Parameter(name string) (ParamDescriptor, bool) {
	p, ok := e.Parameters[name]
	return p, ok
}

// EquipmentEntry describes an equipment model and how its driver runs.
type EquipmentEntry struct {
	ID           string
	Kind         string
	Executable   string
	Capabilities []string
	Description  string
	File         string
	Parameters   config.Values
}

// DeviceModelEntry carries the default device config of a model.
type DeviceModelEntry struct {
	ID          string
	Description string
	File        string
	Parameters  config.Values
}

func childText(el *etree.Element, tag string) (string, bool) {
	c := el.SelectElement(tag)
	if c == nil {
		return "", false
	}
	return strings.TrimSpace(c.Text()), true
}

func childBool(el *etree.Element, tag string, def bool) bool {
	s, ok := childText(el, tag)
	if !ok {
		return def
	}
	b, ok := config.ParseBool(s)
	if !ok {
		return def
	}
	return b
}

// parseDescriptor reads a Parameter element. Elements that are absent keep
// the value inherited from base (the shared parameter catalog entry).
func parseDescriptor(el *etree.Element, base ParamDescriptor) ParamDescriptor {
	d := base
	if name, ok := childText(el, "Name"); ok && name != "" {
		d.Name = name
	}
	if id := el.SelectAttrValue("Id", ""); id != "" && d.Name == "" {
		d.Name = id
	}
	if t, ok := childText(el, "Type"); ok {
		d.Type = strings.ToUpper(t)
	}
	if c := el.SelectElement("DefaultValue"); c != nil {
		d.Default = strings.TrimSpace(c.Text())
		d.HasDefault = true
	}
	if pv, ok := childText(el, "PossibleValues"); ok {
		d.PossibleValues = pv
	}
	if desc, ok := childText(el, "Description"); ok {
		d.Description = desc
	}
	d.Optional = childBool(el, "IsOptional", d.Optional)
	d.BlankAllowed = childBool(el, "BlankAllowed", d.BlankAllowed)
	return d
}

func collectNamedParameters(el *etree.Element) config.Values {
	out := make(map[string]string)
	var walk func(*etree.Element, string)
	walk = func(e *etree.Element, prefix string) {
		for _, p := range e.SelectElements("Parameter") {
			key := prefix + p.SelectAttrValue("name", "")
			if v := p.SelectAttr("value"); v != nil {
				out[key] = v.Value
			}
			walk(p, key+".")
		}
	}
	walk(el, "")
	return config.NewValues(out)
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == ' ' }) {
		out = append(out, strings.ToLower(f))
	}
	return out
}
