package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/beevik/etree"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// BenchDevice is a Phone entry of the bench config.
type BenchDevice struct {
	Name  string
	Model string
	Values
}

// EquipmentConfig is an Equipment entry of the bench config.
type EquipmentConfig struct {
	Name  string
	Model string
	Values
}

// BenchConfig is the parsed bench-config file.
type BenchConfig struct {
	Path       string
	Devices    []BenchDevice
	Equipments map[string]EquipmentConfig
}

// LoadBenchConfig parses a bench-config XML file:
//
//	<BenchConfig>
//	  <Phones>
//	    <Phone name="PHONE1" deviceModel="GENERIC">
//	      <Parameter name="serialNumber" value="R58M1234"/>
//	    </Phone>
//	  </Phones>
//	  <Equipments>
//	    <Equipment name="IO_CARD" model="USB_RLY08">
//	      <Parameters>
//	        <Parameter name="ComPort" value="/dev/ttyACM0"/>
//	      </Parameters>
//	    </Equipment>
//	  </Equipments>
//	</BenchConfig>
//
// Nested Parameter elements are flattened into dotted keys.
func LoadBenchConfig(path string) (*BenchConfig, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, api.WrapError(api.FileNotFound, err, "bench config %s not found", path)
		}
		return nil, api.WrapError(api.XMLParsingError, err, "cannot parse bench config %s", path)
	}
	root := doc.Root()
	if root == nil || root.Tag != "BenchConfig" {
		return nil, api.NewError(api.InvalidBenchConfig, "%s: root element must be BenchConfig", filepath.Base(path))
	}

	bench := &BenchConfig{Path: path, Equipments: make(map[string]EquipmentConfig)}

	if phones := root.SelectElement("Phones"); phones != nil {
		seen := make(map[string]bool)
		for _, ph := range phones.SelectElements("Phone") {
			name := ph.SelectAttrValue("name", "")
			if err := ValidateRequired("name", name, "Phone"); err != nil {
				return nil, api.WrapError(api.InvalidBenchConfig, err, "%s", filepath.Base(path))
			}
			if seen[name] {
				return nil, api.NewError(api.InvalidBenchConfig, "%s: duplicate phone %q", filepath.Base(path), name)
			}
			seen[name] = true
			bench.Devices = append(bench.Devices, BenchDevice{
				Name:   name,
				Model:  ph.SelectAttrValue("deviceModel", ""),
				Values: NewValues(collectParameters(ph)),
			})
		}
	}

	if eqts := root.SelectElement("Equipments"); eqts != nil {
		for _, eq := range eqts.SelectElements("Equipment") {
			name := eq.SelectAttrValue("name", "")
			if err := ValidateRequired("name", name, "Equipment"); err != nil {
				return nil, api.WrapError(api.InvalidBenchConfig, err, "%s", filepath.Base(path))
			}
			if _, dup := bench.Equipments[name]; dup {
				return nil, api.NewError(api.InvalidBenchConfig, "%s: duplicate equipment %q", filepath.Base(path), name)
			}
			params := collectParameters(eq)
			if p := eq.SelectElement("Parameters"); p != nil {
				for k, v := range collectParameters(p) {
					params[k] = v
				}
			}
			bench.Equipments[name] = EquipmentConfig{
				Name:   name,
				Model:  eq.SelectAttrValue("model", ""),
				Values: NewValues(params),
			}
		}
	}

	logging.Debug("BenchConfig", "Loaded %d phone(s) and %d equipment(s) from %s",
		len(bench.Devices), len(bench.Equipments), path)
	return bench, nil
}

func collectParameters(el *etree.Element) map[string]string {
	out := make(map[string]string)
	walkParameters(el, "", out)
	return out
}

func walkParameters(el *etree.Element, prefix string, out map[string]string) {
	for _, p := range el.SelectElements("Parameter") {
		name := p.SelectAttrValue("name", "")
		if name == "" {
			// <Parameter serialNumber="..."/> attribute form
			for _, a := range p.Attr {
				out[prefix+a.Key] = a.Value
			}
			continue
		}
		key := prefix + name
		if v := p.SelectAttr("value"); v != nil {
			out[key] = v.Value
		} else if text := strings.TrimSpace(p.Text()); text != "" {
			out[key] = text
		}
		walkParameters(p, key+".", out)
	}
}

// Device returns the bench entry of the named device.
func (b *BenchConfig) Device(name string) (BenchDevice, bool) {
	if b == nil {
		return BenchDevice{}, false
	}
	for _, d := range b.Devices {
		if d.Name == name {
			return d, true
		}
	}
	return BenchDevice{}, false
}

// Equipment returns the named equipment entry.
func (b *BenchConfig) Equipment(name string) (EquipmentConfig, bool) {
	if b == nil {
		return EquipmentConfig{}, false
	}
	e, ok := b.Equipments[name]
	return e, ok
}

// EquipmentNames returns the sorted equipment names.
func (b *BenchConfig) EquipmentNames() []string {
	if b == nil {
		return nil
	}
	names := make([]string, 0, len(b.Equipments))
	for n := range b.Equipments {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves name:key against equipments first, then phones.
func (b *BenchConfig) Lookup(name, key string) (string, bool) {
	if e, ok := b.Equipment(name); ok {
		if v, ok := e.Get(key); ok {
			return v, true
		}
		if key == "model" && e.Model != "" {
			return e.Model, true
		}
	}
	if d, ok := b.Device(name); ok {
		return d.Get(key)
	}
	return "", false
}
