package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/beevik/etree"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/config"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// EquipmentKinds lists the driver kinds an equipment entry may declare.
var EquipmentKinds = []string{"shared-library", "external-daemon", "external-executable", "simulated"}

// Catalogs groups every catalog of a run.
type Catalogs struct {
	Taxonomy     *Taxonomy
	UseCases     *Store[UseCaseEntry]
	TestSteps    *Store[TestStepEntry]
	Parameters   *Store[ParamDescriptor]
	Equipments   *Store[EquipmentEntry]
	DeviceModels *Store[DeviceModelEntry]
}

// LoadAll loads the taxonomy and every catalog kind from roots. Errors from
// all files are collected and returned together; the returned Catalogs hold
// every entry that did load.
func LoadAll(roots []string) (*Catalogs, error) {
	errs := config.NewConfigurationErrorCollection()
	c := &Catalogs{}

	for _, root := range roots {
		path := filepath.Join(root, TaxonomyFile)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		t, err := LoadTaxonomy(path)
		if err != nil {
			errs.AddError(path, TaxonomyFile, "taxonomy", api.CodeOf(err), err.Error())
		} else {
			c.Taxonomy = t
		}
		break
	}

	c.Parameters = loadKind[ParamDescriptor](KindParameter, roots, errs, parseSharedParameter)
	c.UseCases = loadKind(KindUseCase, roots, errs, componentParser(c.Taxonomy, c.Parameters))
	c.TestSteps = loadKind(KindTestStep, roots, errs, componentParser(c.Taxonomy, c.Parameters))
	c.Equipments = loadKind[EquipmentEntry](KindEquipment, roots, errs, parseEquipment)
	c.DeviceModels = loadKind[DeviceModelEntry](KindDeviceModel, roots, errs, parseDeviceModel)

	logging.Info("Catalog", "Loaded %d use case(s), %d test step(s), %d parameter(s), %d equipment(s), %d device model(s)",
		c.UseCases.Len(), c.TestSteps.Len(), c.Parameters.Len(), c.Equipments.Len(), c.DeviceModels.Len())
	return c, errs.AsError()
}

// LoadUseCases loads only the use-case catalog.
func LoadUseCases(roots []string, tax *Taxonomy) (*Store[UseCaseEntry], error) {
	errs := config.NewConfigurationErrorCollection()
	s := loadKind(KindUseCase, roots, errs, componentParser(tax, nil))
	return s, errs.AsError()
}

// LoadTestSteps loads only the test-step catalog. shared may be nil.
func LoadTestSteps(roots []string, tax *Taxonomy, shared *Store[ParamDescriptor]) (*Store[TestStepEntry], error) {
	errs := config.NewConfigurationErrorCollection()
	s := loadKind(KindTestStep, roots, errs, componentParser(tax, shared))
	return s, errs.AsError()
}

type parseFunc[T any] func(el *etree.Element, file string) (string, T, error)

func loadKind[T any](kind Kind, roots []string, errs *config.ConfigurationErrorCollection, parse parseFunc[T]) *Store[T] {
	store := newStore[T](kind)
	for _, file := range catalogFiles(kind, roots) {
		base := filepath.Base(file)
		doc := etree.NewDocument()
		if err := doc.ReadFromFile(file); err != nil {
			errs.AddError(file, base, string(kind), api.XMLParsingError, err.Error())
			continue
		}
		if err := validateDocument(kind, doc); err != nil {
			errs.AddError(file, base, string(kind), api.XMLParsingError, err.Error())
			continue
		}

		type parsed struct {
			id    string
			entry T
		}
		var entries []parsed
		var failed bool
		for _, el := range doc.Root().ChildElements() {
			id, e, err := parse(el, file)
			if err != nil {
				code := api.CodeOf(err)
				if code == "" {
					code = api.XMLParsingError
				}
				errs.AddError(file, base, string(kind), code, err.Error())
				failed = true
				break
			}
			entries = append(entries, parsed{id, e})
		}
		if failed {
			continue
		}
		for _, p := range entries {
			if err := store.add(p.id, file, p.entry); err != nil {
				errs.AddError(file, base, string(kind), api.ProhibitiveBehavior, err.Error())
			}
		}
		logging.Debug("Catalog", "%s: %d %s entr(ies)", file, len(entries), kind)
	}
	return store
}

// catalogFiles lists the XML files of kind under every root, in a stable
// order: roots in the order given, files sorted by path within a root.
func catalogFiles(kind Kind, roots []string) []string {
	var out []string
	for _, root := range roots {
		dir := filepath.Join(root, kind.Dir())
		var files []string
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".xml") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.Warn("Catalog", "Cannot walk %s: %v", dir, err)
		}
		sort.Strings(files)
		out = append(out, files...)
	}
	return out
}

func componentParser(tax *Taxonomy, shared *Store[ParamDescriptor]) parseFunc[ComponentEntry] {
	return func(el *etree.Element, file string) (string, ComponentEntry, error) {
		e := ComponentEntry{
			ID:         el.SelectAttrValue("Id", ""),
			Domain:     el.SelectAttrValue("Domain", ""),
			SubDomain:  el.SelectAttrValue("SubDomain", ""),
			Feature:    el.SelectAttrValue("Feature", ""),
			File:       file,
			Parameters: make(map[string]ParamDescriptor),
		}
		e.ClassName, _ = childText(el, "ClassName")
		e.Description, _ = childText(el, "Description")
		if e.ClassName == "" {
			return "", e, fmt.Errorf("%s: ClassName is empty", e.ID)
		}
		if err := tax.Check(e.Domain, e.SubDomain, e.Feature); err != nil {
			return "", e, fmt.Errorf("%s: %w", e.ID, err)
		}

		if params := el.SelectElement("Parameters"); params != nil {
			for _, p := range params.SelectElements("Parameter") {
				var base ParamDescriptor
				ref := p.SelectAttrValue("Ref", "")
				if ref == "" {
					ref, _ = childText(p, "Name")
				}
				if shared.Has(ref) {
					base, _ = shared.Get(ref)
				} else if p.SelectAttrValue("Ref", "") != "" {
					return "", e, api.NewError(api.InvalidParameter, "%s: parameter reference %q is not declared", e.ID, ref)
				}
				d := parseDescriptor(p, base)
				if d.Name == "" {
					return "", e, fmt.Errorf("%s: parameter without Name", e.ID)
				}
				if d.Type == "" {
					d.Type = "STRING"
				}
				if _, dup := e.Parameters[d.Name]; dup {
					return "", e, fmt.Errorf("%s: parameter %q declared twice", e.ID, d.Name)
				}
				e.Parameters[d.Name] = d
			}
		}
		return e.ID, e, nil
	}
}

func parseSharedParameter(el *etree.Element, _ string) (string, ParamDescriptor, error) {
	d := parseDescriptor(el, ParamDescriptor{})
	d.Name = el.SelectAttrValue("Id", "")
	if d.Type == "" {
		return "", d, fmt.Errorf("%s: Type is required", d.Name)
	}
	return d.Name, d, nil
}

func parseEquipment(el *etree.Element, file string) (string, EquipmentEntry, error) {
	e := EquipmentEntry{
		ID:           el.SelectAttrValue("Id", ""),
		Kind:         strings.ToLower(el.SelectAttrValue("Kind", "")),
		Executable:   el.SelectAttrValue("Executable", ""),
		Capabilities: splitList(el.SelectAttrValue("Capabilities", "")),
		Description:  el.SelectAttrValue("Description", ""),
		File:         file,
		Parameters:   collectNamedParameters(el),
	}
	if err := config.ValidateOneOf("Kind", e.Kind, EquipmentKinds); err != nil {
		return "", e, fmt.Errorf("%s: %w", e.ID, err)
	}
	if e.Kind == "external-executable" && e.Executable == "" {
		return "", e, api.NewError(api.BinaryFolderPathError, "%s: external-executable equipment needs an Executable", e.ID)
	}
	return e.ID, e, nil
}

func parseDeviceModel(el *etree.Element, file string) (string, DeviceModelEntry, error) {
	e := DeviceModelEntry{
		ID:          el.SelectAttrValue("Id", ""),
		Description: el.SelectAttrValue("Description", ""),
		File:        file,
		Parameters:  collectNamedParameters(el),
	}
	return e.ID, e, nil
}
