package catalog

import (
	"errors"
	"io/fs"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
)

// TaxonomyFile is the taxonomy file name looked up in each catalog root.
const TaxonomyFile = "taxonomy.yaml"

// Taxonomy lists the allowed Domain/SubDomain/Feature triples.
//
//	DOMAINS:
//	  SYSTEM: [CORE, POWER]
//	SUB_DOMAINS:
//	  CORE: [NONE, SHELL]
type Taxonomy struct {
	Domains    map[string][]string `yaml:"DOMAINS"`
	SubDomains map[string][]string `yaml:"SUB_DOMAINS"`
}

// LoadTaxonomy reads and checks a taxonomy file.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, api.WrapError(api.FileNotFound, err, "taxonomy %s not found", path)
		}
		return nil, api.WrapError(api.YAMLParsingError, err, "cannot read taxonomy %s", path)
	}
	return ParseTaxonomy(data, path)
}

// ParseTaxonomy decodes taxonomy YAML. source is used in error messages.
func ParseTaxonomy(data []byte, source string) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, api.WrapError(api.YAMLParsingError, err, "taxonomy %s is not valid YAML", source)
	}
	if len(t.Domains) == 0 {
		return nil, api.NewError(api.YAMLParsingError, "taxonomy %s declares no DOMAINS", source)
	}
	for domain, subs := range t.Domains {
		for _, sd := range subs {
			if _, ok := t.SubDomains[sd]; !ok {
				return nil, api.NewError(api.YAMLParsingError,
					"taxonomy %s: sub-domain %q of domain %q has no SUB_DOMAINS entry", source, sd, domain)
			}
		}
	}
	return &t, nil
}

// Check verifies a Domain/SubDomain/Feature triple.
func (t *Taxonomy) Check(domain, subDomain, feature string) error {
	if t == nil {
		return nil
	}
	subs, ok := t.Domains[domain]
	if !ok {
		return api.NewError(api.XMLParsingError, "unknown domain %q", domain)
	}
	if !slices.Contains(subs, subDomain) {
		return api.NewError(api.XMLParsingError, "sub-domain %q is not part of domain %q", subDomain, domain)
	}
	if !slices.Contains(t.SubDomains[subDomain], feature) {
		return api.NewError(api.XMLParsingError, "feature %q is not part of sub-domain %q", feature, subDomain)
	}
	return nil
}
