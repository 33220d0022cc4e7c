package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// EnvExecutionConfigPath overrides the execution-config root.
	EnvExecutionConfigPath = "ACS_EXECUTION_CONFIG_PATH"
	// EnvCatalogPath overrides the catalog roots (os.PathListSeparator separated).
	EnvCatalogPath = "ACS_CATALOG_PATH"

	DefaultExecutionConfigPath = "./_ExecutionConfig"
	DefaultCatalogPath         = "./_Catalogs"
	DefaultReportPath          = "./_Reports"
	DefaultArtifactoryDir      = ".oat-artifactory"

	// DefaultPrimaryDevice is the device name used when no bench config
	// declares one.
	DefaultPrimaryDevice = "PHONE1"
)

// Paths are the filesystem roots used by a run.
type Paths struct {
	ExecutionConfig string
	Catalogs        []string
	Reports         string
	Artifactory     string
}

// DefaultPaths resolves the roots from the environment, falling back to
// the conventional directories relative to the working directory.
func DefaultPaths() Paths {
	p := Paths{
		ExecutionConfig: DefaultExecutionConfigPath,
		Catalogs:        []string{DefaultCatalogPath},
		Reports:         DefaultReportPath,
	}
	if v := strings.TrimSpace(os.Getenv(EnvExecutionConfigPath)); v != "" {
		p.ExecutionConfig = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCatalogPath)); v != "" {
		var roots []string
		for _, r := range filepath.SplitList(v) {
			if r != "" {
				roots = append(roots, r)
			}
		}
		if len(roots) > 0 {
			p.Catalogs = roots
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		p.Artifactory = filepath.Join(home, DefaultArtifactoryDir)
	} else {
		p.Artifactory = DefaultArtifactoryDir
	}
	return p
}

// WithReportFolder returns a copy of p with the report root replaced when
// folder is not empty.
func (p Paths) WithReportFolder(folder string) Paths {
	if folder != "" {
		p.Reports = folder
	}
	return p
}
