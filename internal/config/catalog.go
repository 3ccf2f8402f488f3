package config

import (
	"fmt"
	"os"

	"github.com/alexchuang650730/aicore0624-sub006/internal/eval/template"
	"github.com/alexchuang650730/aicore0624-sub006/internal/expert"
	"github.com/alexchuang650730/aicore0624-sub006/internal/router"
	"gopkg.in/yaml.v3"
)

// CatalogFile is the on-disk catalog and routing configuration. JSON files
// parse as well, being valid YAML.
type CatalogFile struct {
	DefaultExpert string              `yaml:"default_expert"`
	Routing       router.Options      `yaml:"routing"`
	Experts       []expert.Definition `yaml:"experts"`
}

// LoadCatalogFile reads and parses a catalog file.
func LoadCatalogFile(path string) (*CatalogFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses catalog file contents.
func ParseCatalog(data []byte) (*CatalogFile, error) {
	var f CatalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	return &f, nil
}

// BuiltinCatalogFile returns the catalog used without CATALOG_PATH.
func BuiltinCatalogFile() *CatalogFile {
	return &CatalogFile{
		DefaultExpert: expert.BuiltinDefault,
		Experts:       expert.Builtin(),
	}
}

// BuildCatalog resolves the catalog source and the environment overrides,
// returning a validated catalog and the effective routing options.
func (c *Config) BuildCatalog(engine *template.Engine) (*expert.Catalog, router.Options, error) {
	file := BuiltinCatalogFile()
	if c.CatalogPath != "" {
		var err error
		file, err = LoadCatalogFile(c.CatalogPath)
		if err != nil {
			return nil, router.Options{}, err
		}
	}

	defaultID := file.DefaultExpert
	if c.DefaultExpert != "" {
		defaultID = c.DefaultExpert
	}

	catalog, err := expert.NewCatalog(file.Experts, defaultID, engine)
	if err != nil {
		return nil, router.Options{}, err
	}

	opts := file.Routing
	if c.RoutingMode != "" {
		opts.Mode = router.Mode(c.RoutingMode)
	}
	if c.MaxExperts > 0 {
		opts.MaxExperts = c.MaxExperts
	}

	return catalog, opts, nil
}
