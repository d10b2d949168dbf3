package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when no --config flag is given.
const DefaultPath = "defdoc.yaml"

// Version is one historical snapshot of the native project.
type Version struct {
	Short string `yaml:"short"` // label shown in generated blocks, e.g. "2.5"
	Tag   string `yaml:"tag"`   // source-control tag, e.g. "v2_5_1"
	Doc   string `yaml:"doc"`   // documentation-site version; empty means no doc links
}

// BindingFile maps a managed binding source file to its native public header.
type BindingFile struct {
	Path   string `yaml:"path"`
	Header string `yaml:"header"`
}

type Config struct {
	Native struct {
		RepoURL     string `yaml:"repo_url"`
		CheckoutDir string `yaml:"checkout_dir"`
		HeaderDir   string `yaml:"header_dir"`
		BlobURL     string `yaml:"blob_url"` // permalink base, tag and path are appended
		DocURL      string `yaml:"doc_url"`
	} `yaml:"native"`
	Bindings struct {
		Root  string        `yaml:"root"`
		Files []BindingFile `yaml:"files"`
	} `yaml:"bindings"`
	Versions []Version `yaml:"versions"`
}

// Default returns the configuration for the Ruby C API bindings.
func Default() *Config {
	var cfg Config
	cfg.Native.RepoURL = "https://github.com/ruby/ruby.git"
	cfg.Native.CheckoutDir = "tmp/ruby-source"
	cfg.Native.HeaderDir = "include/ruby"
	cfg.Native.BlobURL = "https://github.com/ruby/ruby/blob"
	cfg.Native.DocURL = "https://ruby-doc.org"
	cfg.Bindings.Root = "src"
	cfg.Bindings.Files = []BindingFile{
		{Path: "ruby.rs", Header: "ruby.h"},
		{Path: "intern.rs", Header: "intern.h"},
	}
	cfg.Versions = []Version{
		{Short: "2.3", Tag: "v2_3_7", Doc: "2.3.7"},
		{Short: "2.4", Tag: "v2_4_4", Doc: "2.4.4"},
		{Short: "2.5", Tag: "v2_5_1", Doc: "2.5.1"},
		{Short: "2.6", Tag: "v2_6_0_preview2"},
	}
	return &cfg
}

// LoadConfig reads path over the defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// 3. Override with Environment Variables if present
	if dir := os.Getenv("DEFDOC_CHECKOUT_DIR"); dir != "" {
		cfg.Native.CheckoutDir = dir
	}
	if url := os.Getenv("DEFDOC_REPO_URL"); url != "" {
		cfg.Native.RepoURL = url
	}
	if root := os.Getenv("DEFDOC_BINDINGS_ROOT"); root != "" {
		cfg.Bindings.Root = root
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the version table and the binding file map.
func (c *Config) Validate() error {
	if len(c.Versions) == 0 {
		return errors.New("config: no versions configured")
	}
	labels := make(map[string]bool, len(c.Versions))
	tags := make(map[string]bool, len(c.Versions))
	for i, v := range c.Versions {
		if strings.TrimSpace(v.Short) == "" || strings.TrimSpace(v.Tag) == "" {
			return fmt.Errorf("config: version #%d needs both short and tag", i+1)
		}
		if labels[v.Short] {
			return fmt.Errorf("config: duplicate version label %q", v.Short)
		}
		if tags[v.Tag] {
			return fmt.Errorf("config: duplicate version tag %q", v.Tag)
		}
		labels[v.Short] = true
		tags[v.Tag] = true
	}

	if len(c.Bindings.Files) == 0 {
		return errors.New("config: no binding files configured")
	}
	seen := make(map[string]bool, len(c.Bindings.Files))
	for _, f := range c.Bindings.Files {
		if f.Path == "" || f.Header == "" {
			return fmt.Errorf("config: binding file entry %+v needs path and header", f)
		}
		if seen[f.Path] {
			return fmt.Errorf("config: binding file %q listed twice", f.Path)
		}
		seen[f.Path] = true
	}

	if c.Native.BlobURL == "" {
		return errors.New("config: native.blob_url is required")
	}
	return nil
}
