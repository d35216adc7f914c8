package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"toolprov/internal/toolchain"
)

// CurrentVersion is the catalog schema version written by Marshal.
const CurrentVersion = 1

// Format selects the catalog encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatForPath picks the encoding from a file extension. Anything that is
// not .toml is treated as YAML.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Catalog lists the toolchains that can be provisioned, keyed by name.
type Catalog struct {
	Version int                           `yaml:"version" toml:"version"`
	Tools   map[string]toolchain.ToolSpec `yaml:"tools" toml:"tools"`
}

// GoTool is the built-in entry that installs the latest Go release into
// /usr/local/go.
func GoTool() toolchain.ToolSpec {
	return toolchain.ToolSpec{
		Name:            "go",
		Version:         toolchain.VersionQuery{URL: "https://go.dev/VERSION?m=text"},
		VersionPrefix:   "go",
		ArchiveURL:      "https://go.dev/dl/{version}.{os}-{arch}.tar.gz",
		ChecksumURL:     "https://go.dev/dl/{version}.{os}-{arch}.tar.gz.sha256",
		Format:          toolchain.FormatTarGz,
		StripComponents: 1,
		InstallPath:     "/usr/local/go",
		VersionFile:     "VERSION",
		ArchMap:         map[string]string{"arm": "armv6l"},
	}
}

// Default returns the catalog used when no catalog file exists.
func Default() Catalog {
	return Catalog{
		Version: CurrentVersion,
		Tools:   map[string]toolchain.ToolSpec{"go": GoTool()},
	}
}

// Load reads the catalog at path. An empty path yields the default catalog;
// a named file that does not exist is an error.
func Load(path string) (Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(contents, FormatForPath(path))
}

// Parse decodes a catalog and applies defaults.
func Parse(contents []byte, format Format) (Catalog, error) {
	var cat Catalog
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(contents, &cat); err != nil {
			return Catalog{}, fmt.Errorf("unmarshal catalog: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(contents, &cat); err != nil {
			return Catalog{}, fmt.Errorf("unmarshal catalog: %w", err)
		}
	default:
		return Catalog{}, fmt.Errorf("unsupported catalog format %q", format)
	}
	cat.ApplyDefaults()
	return cat, nil
}

// ApplyDefaults fills the schema version and copies each map key into the
// entry's Name.
func (c *Catalog) ApplyDefaults() {
	if c.Version == 0 {
		c.Version = CurrentVersion
	}
	if c.Tools == nil {
		c.Tools = map[string]toolchain.ToolSpec{}
	}
	for name, spec := range c.Tools {
		spec.Name = name
		if spec.Format == toolchain.FormatUnknown {
			spec.Format = toolchain.InferFormat(spec.ArchiveURL)
		}
		c.Tools[name] = spec
	}
}

// Names returns the tool names in sorted order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c.Tools))
	for name := range c.Tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select returns the named entries in the order given, or every entry in
// name order when names is empty.
func (c Catalog) Select(names []string) ([]toolchain.ToolSpec, error) {
	if len(names) == 0 {
		names = c.Names()
	}
	specs := make([]toolchain.ToolSpec, 0, len(names))
	for _, name := range names {
		spec, ok := c.Tools[name]
		if !ok {
			return nil, fmt.Errorf("tool %q is not in the catalog (known: %s)", name, strings.Join(c.Names(), ", "))
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Marshal encodes the catalog in the given format.
func (c Catalog) Marshal(format Format) ([]byte, error) {
	var (
		buf []byte
		err error
	)
	switch format {
	case FormatTOML:
		buf, err = toml.Marshal(c)
	case FormatYAML:
		buf, err = yaml.Marshal(&c)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("marshal catalog: %w", err)
	}
	return buf, nil
}

// Write marshals the catalog into path, creating parent directories. An
// existing file is only replaced when overwrite is set.
func (c Catalog) Write(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	buf, err := c.Marshal(FormatForPath(path))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure catalog directory: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	return nil
}
