package toolchain

import (
	"github.com/opencontainers/go-digest"
)

// VersionQuery describes where the desired version comes from. Exactly one
// of URL or Pinned is set.
type VersionQuery struct {
	URL    string `yaml:"url,omitempty" toml:"url,omitempty" json:"url,omitempty"`
	Pinned string `yaml:"pinned,omitempty" toml:"pinned,omitempty" json:"pinned,omitempty"`
}

// Describe returns a short human readable form of the query.
func (q VersionQuery) Describe() string {
	if q.Pinned != "" {
		return "pinned:" + q.Pinned
	}
	return q.URL
}

// ToolSpec is the immutable description of one provisionable toolchain.
type ToolSpec struct {
	Name            string            `yaml:"-" toml:"-" json:"name"`
	Version         VersionQuery      `yaml:"version" toml:"version" json:"version"`
	VersionPattern  string            `yaml:"version_pattern,omitempty" toml:"version_pattern,omitempty" json:"version_pattern,omitempty"`
	VersionPrefix   string            `yaml:"version_prefix,omitempty" toml:"version_prefix,omitempty" json:"version_prefix,omitempty"`
	ArchiveURL      string            `yaml:"archive_url" toml:"archive_url" json:"archive_url"`
	ChecksumURL     string            `yaml:"checksum_url,omitempty" toml:"checksum_url,omitempty" json:"checksum_url,omitempty"`
	Checksum        string            `yaml:"checksum,omitempty" toml:"checksum,omitempty" json:"checksum,omitempty"`
	Format          ArchiveFormat     `yaml:"format,omitempty" toml:"format,omitempty" json:"format,omitempty"`
	StripComponents int               `yaml:"strip_components,omitempty" toml:"strip_components,omitempty" json:"strip_components,omitempty"`
	InstallPath     string            `yaml:"install_path" toml:"install_path" json:"install_path"`
	VersionFile     string            `yaml:"version_file,omitempty" toml:"version_file,omitempty" json:"version_file,omitempty"`
	OSMap           map[string]string `yaml:"os_map,omitempty" toml:"os_map,omitempty" json:"os_map,omitempty"`
	ArchMap         map[string]string `yaml:"arch_map,omitempty" toml:"arch_map,omitempty" json:"arch_map,omitempty"`
}

// ResolvedVersion is the concrete version obtained for one run.
type ResolvedVersion struct {
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
}

func (v ResolvedVersion) String() string {
	return v.Raw
}

// InstallResult is the terminal state of a successful provisioning run.
type InstallResult struct {
	Tool       string          `json:"tool"`
	Path       string          `json:"path"`
	Version    ResolvedVersion `json:"version"`
	Owner      Owner           `json:"owner"`
	UID        int             `json:"uid"`
	GID        int             `json:"gid"`
	Platform   string          `json:"platform"`
	ArchiveURL string          `json:"archive_url,omitempty"`
	Digest     digest.Digest   `json:"digest,omitempty"`
	Files      int             `json:"files"`
	Reused     bool            `json:"reused,omitempty"`
}
