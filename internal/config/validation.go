package config

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"toolprov/internal/toolchain"
)

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Tool    string `json:"tool,omitempty"`
	Level   string `json:"level"` // "error" or "warning"
	Message string `json:"message"`
}

func (r ValidationResult) String() string {
	if r.Tool == "" {
		return fmt.Sprintf("%s: %s", r.Level, r.Message)
	}
	return fmt.Sprintf("%s: %s: %s", r.Level, r.Tool, r.Message)
}

var toolNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// HasErrors reports whether any result is an error.
func HasErrors(results []ValidationResult) bool {
	for _, r := range results {
		if r.Level == "error" {
			return true
		}
	}
	return false
}

// Validate checks every catalog entry and returns findings in tool name
// order.
func (c Catalog) Validate() []ValidationResult {
	var results []ValidationResult
	if c.Version > CurrentVersion {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("catalog version %d is newer than supported version %d", c.Version, CurrentVersion),
		})
	}
	if len(c.Tools) == 0 {
		results = append(results, ValidationResult{Level: "warning", Message: "catalog defines no tools"})
	}
	for _, name := range c.Names() {
		results = append(results, ValidateTool(c.Tools[name])...)
	}
	return results
}

// ValidateTool checks a single entry.
func ValidateTool(spec toolchain.ToolSpec) []ValidationResult {
	v := validator{tool: spec.Name}

	if !toolNameRegex.MatchString(spec.Name) {
		v.errorf("invalid tool name %q", spec.Name)
	}

	switch {
	case spec.Version.URL == "" && spec.Version.Pinned == "":
		v.errorf("version needs either url or pinned")
	case spec.Version.URL != "" && spec.Version.Pinned != "":
		v.errorf("version.url and version.pinned are mutually exclusive")
	case spec.Version.URL != "":
		v.checkURL("version.url", spec.Version.URL)
	default:
		if _, err := spec.ParseVersion(spec.Version.Pinned); err != nil {
			v.errorf("version.pinned: %v", err)
		}
	}
	if spec.VersionPattern != "" {
		if _, err := regexp.Compile(spec.VersionPattern); err != nil {
			v.errorf("version_pattern: %v", err)
		}
	}

	if spec.ArchiveURL == "" {
		v.errorf("archive_url is required")
	} else {
		v.checkTemplate("archive_url", spec.ArchiveURL)
	}
	if spec.ChecksumURL != "" {
		v.checkTemplate("checksum_url", spec.ChecksumURL)
	}
	if spec.Checksum != "" {
		if _, err := toolchain.ParseDigest(spec.Checksum); err != nil {
			v.errorf("checksum: %v", err)
		}
		if spec.ChecksumURL != "" {
			v.warnf("checksum takes precedence over checksum_url")
		}
	}
	if spec.Checksum == "" && spec.ChecksumURL == "" {
		v.warnf("no checksum configured; archive integrity is not verified")
	}

	switch {
	case spec.Format != toolchain.FormatUnknown && !spec.Format.Valid():
		v.errorf("unsupported format %q", spec.Format)
	case spec.Format == toolchain.FormatUnknown && spec.ArchiveURL != "" && !toolchain.InferFormat(spec.ArchiveURL).Valid():
		v.errorf("cannot infer archive format from %q; set format", spec.ArchiveURL)
	}
	if spec.StripComponents < 0 {
		v.errorf("strip_components must not be negative")
	}

	switch {
	case spec.InstallPath == "":
		v.errorf("install_path is required")
	case !filepath.IsAbs(spec.InstallPath):
		v.errorf("install_path %q must be absolute", spec.InstallPath)
	case filepath.Clean(spec.InstallPath) == string(filepath.Separator):
		v.errorf("install_path must not be the filesystem root")
	}

	if spec.VersionFile != "" {
		clean := path.Clean(filepath.ToSlash(spec.VersionFile))
		if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
			v.errorf("version_file %q must stay inside install_path", spec.VersionFile)
		}
	}
	return v.results
}

type validator struct {
	tool    string
	results []ValidationResult
}

func (v *validator) errorf(format string, args ...any) {
	v.results = append(v.results, ValidationResult{Tool: v.tool, Level: "error", Message: fmt.Sprintf(format, args...)})
}

func (v *validator) warnf(format string, args ...any) {
	v.results = append(v.results, ValidationResult{Tool: v.tool, Level: "warning", Message: fmt.Sprintf(format, args...)})
}

func (v *validator) checkURL(field, raw string) {
	parsed, err := url.Parse(raw)
	if err != nil {
		v.errorf("%s: %v", field, err)
		return
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		v.errorf("%s %q must be an absolute http(s) url", field, raw)
	}
}

func (v *validator) checkTemplate(field, template string) {
	if err := toolchain.CheckTemplate(template); err != nil {
		v.errorf("%s: %v", field, err)
		return
	}
	scheme, _, ok := strings.Cut(template, "://")
	if !ok || (scheme != "http" && scheme != "https") {
		v.errorf("%s %q must be an absolute http(s) url", field, template)
	}
}
