package toolchain

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// ArchiveFormat names a supported archive encoding.
type ArchiveFormat string

const (
	FormatUnknown ArchiveFormat = ""
	FormatTarGz   ArchiveFormat = "tar.gz"
	FormatTarZst  ArchiveFormat = "tar.zst"
	FormatTarXz   ArchiveFormat = "tar.xz"
	FormatZip     ArchiveFormat = "zip"
)

var formatSuffixes = []struct {
	suffix string
	format ArchiveFormat
}{
	{".tar.gz", FormatTarGz},
	{".tgz", FormatTarGz},
	{".tar.zst", FormatTarZst},
	{".tzst", FormatTarZst},
	{".tar.xz", FormatTarXz},
	{".txz", FormatTarXz},
	{".zip", FormatZip},
}

// Placeholders lists the tokens accepted in URL templates.
var Placeholders = []string{"{version}", "{normalized}", "{os}", "{arch}", "{variant}", "{ext}"}

var placeholderRegex = regexp.MustCompile(`\{[A-Za-z_]+\}`)

// Valid reports whether f is a known format.
func (f ArchiveFormat) Valid() bool {
	switch f {
	case FormatTarGz, FormatTarZst, FormatTarXz, FormatZip:
		return true
	}
	return false
}

// InferFormat guesses the archive format from a URL's path suffix.
func InferFormat(rawURL string) ArchiveFormat {
	p := rawURL
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Path != "" {
		p = parsed.Path
	}
	base := strings.ToLower(path.Base(p))
	for _, entry := range formatSuffixes {
		if strings.HasSuffix(base, entry.suffix) {
			return entry.format
		}
	}
	return FormatUnknown
}

// CheckTemplate reports unknown placeholders in a URL template.
func CheckTemplate(template string) error {
	for _, token := range placeholderRegex.FindAllString(template, -1) {
		known := false
		for _, p := range Placeholders {
			if token == p {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown placeholder %s", token)
		}
	}
	return nil
}

// Expand substitutes version and platform tokens into template and checks
// the result is an absolute http(s) URL.
func (s ToolSpec) Expand(template string, v ResolvedVersion, p Platform) (string, error) {
	if err := CheckTemplate(template); err != nil {
		return "", err
	}
	ext := ""
	if s.Format != FormatUnknown {
		ext = "." + string(s.Format)
	}
	replacer := strings.NewReplacer(
		"{version}", v.Raw,
		"{normalized}", v.Normalized,
		"{os}", s.templateOS(p),
		"{arch}", s.templateArch(p),
		"{variant}", p.Variant,
		"{ext}", ext,
	)
	expanded := replacer.Replace(template)

	parsed, err := url.Parse(expanded)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", expanded, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("url %q must be http or https", expanded)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("url %q has no host", expanded)
	}
	return expanded, nil
}

// archiveFormat returns the configured format or infers it from the URL.
func (s ToolSpec) archiveFormat(archiveURL string) ArchiveFormat {
	if s.Format != FormatUnknown {
		return s.Format
	}
	return InferFormat(archiveURL)
}
