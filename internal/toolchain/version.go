package toolchain

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// maxVersionBody bounds how much of a version endpoint response is read.
const maxVersionBody = 64 << 10

// DefaultVersionPattern accepts tokens like "go1.22.0", "v1.2.3", "1.21rc2".
const DefaultVersionPattern = `^[A-Za-z]*[0-9]+(\.[0-9]+)*([-.+_]?[A-Za-z0-9]+)*$`

var defaultVersionRegex = regexp.MustCompile(DefaultVersionPattern)

// Semver returns the canonical semantic version ("v1.22.0") of the
// normalized form, or "" when it isn't one.
func (v ResolvedVersion) Semver() string {
	candidate := v.Normalized
	if !strings.HasPrefix(candidate, "v") {
		candidate = "v" + candidate
	}
	if !semver.IsValid(candidate) {
		return ""
	}
	return semver.Canonical(candidate)
}

// Compare orders two versions by semver when both are valid, and by raw
// string equality otherwise (0 when equal, 1 when they differ).
func Compare(a, b ResolvedVersion) int {
	sa, sb := a.Semver(), b.Semver()
	if sa != "" && sb != "" {
		return semver.Compare(sa, sb)
	}
	if a.Raw == b.Raw {
		return 0
	}
	return 1
}

// ParseVersion validates raw against the tool's version pattern and builds the
// normalized form.
func (s ToolSpec) ParseVersion(raw string) (ResolvedVersion, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ResolvedVersion{}, errors.New("empty version string")
	}
	re := defaultVersionRegex
	if s.VersionPattern != "" {
		var err error
		re, err = regexp.Compile(s.VersionPattern)
		if err != nil {
			return ResolvedVersion{}, fmt.Errorf("compile version pattern: %w", err)
		}
	}
	if !re.MatchString(raw) {
		return ResolvedVersion{}, fmt.Errorf("malformed version %q", truncate(raw, 64))
	}
	normalized := raw
	if s.VersionPrefix != "" {
		normalized = strings.TrimPrefix(raw, s.VersionPrefix)
	}
	if normalized == "" {
		return ResolvedVersion{}, fmt.Errorf("version %q is empty after removing prefix %q", raw, s.VersionPrefix)
	}
	return ResolvedVersion{Raw: raw, Normalized: normalized}, nil
}

// resolveVersion performs the resolution step: a pinned literal is
// validated as-is, otherwise the query URL is fetched and its first line
// used. There is no fallback to cached or built-in versions.
func resolveVersion(ctx context.Context, client *http.Client, userAgent string, spec ToolSpec) (ResolvedVersion, error) {
	if pinned := strings.TrimSpace(spec.Version.Pinned); pinned != "" {
		v, err := spec.ParseVersion(pinned)
		if err != nil {
			return ResolvedVersion{}, VersionResolutionError("pinned", err)
		}
		return v, nil
	}

	queryURL := spec.Version.URL
	if queryURL == "" {
		return ResolvedVersion{}, VersionResolutionError("", errors.New("no version source configured"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return ResolvedVersion{}, VersionResolutionError(queryURL, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/plain")

	resp, err := client.Do(req)
	if err != nil {
		return ResolvedVersion{}, VersionResolutionError(queryURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ResolvedVersion{}, VersionResolutionError(queryURL, fmt.Errorf("unexpected status %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxVersionBody))
	if err != nil {
		return ResolvedVersion{}, VersionResolutionError(queryURL, fmt.Errorf("read body: %w", err))
	}

	v, err := spec.ParseVersion(firstLine(string(body)))
	if err != nil {
		return ResolvedVersion{}, VersionResolutionError(queryURL, err)
	}
	return v, nil
}

// Inspect reports the version recorded in the tool's version file under
// the install path. It returns "" without error when nothing is installed.
func Inspect(spec ToolSpec) (string, error) {
	if spec.VersionFile == "" {
		return "", nil
	}
	path := filepath.Join(spec.InstallPath, filepath.FromSlash(spec.VersionFile))
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read version file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read version file: %w", err)
	}
	return "", nil
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
