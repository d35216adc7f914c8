package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"toolprov/internal/config"
	"toolprov/internal/toolchain"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: ExitOK},
		{name: "usage", err: errors.New("unknown flag"), want: ExitFailure},
		{name: "resolution", err: toolchain.VersionResolutionError("https://go.dev/VERSION", errors.New("503")), want: ExitResolution},
		{name: "download", err: toolchain.DownloadError("url", errors.New("eof")), want: ExitDownload},
		{name: "replace", err: toolchain.ReplaceError("/usr/local/go", errors.New("busy")), want: ExitReplace},
		{name: "extraction", err: toolchain.ExtractionError("archive", errors.New("bad")), want: ExitExtraction},
		{name: "ownership", err: toolchain.OwnershipError("devuser", errors.New("unknown")), want: ExitOwnership},
		{name: "wrapped", err: fmt.Errorf("go: %w", toolchain.DownloadError("url", errors.New("eof"))), want: ExitDownload},
		{name: "joined", err: errors.Join(errors.New("first"), toolchain.VersionResolutionError("u", errors.New("x"))), want: ExitResolution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Fatalf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestResolveCommand(t *testing.T) {
	isolate(t)
	rs := newReleaseServer(t, "go1.22.1")
	catalog, installPath := writeCatalog(t, rs)

	stdout, _, err := executeCmd(t, "resolve", "--catalog", catalog, "--platform", "linux/amd64")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for _, want := range []string{"go1.22.1", "1.22.1", rs.URL + "/dl/go1.22.1.linux-amd64.tar.gz"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output:\n%s", want, stdout)
		}
	}
	if _, err := os.Stat(installPath); !os.IsNotExist(err) {
		t.Fatalf("resolve must not install, stat err = %v", err)
	}

	stdout, _, err = executeCmd(t, "resolve", "--catalog", catalog, "--platform", "linux/arm/v6", "--json")
	if err != nil {
		t.Fatalf("resolve json: %v", err)
	}
	var outcomes []resolveOutcome
	if err := json.Unmarshal([]byte(stdout), &outcomes); err != nil {
		t.Fatalf("decode: %v\n%s", err, stdout)
	}
	if len(outcomes) != 1 || outcomes[0].Semver != "v1.22.1" {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}
	if !strings.HasSuffix(outcomes[0].ArchiveURL, "go1.22.1.linux-arm.tar.gz") {
		t.Fatalf("unexpected archive url %q", outcomes[0].ArchiveURL)
	}

	rs.setVersionStatus(500)
	_, _, err = executeCmd(t, "resolve", "--catalog", catalog)
	if ExitCode(err) != ExitResolution {
		t.Fatalf("expected resolution exit code, got %v", err)
	}
}

func TestStatusCommand(t *testing.T) {
	isolate(t)
	rs := newReleaseServer(t, "go1.22.1")
	catalog, _ := writeCatalog(t, rs)

	statusOf := func(extra ...string) statusOutcome {
		t.Helper()
		args := append([]string{"status", "--catalog", catalog, "--json"}, extra...)
		stdout, _, err := executeCmd(t, args...)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		var outcomes []statusOutcome
		if err := json.Unmarshal([]byte(stdout), &outcomes); err != nil {
			t.Fatalf("decode: %v\n%s", err, stdout)
		}
		if len(outcomes) != 1 {
			t.Fatalf("expected one outcome, got %+v", outcomes)
		}
		return outcomes[0]
	}

	if got := statusOf(); got.Status != "missing" || got.Latest != "go1.22.1" {
		t.Fatalf("before install: %+v", got)
	}

	if _, _, err := executeCmd(t, "provision", "--catalog", catalog, "--platform", "linux/amd64"); err != nil {
		t.Fatalf("provision: %v", err)
	}
	if got := statusOf(); got.Status != "current" || got.Installed != "go1.22.1" {
		t.Fatalf("after install: %+v", got)
	}

	rs.publish(t, "go1.23.0")
	if got := statusOf(); got.Status != "outdated" || got.Latest != "go1.23.0" {
		t.Fatalf("after new release: %+v", got)
	}

	rs.setVersionStatus(500)
	if got := statusOf("--offline"); got.Status != "installed" || got.Latest != "" {
		t.Fatalf("offline: %+v", got)
	}
	_, _, err := executeCmd(t, "status", "--catalog", catalog)
	if ExitCode(err) != ExitResolution {
		t.Fatalf("expected resolution failure to surface, got %v", err)
	}
}

func TestCompareInstalled(t *testing.T) {
	spec := config.GoTool()
	latest := toolchain.ResolvedVersion{Raw: "go1.22.1", Normalized: "1.22.1"}
	tests := map[string]string{
		"":          "missing",
		"go1.22.1":  "current",
		"go1.21.8":  "outdated",
		"go1.23.0":  "ahead",
		"<garbage>": "unknown",
	}
	for installed, want := range tests {
		if got := compareInstalled(spec, installed, latest); got != want {
			t.Errorf("compareInstalled(%q) = %q, want %q", installed, got, want)
		}
	}

	devel := toolchain.ResolvedVersion{Raw: "go1.23rc1", Normalized: "1.23rc1"}
	if got := compareInstalled(spec, "go1.22.1", devel); got != "outdated" {
		t.Errorf("non-semver latest should compare by equality, got %q", got)
	}
}

func TestListCommand(t *testing.T) {
	isolate(t)

	stdout, _, err := executeCmd(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"(built-in)", "go", "https://go.dev/VERSION?m=text", "/usr/local/go"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output:\n%s", want, stdout)
		}
	}

	bad := filepath.Join(t.TempDir(), "toolprov.toml")
	contents := "[tools.broken]\narchive_url = \"https://example.com/x.rar\"\ninstall_path = \"opt/broken\"\n"
	if err := os.WriteFile(bad, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	stdout, _, err = executeCmd(t, "list", "--catalog", bad, "--json")
	if err == nil {
		t.Fatal("expected validation failure")
	}
	var report listReport
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("decode: %v\n%s", err, stdout)
	}
	if !config.HasErrors(report.Findings) || report.Tools[0].Name != "broken" {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestListMissingCatalogFails(t *testing.T) {
	isolate(t)

	typo := filepath.Join(t.TempDir(), "tools-typo.yaml")
	stdout, _, err := executeCmd(t, "list", "--catalog", typo)
	if err == nil || !strings.Contains(err.Error(), "read catalog") {
		t.Fatalf("expected read catalog error, got %v", err)
	}
	if strings.Contains(stdout, "/usr/local/go") {
		t.Fatalf("built-in catalog listed for a missing file:\n%s", stdout)
	}
}

func TestInitCommand(t *testing.T) {
	wd := isolate(t)

	stdout, _, err := executeCmd(t, "init")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	yamlPath := filepath.Join(wd, "toolprov.yaml")
	if !strings.Contains(stdout, "toolprov.yaml") {
		t.Fatalf("unexpected output %q", stdout)
	}
	cat, err := config.Load(yamlPath)
	if err != nil {
		t.Fatalf("load written catalog: %v", err)
	}
	if cat.Tools["go"].InstallPath != "/usr/local/go" || cat.Tools["go"].ArchMap["arm"] != "armv6l" {
		t.Fatalf("unexpected catalog %+v", cat.Tools["go"])
	}

	if _, _, err := executeCmd(t, "init"); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected refusal to overwrite, got %v", err)
	}
	if _, _, err := executeCmd(t, "init", "--force"); err != nil {
		t.Fatalf("init --force: %v", err)
	}

	if _, _, err := executeCmd(t, "init", "--format", "toml"); err != nil {
		t.Fatalf("init toml: %v", err)
	}
	tomlCat, err := config.Load(filepath.Join(wd, "toolprov.toml"))
	if err != nil {
		t.Fatalf("load toml: %v", err)
	}
	if tomlCat.Tools["go"].VersionPrefix != "go" {
		t.Fatalf("unexpected toml catalog %+v", tomlCat.Tools["go"])
	}

	if _, _, err := executeCmd(t, "init", "--format", "json"); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestInitAnswersSpec(t *testing.T) {
	a := defaultInitAnswers()
	a.Name = "zig"
	a.VersionURL = "https://example.com/zig/latest"
	a.VersionPrefix = ""
	a.ArchiveURL = "https://example.com/zig-{os}-{arch}-{version}.tar.xz"
	a.ChecksumURL = ""
	a.StripComponents = " 1 "
	a.InstallPath = "/opt/zig"
	a.VersionFile = ""

	spec, err := a.spec()
	if err != nil {
		t.Fatalf("spec: %v", err)
	}
	if spec.Format != toolchain.FormatTarXz || spec.StripComponents != 1 || spec.ArchMap != nil {
		t.Fatalf("unexpected spec %+v", spec)
	}

	a.StripComponents = "one"
	if _, err := a.spec(); err == nil {
		t.Fatal("expected strip components error")
	}
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	stdout, _, err := executeCmd(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(stdout, "toolprov ") {
		t.Fatalf("unexpected output %q", stdout)
	}
}
