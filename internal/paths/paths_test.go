package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
)

func isolate(t *testing.T) (configHome, wd string) {
	t.Helper()
	configHome = t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Setenv("XDG_CONFIG_DIRS", filepath.Join(t.TempDir(), "etc-xdg"))
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	wd = t.TempDir()
	t.Chdir(wd)
	return configHome, wd
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("version: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveExplicitFlags(t *testing.T) {
	isolate(t)
	cp, err := Resolve("custom.yaml", "my-settings.yaml")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	wd, _ := os.Getwd()
	if cp.Catalog != filepath.Join(wd, "custom.yaml") {
		t.Fatalf("unexpected catalog %s", cp.Catalog)
	}
	if cp.Settings != filepath.Join(wd, "my-settings.yaml") {
		t.Fatalf("unexpected settings %s", cp.Settings)
	}
}

func TestResolvePrefersWorkingDirectory(t *testing.T) {
	configHome, wd := isolate(t)
	writeFile(t, filepath.Join(configHome, "toolprov", CatalogFileName))
	writeFile(t, filepath.Join(wd, CatalogFileNameTOML))

	cp, err := Resolve("", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if filepath.Base(cp.Catalog) != CatalogFileNameTOML {
		t.Fatalf("expected working directory catalog, got %s", cp.Catalog)
	}
}

func TestResolveFallsBackToXDG(t *testing.T) {
	configHome, _ := isolate(t)
	catalog := filepath.Join(configHome, "toolprov", CatalogFileName)
	settings := filepath.Join(configHome, "toolprov", SettingsFileName)
	writeFile(t, catalog)
	writeFile(t, settings)

	cp, err := Resolve("", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cp.Catalog != catalog {
		t.Fatalf("catalog = %s, want %s", cp.Catalog, catalog)
	}
	if cp.Settings != settings {
		t.Fatalf("settings = %s, want %s", cp.Settings, settings)
	}
}

func TestResolveNothingFound(t *testing.T) {
	isolate(t)
	cp, err := Resolve("", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cp.Catalog != "" || cp.Settings != "" {
		t.Fatalf("expected empty paths, got %+v", cp)
	}
}

func TestUserCatalog(t *testing.T) {
	configHome, _ := isolate(t)
	if got := UserCatalog(); got != filepath.Join(configHome, "toolprov", CatalogFileName) {
		t.Fatalf("unexpected user catalog %s", got)
	}
}
