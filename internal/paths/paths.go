package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	appName = "toolprov"

	// CatalogFileName is the catalog looked up in the working directory
	// and the XDG config directories.
	CatalogFileName = "toolprov.yaml"

	// CatalogFileNameTOML is the TOML alternative to CatalogFileName.
	CatalogFileNameTOML = "toolprov.toml"

	// SettingsFileName holds run settings (owner, timeouts, staging).
	SettingsFileName = "settings.yaml"
)

// ConfigPaths captures where the catalog and settings are read from. An
// empty Catalog means the built-in catalog applies.
type ConfigPaths struct {
	Catalog  string
	Settings string
}

// Resolve determines the catalog using the --catalog flag when set,
// otherwise the first of ./toolprov.yaml, ./toolprov.toml and the XDG
// config search path ($XDG_CONFIG_HOME, then $XDG_CONFIG_DIRS).
func Resolve(catalogFlag, settingsFlag string) (ConfigPaths, error) {
	var cp ConfigPaths

	if catalogFlag != "" {
		abs, err := filepath.Abs(catalogFlag)
		if err != nil {
			return ConfigPaths{}, fmt.Errorf("resolve catalog path: %w", err)
		}
		cp.Catalog = abs
	} else {
		found, err := findCatalog()
		if err != nil {
			return ConfigPaths{}, err
		}
		cp.Catalog = found
	}

	if settingsFlag != "" {
		abs, err := filepath.Abs(settingsFlag)
		if err != nil {
			return ConfigPaths{}, fmt.Errorf("resolve settings path: %w", err)
		}
		cp.Settings = abs
	} else if found, err := xdg.SearchConfigFile(filepath.Join(appName, SettingsFileName)); err == nil {
		cp.Settings = found
	}

	return cp, nil
}

func findCatalog() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	for _, name := range []string{CatalogFileName, CatalogFileNameTOML} {
		candidate := filepath.Join(wd, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
	}
	for _, name := range []string{CatalogFileName, CatalogFileNameTOML} {
		if found, err := xdg.SearchConfigFile(filepath.Join(appName, name)); err == nil {
			return found, nil
		}
	}
	return "", nil
}

// UserCatalog is where `init --global` writes the catalog.
func UserCatalog() string {
	return filepath.Join(xdg.ConfigHome, appName, CatalogFileName)
}
