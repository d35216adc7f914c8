package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"toolprov/internal/config"
	"toolprov/internal/logx"
	"toolprov/internal/paths"
	"toolprov/internal/toolchain"
)

// runEnv is what every command needs before touching a tool: where the
// catalog came from, the layered settings and a logger.
type runEnv struct {
	paths    paths.ConfigPaths
	catalog  config.Catalog
	settings config.Settings
	platform toolchain.Platform
	log      *logrus.Logger
	closer   io.Closer
}

func (e *runEnv) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}

// catalogLabel describes the catalog source for table headers.
func (e *runEnv) catalogLabel() string {
	if e.paths.Catalog == "" {
		return "(built-in)"
	}
	return e.paths.Catalog
}

func newRunEnv(cmd *cobra.Command) (*runEnv, error) {
	cp, err := paths.Resolve(catalogPath, settingsPath)
	if err != nil {
		return nil, err
	}

	settings, err := config.LoadSettings(cp.Settings, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, closer, err := logx.New(cmd.ErrOrStderr(), logx.Options{
		Level:   settings.LogLevel,
		Verbose: verbose,
		Quiet:   quiet,
		File:    settings.LogFile,
	})
	if err != nil {
		return nil, err
	}

	env := &runEnv{paths: cp, settings: settings, log: logger, closer: closer}

	env.platform, err = toolchain.ParsePlatform(settings.Platform)
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("parse --platform: %w", err)
	}

	env.catalog, err = config.Load(cp.Catalog)
	if err != nil {
		env.Close()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"catalog":  env.catalogLabel(),
		"settings": cp.Settings,
		"platform": env.platform.String(),
	}).Debug("configuration loaded")
	return env, nil
}

// selectTools picks catalog entries by name, or builds a single entry from
// the ad-hoc flags when they are set. Entries with validation errors are
// rejected before any network or filesystem work.
func (e *runEnv) selectTools(args []string, adhoc adhocFlags) ([]toolchain.ToolSpec, error) {
	var specs []toolchain.ToolSpec
	if adhoc.set() {
		if len(args) > 0 {
			return nil, errors.New("tool names cannot be combined with ad-hoc flags")
		}
		specs = []toolchain.ToolSpec{adhoc.spec()}
	} else {
		selected, err := e.catalog.Select(args)
		if err != nil {
			return nil, err
		}
		specs = selected
	}
	if len(specs) == 0 {
		return nil, errors.New("no tools selected")
	}

	var problems []string
	for _, spec := range specs {
		for _, r := range config.ValidateTool(spec) {
			if r.Level == "error" {
				problems = append(problems, r.String())
				continue
			}
			e.log.WithField("tool", r.Tool).Warn(r.Message)
		}
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid tool definition:\n  %s", strings.Join(problems, "\n  "))
	}
	return specs, nil
}

func (e *runEnv) options(reporter toolchain.Reporter) toolchain.Options {
	opts := e.settings.Options()
	opts.Reporter = reporter
	opts.Logger = e.log
	return opts
}

// adhocFlags describe a single tool on the command line instead of in a
// catalog.
type adhocFlags struct {
	name            string
	versionURL      string
	pinned          string
	versionPrefix   string
	archiveURL      string
	checksumURL     string
	format          string
	stripComponents int
	installPath     string
	versionFile     string
}

func (a *adhocFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&a.name, "name", "", "Ad-hoc tool name (defaults to the install path's base name)")
	flags.StringVar(&a.versionURL, "version-url", "", "Ad-hoc URL whose first line is the latest version")
	flags.StringVar(&a.pinned, "pinned", "", "Ad-hoc fixed version instead of --version-url")
	flags.StringVar(&a.versionPrefix, "version-prefix", "", "Prefix stripped to form {normalized}")
	flags.StringVar(&a.archiveURL, "archive-url", "", "Ad-hoc archive URL template")
	flags.StringVar(&a.checksumURL, "checksum-url", "", "Ad-hoc checksum URL template")
	flags.StringVar(&a.format, "format", "", "Archive format (tar.gz, tar.zst, tar.xz, zip); inferred from the URL when empty")
	flags.IntVar(&a.stripComponents, "strip-components", 0, "Leading path components removed from archive entries")
	flags.StringVar(&a.installPath, "install-path", "", "Ad-hoc install location")
	flags.StringVar(&a.versionFile, "version-file", "", "File under the install path that records the installed version")
	cmd.MarkFlagsMutuallyExclusive("version-url", "pinned")
}

func (a adhocFlags) set() bool {
	return a.archiveURL != "" || a.installPath != "" || a.versionURL != "" || a.pinned != ""
}

func (a adhocFlags) spec() toolchain.ToolSpec {
	name := a.name
	if name == "" && a.installPath != "" {
		name = filepath.Base(a.installPath)
	}
	spec := toolchain.ToolSpec{
		Name:            name,
		Version:         toolchain.VersionQuery{URL: a.versionURL, Pinned: a.pinned},
		VersionPrefix:   a.versionPrefix,
		ArchiveURL:      a.archiveURL,
		ChecksumURL:     a.checksumURL,
		Format:          toolchain.ArchiveFormat(a.format),
		StripComponents: a.stripComponents,
		InstallPath:     a.installPath,
		VersionFile:     a.versionFile,
	}
	if spec.Format == toolchain.FormatUnknown {
		spec.Format = toolchain.InferFormat(spec.ArchiveURL)
	}
	return spec
}
