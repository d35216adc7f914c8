package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"toolprov/internal/config"
	"toolprov/internal/paths"
	"toolprov/internal/toolchain"
)

var (
	initFormat      string
	initOutput      string
	initGlobal      bool
	initForce       bool
	initInteractive bool
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter catalog that installs Go into /usr/local/go",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}

	cmd.Flags().StringVar(&initFormat, "format", string(config.FormatYAML), "Catalog format: yaml or toml")
	cmd.Flags().StringVarP(&initOutput, "output", "o", "", "Where to write the catalog (default ./toolprov.<format>)")
	cmd.Flags().BoolVar(&initGlobal, "global", false, "Write to the user config directory instead of the working directory")
	cmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing catalog")
	cmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Answer a few questions instead of writing the Go default")
	cmd.MarkFlagsMutuallyExclusive("output", "global")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	format := config.Format(strings.ToLower(initFormat))
	if format != config.FormatYAML && format != config.FormatTOML {
		return fmt.Errorf("unsupported --format %q (want yaml or toml)", initFormat)
	}

	answers := defaultInitAnswers()
	if initInteractive {
		if err := initForm(&answers).RunWithContext(cmd.Context()); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return errors.New("init aborted")
			}
			return fmt.Errorf("init form: %w", err)
		}
	}

	spec, err := answers.spec()
	if err != nil {
		return err
	}
	if results := config.ValidateTool(spec); config.HasErrors(results) {
		return fmt.Errorf("invalid tool definition: %v", results)
	}

	cat := config.Catalog{
		Version: config.CurrentVersion,
		Tools:   map[string]toolchain.ToolSpec{spec.Name: spec},
	}

	target := initTarget(format)
	if err := cat.Write(target, initForce); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", target)
	return nil
}

// initTarget picks the output path; the extension follows --format unless
// --output names one explicitly.
func initTarget(format config.Format) string {
	switch {
	case initOutput != "":
		return initOutput
	case initGlobal:
		return strings.TrimSuffix(paths.UserCatalog(), filepath.Ext(paths.UserCatalog())) + "." + string(format)
	default:
		return "toolprov." + string(format)
	}
}

// initAnswers holds the form fields as strings so huh can bind them.
type initAnswers struct {
	Name            string
	VersionURL      string
	VersionPrefix   string
	ArchiveURL      string
	ChecksumURL     string
	StripComponents string
	InstallPath     string
	VersionFile     string
}

func defaultInitAnswers() initAnswers {
	goTool := config.GoTool()
	return initAnswers{
		Name:            goTool.Name,
		VersionURL:      goTool.Version.URL,
		VersionPrefix:   goTool.VersionPrefix,
		ArchiveURL:      goTool.ArchiveURL,
		ChecksumURL:     goTool.ChecksumURL,
		StripComponents: strconv.Itoa(goTool.StripComponents),
		InstallPath:     goTool.InstallPath,
		VersionFile:     goTool.VersionFile,
	}
}

func (a initAnswers) spec() (toolchain.ToolSpec, error) {
	strip, err := strconv.Atoi(strings.TrimSpace(a.StripComponents))
	if err != nil {
		return toolchain.ToolSpec{}, fmt.Errorf("strip components %q: %w", a.StripComponents, err)
	}
	spec := toolchain.ToolSpec{
		Name:            strings.TrimSpace(a.Name),
		Version:         toolchain.VersionQuery{URL: strings.TrimSpace(a.VersionURL)},
		VersionPrefix:   strings.TrimSpace(a.VersionPrefix),
		ArchiveURL:      strings.TrimSpace(a.ArchiveURL),
		ChecksumURL:     strings.TrimSpace(a.ChecksumURL),
		Format:          toolchain.InferFormat(a.ArchiveURL),
		StripComponents: strip,
		InstallPath:     strings.TrimSpace(a.InstallPath),
		VersionFile:     strings.TrimSpace(a.VersionFile),
	}
	if spec.Name == config.GoTool().Name && spec.ArchiveURL == config.GoTool().ArchiveURL {
		spec.ArchMap = config.GoTool().ArchMap
	}
	return spec, nil
}

func initForm(a *initAnswers) *huh.Form {
	required := func(field string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s is required", field)
			}
			return nil
		}
	}
	archiveTemplate := func(s string) error {
		if err := required("archive url")(s); err != nil {
			return err
		}
		return toolchain.CheckTemplate(s)
	}
	nonNegative := func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || n < 0 {
			return errors.New("enter a non-negative number")
		}
		return nil
	}
	absolute := func(s string) error {
		if !filepath.IsAbs(strings.TrimSpace(s)) {
			return errors.New("install path must be absolute")
		}
		return nil
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Tool name").Value(&a.Name).Validate(required("name")),
			huh.NewInput().Title("Latest version URL").
				Description("The first line of the response is the version.").
				Value(&a.VersionURL).
				Validate(required("version url")),
			huh.NewInput().Title("Version prefix").
				Description("Stripped to form {normalized}, e.g. go in go1.22.1.").
				Value(&a.VersionPrefix),
		),
		huh.NewGroup(
			huh.NewInput().Title("Archive URL template").
				Description("Placeholders: "+strings.Join(toolchain.Placeholders, " ")).
				Value(&a.ArchiveURL).
				Validate(archiveTemplate),
			huh.NewInput().Title("Checksum URL template").Value(&a.ChecksumURL).Validate(toolchain.CheckTemplate),
			huh.NewInput().Title("Strip leading path components").Value(&a.StripComponents).Validate(nonNegative),
		),
		huh.NewGroup(
			huh.NewInput().Title("Install path").Value(&a.InstallPath).Validate(absolute),
			huh.NewInput().Title("Version file").
				Description("Relative to the install path; leave empty if the tool has none.").
				Value(&a.VersionFile),
		),
	)
}
