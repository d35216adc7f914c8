package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"toolprov/internal/config"
	"toolprov/internal/toolchain"
	"toolprov/internal/tui"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog entries and validation findings",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
}

type listReport struct {
	Catalog  string                    `json:"catalog"`
	Tools    []toolchain.ToolSpec      `json:"tools"`
	Findings []config.ValidationResult `json:"findings,omitempty"`
}

func runList(cmd *cobra.Command, _ []string) error {
	env, err := newRunEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	specs, err := env.catalog.Select(nil)
	if err != nil {
		return err
	}
	findings := env.catalog.Validate()

	if outputJSON {
		if err := writeJSON(cmd.OutOrStdout(), listReport{
			Catalog:  env.catalogLabel(),
			Tools:    specs,
			Findings: findings,
		}); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Catalog: %s\n", env.catalogLabel())
		fmt.Fprintf(out, "%-10s %-32s %-8s %s\n", "TOOL", "VERSION SOURCE", "FORMAT", "INSTALL PATH")
		for _, spec := range specs {
			fmt.Fprintf(out, "%-10s %-32s %-8s %s\n",
				spec.Name,
				tui.TruncateWithEllipsis(spec.Version.Describe(), 32),
				tui.NonEmptyOrDash(string(spec.Format)),
				spec.InstallPath,
			)
		}
		for _, f := range findings {
			fmt.Fprintln(cmd.ErrOrStderr(), f.String())
		}
	}

	if config.HasErrors(findings) {
		return fmt.Errorf("catalog %s has validation errors", env.catalogLabel())
	}
	return nil
}
