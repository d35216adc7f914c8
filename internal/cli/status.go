package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"toolprov/internal/toolchain"
	"toolprov/internal/tui"
)

var statusOffline bool

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [tool...]",
		Short: "Compare installed versions with the latest available",
		RunE:  runStatus,
	}
	cmd.Flags().BoolVar(&statusOffline, "offline", false, "Only report installed versions; skip resolution")
	return cmd
}

type statusOutcome struct {
	Tool      string `json:"tool"`
	Path      string `json:"path"`
	Installed string `json:"installed,omitempty"`
	Latest    string `json:"latest,omitempty"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	env, err := newRunEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	specs, err := env.catalog.Select(args)
	if err != nil {
		return err
	}

	prov := toolchain.New(env.options(nil))
	outcomes := make([]statusOutcome, 0, len(specs))
	var errs []error
	for _, spec := range specs {
		outcome := statusOutcome{Tool: spec.Name, Path: spec.InstallPath}

		installed, err := toolchain.Inspect(spec)
		if err != nil {
			outcome.Status = "failed"
			outcome.Error = err.Error()
			outcomes = append(outcomes, outcome)
			errs = append(errs, fmt.Errorf("%s: %w", spec.Name, err))
			continue
		}
		outcome.Installed = installed

		if statusOffline {
			outcome.Status = "installed"
			if installed == "" {
				outcome.Status = "missing"
			}
			outcomes = append(outcomes, outcome)
			continue
		}

		latest, err := prov.Resolve(cmd.Context(), spec)
		if err != nil {
			outcome.Status = "failed"
			outcome.Error = err.Error()
			outcomes = append(outcomes, outcome)
			errs = append(errs, fmt.Errorf("%s: %w", spec.Name, err))
			continue
		}
		outcome.Latest = latest.Raw
		outcome.Status = compareInstalled(spec, installed, latest)
		outcomes = append(outcomes, outcome)
	}

	if outputJSON {
		if err := writeJSON(cmd.OutOrStdout(), outcomes); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Catalog: %s\n", env.catalogLabel())
		writeStatusTable(cmd.OutOrStdout(), outcomes)
	}
	return errors.Join(errs...)
}

// compareInstalled classifies an installed version against the latest one.
// Versions that are not semver are only compared for equality.
func compareInstalled(spec toolchain.ToolSpec, installed string, latest toolchain.ResolvedVersion) string {
	if installed == "" {
		return "missing"
	}
	current, err := spec.ParseVersion(installed)
	if err != nil {
		return "unknown"
	}
	switch cmp := toolchain.Compare(current, latest); {
	case cmp == 0:
		return "current"
	case cmp > 0 && current.Semver() != "" && latest.Semver() != "":
		return "ahead"
	default:
		return "outdated"
	}
}

func writeStatusTable(w io.Writer, outcomes []statusOutcome) {
	fmt.Fprintf(w, "%-10s %-10s %-14s %-14s %s\n", "TOOL", "STATUS", "INSTALLED", "LATEST", "PATH")
	for _, o := range outcomes {
		fmt.Fprintf(w, "%-10s %-10s %-14s %-14s %s\n", o.Tool, o.Status, tui.NonEmptyOrDash(o.Installed), tui.NonEmptyOrDash(o.Latest), o.Path)
		if o.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", o.Error)
		}
	}
}
