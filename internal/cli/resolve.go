package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"toolprov/internal/toolchain"
	"toolprov/internal/tui"
)

var resolveAdhoc adhocFlags

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [tool...]",
		Short: "Print the version each tool would install, without installing it",
		RunE:  runResolve,
	}
	resolveAdhoc.register(cmd)
	return cmd
}

type resolveOutcome struct {
	Tool       string                     `json:"tool"`
	Source     string                     `json:"source"`
	Version    *toolchain.ResolvedVersion `json:"version,omitempty"`
	Semver     string                     `json:"semver,omitempty"`
	ArchiveURL string                     `json:"archive_url,omitempty"`
	Error      string                     `json:"error,omitempty"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	env, err := newRunEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	specs, err := env.selectTools(args, resolveAdhoc)
	if err != nil {
		return err
	}

	prov := toolchain.New(env.options(nil))
	outcomes := make([]resolveOutcome, 0, len(specs))
	var runErr error
	for _, spec := range specs {
		outcome := resolveOutcome{Tool: spec.Name, Source: spec.Version.Describe()}
		v, err := prov.Resolve(cmd.Context(), spec)
		if err != nil {
			outcome.Error = err.Error()
			outcomes = append(outcomes, outcome)
			runErr = fmt.Errorf("%s: %w", spec.Name, err)
			break
		}
		outcome.Version = &v
		outcome.Semver = v.Semver()
		if archiveURL, err := spec.Expand(spec.ArchiveURL, v, env.platform); err == nil {
			outcome.ArchiveURL = archiveURL
		} else {
			env.log.WithField("tool", spec.Name).WithError(err).Warn("archive url does not expand")
		}
		outcomes = append(outcomes, outcome)
	}

	if outputJSON {
		if err := writeJSON(cmd.OutOrStdout(), outcomes); err != nil {
			return err
		}
	} else {
		writeResolveTable(cmd.OutOrStdout(), outcomes)
	}
	return runErr
}

func writeResolveTable(w io.Writer, outcomes []resolveOutcome) {
	fmt.Fprintf(w, "%-10s %-14s %-12s %s\n", "TOOL", "VERSION", "NORMALIZED", "ARCHIVE")
	for _, o := range outcomes {
		if o.Version == nil {
			fmt.Fprintf(w, "%-10s %-14s %-12s %s\n", o.Tool, "-", "-", "-")
			fmt.Fprintf(w, "  error: %s\n", o.Error)
			continue
		}
		fmt.Fprintf(w, "%-10s %-14s %-12s %s\n", o.Tool, o.Version.Raw, o.Version.Normalized, tui.NonEmptyOrDash(o.ArchiveURL))
	}
}
