package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"toolprov/internal/toolchain"
	"toolprov/internal/tui"
)

var (
	provisionSkipCurrent bool
	provisionNoProgress  bool
	provisionAdhoc       adhocFlags
)

func newProvisionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision [tool...]",
		Short: "Download and install the latest release of each tool",
		Long: "Resolves the latest version, downloads the archive, extracts it next to the\n" +
			"install path, hands it to --owner and swaps it into place. Tools run one\n" +
			"after another and the run stops at the first failure.",
		RunE: runProvision,
	}

	cmd.Flags().BoolVar(&provisionSkipCurrent, "skip-current", false, "Keep an existing install whose version file matches the latest version")
	cmd.Flags().BoolVar(&provisionNoProgress, "no-progress", false, "Disable the interactive progress display")
	provisionAdhoc.register(cmd)

	return cmd
}

// provisionOutcome is one row of the provision report.
type provisionOutcome struct {
	Tool   string                   `json:"tool"`
	Status string                   `json:"status"`
	Step   toolchain.Step           `json:"step,omitempty"`
	Error  string                   `json:"error,omitempty"`
	Result *toolchain.InstallResult `json:"result,omitempty"`
}

type provisionReport struct {
	Catalog  string             `json:"catalog"`
	Platform string             `json:"platform"`
	Tools    []provisionOutcome `json:"tools"`
}

var provisionColumns = []tui.Column{
	{Header: tui.ColTool, Width: 10},
	{Header: tui.ColStep, Width: 9},
	{Header: tui.ColStatus, Width: 11},
	{Header: tui.ColVersion, Width: 14},
	{Header: tui.ColDetail, Width: 36},
}

func runProvision(cmd *cobra.Command, args []string) error {
	env, err := newRunEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	specs, err := env.selectTools(args, provisionAdhoc)
	if err != nil {
		return err
	}

	outWriter := cmd.OutOrStdout()
	mode := tui.DetectMode(outWriter, provisionNoProgress, outputJSON)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	outcomes := make([]provisionOutcome, len(specs))
	for i, spec := range specs {
		outcomes[i] = provisionOutcome{Tool: spec.Name, Status: "pending"}
	}

	var runErr error
	work := func(send func(tea.Msg)) {
		var reporter toolchain.Reporter = tui.NewLogReporter(env.log)
		if send != nil {
			reporter = tui.NewProgramReporter(send)
		}
		prov := toolchain.New(env.options(reporter))

		for i, spec := range specs {
			log := env.log.WithField("tool", spec.Name)
			result, err := prov.Provision(ctx, spec, env.platform)
			if err != nil {
				runErr = fmt.Errorf("%s: %w", spec.Name, err)
				step, _ := toolchain.FailedStep(err)
				outcomes[i].Status = "failed"
				outcomes[i].Step = step
				outcomes[i].Error = err.Error()
				if send != nil {
					send(tui.RowUpdateMsg{Key: spec.Name, Fields: map[string]string{
						tui.ColStep:   string(step),
						tui.ColStatus: "failed",
						tui.ColDetail: err.Error(),
					}})
				}
				for j := i + 1; j < len(specs); j++ {
					outcomes[j].Status = "skipped"
					if send != nil {
						send(tui.RowUpdateMsg{Key: specs[j].Name, Fields: map[string]string{tui.ColStatus: "skipped"}})
					}
				}
				return
			}

			status := "installed"
			if result.Reused {
				status = "reused"
			}
			outcomes[i].Status = status
			outcomes[i].Result = &result
			log.WithFields(logrus.Fields{
				"version": result.Version.Raw,
				"digest":  result.Digest,
				"reused":  result.Reused,
			}).Debug("tool done")
			if send != nil {
				send(tui.RowUpdateMsg{Key: spec.Name, Fields: map[string]string{
					tui.ColStep:    "",
					tui.ColStatus:  status,
					tui.ColVersion: result.Version.Raw,
					tui.ColDetail:  result.Path,
				}})
			}
		}
	}

	if mode == tui.ModeTUI {
		model := tui.NewProgressModel("Provisioning on "+env.platform.String(), provisionColumns)
		for _, spec := range specs {
			model.AddRow(spec.Name, []string{spec.Name, "", "pending"})
		}
		done := make(chan struct{})
		tuiErr := tui.RunWithWork(outWriter, model, func(send func(tea.Msg)) {
			defer close(done)
			work(send)
		})
		// The program can exit early on ctrl+c; stop the pipeline and wait
		// for its cleanup before reporting.
		cancel()
		<-done
		if tuiErr != nil {
			return tuiErr
		}
	} else {
		work(nil)
	}

	if mode == tui.ModeJSON {
		if err := writeJSON(outWriter, provisionReport{
			Catalog:  env.catalogLabel(),
			Platform: env.platform.String(),
			Tools:    outcomes,
		}); err != nil {
			return err
		}
	} else {
		writeProvisionTable(outWriter, outcomes)
	}
	return runErr
}

func writeProvisionTable(w io.Writer, outcomes []provisionOutcome) {
	fmt.Fprintf(w, "%-10s %-10s %-14s %-16s %-6s %s\n", "TOOL", "STATUS", "VERSION", "OWNER", "FILES", "PATH")
	for _, o := range outcomes {
		if o.Result == nil {
			fmt.Fprintf(w, "%-10s %-10s %-14s %-16s %-6s %s\n", o.Tool, o.Status, "-", "-", "-", "-")
			if o.Error != "" {
				fmt.Fprintf(w, "  error: %s\n", o.Error)
			}
			continue
		}
		r := o.Result
		owner := "-"
		if !r.Owner.IsZero() {
			owner = fmt.Sprintf("%d:%d", r.UID, r.GID)
		}
		files := "-"
		if !r.Reused {
			files = fmt.Sprintf("%d", r.Files)
		}
		fmt.Fprintf(w, "%-10s %-10s %-14s %-16s %-6s %s\n", o.Tool, o.Status, r.Version.Raw, owner, files, r.Path)
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
