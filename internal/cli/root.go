package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"toolprov/internal/toolchain"
)

var (
	catalogPath  string
	settingsPath string
	outputJSON   bool
	verbose      bool
	quiet        bool
	logLevel     string
	logFile      string

	ownerFlag       string
	platformFlag    string
	resolveTimeout  time.Duration
	downloadTimeout time.Duration
	stagingDir      string
	passwdFile      string
	groupFile       string
)

// Execute runs the root cobra command and exits with the code matching the
// failed step.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(ExitCode(err))
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "toolprov",
		Short:         "Install the latest release of a toolchain into a fixed location",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&catalogPath, "catalog", "", "Path to the tool catalog (YAML or TOML)")
	flags.StringVar(&settingsPath, "settings", "", "Path to the settings file")
	flags.BoolVar(&outputJSON, "json", false, "Output machine-readable JSON")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")
	flags.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&logFile, "log-file", "", "Also append JSON log entries to this file")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	flags.StringVar(&ownerFlag, "owner", "", "Hand the installed tree to user[:group]")
	flags.StringVar(&platformFlag, "platform", "", "Target platform (os/arch[/variant]); defaults to the host")
	flags.DurationVar(&resolveTimeout, "resolve-timeout", toolchain.DefaultResolveTimeout, "Timeout for version resolution")
	flags.DurationVar(&downloadTimeout, "download-timeout", toolchain.DefaultDownloadTimeout, "Timeout for the archive download")
	flags.StringVar(&stagingDir, "staging-dir", "", "Directory for the downloaded archive (default: install path's parent)")
	flags.StringVar(&passwdFile, "passwd-file", toolchain.DefaultPasswdPath, "passwd database used to resolve --owner")
	flags.StringVar(&groupFile, "group-file", toolchain.DefaultGroupPath, "group database used to resolve --owner")

	cmd.AddCommand(newProvisionCmd())
	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}
