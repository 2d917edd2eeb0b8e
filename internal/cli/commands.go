// Package cli wires the cobra command tree. The bare invocation runs the
// full reconciliation; everything else is introspection.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/trailstrap/trailstrap/internal/version"
	"github.com/trailstrap/trailstrap/pkg/bootstrap"
	"github.com/trailstrap/trailstrap/pkg/command"
	"github.com/trailstrap/trailstrap/pkg/config"
	"github.com/trailstrap/trailstrap/pkg/errors"
	"github.com/trailstrap/trailstrap/pkg/filesystem"
	"github.com/trailstrap/trailstrap/pkg/logging"
	"github.com/trailstrap/trailstrap/pkg/probe"
)

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	var (
		verbosity int
		dryRun    bool
	)

	rootCmd := &cobra.Command{
		Use:   "trailstrap",
		Short: "Idempotent workstation setup for the trailtools suite",
		Long: `trailstrap brings a fresh Linux machine to a known-good state for the
trailtools GPS tooling: native packages, shell profile, a managed Ruby via
rbenv, the gpxlib native library and the tracktools command suite. Re-running
it is always safe; satisfied state is left untouched.`,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				return previewRun(cmd)
			}
			return runBootstrap(cmd)
		},
	}

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Classify the machine and show the plan without changing anything")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func runBootstrap(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "cannot determine home directory")
	}

	selfPath, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "cannot locate own executable")
	}

	rep, err := bootstrap.New(bootstrap.Options{
		FS:       filesystem.NewOS(),
		Runner:   command.NewExecRunner(),
		Config:   cfg,
		Home:     home,
		PathEnv:  os.Getenv("PATH"),
		SelfName: filepath.Base(selfPath),
		SelfPath: selfPath,
		Out:      cmd.OutOrStdout(),
	}).Run(cmd.Context())
	if err != nil {
		return err
	}

	// Recorded failures are already in the summary; only fatal errors
	// change the exit status.
	log.Info().Int("recorded", len(rep.Entries())).Msg("trailstrap finished")
	return nil
}

// previewRun classifies the machine read-only and prints the phases a real
// run would execute. Nothing is created, installed or written.
func previewRun(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	profile, err := probe.New(filesystem.NewOS(), command.NewExecRunner()).
		Detect(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Machine family: %s\n", profile.Family)
	fmt.Fprintf(out, "Required packages: %s\n", strings.Join(profile.RequiredPackages, " "))
	fmt.Fprintln(out, "\nA full run would reconcile, in order:")
	for _, phase := range []string{
		"managed tree under " + cfg.Tree.Base,
		"native packages",
		"shell startup files",
		"Ruby " + cfg.Ruby.Version + " via rbenv",
		"gpxlib " + cfg.GPXLib.Version,
		"tracktools suite from " + cfg.Tools.Remote,
	} {
		fmt.Fprintf(out, "  - %s\n", phase)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print detailed version information including commit hash and build date`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "trailstrap version %s\n", version.Version)
			if version.Commit != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", version.Commit)
			}
			if version.Date != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Built:  %s\n", version.Date)
			}
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Show the effective target state: embedded defaults with the user
override file merged on top, and where that override file is looked up.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Override file: %s\n\n", config.UserConfigPath())
			fmt.Fprintf(out, "Managed tree:  %s (lib %s, bin %s)\n", cfg.Tree.Base, cfg.Tree.Lib, cfg.Tree.Bin)
			fmt.Fprintf(out, "Ruby:          %s via rbenv\n", cfg.Ruby.Version)
			fmt.Fprintf(out, "gpxlib:        %s from %s\n", cfg.GPXLib.Version, cfg.GPXLib.TarballURL)
			fmt.Fprintf(out, "Tools:         %s (%s)\n", cfg.Tools.Remote, cfg.Tools.Manifest)
			return nil
		},
	}
}
