// cmd/looktime/main.go
//
// This is the entry point for the looktime CLI.
// Running `looktime` with no subcommand starts a session: the operator
// enters a subject id, then steps through every configured trial.
// The subcommands manage and inspect the trial set and saved logs.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/cobra"

	"github.com/kingrea/looktime/internal/config"
	"github.com/kingrea/looktime/internal/report"
	"github.com/kingrea/looktime/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "looktime: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:           "looktime",
		Short:         "Run infant looking-time trials from the keyboard",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "trial set file (default $LOOKTIME_CONFIG or ./looktime.yaml, else built-in)")
	cmd.Flags().StringVar(&opts.subject, "subject", "", "subject identifier; asked for on screen when empty")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "", "directory for CSV logs and the session journal")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "override the poll interval, e.g. 20ms")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newValidateCmd(&opts.configPath))
	cmd.AddCommand(newTrialsCmd(&opts.configPath))
	cmd.AddCommand(newShowCmd())
	return cmd
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the built-in trial set to a file for editing",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultFileName
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the trial set and report problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d trial(s) OK · poll interval %s · output %s\n",
				describeSource(cfg), len(cfg.Definitions()), cfg.PollInterval(), cfg.OutputDir())
			return nil
		},
	}
}

func newTrialsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "trials",
		Short: "List the configured trials in run order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Trial set: %s\n", describeSource(cfg))
			return report.WriteTrials(out, cfg.Definitions(), tableOptions(out))
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <file.csv>",
		Short: "Print a saved trial log as a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := store.ReadLog(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s · %d row(s)\n", filepath.Base(args[0]), len(rows))
			return report.WriteLog(out, rows, tableOptions(out))
		},
	}
}

type runOptions struct {
	configPath string
	subject    string
	outputDir  string
	interval   time.Duration
}

func loadConfig(flag string) (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, goerr.Wrap(err, "determine current directory")
	}
	if err := config.LoadEnv(wd); err != nil {
		return nil, err
	}
	return config.Load(config.ResolvePath(flag, wd), wd)
}

func describeSource(cfg *config.Config) string {
	if cfg.Path == "" {
		return "built-in"
	}
	return cfg.Path
}

func tableOptions(w io.Writer) report.Options {
	if f, ok := w.(*os.File); ok {
		return report.Detect(f)
	}
	return report.Options{}
}
