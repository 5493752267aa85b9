package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/blang/semver"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"

	"github.com/s0up4200/go-dvdinfo/internal/logging"
	"github.com/s0up4200/go-dvdinfo/internal/settings"
	"github.com/s0up4200/go-dvdinfo/internal/streaming"
)

var version = "dev"

const repoSlug = "s0up4200/go-dvdinfo"

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

// app carries the configuration and logger resolved before each command runs.
type app struct {
	opts   rootOptions
	cfg    settings.Settings
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "dvdinfo",
		Short:         "Inspect and stream DVD-Video discs.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.opts.configPath, "config", "c", "", "Path to config file (default ~/.config/dvdinfo/config.toml)")
	flags.StringVar(&a.opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&a.opts.logFormat, "log-format", "", "Log format: auto, console, json")

	root.AddCommand(
		newInfoCmd(a),
		newTitlesCmd(a),
		newChaptersCmd(a),
		newTracksCmd(a),
		newRangesCmd(a),
		newStreamCmd(a),
		newEjectCmd(a),
		newStatusCmd(a),
		newWatchCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
		newUpdateCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, _, err := settings.Load(a.opts.configPath)
	if err != nil {
		return err
	}
	if a.opts.logLevel != "" {
		cfg.Logging.Level = a.opts.logLevel
	}
	if a.opts.logFormat != "" {
		cfg.Logging.Format = a.opts.logFormat
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) streamSettings() (streaming.Settings, error) {
	policy, err := streaming.ParsePolicy(a.cfg.Stream.ReadPolicy)
	if err != nil {
		return streaming.Settings{}, err
	}
	return streaming.Settings{
		BatchSectors: a.cfg.Stream.BatchSectors,
		RetryDelay:   time.Duration(a.cfg.Stream.RetryDelayMS) * time.Millisecond,
		Policy:       policy,
		ProgressStep: a.cfg.Stream.ProgressStep,
	}, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "dvdinfo version: %s\n", version)
			return nil
		},
		DisableFlagsInUseLine: true,
	}
}

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Update dvdinfo",
		Long:  "Update dvdinfo to latest version (release builds only).",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelfUpdate(cmd.Context(), cmd)
		},
		DisableFlagsInUseLine: true,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "dvdinfo: %s\n", err.Error())
		os.Exit(1)
	}
}

func runSelfUpdate(ctx context.Context, cmd *cobra.Command) error {
	if version == "" || version == "dev" {
		return errors.New("self-update is only available in release builds")
	}

	if _, err := semver.ParseTolerant(version); err != nil {
		return fmt.Errorf("could not parse version: %w", err)
	}

	latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(repoSlug))
	if err != nil {
		return fmt.Errorf("error occurred while detecting version: %w", err)
	}
	if !found {
		return fmt.Errorf("latest version for %s/%s could not be found from github repository", repoSlug, version)
	}

	if latest.LessOrEqual(version) {
		fmt.Fprintf(cmd.OutOrStdout(), "Current binary is the latest version: %s\n", version)
		return nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}

	if err := selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe); err != nil {
		return fmt.Errorf("error occurred while updating binary: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Successfully updated to version: %s\n", latest.Version())
	return nil
}

func parsePositive(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, value)
	}
	return n, nil
}
