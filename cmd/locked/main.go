// Package main is the CLI entry point for locked.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/config"
	"github.com/eliteGoblin/locked/internal/daemon"
	"github.com/eliteGoblin/locked/internal/infra"
	"github.com/eliteGoblin/locked/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "locked",
	Short: "Lock distracting apps behind a physical tag",
	Long: `locked keeps a lock session over a profile of apps and categories.
Sessions start manually, on a timer, by tapping a registered tag, or from a
schedule. A limited number of snoozes per day lift the shield for a while.

"locked run" is the main process. While it runs, send it events on stdin
(lock, unlock, tap, snooze, status, "schedule add 09:00 17:00", "profile select Work",
"settings snooze --max 3", ...) instead of using one-shot commands.`,
	Version:      Version,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the main process",
	Long: `Runs the main process: schedule evaluation, the snooze countdown, the
snooze request relay and the heartbeat. Events are read line by line from stdin.`,
	RunE: runMain,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the lock state",
	RunE:  runStatus,
}

var authorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Grant (or revoke) permission to apply shields",
	RunE:  runAuthorize,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var shieldActionCmd = &cobra.Command{
	Use:   "shield-action",
	Short: "Extension entry points for the shield button",
}

var shieldSnoozeCmd = &cobra.Command{
	Use:   "snooze",
	Short: "Request a snooze from the main process",
	Args:  cobra.NoArgs,
	RunE:  runShieldSnooze,
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Extension entry points for the activity monitor",
}

var intervalEndCmd = &cobra.Command{
	Use:   "interval-end",
	Short: "Signal that the snooze interval ended",
	Args:  cobra.NoArgs,
	RunE:  runIntervalEnd,
}

var (
	configPath string
	jsonOutput bool
	revoke     bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (YAML)")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	authorizeCmd.Flags().BoolVar(&revoke, "revoke", false, "Deny instead of approve")

	shieldActionCmd.AddCommand(shieldSnoozeCmd)
	monitorCmd.AddCommand(intervalEndCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(authorizeCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(shieldActionCmd)
	rootCmd.AddCommand(monitorCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// withComponents opens the stores for a one-shot command, reconciles state
// and closes everything afterwards.
func withComponents(fn func(c *daemon.Components) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := cfg.Log.NewConsoleLogger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	c, err := daemon.Bootstrap(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close stores", zap.Error(err))
		}
	}()
	c.Resume()
	return fn(c)
}

func withExtension(fn func(ext *daemon.Extension) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := cfg.Log.NewConsoleLogger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ext, err := daemon.BootstrapExtension(cfg, logger)
	if err != nil {
		return err
	}
	defer ext.Close()
	return fn(ext)
}

func runMain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	c, err := daemon.Bootstrap(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	app := daemon.NewApp(c, daemon.AppConfigFrom(cfg, Version))

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	go readEvents(ctx, app, cmd)

	logger.Info("main process starting",
		zap.String("version", Version),
		zap.String("data_dir", cfg.Paths.DataDir),
		zap.String("shared_dir", cfg.Paths.SharedDir))

	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// readEvents feeds stdin lines to the running app and prints the replies.
func readEvents(ctx context.Context, app *daemon.App, cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		reply, err := app.Handle(ctx, scanner.Text())
		switch {
		case err != nil:
			fmt.Fprintf(out, "error: %v\n", err)
		case reply != "":
			fmt.Fprintln(out, reply)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withComponents(func(c *daemon.Components) error {
		st := c.Status()
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, "\n=== locked Status ===")
		fmt.Fprintln(out, daemon.FormatStatus(st))
		if st.MainAlive {
			fmt.Fprintln(out, "Main process: RUNNING")
		} else {
			fmt.Fprintln(out, "Main process: NOT RUNNING")
		}
		if st.Snooze.IsSnoozed {
			fmt.Fprintf(out, "Snooze remaining: %s\n", st.Snooze.SnoozeTimeRemaining.Round(time.Second))
		}
		fmt.Fprintln(out, "=====================")
		return nil
	})
}

func runAuthorize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	center := infra.NewFileAuthorizationCenter(cfg.Paths.DataDir)
	if revoke {
		err = center.Revoke()
	} else {
		err = center.Approve()
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "authorization: %s\n", center.Status())
	return nil
}

func runShieldSnooze(cmd *cobra.Command, args []string) error {
	return withExtension(func(ext *daemon.Extension) error {
		outcome, err := ext.ShieldAction.RequestSnooze()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), outcome)
		if outcome == usecase.ActionDenied {
			return fmt.Errorf("no snoozes remaining today")
		}
		return nil
	})
}

func runIntervalEnd(cmd *cobra.Command, args []string) error {
	return withExtension(func(ext *daemon.Extension) error {
		applied, err := ext.Monitor.IntervalDidEnd()
		if err != nil {
			return err
		}
		if applied {
			fmt.Fprintln(cmd.OutOrStdout(), "shield re-applied")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "no snooze to end")
		}
		return nil
	})
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		b, _ := json.Marshal(map[string]string{
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
		})
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "locked %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
