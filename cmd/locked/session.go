package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/locked/internal/daemon"
	"github.com/eliteGoblin/locked/internal/usecase"
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Start a lock session with the current profile",
	Args:  cobra.NoArgs,
	RunE:  runLock,
}

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "End the lock session",
	Args:  cobra.NoArgs,
	RunE:  runUnlock,
}

var tapCmd = &cobra.Command{
	Use:   "tap",
	Short: "Read the tag and toggle the lock",
	Args:  cobra.NoArgs,
	RunE:  runTap,
}

var registerTagCmd = &cobra.Command{
	Use:   "register-tag",
	Short: "Write the unlock phrase to a tag",
	Args:  cobra.NoArgs,
	RunE:  runRegisterTag,
}

var snoozeCmd = &cobra.Command{
	Use:   "snooze [duration]",
	Short: "Lift the shield for a while (uses one of today's snoozes)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSnooze,
}

var snoozeEndCmd = &cobra.Command{
	Use:   "end",
	Short: "End the running snooze",
	Args:  cobra.NoArgs,
	RunE:  runSnoozeEnd,
}

var (
	lockProfile string
	lockFor     time.Duration
	tapTimeout  time.Duration
)

func init() {
	lockCmd.Flags().StringVar(&lockProfile, "profile", "", "Profile to select before locking")
	lockCmd.Flags().DurationVar(&lockFor, "for", 0, "End the lock automatically after this long")
	tapCmd.Flags().DurationVar(&tapTimeout, "timeout", 10*time.Second, "How long to wait for a tag")
	registerTagCmd.Flags().DurationVar(&tapTimeout, "timeout", 10*time.Second, "How long to wait for a tag")

	snoozeCmd.AddCommand(snoozeEndCmd)

	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(tapCmd)
	rootCmd.AddCommand(registerTagCmd)
	rootCmd.AddCommand(snoozeCmd)
}

func runLock(cmd *cobra.Command, args []string) error {
	return withComponents(func(c *daemon.Components) error {
		var (
			ok  bool
			err error
		)
		if lockFor > 0 {
			ok, err = c.LockFor(lockProfile, lockFor)
		} else {
			ok, err = c.Lock(lockProfile)
		}
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("lock not started (already locked or not authorized)")
		}
		fmt.Fprintln(cmd.OutOrStdout(), daemon.FormatStatus(c.Status()))
		return nil
	})
}

func runUnlock(cmd *cobra.Command, args []string) error {
	return withComponents(func(c *daemon.Components) error {
		ok, err := c.Unlock()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("not locked")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "unlocked")
		return nil
	})
}

func runTap(cmd *cobra.Command, args []string) error {
	return withComponents(func(c *daemon.Components) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), tapTimeout)
		defer cancel()

		result, err := c.Tap(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result)
		return nil
	})
}

func runRegisterTag(cmd *cobra.Command, args []string) error {
	return withComponents(func(c *daemon.Components) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), tapTimeout)
		defer cancel()

		if err := c.RegisterTag(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "tag registered")
		return nil
	})
}

func runSnooze(cmd *cobra.Command, args []string) error {
	var d time.Duration
	if len(args) == 1 {
		parsed, err := time.ParseDuration(args[0])
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", args[0], err)
		}
		d = parsed
	}
	return withComponents(func(c *daemon.Components) error {
		outcome := c.StartSnooze(d)
		fmt.Fprintln(cmd.OutOrStdout(), outcome)
		if outcome != usecase.SnoozeStarted {
			return fmt.Errorf("snooze not started: %s", outcome)
		}
		return nil
	})
}

func runSnoozeEnd(cmd *cobra.Command, args []string) error {
	return withComponents(func(c *daemon.Components) error {
		if !c.EndSnooze() {
			return fmt.Errorf("no snooze running")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "snooze ended")
		return nil
	})
}
