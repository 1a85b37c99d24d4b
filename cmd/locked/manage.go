package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/locked/internal/daemon"
	"github.com/eliteGoblin/locked/internal/domain"
	"github.com/eliteGoblin/locked/internal/policy"
	"github.com/eliteGoblin/locked/internal/usecase"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	Args:  cobra.NoArgs,
	RunE:  runProfileList,
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a profile and select it",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileAdd,
}

var profileSelectCmd = &cobra.Command{
	Use:   "select <name>",
	Short: "Select the current profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileSelect,
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Change a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileUpdate,
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileDelete,
}

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List known apps and categories",
	Args:  cobra.NoArgs,
	Run:   runTargets,
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage schedules",
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedules",
	Args:  cobra.NoArgs,
	RunE:  runScheduleList,
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add <start HH:MM> <end HH:MM>",
	Short: "Add a schedule",
	Args:  cobra.ExactArgs(2),
	RunE:  runScheduleAdd,
}

var scheduleToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Enable or disable a schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleToggle,
}

var scheduleDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleDelete,
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Change stored settings",
}

var settingsSnoozeCmd = &cobra.Command{
	Use:   "snooze",
	Short: "Change the daily snooze allowance",
	Args:  cobra.NoArgs,
	RunE:  runSettingsSnooze,
}

var (
	profileApps      []string
	profileCats      []string
	profileIcon      string
	profileAllowList bool
	profileRename    string

	scheduleName    string
	scheduleProfile string
	scheduleDays    []string

	settingsMax      int
	settingsDuration time.Duration
	settingsReset    bool
)

func init() {
	for _, c := range []*cobra.Command{profileAddCmd, profileUpdateCmd} {
		c.Flags().StringSliceVar(&profileApps, "apps", nil, "Apps to lock (comma separated)")
		c.Flags().StringSliceVar(&profileCats, "categories", nil, "Categories to lock (comma separated)")
		c.Flags().StringVar(&profileIcon, "icon", "", "Icon name")
		c.Flags().BoolVar(&profileAllowList, "allow-list", false, "Lock everything except the listed apps")
	}
	profileUpdateCmd.Flags().StringVar(&profileRename, "rename", "", "New name")

	scheduleAddCmd.Flags().StringVar(&scheduleName, "name", "", "Schedule name")
	scheduleAddCmd.Flags().StringVar(&scheduleProfile, "profile", "", "Profile to lock (default: current)")
	scheduleAddCmd.Flags().StringSliceVar(&scheduleDays, "days", nil, "Weekdays, e.g. mon,tue (default: every day)")

	settingsSnoozeCmd.Flags().IntVar(&settingsMax, "max", 0, "Snoozes allowed per day")
	settingsSnoozeCmd.Flags().DurationVar(&settingsDuration, "duration", 0, "Length of one snooze")
	settingsSnoozeCmd.Flags().BoolVar(&settingsReset, "reset", false, "Reset today's used count")

	profileCmd.AddCommand(profileListCmd, profileAddCmd, profileSelectCmd, profileUpdateCmd, profileDeleteCmd)
	scheduleCmd.AddCommand(scheduleListCmd, scheduleAddCmd, scheduleToggleCmd, scheduleDeleteCmd)
	settingsCmd.AddCommand(settingsSnoozeCmd)

	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(targetsCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runProfileList(cmd *cobra.Command, args []string) error {
	return withComponents(func(c *daemon.Components) error {
		current, _ := c.Profiles.Current()
		for _, p := range c.Profiles.List() {
			fmt.Fprintln(cmd.OutOrStdout(), daemon.FormatProfile(p, p.ID == current.ID))
		}
		return nil
	})
}

func runProfileAdd(cmd *cobra.Command, args []string) error {
	return withComponents(func(c *daemon.Components) error {
		p, err := c.AddProfile(domain.Profile{
			Name:            args[0],
			LockTargets:     profileApps,
			CategoryTargets: profileCats,
			Icon:            profileIcon,
			IsAllowListMode: profileAllowList,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), daemon.FormatProfile(p, true))
		return nil
	})
}

func runProfileSelect(cmd *cobra.Command, args []string) error {
	return withComponents(func(c *daemon.Components) error {
		p, err := c.SelectProfile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), daemon.FormatProfile(p, true))
		return nil
	})
}

func runProfileUpdate(cmd *cobra.Command, args []string) error {
	return withComponents(func(c *daemon.Components) error {
		flags := cmd.Flags()
		var u usecase.ProfileUpdate
		if flags.Changed("rename") {
			u.Name = &profileRename
		}
		if flags.Changed("apps") {
			u.LockTargets, u.SetLockTargets = profileApps, true
		}
		if flags.Changed("categories") {
			u.CategoryTargets, u.SetCategoryTargets = profileCats, true
		}
		if flags.Changed("icon") {
			u.Icon = &profileIcon
		}
		if flags.Changed("allow-list") {
			u.IsAllowListMode = &profileAllowList
		}

		updated, err := c.UpdateProfile(args[0], u)
		if err != nil {
			return err
		}
		current, _ := c.Profiles.Current()
		fmt.Fprintln(cmd.OutOrStdout(), daemon.FormatProfile(updated, current.ID == updated.ID))
		return nil
	})
}

func runProfileDelete(cmd *cobra.Command, args []string) error {
	return withComponents(func(c *daemon.Components) error {
		p, err := c.DeleteProfile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", p.Name)
		return nil
	})
}

func runTargets(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()
	registry := policy.NewRegistry()

	fmt.Fprintln(out, "\n=== Known Apps ===")
	for _, p := range registry.GetAll() {
		fmt.Fprintf(out, "\n[%s] %s (%s)\n", p.ID(), p.Name(), p.Category())
		fmt.Fprintln(out, "  Processes:")
		for _, proc := range p.ProcessPatterns() {
			fmt.Fprintf(out, "    - %s\n", proc)
		}
	}
	fmt.Fprintln(out, "\nCategories:", strings.Join([]string{policy.CategoryGames, policy.CategorySocial}, ", "))
	fmt.Fprintln(out, "==================")
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	return withComponents(func(c *daemon.Components) error {
		for _, s := range c.Schedules.List() {
			fmt.Fprintln(cmd.OutOrStdout(), daemon.FormatSchedule(s, c.ProfileName(s.ProfileID)))
		}
		return nil
	})
}

func runScheduleAdd(cmd *cobra.Command, args []string) error {
	start, err := domain.ParseTimeOfDay(args[0])
	if err != nil {
		return err
	}
	end, err := domain.ParseTimeOfDay(args[1])
	if err != nil {
		return err
	}

	return withComponents(func(c *daemon.Components) error {
		added, err := c.AddSchedule(daemon.ScheduleRequest{
			Name:    scheduleName,
			Profile: scheduleProfile,
			Start:   start,
			End:     end,
			Days:    scheduleDays,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), daemon.FormatSchedule(added, c.ProfileName(added.ProfileID)))
		return nil
	})
}

func runScheduleToggle(cmd *cobra.Command, args []string) error {
	return withComponents(func(c *daemon.Components) error {
		s, err := c.ToggleSchedule(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), daemon.FormatSchedule(s, c.ProfileName(s.ProfileID)))
		return nil
	})
}

func runScheduleDelete(cmd *cobra.Command, args []string) error {
	return withComponents(func(c *daemon.Components) error {
		if err := c.DeleteSchedule(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	})
}

func runSettingsSnooze(cmd *cobra.Command, args []string) error {
	return withComponents(func(c *daemon.Components) error {
		flags := cmd.Flags()
		var settings daemon.SnoozeSettings
		if flags.Changed("max") {
			settings.MaxPerDay = &settingsMax
		}
		if flags.Changed("duration") {
			settings.Duration = &settingsDuration
		}
		settings.ResetUsed = settingsReset

		st, err := c.UpdateSnoozeSettings(settings)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), daemon.FormatSnoozeSettings(st))
		return nil
	})
}
