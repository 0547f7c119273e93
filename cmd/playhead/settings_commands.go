package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"playhead/internal/config"
	"playhead/internal/settings"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect playback settings",
	}

	settingsCmd.AddCommand(newSettingsShowCommand(ctx))
	settingsCmd.AddCommand(newSettingsNeverAskCommand(ctx))

	return settingsCmd
}

func newSettingsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show [folder]",
		Short: "Show global settings, and folder skip values when a folder is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *settings.Store) error {
				out := cmd.OutOrStdout()
				global := store.Global(context.Background())
				fmt.Fprintf(out, "Speed:     %.2fx\n", global.Speed)
				fmt.Fprintf(out, "Seek step: %ds\n", global.SeekStep)
				fmt.Fprintf(out, "Never ask default player: %s\n",
					yesNo(store.NeverAskDefaultPlayer(context.Background())))

				if len(args) == 0 {
					return nil
				}
				folder, err := config.ExpandPath(args[0])
				if err != nil {
					return fmt.Errorf("resolve folder path: %w", err)
				}
				fs := store.FolderSettingsFor(context.Background(), folder)
				fmt.Fprintf(out, "\nFolder: %s\n", fs.FolderPath)
				fmt.Fprintf(out, "Skip intro: %ds\n", fs.SkipIntro)
				fmt.Fprintf(out, "Skip outro: %ds\n", fs.SkipOutro)
				fmt.Fprintf(out, "Files with progress: %d\n", len(fs.Progress))
				return nil
			})
		},
	}
}

func newSettingsNeverAskCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "never-ask <true|false>",
		Short: "Set whether the default-player prompt is suppressed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseBool(args[0])
			if err != nil {
				return fmt.Errorf("invalid value %q (use true or false)", args[0])
			}
			return ctx.withStore(func(_ *config.Config, store *settings.Store) error {
				store.SetNeverAskDefaultPlayer(context.Background(), value)
				fmt.Fprintf(cmd.OutOrStdout(), "Never ask default player: %s\n", yesNo(value))
				return nil
			})
		},
	}
}
