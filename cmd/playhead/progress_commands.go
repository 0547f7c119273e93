package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"playhead/internal/config"
	"playhead/internal/settings"
)

func newProgressCommand(ctx *commandContext) *cobra.Command {
	progressCmd := &cobra.Command{
		Use:   "progress",
		Short: "Inspect or clear saved playback progress",
	}

	progressCmd.AddCommand(newProgressShowCommand(ctx))
	progressCmd.AddCommand(newProgressClearCommand(ctx))

	return progressCmd
}

func newProgressShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <folder>",
		Short: "Show saved progress for the files in a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve folder path: %w", err)
			}
			return ctx.withStore(func(_ *config.Config, store *settings.Store) error {
				progress := store.AllProgress(context.Background(), folder)
				out := cmd.OutOrStdout()
				if len(progress) == 0 {
					fmt.Fprintf(out, "No saved progress for %s\n", folder)
					return nil
				}

				names := make([]string, 0, len(progress))
				for name := range progress {
					names = append(names, name)
				}
				sort.Strings(names)

				rows := make([][]string, 0, len(names))
				for _, name := range names {
					rows = append(rows, []string{name, formatProgress(progress[name])})
				}
				fmt.Fprintln(out, renderTable([]string{"File", "Progress"}, rows,
					[]columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newProgressClearCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear saved progress and folder settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all {
				return fmt.Errorf("progress clear removes every folder record; pass --all to confirm")
			}
			return ctx.withStore(func(_ *config.Config, store *settings.Store) error {
				removed, err := store.ClearAll(context.Background())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d folder record(s)\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Confirm clearing all folder records")
	return cmd
}
