package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"playhead/internal/config"
	"playhead/internal/playlist"
	"playhead/internal/settings"
)

func newPlaylistCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "playlist <folder>",
		Short: "List the playable files in a folder with saved progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve folder path: %w", err)
			}
			list, err := playlist.OpenFolder(folder)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *settings.Store) error {
				progress := store.AllProgress(context.Background(), folder)
				rows := playlistRows(list.Files(), progress)
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable([]string{"#", "File", "Progress"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func playlistRows(files []string, progress map[string]float64) [][]string {
	rows := make([][]string, 0, len(files))
	for i, file := range files {
		name := filepath.Base(file)
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			name,
			formatProgress(progress[name]),
		})
	}
	return rows
}

func formatProgress(pct float64) string {
	if pct <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", pct)
}
