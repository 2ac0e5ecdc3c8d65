package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/franz/playlist-janitor/internal/store"
	"github.com/franz/playlist-janitor/internal/util"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database contents, index builds and cached suggestions",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().Int("runs", 5, "Number of recent apply runs to list")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	runs, _ := cmd.Flags().GetInt("runs")

	setupLogging()
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.GetStats(ctx)
	if err != nil {
		return err
	}

	size := "n/a"
	if info, err := os.Stat(db.Path()); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}

	fmt.Println(renderTable(
		[]string{"Metric", "Value"},
		[][]string{
			{"Database", fmt.Sprintf("%s (%s)", db.Path(), size)},
			{"Playlists", humanize.Comma(int64(stats.Playlists))},
			{"Playlist entries", humanize.Comma(int64(stats.TrackRows))},
			{"Distinct track paths", humanize.Comma(int64(stats.TrackPaths))},
			{"Unmatched tracks", humanize.Comma(int64(stats.UnmatchedTracks))},
			{"Inventory files", humanize.Comma(int64(stats.MusicFiles))},
			{"Track words", humanize.Comma(int64(stats.TrackWords))},
			{"Inventory words", humanize.Comma(int64(stats.MusicWords))},
			{"Cached suggestion batches", fmt.Sprintf("%d", stats.Snapshots)},
			{"Apply runs", fmt.Sprintf("%d", stats.ApplyRuns)},
		},
		[]columnAlignment{alignLeft, alignRight},
	))

	buildRows := [][]string{}
	for _, pop := range store.Populations {
		b, err := db.GetIndexBuild(ctx, pop)
		if err != nil {
			return err
		}
		if b == nil {
			buildRows = append(buildRows, []string{string(pop), "-", "-", "-", "never"})
			continue
		}
		buildRows = append(buildRows, []string{
			string(pop),
			humanize.Comma(int64(b.Owners)),
			humanize.Comma(int64(b.WordsWritten)),
			fmt.Sprintf("%d", b.Failed),
			humanize.Time(b.CompletedAt),
		})
	}
	fmt.Println(renderTable(
		[]string{"Index", "Owners", "Words", "Failed", "Last Rebuild"},
		buildRows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))

	keys, err := db.ListSnapshotKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		rows := make([][]string, 0, len(keys))
		for _, key := range keys {
			snap, err := db.GetSnapshot(ctx, key)
			if err != nil || snap == nil {
				continue
			}
			rows = append(rows, []string{
				key,
				humanize.Time(snap.CreatedAt),
				fmt.Sprintf("%d", snap.Total),
				fmt.Sprintf("%d", snap.Exact),
				fmt.Sprintf("%d", snap.High),
				fmt.Sprintf("%d", snap.Medium),
			})
		}
		fmt.Println(renderTable(
			[]string{"Cache Key", "Computed", "Total", "Exact", "High", "Medium"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
		))
	}

	if runs > 0 {
		recent, err := db.ListApplyRuns(ctx, runs)
		if err != nil {
			return err
		}
		if len(recent) > 0 {
			rows := make([][]string, 0, len(recent))
			for _, r := range recent {
				rows = append(rows, []string{
					r.RunID,
					r.CacheKey,
					humanize.Time(r.StartedAt),
					fmt.Sprintf("%d", r.Applied),
					fmt.Sprintf("%d", r.Failed),
					fmt.Sprintf("%d", r.PlaylistFilesUpdated),
				})
			}
			fmt.Println(renderTable(
				[]string{"Run", "Key", "When", "Applied", "Failed", "Files"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))
		}
	}

	if stats.UnmatchedTracks > 0 && stats.MusicFiles == 0 {
		util.WarnLog("The inventory is empty. Run: plj scan <music-dir>")
	}
	return nil
}
