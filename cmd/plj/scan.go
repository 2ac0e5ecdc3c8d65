package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/franz/playlist-janitor/internal/scan"
	"github.com/franz/playlist-janitor/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var scanCmd = &cobra.Command{
	Use:   "scan <music-dir>...",
	Short: "Scan music directories into the inventory",
	Long: `Walk one or more music directories and record every audio file in the
inventory. The words of each file name are indexed so that playlist
tracks can be matched against them.

Rescanning is idempotent. With --prune, inventory files under a scanned
directory that no longer exist are removed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Int("concurrency", 4, "Concurrent file readers")
	scanCmd.Flags().Bool("tags", false, "Read artist/title tags")
	scanCmd.Flags().Bool("prune", false, "Remove inventory files that disappeared")
	scanCmd.Flags().StringSlice("ext", nil, "Additional audio extensions (e.g. .xm)")
	scanCmd.Flags().Bool("nas-mode", false, "Tune for network storage (default: auto-detect)")

	viper.BindPFlag("concurrency", scanCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("extensions", scanCmd.Flags().Lookup("ext"))
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	readTags, _ := cmd.Flags().GetBool("tags")
	prune, _ := cmd.Flags().GetBool("prune")

	// Only an explicit --nas-mode overrides detection
	var nasMode *bool
	if cmd.Flags().Changed("nas-mode") {
		v, _ := cmd.Flags().GetBool("nas-mode")
		nasMode = &v
	}

	failed := 0
	for _, root := range args {
		tuning := util.AutoTuneForPath(root, nasMode, GetConfigInt("concurrency", 4))
		util.DebugLog("%s", util.FormatNASSettings(tuning))

		scanner := scan.New(&scan.Config{
			Store:          a.db,
			Index:          a.index,
			Logger:         a.logger,
			AdditionalExts: GetConfigStringSlice("extensions"),
			Concurrency:    tuning.Concurrency,
			BatchSize:      GetConfigInt("batch-size", 0),
			ReadTags:       readTags,
			Prune:          prune,
		})

		result, err := scanner.Scan(ctx, root)
		if err != nil {
			return fmt.Errorf("scan of %s failed: %w", root, err)
		}

		util.InfoLog("  Files indexed: %s", humanize.Comma(int64(result.FilesIndexed)))
		util.InfoLog("  Words written: %s", humanize.Comma(int64(result.WordsWritten)))
		if readTags {
			util.InfoLog("  Tagged files: %d", result.TagsRead)
		}
		if result.Pruned > 0 {
			util.InfoLog("  Pruned: %d", result.Pruned)
		}
		for _, e := range result.Errors {
			util.WarnLog("  %v", e)
		}
		failed += len(result.Errors)
	}

	count, err := a.db.CountMusicFiles(ctx)
	if err == nil {
		util.InfoLog("Inventory now holds %s files", humanize.Comma(int64(count)))
	}
	if failed > 0 {
		util.WarnLog("%d file(s) could not be indexed", failed)
	}

	util.InfoLog("")
	util.InfoLog("Next step: plj import <playlist-dir>")
	return nil
}
