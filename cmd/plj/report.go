package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/franz/playlist-janitor/internal/reconcile"
	"github.com/franz/playlist-janitor/internal/report"
	"github.com/franz/playlist-janitor/internal/util"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a summary report from the database and event logs",
	Long: `Generate a summary report in Markdown format.

The report includes:
- Playlist and inventory counts
- Word index builds
- The cached suggestions of one key, per band
- Recent apply runs
- Top errors of an event log

The report is saved to <artifacts>/reports/<timestamp>/summary.md`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("out", "", "Output directory for report (default: <artifacts>/reports/<timestamp>)")
	reportCmd.Flags().String("event-log", "", "Path to event log file (optional)")
	reportCmd.Flags().String("key", reconcile.DefaultKey, "Cache key whose suggestions are listed")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	setupLogging()
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	eventLogPath, _ := cmd.Flags().GetString("event-log")
	key, _ := cmd.Flags().GetString("key")

	util.InfoLog("Analyzing data...")
	summary, err := report.GenerateSummaryReport(ctx, db, reconcile.CacheKey(key), eventLogPath)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	outputDir, _ := cmd.Flags().GetString("out")
	if outputDir == "" {
		timestamp := time.Now().Format("20060102-150405")
		outputDir = filepath.Join(GetConfigString("artifacts", "artifacts"), "reports", timestamp)
	}
	outputPath := filepath.Join(outputDir, "summary.md")

	if err := report.WriteMarkdownReport(summary, outputPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	util.SuccessLog("Report saved to: %s", outputPath)
	util.InfoLog("  Playlists: %d", summary.Stats.Playlists)
	util.InfoLog("  Unmatched tracks: %d", summary.Stats.UnmatchedTracks)
	if summary.Snapshot != nil {
		util.InfoLog("  Cached suggestions (%s): %d", summary.CacheKey, summary.Snapshot.Total)
	}
	if len(summary.TopErrors) > 0 {
		util.WarnLog("  Distinct errors: %d", len(summary.TopErrors))
	}
	return nil
}
