package main

import (
	"context"
	"fmt"
	"time"

	"github.com/franz/playlist-janitor/internal/util"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply cached suggestions to the database and the playlist files",
	Long: `Apply the suggestions selected by the filters: the stale track path is
replaced by the suggested inventory file in the database and in every
playlist file that contains it. Line endings, comments and directives of
the playlist files are preserved.

Without --yes nothing is changed and the selection is only listed.`,
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)
	addFilterFlags(applyCmd, 0)
	applyCmd.Flags().Bool("dry-run", false, "List the selection without applying it")
	applyCmd.Flags().BoolP("yes", "y", false, "Apply without listing first")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	filters := filtersFromFlags(cmd)
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	yes, _ := cmd.Flags().GetBool("yes")

	bar := newProgressBar("Matching")
	a, err := openApp(bar.Func())
	if err != nil {
		return err
	}
	defer a.Close()

	if dryRun || !yes {
		res, err := a.engine.GenerateSuggestions(ctx, filters)
		bar.Finish()
		if err != nil {
			return err
		}
		printSuggestions(res.Suggestions)
		util.InfoLog("%d suggestion(s) selected", len(res.Suggestions))
		if !dryRun && len(res.Suggestions) > 0 {
			util.InfoLog("Re-run with --yes to apply them")
		}
		return nil
	}

	result, err := a.engine.ApplyCached(ctx, filters)
	bar.Finish()
	if err != nil {
		return err
	}

	for _, e := range result.Errors {
		util.ErrorLog("%v", e)
	}
	util.SuccessLog("Run %s: %d applied, %d failed in %v",
		result.RunID, result.Applied, result.Failed, result.Duration.Round(time.Millisecond))
	util.InfoLog("  Track rows updated: %d", result.TracksUpdated)
	util.InfoLog("  Playlist files rewritten: %d", result.PlaylistFilesUpdated)

	if result.Failed > 0 {
		return fmt.Errorf("%d suggestion(s) could not be fully applied", result.Failed)
	}
	return nil
}
