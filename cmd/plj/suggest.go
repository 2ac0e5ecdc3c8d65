package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/playlist-janitor/internal/reconcile"
	"github.com/franz/playlist-janitor/internal/store"
	"github.com/franz/playlist-janitor/internal/util"
	"github.com/spf13/cobra"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest inventory replacements for unmatched playlist tracks",
	Long: `Search the inventory for every playlist track that does not resolve to an
inventory file and list the best candidate of each.

Suggestions are cached under a key (default "default"). Later calls with
the same key return the cached batch until an import, a rebuild or an
explicit invalidation drops it. Use --refresh to recompute.`,
	RunE: runSuggest,
}

func init() {
	rootCmd.AddCommand(suggestCmd)
	addFilterFlags(suggestCmd, 50)
	suggestCmd.Flags().Bool("refresh", false, "Drop the cached batch and recompute")
	suggestCmd.Flags().Bool("json", false, "Print the result as JSON")
}

// addFilterFlags registers the snapshot filter flags shared by suggest and apply
func addFilterFlags(cmd *cobra.Command, defaultLimit int) {
	cmd.Flags().String("key", reconcile.DefaultKey, "Cache key of the suggestion batch")
	cmd.Flags().String("type", "", "Only this band: exact, high, medium or low")
	cmd.Flags().Float64("min", 0, "Minimum similarity score")
	cmd.Flags().Int("limit", defaultLimit, "Maximum number of suggestions (0 = all)")
	cmd.Flags().Int("offset", 0, "Skip this many suggestions")
}

func filtersFromFlags(cmd *cobra.Command) reconcile.Filters {
	key, _ := cmd.Flags().GetString("key")
	band, _ := cmd.Flags().GetString("type")
	minScore, _ := cmd.Flags().GetFloat64("min")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	return reconcile.Filters{
		Key:           key,
		Type:          store.MatchType(band),
		MinSimilarity: minScore,
		Limit:         limit,
		Offset:        offset,
	}
}

func runSuggest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	filters := filtersFromFlags(cmd)
	refresh, _ := cmd.Flags().GetBool("refresh")
	asJSON, _ := cmd.Flags().GetBool("json")

	bar := newProgressBar("Matching")
	a, err := openApp(bar.Func())
	if err != nil {
		return err
	}
	defer a.Close()

	if refresh {
		if err := a.engine.Invalidate(ctx, filters.Key); err != nil {
			return err
		}
	}

	res, err := a.engine.GenerateSuggestions(ctx, filters)
	bar.Finish()
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	printSuggestions(res.Suggestions)

	source := "computed"
	if res.Cached {
		source = fmt.Sprintf("cached %s", humanize.Time(res.CachedAt))
	}
	util.InfoLog("Key %q (%s, threshold %.2f): %d suggestion(s) in total, %d exact, %d high, %d medium, %d low",
		res.Key, source, a.engine.Threshold(), res.Stats.Total, res.Stats.Exact, res.Stats.High, res.Stats.Medium, res.Stats.Low)
	if res.Total > len(res.Suggestions) {
		util.InfoLog("Showing %d of %d matching the filters (--offset/--limit)", len(res.Suggestions), res.Total)
	}
	util.DebugLog("Took %v", res.Duration.Round(time.Millisecond))

	if len(res.Suggestions) > 0 {
		util.InfoLog("")
		util.InfoLog("Next step: plj apply --key %s --type exact --dry-run", res.Key)
	}
	return nil
}

func printSuggestions(suggestions []store.Suggestion) {
	if len(suggestions) == 0 || util.IsQuiet() {
		return
	}

	rows := make([][]string, 0, len(suggestions))
	for _, sg := range suggestions {
		rows = append(rows, []string{
			fmt.Sprintf("%.4f", sg.Score),
			string(sg.MatchType),
			sg.TrackPath,
			sg.MusicPath,
		})
	}
	fmt.Println(renderTable(
		[]string{"Score", "Band", "Playlist Entry", "Replacement"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	))
}
