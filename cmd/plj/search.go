package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/franz/playlist-janitor/internal/match"
	"github.com/franz/playlist-janitor/internal/reconcile"
	"github.com/franz/playlist-janitor/internal/store"
	"github.com/franz/playlist-janitor/internal/util"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy-search the inventory or the playlist tracks",
	Long: `Rank indexed names against a free-text query. Every query word is looked
up in the word index and the candidates are scored by edit similarity and
word overlap.

With --against the query is scored against a single file name and the
database is not opened.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().String("population", string(store.Inventory), "Population to search: inventory or tracks")
	searchCmd.Flags().Int("limit", 10, "Maximum number of results (0 = unlimited)")
	searchCmd.Flags().Float64("threshold", match.DefaultThreshold, "Minimum score")
	searchCmd.Flags().Bool("details", false, "Show score components")
	searchCmd.Flags().Bool("json", false, "Print results as JSON")
	searchCmd.Flags().String("against", "", "Score the query against this file name only, without the index")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	popName, _ := cmd.Flags().GetString("population")
	pop, err := store.ParsePopulation(popName)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	details, _ := cmd.Flags().GetBool("details")
	asJSON, _ := cmd.Flags().GetBool("json")
	against, _ := cmd.Flags().GetString("against")
	query := strings.Join(args, " ")

	if against != "" {
		score := match.New(nil).Similarity(query, against)
		if asJSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
				"query": query, "against": against, "score": score, "band": reconcile.Band(score),
			})
		}
		fmt.Printf("%.4f %s\n", score, reconcile.Band(score))
		return nil
	}

	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	matches, err := match.New(a.index).Search(ctx, query, match.Options{
		Limit:               limit,
		Threshold:           threshold,
		Population:          pop,
		IncludeScoreDetails: details,
	})
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	}

	if len(matches) == 0 {
		util.InfoLog("No match for %q", query)
		return nil
	}

	headers := []string{"Score", "Path", "Matched"}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft}
	if pop == store.TrackRefs {
		headers = append(headers, "Playlists")
		aligns = append(aligns, alignRight)
	}
	if details {
		headers = append(headers, "Edit", "Overlap", "Coverage")
		aligns = append(aligns, alignRight, alignRight, alignRight)
	}

	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		row := []string{fmt.Sprintf("%.4f", m.Score), m.Path, strings.Join(m.MatchedWords, " ")}
		if pop == store.TrackRefs {
			n, err := playlistCount(ctx, a.db, m.Path)
			if err != nil {
				return err
			}
			row = append(row, fmt.Sprintf("%d", n))
		}
		if m.Details != nil {
			row = append(row,
				fmt.Sprintf("%.4f", m.Details.EditSimilarity),
				fmt.Sprintf("%.4f", m.Details.Overlap),
				fmt.Sprintf("%.4f", m.Details.Coverage))
		}
		rows = append(rows, row)
	}
	fmt.Println(renderTable(headers, rows, aligns))
	return nil
}

// playlistCount returns how many distinct playlists reference trackPath
func playlistCount(ctx context.Context, db *store.Store, trackPath string) (int, error) {
	refs, err := db.GetTracksByPath(ctx, trackPath)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(refs))
	for _, r := range refs {
		seen[r.PlaylistPath] = true
	}
	return len(seen), nil
}
