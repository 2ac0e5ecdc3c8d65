package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/playlist-janitor/internal/store"
	"github.com/franz/playlist-janitor/internal/util"
	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild [tracks|inventory]",
	Short: "Rebuild the word index from scratch",
	Long: `Clear and re-derive the word index of one population, or of both when
none is given. Another plj process already rebuilding the same population
is detected through a lock file next to the database; that population is
skipped and the command exits with an error once the others are done.

A rebuild drops every cached suggestion batch.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"tracks", "inventory"},
	RunE:      runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	pops := store.Populations
	if len(args) == 1 {
		pop, err := store.ParsePopulation(args[0])
		if err != nil {
			return err
		}
		pops = []store.Population{pop}
	}

	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	var busy []string
	for _, pop := range pops {
		bar := newProgressBar(fmt.Sprintf("Indexing %s", pop))
		result, err := a.index.RebuildAll(ctx, pop, bar.Func())
		bar.Finish()
		if err != nil {
			return fmt.Errorf("rebuild of %s failed: %w", pop, err)
		}

		if result.InProgress {
			util.WarnLog("%s: another process is rebuilding this index, skipped", pop)
			busy = append(busy, string(pop))
			continue
		}
		util.SuccessLog("%s: %s owners, %s words in %v",
			pop,
			humanize.Comma(int64(result.Owners)),
			humanize.Comma(int64(result.WordsWritten)),
			result.Duration.Round(time.Millisecond))
		if result.Failed > 0 {
			util.WarnLog("%s: %d owner(s) skipped, see the event log", pop, result.Failed)
		}
	}

	if len(busy) > 0 {
		return fmt.Errorf("%w: %s", util.ErrComputeInProgress, strings.Join(busy, ", "))
	}
	return nil
}
