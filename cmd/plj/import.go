package main

import (
	"context"
	"fmt"

	"github.com/franz/playlist-janitor/internal/util"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <playlist-or-dir>...",
	Short: "Import playlist files",
	Long: `Import M3U, M3U8, PLS and TXT playlists. Directories are searched
recursively. Re-importing a playlist replaces its stored entries.

Importing drops every cached suggestion batch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

var forgetCmd = &cobra.Command{
	Use:   "forget <playlist>...",
	Short: "Remove imported playlists from the database",
	Long:  `Forget imported playlists. The playlist files themselves are not touched.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runForget,
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(forgetCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	results, errs := a.importer.ImportAll(ctx, args)

	rows := make([][]string, 0, len(results))
	entries := 0
	for _, r := range results {
		entries += r.Entries
		rows = append(rows, []string{
			r.Playlist,
			string(r.Format),
			fmt.Sprintf("%d", r.Entries),
			fmt.Sprintf("%d", r.Indexed),
		})
	}
	if len(rows) > 0 && !util.IsQuiet() {
		fmt.Println(renderTable(
			[]string{"Playlist", "Format", "Entries", "Indexed"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
		))
	}

	for _, e := range errs {
		util.ErrorLog("%v", e)
	}
	util.SuccessLog("Imported %d playlist(s), %d entries", len(results), entries)

	unmatched, err := a.engine.Unmatched(ctx)
	if err != nil {
		return err
	}
	if len(unmatched) > 0 {
		util.InfoLog("%d track path(s) do not resolve to an inventory file", len(unmatched))
		util.InfoLog("Next step: plj suggest")
	}

	if len(results) == 0 && len(errs) > 0 {
		return fmt.Errorf("no playlist imported")
	}
	return nil
}

func runForget(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	var lastErr error
	for _, path := range args {
		if err := a.importer.Remove(ctx, path); err != nil {
			util.ErrorLog("%s: %v", path, err)
			lastErr = err
			continue
		}
		util.SuccessLog("Forgot %s", path)
	}
	return lastErr
}
