package main

import (
	"context"

	"github.com/franz/playlist-janitor/internal/reconcile"
	"github.com/franz/playlist-janitor/internal/util"
	"github.com/spf13/cobra"
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate [key]",
	Short: "Drop cached suggestion batches",
	Long: `Drop the cached suggestion batch of a key (default "default"), or every
batch with --all. The next suggest call recomputes it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInvalidate,
}

func init() {
	rootCmd.AddCommand(invalidateCmd)
	invalidateCmd.Flags().Bool("all", false, "Drop every cached batch")
}

func runInvalidate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	all, _ := cmd.Flags().GetBool("all")

	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if all {
		if err := a.engine.InvalidateAll(ctx); err != nil {
			return err
		}
		util.SuccessLog("Dropped every cached suggestion batch")
		return nil
	}

	key := reconcile.DefaultKey
	if len(args) == 1 {
		key = args[0]
	}
	if err := a.engine.Invalidate(ctx, key); err != nil {
		return err
	}
	util.SuccessLog("Dropped cached suggestions for %q", reconcile.CacheKey(key))
	return nil
}
