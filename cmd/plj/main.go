package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/franz/playlist-janitor/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "plj",
		Short: "Playlist Janitor - repair playlists whose tracks moved or were renamed",
		Long: `plj (Playlist Janitor) keeps playlists pointing at files that exist.
It imports M3U/M3U8/PLS/TXT playlists, indexes the words of every track
name and of every file in your music inventory, suggests fuzzy replacements
for tracks that no longer resolve and rewrites the playlist files once you
accept them.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/plj.yaml)")
	rootCmd.PersistentFlags().String("db", "plj-state.db", "state database file")
	rootCmd.PersistentFlags().String("artifacts", "artifacts", "directory for event logs and reports")
	rootCmd.PersistentFlags().String("network-db", "auto", "network-optimized database pragmas: auto, on or off")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")

	// Bind flags to viper
	for _, name := range []string{"db", "artifacts", "network-db", "verbose", "quiet"} {
		viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("plj")
		viper.SetConfigType("yaml")
	}

	// PLJ_NETWORK_DB, PLJ_BATCH_SIZE...
	viper.SetEnvPrefix("PLJ")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.InfoLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
