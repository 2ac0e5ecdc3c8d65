package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/franz/playlist-janitor/internal/store"
	"github.com/franz/playlist-janitor/internal/util"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure plj can operate correctly.

This command checks:
- SQLite availability
- Database accessibility and integrity
- Whether the database sits on a network filesystem
- Read access to the music directory
- Write access to the playlist directory (apply rewrites playlists in place)
- Disk space next to the database`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().String("music", "", "Music directory to check (optional)")
	doctorCmd.Flags().String("playlists", "", "Playlist directory to check (optional)")
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	setupLogging()
	util.InfoLog("=== plj doctor ===")
	util.InfoLog("")

	dbPath := GetConfigString("db", "plj-state.db")
	results := []checkResult{
		checkSQLite(),
		checkDatabase(dbPath),
		checkNetworkDB(GetConfigString("network-db", "auto"), dbPath),
	}

	if music, _ := cmd.Flags().GetString("music"); music != "" {
		results = append(results, checkMusicDirectory(music))
	}
	if lists, _ := cmd.Flags().GetString("playlists"); lists != "" {
		results = append(results, checkPlaylistDirectory(lists))
	}
	results = append(results, checkDiskSpace(filepath.Dir(dbPath)))

	hasErrors := false
	hasWarnings := false
	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		switch {
		case r.error:
			util.ErrorLog("%s", line)
		case r.warning:
			util.WarnLog("%s", line)
		default:
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("❌ Some critical checks failed. Please resolve errors before running plj.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("⚠️  Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("✅ All checks passed!")
	}
	return nil
}

// checkSQLite verifies the embedded SQLite answers
func checkSQLite() checkResult {
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{name: "SQLite", error: true, message: "unable to determine version"}
	}
	return checkResult{name: "SQLite", message: fmt.Sprintf("version %s (built-in)", version)}
}

// checkDatabase verifies database file accessibility and integrity
func checkDatabase(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{name: "Database", warning: true, message: "no database path specified (use --db flag or config)"}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{name: "Database", message: fmt.Sprintf("%s (will be created on first run)", dbPath)}
		}
		return checkResult{name: "Database", error: true, message: fmt.Sprintf("cannot access %s: %v", dbPath, err)}
	}
	if !info.Mode().IsRegular() {
		return checkResult{name: "Database", error: true, message: fmt.Sprintf("%s is not a regular file", dbPath)}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{name: "Database", error: true, message: fmt.Sprintf("cannot open %s: %v", dbPath, err)}
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return checkResult{name: "Database", error: true, message: fmt.Sprintf("integrity check failed: %v", err)}
	}

	stats, err := db.GetStats(context.Background())
	if err != nil {
		return checkResult{name: "Database", error: true, message: err.Error()}
	}
	return checkResult{
		name: "Database",
		message: fmt.Sprintf("%s (%s, %d playlists, %d inventory files)",
			dbPath, humanize.Bytes(uint64(info.Size())), stats.Playlists, stats.MusicFiles),
	}
}

// checkNetworkDB reports how the network-db setting resolves
func checkNetworkDB(mode, dbPath string) checkResult {
	network, info, err := util.ResolveNetworkDB(mode, dbPath)
	if err != nil {
		return checkResult{name: "Network database", error: true, message: err.Error()}
	}
	switch {
	case info != nil && info.IsNetwork:
		return checkResult{
			name:    "Network database",
			warning: true,
			message: fmt.Sprintf("database on %s mount %s, network pragmas enabled", info.Protocol, info.MountPath),
		}
	case network:
		return checkResult{name: "Network database", message: "network pragmas forced on"}
	default:
		return checkResult{name: "Network database", message: "local filesystem"}
	}
}

// checkMusicDirectory verifies the music directory is readable
func checkMusicDirectory(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		return checkResult{name: "Music directory", error: true, message: fmt.Sprintf("cannot access %s: %v", path, err)}
	}
	if !info.IsDir() {
		return checkResult{name: "Music directory", error: true, message: fmt.Sprintf("%s is not a directory", path)}
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return checkResult{name: "Music directory", error: true, message: fmt.Sprintf("cannot read %s: %v", path, err)}
	}
	return checkResult{name: "Music directory", message: fmt.Sprintf("%s (%d entries)", path, len(entries))}
}

// checkPlaylistDirectory verifies playlists can be rewritten in place,
// which needs a temporary file next to them
func checkPlaylistDirectory(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		return checkResult{name: "Playlist directory", error: true, message: fmt.Sprintf("cannot access %s: %v", path, err)}
	}
	if !info.IsDir() {
		return checkResult{name: "Playlist directory", error: true, message: fmt.Sprintf("%s is not a directory", path)}
	}

	testFile := filepath.Join(path, ".plj_write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return checkResult{name: "Playlist directory", error: true, message: fmt.Sprintf("cannot write to %s: %v", path, err)}
	}
	f.Close()
	os.Remove(testFile)

	return checkResult{name: "Playlist directory", message: fmt.Sprintf("%s (writable)", path)}
}

// checkDiskSpace verifies there is room for the database to grow
func checkDiskSpace(path string) checkResult {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return checkResult{name: "Disk space", warning: true, message: fmt.Sprintf("cannot determine disk space: %v", err)}
	}

	avail := stat.Bavail * uint64(stat.Bsize)
	// Warn below 1GB
	if avail < 1<<30 {
		return checkResult{name: "Disk space", warning: true, message: fmt.Sprintf("%s available (low space!)", humanize.Bytes(avail))}
	}
	return checkResult{name: "Disk space", message: fmt.Sprintf("%s available", humanize.Bytes(avail))}
}
