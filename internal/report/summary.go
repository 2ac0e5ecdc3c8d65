package report

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/playlist-janitor/internal/store"
)

// SummaryReport represents a complete summary report
type SummaryReport struct {
	GeneratedAt time.Time

	Stats       store.Stats
	IndexBuilds []*store.IndexBuild

	// Suggestions of one cached snapshot, nil when the key has none
	CacheKey   string
	Snapshot   *store.SuggestionSnapshot
	TopPerBand int
	ApplyRuns  []*store.ApplyRun

	TopErrors []ErrorSummary

	DatabasePath string
	EventLogPath string
}

// ErrorSummary represents an error with its count
type ErrorSummary struct {
	Error string
	Count int
}

// GenerateSummaryReport collects the report from the database and, when
// eventLogPath is set, the error events of that log
func GenerateSummaryReport(ctx context.Context, db *store.Store, cacheKey, eventLogPath string) (*SummaryReport, error) {
	report := &SummaryReport{
		GeneratedAt:  time.Now(),
		CacheKey:     cacheKey,
		TopPerBand:   10,
		DatabasePath: db.Path(),
		EventLogPath: eventLogPath,
		TopErrors:    make([]ErrorSummary, 0),
	}

	stats, err := db.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	report.Stats = *stats

	for _, pop := range store.Populations {
		build, err := db.GetIndexBuild(ctx, pop)
		if err != nil {
			return nil, err
		}
		if build != nil {
			report.IndexBuilds = append(report.IndexBuilds, build)
		}
	}

	if cacheKey != "" {
		snap, err := db.GetSnapshot(ctx, cacheKey)
		if err != nil {
			return nil, err
		}
		report.Snapshot = snap
	}

	runs, err := db.ListApplyRuns(ctx, 10)
	if err != nil {
		return nil, err
	}
	report.ApplyRuns = runs

	if eventLogPath != "" {
		report.TopErrors, err = gatherTopErrors(eventLogPath, 10)
		if err != nil {
			return nil, err
		}
	}

	return report, nil
}

// gatherTopErrors counts the error messages of an event log, most frequent first
func gatherTopErrors(path string, limit int) ([]ErrorSummary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer file.Close()

	errorCounts := make(map[string]int)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		if ev.Level == LevelError && ev.Error != "" {
			errorCounts[ev.Error]++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}

	errors := make([]ErrorSummary, 0, len(errorCounts))
	for msg, count := range errorCounts {
		errors = append(errors, ErrorSummary{Error: msg, Count: count})
	}

	sort.Slice(errors, func(i, j int) bool {
		if errors[i].Count != errors[j].Count {
			return errors[i].Count > errors[j].Count
		}
		return errors[i].Error < errors[j].Error
	})

	if len(errors) > limit {
		errors = errors[:limit]
	}
	return errors, nil
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(RenderMarkdown(report)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// RenderMarkdown renders the summary report as Markdown
func RenderMarkdown(report *SummaryReport) string {
	var md strings.Builder

	md.WriteString("# Playlist Janitor - Summary Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))
	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.DatabasePath))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}
	md.WriteString("---\n\n")

	st := report.Stats
	md.WriteString("## 📊 Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Playlists | %s |\n", humanize.Comma(int64(st.Playlists))))
	md.WriteString(fmt.Sprintf("| Playlist Entries | %s |\n", humanize.Comma(int64(st.TrackRows))))
	md.WriteString(fmt.Sprintf("| Distinct Track Paths | %s |\n", humanize.Comma(int64(st.TrackPaths))))
	md.WriteString(fmt.Sprintf("| Unmatched Tracks | %s |\n", humanize.Comma(int64(st.UnmatchedTracks))))
	md.WriteString(fmt.Sprintf("| Inventory Files | %s |\n", humanize.Comma(int64(st.MusicFiles))))
	md.WriteString(fmt.Sprintf("| Matched | %s |\n", matchedShare(st)))
	md.WriteString("\n")

	if len(report.IndexBuilds) > 0 {
		md.WriteString("## 🗂️ Word Index\n\n")
		md.WriteString("| Population | Owners | Words | Failed | Last Rebuild |\n")
		md.WriteString("|------------|--------|-------|--------|--------------|\n")
		for _, b := range report.IndexBuilds {
			md.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %s |\n",
				b.Population,
				humanize.Comma(int64(b.Owners)),
				humanize.Comma(int64(b.WordsWritten)),
				b.Failed,
				humanize.RelTime(b.CompletedAt, report.GeneratedAt, "ago", "from now")))
		}
		md.WriteString("\n")
	}

	if snap := report.Snapshot; snap != nil {
		md.WriteString(fmt.Sprintf("## 🔍 Suggestions (`%s`)\n\n", report.CacheKey))
		md.WriteString(fmt.Sprintf("*Computed %s*\n\n", humanize.RelTime(snap.CreatedAt, report.GeneratedAt, "ago", "from now")))
		md.WriteString("| Band | Count |\n")
		md.WriteString("|------|-------|\n")
		md.WriteString(fmt.Sprintf("| exact | %d |\n", snap.Exact))
		md.WriteString(fmt.Sprintf("| high | %d |\n", snap.High))
		md.WriteString(fmt.Sprintf("| medium | %d |\n", snap.Medium))
		if snap.Low > 0 {
			md.WriteString(fmt.Sprintf("| low | %d |\n", snap.Low))
		}
		md.WriteString(fmt.Sprintf("| **total** | **%d** |\n", snap.Total))
		md.WriteString("\n")

		for _, band := range store.MatchTypes {
			var rows []store.Suggestion
			for _, sg := range snap.Suggestions {
				if sg.MatchType == band {
					rows = append(rows, sg)
				}
			}
			if len(rows) == 0 {
				continue
			}

			md.WriteString(fmt.Sprintf("### %s\n\n", strings.ToUpper(string(band[:1]))+string(band[1:])))
			md.WriteString("| Score | Playlist Entry | Replacement |\n")
			md.WriteString("|-------|----------------|-------------|\n")
			for i, sg := range rows {
				if i >= report.TopPerBand {
					md.WriteString(fmt.Sprintf("\n*%d more not shown*\n", len(rows)-report.TopPerBand))
					break
				}
				md.WriteString(fmt.Sprintf("| %.2f | `%s` | `%s` |\n",
					sg.Score, truncatePath(sg.TrackPath, 60), truncatePath(sg.MusicPath, 60)))
			}
			md.WriteString("\n")
		}
	}

	if len(report.ApplyRuns) > 0 {
		md.WriteString("## ⚡ Recent Apply Runs\n\n")
		md.WriteString("| Run | When | Applied | Failed | Track Rows | Playlist Files |\n")
		md.WriteString("|-----|------|---------|--------|------------|----------------|\n")
		for _, run := range report.ApplyRuns {
			md.WriteString(fmt.Sprintf("| `%s` | %s | %d | %d | %d | %d |\n",
				shortID(run.RunID),
				humanize.RelTime(run.StartedAt, report.GeneratedAt, "ago", "from now"),
				run.Applied, run.Failed, run.TracksUpdated, run.PlaylistFilesUpdated))
		}
		md.WriteString("\n")
	}

	if len(report.TopErrors) > 0 {
		md.WriteString("## ⚠️ Top Errors\n\n")
		md.WriteString("| Count | Error |\n")
		md.WriteString("|-------|-------|\n")
		for _, err := range report.TopErrors {
			md.WriteString(fmt.Sprintf("| %d | %s |\n", err.Count, err.Error))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by plj - Playlist Janitor*\n")

	return md.String()
}

func matchedShare(st store.Stats) string {
	if st.TrackPaths == 0 {
		return "n/a"
	}
	matched := st.TrackPaths - st.UnmatchedTracks
	return fmt.Sprintf("%d / %d (%.1f%%)", matched, st.TrackPaths, float64(matched)/float64(st.TrackPaths)*100)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncatePath truncates a file path to a maximum length
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	// Truncate from the middle, keeping start and end
	start := maxLen/2 - 2
	end := len(path) - (maxLen/2 - 2)
	return path[:start] + "..." + path[end:]
}
