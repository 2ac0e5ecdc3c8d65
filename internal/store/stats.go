package store

import (
	"context"
	"fmt"
)

// Stats summarizes the contents of the database
type Stats struct {
	Playlists       int
	TrackRows       int
	TrackPaths      int
	UnmatchedTracks int
	MusicFiles      int
	TrackWords      int
	MusicWords      int
	Snapshots       int
	ApplyRuns       int
}

// GetStats collects row counts for status reporting
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	st := &Stats{}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM playlists", &st.Playlists},
		{"SELECT COUNT(*) FROM tracks", &st.TrackRows},
		{"SELECT COUNT(DISTINCT path) FROM tracks", &st.TrackPaths},
		{"SELECT COUNT(*) FROM music_files", &st.MusicFiles},
		{"SELECT COUNT(*) FROM track_words", &st.TrackWords},
		{"SELECT COUNT(*) FROM music_words", &st.MusicWords},
		{"SELECT COUNT(*) FROM suggestion_cache", &st.Snapshots},
		{"SELECT COUNT(*) FROM apply_runs", &st.ApplyRuns},
	}

	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to collect stats (%s): %w", c.query, err)
		}
	}

	unmatched, err := s.CountUnmatchedTracks(ctx)
	if err != nil {
		return nil, err
	}
	st.UnmatchedTracks = unmatched

	return st, nil
}
