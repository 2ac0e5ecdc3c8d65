package store

import (
	"context"
	"database/sql"
	"fmt"
)

// GetTracksByPlaylist returns a playlist's entries in playlist order
func (s *Store) GetTracksByPlaylist(ctx context.Context, playlistPath string) ([]*TrackRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, normalized, playlist_path, position, source_format
		FROM tracks WHERE playlist_path = ?
		ORDER BY position, id
	`, playlistPath)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	return scanTracks(rows)
}

// GetTracksByPath returns every entry referencing path across all playlists
func (s *Store) GetTracksByPath(ctx context.Context, path string) ([]*TrackRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, normalized, playlist_path, position, source_format
		FROM tracks WHERE path = ?
		ORDER BY playlist_path, position
	`, path)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	return scanTracks(rows)
}

// UnmatchedTracks returns one row per distinct track path whose normalized name
// has no identical normalized name in the inventory. PlaylistPath holds the
// first playlist (by path) that references it.
func (s *Store) UnmatchedTracks(ctx context.Context) ([]*TrackRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT MIN(t.id), t.path, t.normalized, MIN(t.playlist_path), MIN(t.position), MIN(t.source_format)
		FROM tracks t
		WHERE t.normalized <> ''
		  AND NOT EXISTS (
			SELECT 1 FROM music_files m WHERE m.normalized = t.normalized
		  )
		GROUP BY t.path, t.normalized
		ORDER BY t.path
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unmatched tracks: %w", err)
	}
	defer rows.Close()

	return scanTracks(rows)
}

// CountUnmatchedTracks counts distinct unmatched track paths
func (s *Store) CountUnmatchedTracks(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT t.path)
		FROM tracks t
		WHERE t.normalized <> ''
		  AND NOT EXISTS (
			SELECT 1 FROM music_files m WHERE m.normalized = t.normalized
		  )
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unmatched tracks: %w", err)
	}
	return count, nil
}

// RetargetTracksTx points every track row with oldPath at newPath.
// Returns the number of rows updated.
func (s *Store) RetargetTracksTx(ctx context.Context, tx *sql.Tx, oldPath, newPath, newNormalized string) (int64, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE tracks SET path = ?, normalized = ?
		WHERE path = ?
	`, newPath, newNormalized, oldPath)
	if err != nil {
		return 0, fmt.Errorf("failed to retarget tracks: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

func scanTracks(rows *sql.Rows) ([]*TrackRef, error) {
	var tracks []*TrackRef
	for rows.Next() {
		t := &TrackRef{}
		if err := rows.Scan(&t.ID, &t.Path, &t.Normalized, &t.PlaylistPath, &t.Position, &t.SourceFormat); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}
