package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ReplacePlaylist stores a playlist and replaces all of its track rows in one transaction.
// Positions and source format are taken from the refs; PlaylistPath is overwritten.
func (s *Store) ReplacePlaylist(ctx context.Context, pl *Playlist, refs []*TrackRef) error {
	if pl.ImportedAt.IsZero() {
		pl.ImportedAt = time.Now()
	}
	pl.EntryCount = len(refs)

	return s.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE playlist_path = ?`, pl.Path); err != nil {
			return fmt.Errorf("failed to clear playlist tracks: %w", err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO playlists (path, format, entry_count, imported_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				format = excluded.format,
				entry_count = excluded.entry_count,
				imported_at = excluded.imported_at
		`, pl.Path, pl.Format, pl.EntryCount, pl.ImportedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert playlist: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO tracks (path, normalized, playlist_path, position, source_format)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare track insert: %w", err)
		}
		defer stmt.Close()

		for _, ref := range refs {
			ref.PlaylistPath = pl.Path
			result, err := stmt.ExecContext(ctx, ref.Path, ref.Normalized, pl.Path, ref.Position, ref.SourceFormat)
			if err != nil {
				return fmt.Errorf("failed to insert track %s: %w", ref.Path, err)
			}
			if id, err := result.LastInsertId(); err == nil {
				ref.ID = id
			}
		}

		return nil
	})
}

// GetPlaylist retrieves a playlist by path
func (s *Store) GetPlaylist(ctx context.Context, path string) (*Playlist, error) {
	pl := &Playlist{}
	err := s.db.QueryRowContext(ctx, `
		SELECT path, format, entry_count, imported_at
		FROM playlists WHERE path = ?
	`, path).Scan(&pl.Path, &pl.Format, &pl.EntryCount, &pl.ImportedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}

	return pl, nil
}

// ListPlaylists returns all imported playlists ordered by path
func (s *Store) ListPlaylists(ctx context.Context) ([]*Playlist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, format, entry_count, imported_at
		FROM playlists
		ORDER BY path
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*Playlist
	for rows.Next() {
		pl := &Playlist{}
		if err := rows.Scan(&pl.Path, &pl.Format, &pl.EntryCount, &pl.ImportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, pl)
	}

	return playlists, rows.Err()
}

// DeletePlaylist removes a playlist and its track rows
func (s *Store) DeletePlaylist(ctx context.Context, path string) error {
	return s.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE playlist_path = ?`, path); err != nil {
			return fmt.Errorf("failed to delete playlist tracks: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM playlists WHERE path = ?`, path); err != nil {
			return fmt.Errorf("failed to delete playlist: %w", err)
		}
		return nil
	})
}

// PlaylistsContaining returns the distinct playlists that reference trackPath, sorted
func (s *Store) PlaylistsContaining(ctx context.Context, trackPath string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT playlist_path FROM tracks
		WHERE path = ?
		ORDER BY playlist_path
	`, trackPath)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists for track: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan playlist path: %w", err)
		}
		paths = append(paths, p)
	}

	return paths, rows.Err()
}
