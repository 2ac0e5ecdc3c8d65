package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UpsertMusicFiles inserts or updates a batch of inventory files in one transaction
func (s *Store) UpsertMusicFiles(ctx context.Context, files []*MusicFile) error {
	if len(files) == 0 {
		return nil
	}

	return s.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO music_files (path, normalized, extension, size_bytes, mtime_unix, tag_artist, tag_title)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				normalized = excluded.normalized,
				extension = excluded.extension,
				size_bytes = excluded.size_bytes,
				mtime_unix = excluded.mtime_unix,
				tag_artist = COALESCE(NULLIF(excluded.tag_artist, ''), music_files.tag_artist),
				tag_title = COALESCE(NULLIF(excluded.tag_title, ''), music_files.tag_title),
				last_update_at = ?
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare file upsert: %w", err)
		}
		defer stmt.Close()

		now := time.Now()
		for _, f := range files {
			_, err := stmt.ExecContext(ctx,
				f.Path, f.Normalized, f.Extension, f.SizeBytes, f.MtimeUnix,
				f.TagArtist, f.TagTitle, now)
			if err != nil {
				return fmt.Errorf("failed to upsert file %s: %w", f.Path, err)
			}
		}
		return nil
	})
}

// GetMusicFile retrieves an inventory file by path
func (s *Store) GetMusicFile(ctx context.Context, path string) (*MusicFile, error) {
	f := &MusicFile{}
	err := s.db.QueryRowContext(ctx, `
		SELECT path, normalized, COALESCE(extension, ''), COALESCE(size_bytes, 0), COALESCE(mtime_unix, 0),
		       COALESCE(tag_artist, ''), COALESCE(tag_title, ''),
		       first_seen_at, last_update_at
		FROM music_files WHERE path = ?
	`, path).Scan(
		&f.Path, &f.Normalized, &f.Extension, &f.SizeBytes, &f.MtimeUnix,
		&f.TagArtist, &f.TagTitle,
		&f.FirstSeenAt, &f.LastUpdate,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get music file: %w", err)
	}

	return f, nil
}

// MusicFilesByNormalized returns inventory files whose normalized name equals normalized
func (s *Store) MusicFilesByNormalized(ctx context.Context, normalized string) ([]*MusicFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, normalized, COALESCE(extension, ''), COALESCE(size_bytes, 0), COALESCE(mtime_unix, 0),
		       COALESCE(tag_artist, ''), COALESCE(tag_title, ''),
		       first_seen_at, last_update_at
		FROM music_files WHERE normalized = ?
		ORDER BY path
	`, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to query music files: %w", err)
	}
	defer rows.Close()

	var files []*MusicFile
	for rows.Next() {
		f := &MusicFile{}
		err := rows.Scan(
			&f.Path, &f.Normalized, &f.Extension, &f.SizeBytes, &f.MtimeUnix,
			&f.TagArtist, &f.TagTitle,
			&f.FirstSeenAt, &f.LastUpdate,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan music file: %w", err)
		}
		files = append(files, f)
	}

	return files, rows.Err()
}

// MusicPathsUnder returns every inventory path that starts with prefix
func (s *Store) MusicPathsUnder(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path FROM music_files
		WHERE substr(path, 1, length(?)) = ?
		ORDER BY path
	`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query music paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan music path: %w", err)
		}
		paths = append(paths, p)
	}

	return paths, rows.Err()
}

// DeleteMusicFiles removes inventory rows and their word rows in one transaction
func (s *Store) DeleteMusicFiles(ctx context.Context, paths []string) (int64, error) {
	if len(paths) == 0 {
		return 0, nil
	}

	var deleted int64
	err := s.Transaction(ctx, func(tx *sql.Tx) error {
		fileStmt, err := tx.PrepareContext(ctx, `DELETE FROM music_files WHERE path = ?`)
		if err != nil {
			return fmt.Errorf("failed to prepare file delete: %w", err)
		}
		defer fileStmt.Close()

		wordStmt, err := tx.PrepareContext(ctx, `DELETE FROM music_words WHERE owner_path = ?`)
		if err != nil {
			return fmt.Errorf("failed to prepare word delete: %w", err)
		}
		defer wordStmt.Close()

		for _, p := range paths {
			result, err := fileStmt.ExecContext(ctx, p)
			if err != nil {
				return fmt.Errorf("failed to delete music file %s: %w", p, err)
			}
			if n, err := result.RowsAffected(); err == nil {
				deleted += n
			}
			if _, err := wordStmt.ExecContext(ctx, p); err != nil {
				return fmt.Errorf("failed to delete words for %s: %w", p, err)
			}
		}
		return nil
	})

	return deleted, err
}

// CountMusicFiles returns the number of inventory files
func (s *Store) CountMusicFiles(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM music_files").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count music files: %w", err)
	}
	return count, nil
}
