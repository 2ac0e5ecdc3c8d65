package store

import (
	"context"
	"database/sql"
	"fmt"
)

// RecordIndexBuild stores the outcome of a full rebuild, replacing the previous one
func (s *Store) RecordIndexBuild(ctx context.Context, b *IndexBuild) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO index_builds
		(population, owners, words_written, failed, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(b.Population), b.Owners, b.WordsWritten, b.Failed, b.StartedAt, b.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to record index build: %w", err)
	}
	return nil
}

// GetIndexBuild returns the last rebuild of pop, or nil if it was never rebuilt
func (s *Store) GetIndexBuild(ctx context.Context, pop Population) (*IndexBuild, error) {
	var b IndexBuild
	var population string
	var startedAt, completedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT population, owners, words_written, failed, started_at, completed_at
		FROM index_builds WHERE population = ?
	`, string(pop)).Scan(&population, &b.Owners, &b.WordsWritten, &b.Failed, &startedAt, &completedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get index build: %w", err)
	}

	b.Population = Population(population)
	if startedAt.Valid {
		b.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		b.CompletedAt = completedAt.Time
	}
	return &b, nil
}

// RecordApplyRun stores the totals of one apply batch
func (s *Store) RecordApplyRun(ctx context.Context, run *ApplyRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO apply_runs
		(run_id, cache_key, started_at, completed_at, applied, failed, tracks_updated, playlist_files_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.RunID, run.CacheKey, run.StartedAt, run.CompletedAt,
		run.Applied, run.Failed, run.TracksUpdated, run.PlaylistFilesUpdated)
	if err != nil {
		return fmt.Errorf("failed to record apply run: %w", err)
	}
	return nil
}

// ListApplyRuns returns the most recent apply runs, newest first
func (s *Store) ListApplyRuns(ctx context.Context, limit int) ([]*ApplyRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, COALESCE(cache_key, ''), started_at, completed_at,
		       applied, failed, tracks_updated, playlist_files_updated
		FROM apply_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query apply runs: %w", err)
	}
	defer rows.Close()

	var runs []*ApplyRun
	for rows.Next() {
		run := &ApplyRun{}
		var completedAt sql.NullTime
		err := rows.Scan(&run.RunID, &run.CacheKey, &run.StartedAt, &completedAt,
			&run.Applied, &run.Failed, &run.TracksUpdated, &run.PlaylistFilesUpdated)
		if err != nil {
			return nil, fmt.Errorf("failed to scan apply run: %w", err)
		}
		if completedAt.Valid {
			run.CompletedAt = completedAt.Time
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
