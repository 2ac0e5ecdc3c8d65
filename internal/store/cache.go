package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SuggestionSnapshot is one persisted suggestion batch for a cache key
type SuggestionSnapshot struct {
	Key         string
	CreatedAt   time.Time
	Total       int
	Exact       int
	High        int
	Medium      int
	Low         int
	Suggestions []Suggestion
}

// Recount recomputes Total and the per-band counters from Suggestions
func (snap *SuggestionSnapshot) Recount() {
	snap.Total = len(snap.Suggestions)
	snap.Exact, snap.High, snap.Medium, snap.Low = 0, 0, 0, 0
	for _, sg := range snap.Suggestions {
		switch sg.MatchType {
		case MatchExact:
			snap.Exact++
		case MatchHigh:
			snap.High++
		case MatchMedium:
			snap.Medium++
		case MatchLow:
			snap.Low++
		}
	}
}

// SaveSnapshot stores snap, replacing any snapshot with the same key
func (s *Store) SaveSnapshot(ctx context.Context, snap *SuggestionSnapshot) error {
	return saveSnapshot(ctx, s.db, snap)
}

func saveSnapshot(ctx context.Context, q querier, snap *SuggestionSnapshot) error {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}
	suggestions := snap.Suggestions
	if suggestions == nil {
		suggestions = []Suggestion{}
	}
	payload, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO suggestion_cache (cache_key, created_at, total, exact, high, medium, low, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			created_at = excluded.created_at,
			total = excluded.total,
			exact = excluded.exact,
			high = excluded.high,
			medium = excluded.medium,
			low = excluded.low,
			payload = excluded.payload
	`, snap.Key, snap.CreatedAt, snap.Total, snap.Exact, snap.High, snap.Medium, snap.Low, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", snap.Key, err)
	}
	return nil
}

// GetSnapshot retrieves the snapshot for key, or nil if none exists
func (s *Store) GetSnapshot(ctx context.Context, key string) (*SuggestionSnapshot, error) {
	return getSnapshot(ctx, s.db, key)
}

func getSnapshot(ctx context.Context, q querier, key string) (*SuggestionSnapshot, error) {
	snap := &SuggestionSnapshot{}
	var payload string
	err := q.QueryRowContext(ctx, `
		SELECT cache_key, created_at, total, exact, high, medium, low, payload
		FROM suggestion_cache WHERE cache_key = ?
	`, key).Scan(&snap.Key, &snap.CreatedAt, &snap.Total, &snap.Exact, &snap.High, &snap.Medium, &snap.Low, &payload)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(payload), &snap.Suggestions); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", key, err)
	}

	return snap, nil
}

// ListSnapshotKeys returns every cache key with a stored snapshot
func (s *Store) ListSnapshotKeys(ctx context.Context) ([]string, error) {
	return listSnapshotKeys(ctx, s.db)
}

func listSnapshotKeys(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT cache_key FROM suggestion_cache ORDER BY cache_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan cache key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// DeleteSnapshot removes the snapshot for key. Reports whether one existed.
func (s *Store) DeleteSnapshot(ctx context.Context, key string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM suggestion_cache WHERE cache_key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("failed to delete snapshot %s: %w", key, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteAllSnapshots removes every stored snapshot
func (s *Store) DeleteAllSnapshots(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM suggestion_cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete snapshots: %w", err)
	}
	return result.RowsAffected()
}

// RemoveTrackFromSnapshots drops every suggestion for trackPath from every
// stored snapshot and refreshes the band counters. Returns how many
// suggestions were removed.
func (s *Store) RemoveTrackFromSnapshots(ctx context.Context, trackPath string) (int, error) {
	removed := 0
	err := s.Transaction(ctx, func(tx *sql.Tx) error {
		keys, err := listSnapshotKeys(ctx, tx)
		if err != nil {
			return err
		}

		for _, key := range keys {
			snap, err := getSnapshot(ctx, tx, key)
			if err != nil {
				return err
			}
			if snap == nil {
				continue
			}

			kept := snap.Suggestions[:0]
			for _, sg := range snap.Suggestions {
				if sg.TrackPath == trackPath {
					removed++
					continue
				}
				kept = append(kept, sg)
			}
			if len(kept) == len(snap.Suggestions) {
				continue
			}

			snap.Suggestions = kept
			snap.Recount()
			if err := saveSnapshot(ctx, tx, snap); err != nil {
				return err
			}
		}
		return nil
	})

	return removed, err
}
