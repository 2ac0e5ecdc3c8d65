package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/franz/playlist-janitor/internal/util"
)

// OwnerWords is the full word set for one owner path
type OwnerWords struct {
	Owner string
	Words []Word
}

// OwnerFailure records why one owner of a batch could not be written
type OwnerFailure struct {
	Owner string
	Err   error
}

// ReplaceWords replaces every word row of owner in one transaction
func (s *Store) ReplaceWords(ctx context.Context, pop Population, owner string, words []Word) error {
	return s.Transaction(ctx, func(tx *sql.Tx) error {
		return s.ReplaceWordsTx(ctx, tx, pop, owner, words)
	})
}

// ReplaceWordsTx deletes owner's rows and inserts words inside tx
func (s *Store) ReplaceWordsTx(ctx context.Context, tx *sql.Tx, pop Population, owner string, words []Word) error {
	table, err := pop.wordsTable()
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE owner_path = ?`, table), owner); err != nil {
		return fmt.Errorf("failed to delete words for %s: %w", owner, err)
	}

	if len(words) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (owner_path, word, position, length)
		VALUES (?, ?, ?, ?)
	`, table))
	if err != nil {
		return fmt.Errorf("failed to prepare word insert: %w", err)
	}
	defer stmt.Close()

	return insertWords(ctx, stmt, owner, words)
}

// DeleteWordsTx removes every word row of owner inside tx
func (s *Store) DeleteWordsTx(ctx context.Context, tx *sql.Tx, pop Population, owner string) error {
	table, err := pop.wordsTable()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE owner_path = ?`, table), owner); err != nil {
		return fmt.Errorf("failed to delete words for %s: %w", owner, err)
	}
	return nil
}

// ReplaceWordsBatch replaces the word sets of many owners in one transaction.
// Each owner is written under its own savepoint, so a failing owner is rolled
// back and reported while the rest of the batch commits.
func (s *Store) ReplaceWordsBatch(ctx context.Context, pop Population, batch []OwnerWords) ([]OwnerFailure, error) {
	table, err := pop.wordsTable()
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return nil, nil
	}

	var failures []OwnerFailure
	err = s.Transaction(ctx, func(tx *sql.Tx) error {
		del, err := tx.PrepareContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE owner_path = ?`, table))
		if err != nil {
			return fmt.Errorf("failed to prepare word delete: %w", err)
		}
		defer del.Close()

		ins, err := tx.PrepareContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (owner_path, word, position, length)
			VALUES (?, ?, ?, ?)
		`, table))
		if err != nil {
			return fmt.Errorf("failed to prepare word insert: %w", err)
		}
		defer ins.Close()

		for _, ow := range batch {
			if _, err := tx.ExecContext(ctx, "SAVEPOINT owner_words"); err != nil {
				return fmt.Errorf("failed to open savepoint: %w", err)
			}

			werr := func() error {
				if _, err := del.ExecContext(ctx, ow.Owner); err != nil {
					return fmt.Errorf("failed to delete words for %s: %w", ow.Owner, err)
				}
				return insertWords(ctx, ins, ow.Owner, ow.Words)
			}()

			if werr != nil {
				if _, err := tx.ExecContext(ctx, "ROLLBACK TO owner_words"); err != nil {
					return fmt.Errorf("failed to roll back savepoint: %w", err)
				}
				failures = append(failures, OwnerFailure{Owner: ow.Owner, Err: werr})
			}
			if _, err := tx.ExecContext(ctx, "RELEASE owner_words"); err != nil {
				return fmt.Errorf("failed to release savepoint: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return failures, nil
}

func insertWords(ctx context.Context, stmt *sql.Stmt, owner string, words []Word) error {
	for _, w := range words {
		if _, err := stmt.ExecContext(ctx, owner, w.Word, w.Position, w.Length); err != nil {
			if isConstraintError(err) {
				return fmt.Errorf("%w: %s word %q at %d: %v", util.ErrIndexInconsistency, owner, w.Word, w.Position, err)
			}
			return fmt.Errorf("failed to insert word %q for %s: %w", w.Word, owner, err)
		}
	}
	return nil
}

func isConstraintError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "constraint")
}

// WordsOf returns the distinct words indexed for owner, sorted
func (s *Store) WordsOf(ctx context.Context, pop Population, owner string) ([]string, error) {
	table, err := pop.wordsTable()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT DISTINCT word FROM %s
		WHERE owner_path = ?
		ORDER BY word
	`, table), owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query words: %w", err)
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("failed to scan word: %w", err)
		}
		words = append(words, w)
	}

	return words, rows.Err()
}

// OwnersOf returns every occurrence of word, ordered by owner then position
func (s *Store) OwnersOf(ctx context.Context, pop Population, word string) ([]Word, error) {
	table, err := pop.wordsTable()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT owner_path, word, position, length FROM %s
		WHERE word = ?
		ORDER BY owner_path, position
	`, table), word)
	if err != nil {
		return nil, fmt.Errorf("failed to query owners: %w", err)
	}
	defer rows.Close()

	var occ []Word
	for rows.Next() {
		var w Word
		if err := rows.Scan(&w.OwnerPath, &w.Word, &w.Position, &w.Length); err != nil {
			return nil, fmt.Errorf("failed to scan occurrence: %w", err)
		}
		occ = append(occ, w)
	}

	return occ, rows.Err()
}

// ClearWords deletes every word row of a population
func (s *Store) ClearWords(ctx context.Context, pop Population) error {
	table, err := pop.wordsTable()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	return nil
}

// PruneOrphanWords deletes word rows whose owner no longer exists in the owner table
func (s *Store) PruneOrphanWords(ctx context.Context, pop Population) (int64, error) {
	table, err := pop.wordsTable()
	if err != nil {
		return 0, err
	}
	owners, err := pop.ownerTable()
	if err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM %s
		WHERE NOT EXISTS (SELECT 1 FROM %s o WHERE o.path = %s.owner_path)
	`, table, owners, table))
	if err != nil {
		return 0, fmt.Errorf("failed to prune %s: %w", table, err)
	}
	return result.RowsAffected()
}

// OwnerPage returns up to limit distinct owner paths of pop strictly after
// afterPath, in path order. Used for keyset pagination during rebuilds.
func (s *Store) OwnerPage(ctx context.Context, pop Population, afterPath string, limit int) ([]string, error) {
	owners, err := pop.ownerTable()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT DISTINCT path FROM %s
		WHERE path > ?
		ORDER BY path
		LIMIT ?
	`, owners), afterPath, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to page %s: %w", owners, err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan owner: %w", err)
		}
		paths = append(paths, p)
	}

	return paths, rows.Err()
}

// CountOwners returns the number of distinct owner paths in pop's owner table
func (s *Store) CountOwners(ctx context.Context, pop Population) (int, error) {
	owners, err := pop.ownerTable()
	if err != nil {
		return 0, err
	}
	var count int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(DISTINCT path) FROM %s`, owners)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count owners: %w", err)
	}
	return count, nil
}

// CountWords returns the number of word rows and distinct words of pop
func (s *Store) CountWords(ctx context.Context, pop Population) (rows int, distinct int, err error) {
	table, err := pop.wordsTable()
	if err != nil {
		return 0, 0, err
	}
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*), COUNT(DISTINCT word) FROM %s`, table)).Scan(&rows, &distinct)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count words: %w", err)
	}
	return rows, distinct, nil
}
