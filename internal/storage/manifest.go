package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// SplitRun records one split of a source file
type SplitRun struct {
	RunID        string
	SourcePath   string
	SourceHash   string
	PieceDir     string
	PieceCount   int
	SkippedCount int
	CreatedAt    time.Time
}

// SplitPiece records one piece file a run wrote and the hash of its content
type SplitPiece struct {
	RunID       string
	Path        string
	Symbol      string
	Category    string
	StartOffset int
	EndOffset   int
	ContentHash string
	Generated   bool
}

// ManifestRepository stores split runs and their pieces
type ManifestRepository struct {
	db *DB
}

// NewManifestRepository creates a new manifest repository
func NewManifestRepository(db *DB) *ManifestRepository {
	return &ManifestRepository{db: db}
}

// RecordRun inserts a run together with its pieces in one transaction
func (r *ManifestRepository) RecordRun(run *SplitRun, pieces []SplitPiece) error {
	return r.db.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO split_runs (
				run_id, source_path, source_hash, piece_dir,
				piece_count, skipped_count, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			run.RunID,
			run.SourcePath,
			run.SourceHash,
			run.PieceDir,
			run.PieceCount,
			run.SkippedCount,
			run.CreatedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("failed to record split run: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO split_pieces (
				run_id, path, symbol, category,
				start_offset, end_offset, content_hash, generated
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare piece insert: %w", err)
		}
		defer stmt.Close()

		for _, p := range pieces {
			if _, err := stmt.Exec(
				run.RunID,
				p.Path,
				nullString(p.Symbol),
				nullString(p.Category),
				p.StartOffset,
				p.EndOffset,
				p.ContentHash,
				p.Generated,
			); err != nil {
				return fmt.Errorf("failed to record piece %s: %w", p.Path, err)
			}
		}
		return nil
	})
}

// LatestRun returns the most recent run for a source file, or nil if it was never split
func (r *ManifestRepository) LatestRun(sourcePath string) (*SplitRun, error) {
	rows, err := r.db.Query(`
		SELECT run_id, source_path, source_hash, piece_dir, piece_count, skipped_count, created_at
		FROM split_runs
		WHERE source_path = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	defer rows.Close()

	runs, err := scanSplitRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

// LatestRuns returns the most recent run of every source file, ordered by path
func (r *ManifestRepository) LatestRuns() ([]*SplitRun, error) {
	rows, err := r.db.Query(`
		SELECT r.run_id, r.source_path, r.source_hash, r.piece_dir, r.piece_count, r.skipped_count, r.created_at
		FROM split_runs r
		WHERE r.rowid = (
			SELECT rowid FROM split_runs
			WHERE source_path = r.source_path
			ORDER BY created_at DESC, rowid DESC
			LIMIT 1
		)
		ORDER BY r.source_path
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest runs: %w", err)
	}
	defer rows.Close()
	return scanSplitRuns(rows)
}

// Pieces returns the pieces recorded for a run, ordered by path
func (r *ManifestRepository) Pieces(runID string) ([]SplitPiece, error) {
	rows, err := r.db.Query(`
		SELECT run_id, path, symbol, category, start_offset, end_offset, content_hash, generated
		FROM split_pieces
		WHERE run_id = ?
		ORDER BY path
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pieces: %w", err)
	}
	defer rows.Close()

	var pieces []SplitPiece
	for rows.Next() {
		var p SplitPiece
		var symbol, category sql.NullString
		if err := rows.Scan(
			&p.RunID,
			&p.Path,
			&symbol,
			&category,
			&p.StartOffset,
			&p.EndOffset,
			&p.ContentHash,
			&p.Generated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan piece: %w", err)
		}
		p.Symbol = symbol.String
		p.Category = category.String
		pieces = append(pieces, p)
	}
	return pieces, rows.Err()
}

// PruneRuns deletes all but the newest keep runs of a source file and returns
// how many were deleted
func (r *ManifestRepository) PruneRuns(sourcePath string, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	const stale = `
		SELECT run_id FROM split_runs
		WHERE source_path = ?
		  AND run_id NOT IN (
			SELECT run_id FROM split_runs
			WHERE source_path = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		  )
	`

	var deleted int64
	err := r.db.WithTx(func(tx *sql.Tx) error {
		// foreign_keys is a per-connection pragma, so pieces are removed explicitly.
		if _, err := tx.Exec("DELETE FROM split_pieces WHERE run_id IN ("+stale+")", sourcePath, sourcePath, keep); err != nil {
			return fmt.Errorf("failed to prune pieces: %w", err)
		}
		result, err := tx.Exec("DELETE FROM split_runs WHERE run_id IN ("+stale+")", sourcePath, sourcePath, keep)
		if err != nil {
			return fmt.Errorf("failed to prune runs: %w", err)
		}
		deleted, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(deleted), nil
}

func scanSplitRuns(rows *sql.Rows) ([]*SplitRun, error) {
	var runs []*SplitRun
	for rows.Next() {
		var run SplitRun
		var createdAt int64
		if err := rows.Scan(
			&run.RunID,
			&run.SourcePath,
			&run.SourceHash,
			&run.PieceDir,
			&run.PieceCount,
			&run.SkippedCount,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan split run: %w", err)
		}
		run.CreatedAt = time.Unix(0, createdAt)
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
