package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lexibase/phonosim/pkg/vocabstore"
)

// Put creates or updates the checkpoint for its run ID. Vocabulary size and
// threshold are fixed at run creation; only the block cursor, block
// dimensions, and state move afterwards.
func (s *Store) Put(ctx context.Context, cp *vocabstore.Checkpoint) error {
	if cp.RunID == "" {
		return errors.New("vocabstore: checkpoint run id is empty")
	}

	const query = `
		INSERT INTO run_checkpoints
			(run_id, vocab_size, threshold, row_start, col_start,
			 block_rows, block_cols, state)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (run_id) DO UPDATE SET
			row_start = EXCLUDED.row_start,
			col_start = EXCLUDED.col_start,
			block_rows = EXCLUDED.block_rows,
			block_cols = EXCLUDED.block_cols,
			state = EXCLUDED.state,
			updated_at = now()
		RETURNING updated_at`

	err := s.db.QueryRow(ctx, query,
		cp.RunID, cp.VocabSize, cp.Threshold, cp.RowStart, cp.ColStart,
		cp.BlockRows, cp.BlockCols, string(cp.State),
	).Scan(&cp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("vocabstore: put checkpoint %q: %w", cp.RunID, err)
	}
	return nil
}

// Latest returns the most recently updated checkpoint, or (nil, nil) when
// no run has ever been recorded.
func (s *Store) Latest(ctx context.Context) (*vocabstore.Checkpoint, error) {
	const query = `
		SELECT run_id, vocab_size, threshold, row_start, col_start,
		       block_rows, block_cols, state, updated_at
		FROM run_checkpoints
		ORDER BY updated_at DESC
		LIMIT 1`

	var (
		cp    vocabstore.Checkpoint
		state string
	)
	err := s.db.QueryRow(ctx, query).Scan(
		&cp.RunID, &cp.VocabSize, &cp.Threshold, &cp.RowStart, &cp.ColStart,
		&cp.BlockRows, &cp.BlockCols, &state, &cp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("vocabstore: latest checkpoint: %w", err)
	}
	cp.State = vocabstore.RunState(state)
	return &cp, nil
}
