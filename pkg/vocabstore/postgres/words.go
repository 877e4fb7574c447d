package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lexibase/phonosim/pkg/phonetics"
)

// List returns all vocabulary words ordered by ascending ID. The words table
// belongs to the external vocabulary system; this store only reads it.
func (s *Store) List(ctx context.Context) ([]phonetics.Word, error) {
	const query = `
		SELECT id, term, COALESCE(part_of_speech, '')
		FROM words
		ORDER BY id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vocabstore: list words: %w", err)
	}
	defer rows.Close()

	var words []phonetics.Word
	for rows.Next() {
		var w phonetics.Word
		if err := rows.Scan(&w.ID, &w.Term, &w.PartOfSpeech); err != nil {
			return nil, fmt.Errorf("vocabstore: list words scan: %w", err)
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vocabstore: list words: %w", err)
	}
	return words, nil
}

// ListMissingProfiles returns words without a phonetic profile, ordered by
// ascending ID. limit <= 0 means no limit.
func (s *Store) ListMissingProfiles(ctx context.Context, limit int) ([]phonetics.Word, error) {
	query := `
		SELECT w.id, w.term, COALESCE(w.part_of_speech, '')
		FROM words w
		LEFT JOIN word_profiles p ON p.word_id = w.id
		WHERE p.word_id IS NULL
		ORDER BY w.id`

	var (
		rows pgx.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.Query(ctx, query+` LIMIT $1`, limit)
	} else {
		rows, err = s.db.Query(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("vocabstore: list missing profiles: %w", err)
	}
	defer rows.Close()

	var words []phonetics.Word
	for rows.Next() {
		var w phonetics.Word
		if err := rows.Scan(&w.ID, &w.Term, &w.PartOfSpeech); err != nil {
			return nil, fmt.Errorf("vocabstore: list missing profiles scan: %w", err)
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vocabstore: list missing profiles: %w", err)
	}
	return words, nil
}

// WordCount returns the total number of vocabulary words.
func (s *Store) WordCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM words`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("vocabstore: count words: %w", err)
	}
	return n, nil
}
