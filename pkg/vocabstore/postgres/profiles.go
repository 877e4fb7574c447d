package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lexibase/phonosim/pkg/phonetics"
)

// Upsert stores the profile keyed by word ID. The source-rank guard lives in
// the statement itself so the operation stays a single idempotent round
// trip: an existing row is only overwritten when the incoming source
// strictly outranks the stored one.
func (s *Store) Upsert(ctx context.Context, p *phonetics.Profile) error {
	if p.WordID <= 0 {
		return fmt.Errorf("vocabstore: upsert profile: invalid word id %d", p.WordID)
	}

	phonemesJSON, err := json.Marshal(emptySlice(p.Phonemes))
	if err != nil {
		return fmt.Errorf("vocabstore: marshal phonemes: %w", err)
	}
	stressesJSON, err := json.Marshal(stressCodes(p.Stresses))
	if err != nil {
		return fmt.Errorf("vocabstore: marshal stresses: %w", err)
	}

	const query = `
		INSERT INTO word_profiles
			(word_id, term, phonemes, stresses, syllable_count, source, source_rank)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (word_id) DO UPDATE SET
			term = EXCLUDED.term,
			phonemes = EXCLUDED.phonemes,
			stresses = EXCLUDED.stresses,
			syllable_count = EXCLUDED.syllable_count,
			source = EXCLUDED.source,
			source_rank = EXCLUDED.source_rank,
			updated_at = now()
		WHERE word_profiles.source_rank < EXCLUDED.source_rank`

	_, err = s.db.Exec(ctx, query,
		p.WordID, p.Term, phonemesJSON, stressesJSON,
		p.SyllableCount, string(p.Source), p.Source.Rank(),
	)
	if err != nil {
		return fmt.Errorf("vocabstore: upsert profile %d: %w", p.WordID, err)
	}
	return nil
}

// Get returns the profile for wordID, or (nil, nil) when none exists.
func (s *Store) Get(ctx context.Context, wordID int64) (*phonetics.Profile, error) {
	const query = `
		SELECT word_id, term, phonemes, stresses, syllable_count, source
		FROM word_profiles
		WHERE word_id = $1`

	p, err := scanProfile(s.db.QueryRow(ctx, query, wordID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("vocabstore: get profile %d: %w", wordID, err)
	}
	return p, nil
}

// ListAll returns every stored profile ordered by ascending word ID.
func (s *Store) ListAll(ctx context.Context) ([]phonetics.Profile, error) {
	const query = `
		SELECT word_id, term, phonemes, stresses, syllable_count, source
		FROM word_profiles
		ORDER BY word_id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vocabstore: list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []phonetics.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("vocabstore: list profiles scan: %w", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vocabstore: list profiles: %w", err)
	}
	return profiles, nil
}

// ProfileCount returns the number of stored profiles.
func (s *Store) ProfileCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM word_profiles`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("vocabstore: count profiles: %w", err)
	}
	return n, nil
}

// SourceCounts reports how many profiles each transcription source produced.
func (s *Store) SourceCounts(ctx context.Context) (map[phonetics.Source]int64, error) {
	const query = `
		SELECT source, count(*)
		FROM word_profiles
		GROUP BY source`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vocabstore: source counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[phonetics.Source]int64)
	for rows.Next() {
		var src string
		var n int64
		if err := rows.Scan(&src, &n); err != nil {
			return nil, fmt.Errorf("vocabstore: source counts scan: %w", err)
		}
		counts[phonetics.Source(src)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vocabstore: source counts: %w", err)
	}
	return counts, nil
}

// scanProfile reads one profile row from r, deserialising the JSONB
// phoneme and stress columns.
func scanProfile(r pgx.Row) (*phonetics.Profile, error) {
	var (
		p                          phonetics.Profile
		source                     string
		phonemesJSON, stressesJSON []byte
	)
	if err := r.Scan(&p.WordID, &p.Term, &phonemesJSON, &stressesJSON, &p.SyllableCount, &source); err != nil {
		return nil, err
	}
	p.Source = phonetics.Source(source)

	if err := json.Unmarshal(phonemesJSON, &p.Phonemes); err != nil {
		return nil, fmt.Errorf("unmarshal phonemes: %w", err)
	}
	var codes []uint8
	if err := json.Unmarshal(stressesJSON, &codes); err != nil {
		return nil, fmt.Errorf("unmarshal stresses: %w", err)
	}
	p.Stresses = make([]phonetics.Stress, len(codes))
	for i, c := range codes {
		p.Stresses[i] = phonetics.Stress(c)
	}
	return &p, nil
}

// stressCodes converts the stress sequence to its numeric wire form,
// guaranteeing "[]" rather than "null" for empty sequences.
func stressCodes(stresses []phonetics.Stress) []int {
	codes := make([]int, len(stresses))
	for i, s := range stresses {
		codes[i] = int(s)
	}
	return codes
}

// emptySlice returns s if non-nil, otherwise an empty non-nil slice. This
// ensures JSON marshalling produces "[]" instead of "null".
func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
