package postgres

import (
	"context"
	"fmt"

	"github.com/lexibase/phonosim/pkg/vocabstore"
)

// InsertBatch bulk-inserts pairs in a single statement, skipping any row
// whose canonical key already exists. Recomputed blocks at triangular
// boundaries routinely re-offer committed pairs; ON CONFLICT DO NOTHING
// makes the write idempotent without erroring. Returns the number of rows
// actually inserted (offered minus skipped duplicates).
//
// Callers must offer pairs with Word1ID < Word2ID; InsertBatch panics on a
// violation rather than silently reordering, because a misordered pair
// means a logic defect upstream that reordering would mask.
func (s *Store) InsertBatch(ctx context.Context, pairs []vocabstore.Pair) (int64, error) {
	if len(pairs) == 0 {
		return 0, nil
	}

	w1 := make([]int64, len(pairs))
	w2 := make([]int64, len(pairs))
	dist := make([]float64, len(pairs))
	stress := make([]float64, len(pairs))
	rhyme := make([]float64, len(pairs))
	syll := make([]float64, len(pairs))
	overall := make([]float64, len(pairs))

	for i, p := range pairs {
		if p.Word1ID >= p.Word2ID {
			panic(fmt.Sprintf("vocabstore: pair (%d,%d) violates word1_id < word2_id", p.Word1ID, p.Word2ID))
		}
		w1[i] = p.Word1ID
		w2[i] = p.Word2ID
		dist[i] = p.PhoneticDistance
		stress[i] = p.StressSimilarity
		rhyme[i] = p.RhymeScore
		syll[i] = p.SyllableSimilarity
		overall[i] = p.Overall
	}

	const query = `
		INSERT INTO similarity_pairs
			(word1_id, word2_id, phonetic_distance, stress_similarity,
			 rhyme_score, syllable_similarity, overall_similarity)
		SELECT * FROM unnest(
			$1::bigint[], $2::bigint[], $3::float8[], $4::float8[],
			$5::float8[], $6::float8[], $7::float8[])
		ON CONFLICT (word1_id, word2_id) DO NOTHING`

	tag, err := s.db.Exec(ctx, query, w1, w2, dist, stress, rhyme, syll, overall)
	if err != nil {
		return 0, fmt.Errorf("vocabstore: insert %d pairs: %w", len(pairs), err)
	}
	return tag.RowsAffected(), nil
}

// Similar returns up to limit words similar to wordID with overall
// similarity >= minSimilarity, descending by similarity. The pair key is
// canonical, so the queried word may sit in either column.
func (s *Store) Similar(ctx context.Context, wordID int64, limit int, minSimilarity float64) ([]vocabstore.Neighbor, error) {
	if limit <= 0 {
		return nil, nil
	}

	const query = `
		SELECT CASE WHEN word1_id = $1 THEN word2_id ELSE word1_id END AS other_id,
		       overall_similarity
		FROM similarity_pairs
		WHERE (word1_id = $1 OR word2_id = $1)
		  AND overall_similarity >= $2
		ORDER BY overall_similarity DESC, other_id
		LIMIT $3`

	rows, err := s.db.Query(ctx, query, wordID, minSimilarity, limit)
	if err != nil {
		return nil, fmt.Errorf("vocabstore: similar to %d: %w", wordID, err)
	}
	defer rows.Close()

	var neighbors []vocabstore.Neighbor
	for rows.Next() {
		var n vocabstore.Neighbor
		if err := rows.Scan(&n.WordID, &n.Overall); err != nil {
			return nil, fmt.Errorf("vocabstore: similar scan: %w", err)
		}
		neighbors = append(neighbors, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vocabstore: similar to %d: %w", wordID, err)
	}
	return neighbors, nil
}

// PairCount returns the number of stored pairs.
//
// Deliberately not used for resume decisions: threshold sparsification
// leaves gaps in the pair space, so stored counts and maximum keys say
// nothing about how far a run progressed. Resumption reads run_checkpoints
// instead.
func (s *Store) PairCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM similarity_pairs`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("vocabstore: count pairs: %w", err)
	}
	return n, nil
}
