// Package vocabstore defines the persistence interfaces of the similarity
// engine: phonetic profiles, stored similarity pairs, run checkpoints, and
// the read-only vocabulary source.
//
// The canonical implementation is [github.com/lexibase/phonosim/pkg/vocabstore/postgres].
// Serving collaborators (word-detail pages, quiz-distractor selection)
// consume results exclusively through [ProfileStore.Get] and
// [PairStore.Similar]; they never participate in the computation pipeline.
package vocabstore

import (
	"context"

	"github.com/lexibase/phonosim/pkg/phonetics"
)

// WordStore reads vocabulary entries from the external vocabulary table.
// The table is owned by another system; implementations must never write
// to it.
type WordStore interface {
	// List returns all vocabulary words ordered by ascending ID.
	List(ctx context.Context) ([]phonetics.Word, error)

	// ListMissingProfiles returns words that have no phonetic profile yet,
	// ordered by ascending ID. limit <= 0 means no limit.
	ListMissingProfiles(ctx context.Context, limit int) ([]phonetics.Word, error)

	// WordCount returns the total number of vocabulary words.
	WordCount(ctx context.Context) (int64, error)
}

// ProfileStore persists phonetic profiles keyed by word ID.
type ProfileStore interface {
	// Upsert stores the profile. An existing profile is replaced only when
	// the new profile's source outranks the stored one; a lower- or
	// equal-ranked upsert is a no-op. Idempotent.
	Upsert(ctx context.Context, p *phonetics.Profile) error

	// Get returns the profile for wordID, or (nil, nil) when none exists.
	Get(ctx context.Context, wordID int64) (*phonetics.Profile, error)

	// ListAll returns every stored profile ordered by ascending word ID.
	ListAll(ctx context.Context) ([]phonetics.Profile, error)

	// ProfileCount returns the number of stored profiles.
	ProfileCount(ctx context.Context) (int64, error)

	// SourceCounts reports how many profiles each transcription source
	// produced.
	SourceCounts(ctx context.Context) (map[phonetics.Source]int64, error)
}

// PairStore persists filtered similarity pairs.
type PairStore interface {
	// InsertBatch bulk-inserts pairs, silently skipping any whose canonical
	// key already exists. Duplicates at triangular block boundaries are
	// expected and are not an error. Returns the number of rows actually
	// inserted.
	InsertBatch(ctx context.Context, pairs []Pair) (int64, error)

	// Similar returns up to limit words similar to wordID with overall
	// similarity >= minSimilarity, ordered by descending similarity.
	Similar(ctx context.Context, wordID int64, limit int, minSimilarity float64) ([]Neighbor, error)

	// PairCount returns the number of stored pairs.
	PairCount(ctx context.Context) (int64, error)
}

// CheckpointStore persists run checkpoints keyed by run ID.
type CheckpointStore interface {
	// Put creates or updates the checkpoint for its run ID.
	Put(ctx context.Context, cp *Checkpoint) error

	// Latest returns the most recently updated checkpoint, or (nil, nil)
	// when no run has ever been recorded.
	Latest(ctx context.Context) (*Checkpoint, error)
}
