package vocabstore

import "time"

// Pair is one stored similarity result between two words. The key is
// canonical: Word1ID < Word2ID always holds, which prevents duplicate
// storage of symmetric pairs and self-pairs. Pairs are write-once; they are
// never updated and are removed only by cascading word deletion.
type Pair struct {
	Word1ID int64
	Word2ID int64

	// All scores are in [0, 1]. PhoneticDistance is a distance
	// (0 = identical); the remaining metrics are similarities.
	PhoneticDistance   float64
	StressSimilarity   float64
	RhymeScore         float64
	SyllableSimilarity float64
	Overall            float64

	CreatedAt time.Time
}

// Neighbor is one entry of a similarity lookup: another word and the overall
// similarity it shares with the queried word.
type Neighbor struct {
	WordID  int64
	Overall float64
}

// RunState is the lifecycle state of a similarity run.
type RunState string

const (
	// RunRunning marks a run that is actively computing blocks.
	RunRunning RunState = "running"

	// RunPaused marks a run interrupted with its checkpoint saved; it can be
	// resumed.
	RunPaused RunState = "paused"

	// RunCompleted marks a run whose every block was processed and flushed.
	RunCompleted RunState = "completed"

	// RunFailed marks a run halted by a fatal error. The checkpoint is
	// preserved so the run can be resumed after the cause is fixed.
	RunFailed RunState = "failed"
)

// Checkpoint records how far a similarity run has progressed through the
// triangular block space. RowStart/ColStart are the coordinates of the next
// block to compute; they advance only after the previous block's pairs were
// durably flushed, so a resumed run reprocesses at most one block.
type Checkpoint struct {
	RunID     string
	VocabSize int
	Threshold float64

	RowStart  int
	ColStart  int
	BlockRows int
	BlockCols int

	State     RunState
	UpdatedAt time.Time
}
