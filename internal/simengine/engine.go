// Package simengine computes phonetic similarity scores over blocks of
// encoded word features. It offers two execution paths with identical math:
// an accelerated SIMD path for bulk block computation and a scalar fallback
// used when acceleration is disabled or a single pair is scored. Both paths
// agree within 1e-4 on every metric.
package simengine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/lexibase/phonosim/internal/vectorize"
	"github.com/lexibase/phonosim/pkg/vocabstore"
)

// ErrBlockTooLarge reports that a requested block exceeds the engine's cell
// budget. The caller is expected to shrink the block and retry; the engine
// never partially computes an oversized block.
var ErrBlockTooLarge = errors.New("simengine: block exceeds cell budget")

// DefaultMaxBlockCells caps the number of candidate cells (rows x cols) a
// single block may hold. 16M cells of float32 scratch stays well under
// typical container memory limits.
const DefaultMaxBlockCells = 16 << 20

// Weights blends the four component metrics into the overall similarity.
// Phonetic weighs the position-weighted segment similarity (1 - distance),
// not the distance itself.
type Weights struct {
	Phonetic float64 `yaml:"phonetic"`
	Stress   float64 `yaml:"stress"`
	Rhyme    float64 `yaml:"rhyme"`
	Syllable float64 `yaml:"syllable"`
}

// DefaultWeights returns the standard metric blend.
func DefaultWeights() Weights {
	return Weights{Phonetic: 0.40, Stress: 0.20, Rhyme: 0.30, Syllable: 0.10}
}

// Validate checks that every weight is non-negative and that the weights sum
// to 1 within a small tolerance.
func (w Weights) Validate() error {
	if w.Phonetic < 0 || w.Stress < 0 || w.Rhyme < 0 || w.Syllable < 0 {
		return errors.New("simengine: weights must be non-negative")
	}
	sum := w.Phonetic + w.Stress + w.Rhyme + w.Syllable
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("simengine: weights sum to %g, want 1", sum)
	}
	return nil
}

// Score holds every metric for one word pair. All values are in [0, 1].
// PhoneticDistance is a distance (0 = identical); the rest are similarities.
type Score struct {
	PhoneticDistance   float64
	StressSimilarity   float64
	RhymeScore         float64
	SyllableSimilarity float64
	Overall            float64
}

// Option is a functional option for configuring an [Engine].
type Option func(*Engine)

// WithWeights overrides the metric blend.
func WithWeights(w Weights) Option {
	return func(e *Engine) { e.weights = w }
}

// WithThreshold sets the minimum overall similarity a pair must reach to be
// emitted by ComputeBlock. Pairs below the threshold are discarded, never
// stored.
func WithThreshold(t float64) Option {
	return func(e *Engine) { e.threshold = t }
}

// WithMaxBlockCells overrides the block cell budget. Non-positive values are
// ignored.
func WithMaxBlockCells(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxCells = n
		}
	}
}

// WithScalarOnly disables the accelerated path; every block is computed with
// the scalar fallback. Used for verification and on hosts without SIMD
// support worth the setup cost.
func WithScalarOnly(on bool) Option {
	return func(e *Engine) { e.scalarOnly = on }
}

// Engine scores word pairs. It is read-only after construction and safe for
// concurrent use.
type Engine struct {
	enc *vectorize.Encoder

	weights    Weights
	threshold  float64
	maxCells   int
	scalarOnly bool

	// Position weights copied out of the encoder once, in both precisions,
	// so both execution paths read the same values.
	posW64 []float64
	posW32 []float32
}

// New builds an engine over the encoder whose features it will score.
func New(enc *vectorize.Encoder, opts ...Option) (*Engine, error) {
	e := &Engine{
		enc:       enc,
		weights:   DefaultWeights(),
		threshold: 0.4,
		maxCells:  DefaultMaxBlockCells,
	}
	for _, o := range opts {
		o(e)
	}
	if err := e.weights.Validate(); err != nil {
		return nil, err
	}
	if e.threshold < 0 || e.threshold > 1 {
		return nil, fmt.Errorf("simengine: threshold %g outside [0, 1]", e.threshold)
	}

	e.posW64 = enc.PositionWeights()
	e.posW32 = make([]float32, len(e.posW64))
	for i, w := range e.posW64 {
		e.posW32[i] = float32(w)
	}
	return e, nil
}

// Threshold returns the configured similarity threshold.
func (e *Engine) Threshold() float64 { return e.threshold }

// Compare scores a single pair with the scalar path. Symmetric in its
// arguments.
func (e *Engine) Compare(a, b *vectorize.Features) Score {
	return e.scoreScalar(a, b)
}

// ComputeBlock scores every cell of the rows x cols block whose global
// coordinates start at (rowOffset, colOffset), and returns the pairs whose
// overall similarity reaches the threshold. Cells on or below the global
// diagonal are skipped, so each unordered pair is computed exactly once
// across the full triangular enumeration.
//
// Returns ErrBlockTooLarge without computing anything when rows x cols
// exceeds the cell budget.
func (e *Engine) ComputeBlock(ctx context.Context, rows, cols []vectorize.Features, rowOffset, colOffset int) ([]vocabstore.Pair, error) {
	if len(rows) == 0 || len(cols) == 0 {
		return nil, nil
	}
	if len(rows)*len(cols) > e.maxCells {
		return nil, fmt.Errorf("%w: %dx%d > %d", ErrBlockTooLarge, len(rows), len(cols), e.maxCells)
	}

	if e.scalarOnly {
		return e.computeBlockScalar(ctx, rows, cols, rowOffset, colOffset)
	}
	return e.computeBlockAccel(ctx, rows, cols, rowOffset, colOffset)
}

// appendPair canonicalizes and collects one scored cell. The vocabulary is
// sorted by word ID, so a global row index below the column index implies
// the row's word ID is the smaller one; a violation is a programming error.
func (e *Engine) appendPair(pairs []vocabstore.Pair, row, col *vectorize.Features, sc Score) []vocabstore.Pair {
	if sc.Overall < e.threshold {
		return pairs
	}
	if row.WordID >= col.WordID {
		panic(fmt.Sprintf("simengine: pair (%d,%d) violates ascending word id order", row.WordID, col.WordID))
	}
	return append(pairs, vocabstore.Pair{
		Word1ID:            row.WordID,
		Word2ID:            col.WordID,
		PhoneticDistance:   sc.PhoneticDistance,
		StressSimilarity:   sc.StressSimilarity,
		RhymeScore:         sc.RhymeScore,
		SyllableSimilarity: sc.SyllableSimilarity,
		Overall:            sc.Overall,
	})
}

// overall blends the component metrics.
func (e *Engine) overall(dist, stress, rhyme, syll float64) float64 {
	return e.weights.Phonetic*(1-dist) +
		e.weights.Stress*stress +
		e.weights.Rhyme*rhyme +
		e.weights.Syllable*syll
}

// clamp01 pins rounding spill back into [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
