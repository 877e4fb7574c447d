package simengine

import (
	"context"

	"github.com/viterin/vek/vek32"

	"github.com/lexibase/phonosim/internal/vectorize"
	"github.com/lexibase/phonosim/pkg/vocabstore"
)

// computeBlockAccel is the SIMD block path. The phoneme and stress axes of
// both block edges are converted to float32 matrices once, then each cell's
// weighted mismatch mass is a vectorized subtract, square, clamp, and dot
// over the fixed phoneme axis. Rhyme and syllable metrics stay scalar; their
// windows are too small to amortize vector setup.
func (e *Engine) computeBlockAccel(ctx context.Context, rows, cols []vectorize.Features, rowOffset, colOffset int) ([]vocabstore.Pair, error) {
	axis := e.enc.MaxPhonemes()

	rowPh := toFloat32Matrix(rows, axis, phonemeAxis)
	colPh := toFloat32Matrix(cols, axis, phonemeAxis)
	rowSt := toFloat32Matrix(rows, axis, stressAxis)
	colSt := toFloat32Matrix(cols, axis, stressAxis)

	ones := make([]float32, axis)
	for i := range ones {
		ones[i] = 1
	}
	diff := make([]float32, axis)
	sq := make([]float32, axis)

	// massSum(ra, ca) is the position-weighted clamped mismatch mass of one
	// cell along one axis. The square goes into a separate scratch buffer
	// because vek forbids aliasing between destination and input slices.
	massSum := func(ra, ca []float32) float64 {
		vek32.Sub_Into(diff, ra, ca)
		vek32.Mul_Into(sq, diff, diff)
		vek32.Minimum_Inplace(sq, ones)
		return float64(vek32.Dot(sq, e.posW32))
	}

	var pairs []vocabstore.Pair
	for r := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ra := rowPh[r*axis : (r+1)*axis]
		rs := rowSt[r*axis : (r+1)*axis]

		for c := range cols {
			if rowOffset+r >= colOffset+c {
				continue
			}
			row, col := &rows[r], &cols[c]

			var dist float64
			if k := max(row.PhonemeLen, col.PhonemeLen); k > 0 {
				// Positions past k hold padding on both sides and contribute
				// zero, so the dot over the full axis equals the k-prefix sum.
				dist = clamp01(massSum(ra, colPh[c*axis:(c+1)*axis]) / e.enc.WeightMass(k))
			}

			stress := 1.0
			if k := max(row.StressLen, col.StressLen); k > 0 {
				stress = clamp01(1 - massSum(rs, colSt[c*axis:(c+1)*axis])/e.enc.WeightMass(k))
			}

			rhyme := e.rhymeScore(row, col)
			syll := syllableSimilarity(row.Syllables, col.Syllables)

			pairs = e.appendPair(pairs, row, col, Score{
				PhoneticDistance:   dist,
				StressSimilarity:   stress,
				RhymeScore:         rhyme,
				SyllableSimilarity: syll,
				Overall:            clamp01(e.overall(dist, stress, rhyme, syll)),
			})
		}
	}
	return pairs, nil
}

type featureAxis int

const (
	phonemeAxis featureAxis = iota
	stressAxis
)

// toFloat32Matrix flattens one axis of a feature slice into a row-major
// float32 matrix of width axis.
func toFloat32Matrix(feats []vectorize.Features, axis int, which featureAxis) []float32 {
	m := make([]float32, len(feats)*axis)
	for i := range feats {
		src := feats[i].Phonemes
		if which == stressAxis {
			src = feats[i].Stresses
		}
		row := m[i*axis : (i+1)*axis]
		for j, v := range src {
			row[j] = float32(v)
		}
	}
	return m
}
