package simengine

import (
	"context"

	"github.com/lexibase/phonosim/internal/vectorize"
	"github.com/lexibase/phonosim/pkg/vocabstore"
)

// computeBlockScalar is the fallback block path: plain float64 loops, no
// SIMD. Math is identical to the accelerated path.
func (e *Engine) computeBlockScalar(ctx context.Context, rows, cols []vectorize.Features, rowOffset, colOffset int) ([]vocabstore.Pair, error) {
	var pairs []vocabstore.Pair
	for r := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for c := range cols {
			if rowOffset+r >= colOffset+c {
				continue
			}
			sc := e.scoreScalar(&rows[r], &cols[c])
			pairs = e.appendPair(pairs, &rows[r], &cols[c], sc)
		}
	}
	return pairs, nil
}

func (e *Engine) scoreScalar(a, b *vectorize.Features) Score {
	dist := e.phoneticDistance(a, b)
	stress := e.stressSimilarity(a, b)
	rhyme := e.rhymeScore(a, b)
	syll := syllableSimilarity(a.Syllables, b.Syllables)
	return Score{
		PhoneticDistance:   dist,
		StressSimilarity:   stress,
		RhymeScore:         rhyme,
		SyllableSimilarity: syll,
		Overall:            clamp01(e.overall(dist, stress, rhyme, syll)),
	}
}

// phoneticDistance is the position-weighted mismatch fraction over the
// longer of the two segment sequences. A position where one word has a
// phoneme and the other padding counts as a full mismatch. Mismatch at a
// position is min((a-b)^2, 1): 0 on equal codes, 1 otherwise, in a form
// both execution paths evaluate identically.
func (e *Engine) phoneticDistance(a, b *vectorize.Features) float64 {
	k := max(a.PhonemeLen, b.PhonemeLen)
	if k == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < k; i++ {
		d := float64(a.Phonemes[i] - b.Phonemes[i])
		sum += e.posW64[i] * min(d*d, 1)
	}
	return clamp01(sum / e.enc.WeightMass(k))
}

// stressSimilarity compares the stress patterns with the same position
// weights. Padding equals the unstressed code, so a missing syllable
// compares as unstressed rather than as a forced mismatch.
func (e *Engine) stressSimilarity(a, b *vectorize.Features) float64 {
	k := max(a.StressLen, b.StressLen)
	if k == 0 {
		return 1
	}
	var sum float64
	for i := 0; i < k; i++ {
		d := float64(a.Stresses[i] - b.Stresses[i])
		sum += e.posW64[i] * min(d*d, 1)
	}
	return clamp01(1 - sum/e.enc.WeightMass(k))
}

// rhymeScore compares the right-aligned terminal windows with tail-heavy
// weights, renormalized over the positions either word actually occupies.
// Positions where both windows are padding carry no evidence and are
// excluded rather than counted as agreement.
func (e *Engine) rhymeScore(a, b *vectorize.Features) float64 {
	rw := e.enc.RhymeWeights()
	var num, denom float64
	for i := 0; i < vectorize.RhymeWindow; i++ {
		pa, pb := a.Rhyme[i], b.Rhyme[i]
		if pa == vectorize.CodePad && pb == vectorize.CodePad {
			continue
		}
		denom += rw[i]
		if pa == pb {
			num += rw[i]
		}
	}
	if denom == 0 {
		return 0
	}
	return num / denom
}

// syllableSimilarity is 1 minus the relative syllable-count difference.
func syllableSimilarity(a, b int32) float64 {
	m := max(a, b)
	if m < 1 {
		m = 1
	}
	d := a - b
	if d < 0 {
		d = -d
	}
	return 1 - float64(d)/float64(m)
}
