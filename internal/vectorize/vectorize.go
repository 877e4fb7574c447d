// Package vectorize turns phonetic profiles into the fixed-shape numeric
// features consumed by the similarity engine: a padded phoneme-code array,
// an aligned stress-code array, a right-aligned rhyme window, and a syllable
// count scalar.
//
// Encoding is a pure function of the profile. Features are recomputed per
// run and never persisted.
//
// The encoder is position-aware: it publishes a monotonically decreasing
// weight per phoneme position, so that index 0 (the word onset) dominates
// comparisons. Early phonemes dominate human confusability judgments, and
// both engine execution paths share these exact weights so their results
// agree.
package vectorize

import (
	"github.com/lexibase/phonosim/pkg/phonetics"
)

const (
	// DefaultMaxPhonemes is the default padded length of the phoneme axis.
	// Longer transcriptions are truncated.
	DefaultMaxPhonemes = 20

	// DefaultPositionDecay controls how quickly position weights fall off:
	// weight(k) = 1 / (1 + decay*k).
	DefaultPositionDecay = 0.15

	// RhymeWindow is the number of terminal phonemes compared by the rhyme
	// metric.
	RhymeWindow = 3
)

// Sentinel codes on the phoneme axis. Real phonemes are assigned codes
// starting at 2.
const (
	// CodePad fills unused tail positions of the fixed-shape arrays.
	CodePad int32 = 0

	// CodeUnknown stands in for phonemes outside the inventory.
	CodeUnknown int32 = 1
)

// arpabetInventory is the full ARPABET phoneme inventory used to build the
// code vocabulary. Order is fixed: codes must be stable across runs for
// determinism.
var arpabetInventory = []string{
	// Vowels.
	"AA", "AE", "AH", "AO", "AW", "AY", "EH", "ER", "EY",
	"IH", "IY", "OW", "OY", "UH", "UW",
	// Consonants.
	"B", "CH", "D", "DH", "F", "G", "HH", "JH", "K", "L", "M",
	"N", "NG", "P", "R", "S", "SH", "T", "TH", "V", "W", "Y", "Z", "ZH",
}

// Features is the fixed-shape numeric encoding of one profile.
//
// Phonemes and Stresses always have length equal to the encoder's
// MaxPhonemes; unused tail positions hold the pad code. Stress codes use the
// raw [phonetics.Stress] values, so a padded position is indistinguishable
// from an unstressed syllable — deliberately, as missing syllables compare
// as unstressed.
type Features struct {
	WordID int64

	Phonemes   []int32
	PhonemeLen int

	Stresses  []int32
	StressLen int

	Rhyme    [RhymeWindow]int32
	RhymeLen int

	Syllables int32
}

// Option is a functional option for configuring an [Encoder].
type Option func(*Encoder)

// WithMaxPhonemes sets the padded phoneme-axis length. Values below
// RhymeWindow are ignored.
func WithMaxPhonemes(n int) Option {
	return func(e *Encoder) {
		if n >= RhymeWindow {
			e.maxLen = n
		}
	}
}

// WithPositionDecay sets the position-weight decay factor. Non-positive
// values are ignored.
func WithPositionDecay(d float64) Option {
	return func(e *Encoder) {
		if d > 0 {
			e.decay = d
		}
	}
}

// Encoder encodes profiles into [Features]. It is read-only after
// construction and safe for concurrent use.
type Encoder struct {
	maxLen int
	decay  float64

	vocab map[string]int32

	posWeights []float64
	cumWeights []float64

	rhymeWeights [RhymeWindow]float64
}

// NewEncoder builds an encoder with the fixed ARPABET vocabulary and the
// supplied options.
func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{
		maxLen: DefaultMaxPhonemes,
		decay:  DefaultPositionDecay,
		// Tail-heavy weights: the final phoneme matters most for rhyme.
		rhymeWeights: [RhymeWindow]float64{0.2, 0.3, 0.5},
	}
	for _, o := range opts {
		o(e)
	}

	e.vocab = make(map[string]int32, len(arpabetInventory)+2)
	for i, code := range arpabetInventory {
		e.vocab[code] = int32(i) + 2 // 0 = pad, 1 = unknown
	}

	e.posWeights = make([]float64, e.maxLen)
	e.cumWeights = make([]float64, e.maxLen+1)
	for k := 0; k < e.maxLen; k++ {
		e.posWeights[k] = 1.0 / (1.0 + e.decay*float64(k))
		e.cumWeights[k+1] = e.cumWeights[k] + e.posWeights[k]
	}
	return e
}

// MaxPhonemes returns the padded phoneme-axis length.
func (e *Encoder) MaxPhonemes() int { return e.maxLen }

// PositionWeights returns a copy of the per-position comparison weights.
func (e *Encoder) PositionWeights() []float64 {
	w := make([]float64, len(e.posWeights))
	copy(w, e.posWeights)
	return w
}

// WeightMass returns the total weight of the first k positions. It is the
// normalization denominator for the position-weighted phonetic distance.
func (e *Encoder) WeightMass(k int) float64 {
	if k < 0 {
		return 0
	}
	if k > e.maxLen {
		k = e.maxLen
	}
	return e.cumWeights[k]
}

// RhymeWeights returns the tail-position weights of the rhyme window,
// ordered from the earliest window position to the final phoneme.
func (e *Encoder) RhymeWeights() [RhymeWindow]float64 { return e.rhymeWeights }

// Code returns the numeric code for a single phoneme, or the unknown
// sentinel for codes outside the inventory.
func (e *Encoder) Code(phoneme string) int32 {
	if c, ok := e.vocab[phoneme]; ok {
		return c
	}
	return CodeUnknown
}

// Encode converts a profile into fixed-shape features. Phoneme sequences
// longer than MaxPhonemes are truncated; the rhyme window is taken from the
// untruncated tail so rhyme comparison survives truncation.
func (e *Encoder) Encode(p *phonetics.Profile) Features {
	f := Features{
		WordID:   p.WordID,
		Phonemes: make([]int32, e.maxLen),
		Stresses: make([]int32, e.maxLen),
	}

	n := len(p.Phonemes)
	if n > e.maxLen {
		n = e.maxLen
	}
	for i := 0; i < n; i++ {
		f.Phonemes[i] = e.Code(p.Phonemes[i])
	}
	f.PhonemeLen = n

	ns := len(p.Stresses)
	if ns > e.maxLen {
		ns = e.maxLen
	}
	for i := 0; i < ns; i++ {
		f.Stresses[i] = int32(p.Stresses[i])
	}
	f.StressLen = ns

	// Right-aligned tail window over the full (untruncated) sequence.
	rl := len(p.Phonemes)
	if rl > RhymeWindow {
		rl = RhymeWindow
	}
	for i := 0; i < rl; i++ {
		f.Rhyme[RhymeWindow-rl+i] = e.Code(p.Phonemes[len(p.Phonemes)-rl+i])
	}
	f.RhymeLen = rl

	f.Syllables = int32(p.SyllableCount)
	return f
}
