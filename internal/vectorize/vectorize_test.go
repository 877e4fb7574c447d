package vectorize

import (
	"math"
	"reflect"
	"testing"

	"github.com/lexibase/phonosim/pkg/phonetics"
)

func TestEncoder_Encode_Shapes(t *testing.T) {
	t.Parallel()
	enc := NewEncoder()

	f := enc.Encode(&phonetics.Profile{
		WordID:        7,
		Phonemes:      []string{"K", "AE", "T"},
		Stresses:      []phonetics.Stress{phonetics.StressPrimary},
		SyllableCount: 1,
	})

	if f.WordID != 7 {
		t.Errorf("WordID = %d, want 7", f.WordID)
	}
	if len(f.Phonemes) != DefaultMaxPhonemes || len(f.Stresses) != DefaultMaxPhonemes {
		t.Fatalf("axis lengths = %d/%d, want %d", len(f.Phonemes), len(f.Stresses), DefaultMaxPhonemes)
	}
	if f.PhonemeLen != 3 || f.StressLen != 1 {
		t.Errorf("lens = %d/%d, want 3/1", f.PhonemeLen, f.StressLen)
	}
	for i := 3; i < len(f.Phonemes); i++ {
		if f.Phonemes[i] != CodePad {
			t.Fatalf("Phonemes[%d] = %d, want pad", i, f.Phonemes[i])
		}
	}
	if f.Syllables != 1 {
		t.Errorf("Syllables = %d, want 1", f.Syllables)
	}
}

func TestEncoder_Encode_Deterministic(t *testing.T) {
	t.Parallel()
	p := &phonetics.Profile{
		Phonemes:      []string{"B", "AE", "T", "AH", "L"},
		Stresses:      []phonetics.Stress{1, 0},
		SyllableCount: 2,
	}

	a := NewEncoder().Encode(p)
	b := NewEncoder().Encode(p)
	if !reflect.DeepEqual(a, b) {
		t.Error("identical profiles encoded differently across encoders")
	}
}

func TestEncoder_Code(t *testing.T) {
	t.Parallel()
	enc := NewEncoder()

	if c := enc.Code("K"); c < 2 {
		t.Errorf("Code(K) = %d, want a real code >= 2", c)
	}
	if enc.Code("K") == enc.Code("AE") {
		t.Error("distinct phonemes share a code")
	}
	if c := enc.Code("QQ"); c != CodeUnknown {
		t.Errorf("Code(QQ) = %d, want unknown sentinel", c)
	}
}

func TestEncoder_Encode_RhymeWindow(t *testing.T) {
	t.Parallel()
	enc := NewEncoder()

	f := enc.Encode(&phonetics.Profile{
		Phonemes:      []string{"S", "T", "R", "EH", "NG", "TH"},
		SyllableCount: 1,
	})
	want := [RhymeWindow]int32{enc.Code("EH"), enc.Code("NG"), enc.Code("TH")}
	if f.Rhyme != want {
		t.Errorf("Rhyme = %v, want %v", f.Rhyme, want)
	}
	if f.RhymeLen != RhymeWindow {
		t.Errorf("RhymeLen = %d, want %d", f.RhymeLen, RhymeWindow)
	}
}

func TestEncoder_Encode_ShortWordRhymeLeftPadded(t *testing.T) {
	t.Parallel()
	enc := NewEncoder()

	f := enc.Encode(&phonetics.Profile{Phonemes: []string{"AE", "T"}, SyllableCount: 1})
	if f.Rhyme[0] != CodePad {
		t.Errorf("Rhyme[0] = %d, want pad for a two-phoneme word", f.Rhyme[0])
	}
	if f.Rhyme[1] != enc.Code("AE") || f.Rhyme[2] != enc.Code("T") {
		t.Errorf("Rhyme tail = %v, want right-aligned AE T", f.Rhyme)
	}
	if f.RhymeLen != 2 {
		t.Errorf("RhymeLen = %d, want 2", f.RhymeLen)
	}
}

func TestEncoder_Encode_TruncationKeepsRhymeTail(t *testing.T) {
	t.Parallel()
	enc := NewEncoder(WithMaxPhonemes(4))

	// Longer than the axis: the phoneme array truncates but the rhyme
	// window must still read the true final phonemes.
	f := enc.Encode(&phonetics.Profile{
		Phonemes:      []string{"K", "AA", "N", "S", "T", "IH", "T", "UW", "SH", "AH", "N"},
		SyllableCount: 4,
	})
	if f.PhonemeLen != 4 {
		t.Errorf("PhonemeLen = %d, want 4", f.PhonemeLen)
	}
	want := [RhymeWindow]int32{enc.Code("SH"), enc.Code("AH"), enc.Code("N")}
	if f.Rhyme != want {
		t.Errorf("Rhyme = %v, want untruncated tail %v", f.Rhyme, want)
	}
}

func TestEncoder_PositionWeights(t *testing.T) {
	t.Parallel()
	enc := NewEncoder()

	w := enc.PositionWeights()
	if len(w) != DefaultMaxPhonemes {
		t.Fatalf("len = %d, want %d", len(w), DefaultMaxPhonemes)
	}
	if w[0] != 1 {
		t.Errorf("w[0] = %v, want 1", w[0])
	}
	for k := 1; k < len(w); k++ {
		if w[k] >= w[k-1] {
			t.Fatalf("weights not strictly decreasing at %d: %v >= %v", k, w[k], w[k-1])
		}
		want := 1.0 / (1.0 + DefaultPositionDecay*float64(k))
		if math.Abs(w[k]-want) > 1e-12 {
			t.Fatalf("w[%d] = %v, want %v", k, w[k], want)
		}
	}

	// Returned slice is a copy; mutating it must not corrupt the encoder.
	w[0] = 99
	if enc.PositionWeights()[0] != 1 {
		t.Error("PositionWeights exposes internal state")
	}
}

func TestEncoder_WeightMass(t *testing.T) {
	t.Parallel()
	enc := NewEncoder()
	w := enc.PositionWeights()

	if m := enc.WeightMass(0); m != 0 {
		t.Errorf("WeightMass(0) = %v, want 0", m)
	}
	if m := enc.WeightMass(-1); m != 0 {
		t.Errorf("WeightMass(-1) = %v, want 0", m)
	}

	var sum float64
	for k := 1; k <= len(w); k++ {
		sum += w[k-1]
		if m := enc.WeightMass(k); math.Abs(m-sum) > 1e-12 {
			t.Fatalf("WeightMass(%d) = %v, want %v", k, m, sum)
		}
	}

	// Beyond the axis, the mass saturates.
	if enc.WeightMass(1000) != enc.WeightMass(len(w)) {
		t.Error("WeightMass past the axis should clamp")
	}
}

func TestEncoder_RhymeWeights(t *testing.T) {
	t.Parallel()
	w := NewEncoder().RhymeWeights()
	if w[2] <= w[1] || w[1] <= w[0] {
		t.Errorf("rhyme weights %v are not tail-heavy", w)
	}
	if math.Abs(w[0]+w[1]+w[2]-1) > 1e-12 {
		t.Errorf("rhyme weights %v do not sum to 1", w)
	}
}

func TestEncoder_Options(t *testing.T) {
	t.Parallel()

	enc := NewEncoder(WithMaxPhonemes(8), WithPositionDecay(0.5))
	if enc.MaxPhonemes() != 8 {
		t.Errorf("MaxPhonemes = %d, want 8", enc.MaxPhonemes())
	}
	if w := enc.PositionWeights(); math.Abs(w[1]-1.0/1.5) > 1e-12 {
		t.Errorf("w[1] = %v, want decay 0.5 applied", w[1])
	}

	// Out-of-range options fall back to defaults.
	enc = NewEncoder(WithMaxPhonemes(1), WithPositionDecay(-2))
	if enc.MaxPhonemes() != DefaultMaxPhonemes {
		t.Errorf("MaxPhonemes = %d, want default for tiny value", enc.MaxPhonemes())
	}
}
