// Package phonetics defines the core phonetic data model shared by the
// transcription, vectorization, and persistence layers: words, phonetic
// profiles, per-syllable stress levels, and ranked transcription sources.
//
// Phoneme codes follow the ARPABET convention (e.g. "K", "AE", "T" for
// "cat") with stress digits stripped; stress is carried separately as one
// level per syllable. ARPABET was chosen over IPA because it is plain ASCII,
// one-code-per-phoneme, and the primary dictionary source emits it natively.
package phonetics

// Stress is the emphasis level of a single syllable.
type Stress uint8

const (
	// StressNone marks an unstressed syllable.
	StressNone Stress = 0

	// StressPrimary marks the syllable carrying primary stress.
	StressPrimary Stress = 1

	// StressSecondary marks a syllable carrying secondary stress.
	StressSecondary Stress = 2
)

// String returns the single-digit encoding used in persisted stress
// sequences ("0", "1", "2").
func (s Stress) String() string {
	switch s {
	case StressPrimary:
		return "1"
	case StressSecondary:
		return "2"
	default:
		return "0"
	}
}

// Source identifies which transcription source produced a profile.
// Sources are ranked; a stored profile is only replaced by a profile from a
// strictly higher-ranked source.
type Source string

const (
	// SourceDictionary is the primary structured pronouncing dictionary
	// (CMU format). Highest rank.
	SourceDictionary Source = "dictionary"

	// SourceLookupAPI is the online dictionary lookup fallback.
	SourceLookupAPI Source = "lookup-api"

	// SourceRules is the rule-based grapheme-to-phoneme generator used when
	// every lookup source fails. Lowest rank.
	SourceRules Source = "rules"
)

// Rank returns the trust rank of the source. Higher is better. Unknown
// sources rank 0, below every known source.
func (s Source) Rank() int {
	switch s {
	case SourceDictionary:
		return 3
	case SourceLookupAPI:
		return 2
	case SourceRules:
		return 1
	}
	return 0
}

// Word is a vocabulary entry owned by the external vocabulary store. It is
// referenced by ID throughout the engine and never mutated here.
type Word struct {
	ID           int64
	Term         string
	PartOfSpeech string
}

// Profile is the phonetic profile of a single word: its ordered phoneme
// codes, per-syllable stress levels, syllable count, and the source that
// produced it.
//
// A Profile is created once per word and is immutable afterwards, except
// that it may be replaced wholesale when a higher-ranked source later
// succeeds for the same word.
type Profile struct {
	// WordID is the vocabulary ID this profile belongs to.
	WordID int64

	// Term is the word's surface form, kept for diagnostics and reports.
	Term string

	// Phonemes is the ordered ARPABET phoneme-code sequence, stress digits
	// stripped (e.g. ["K", "AE", "T"]).
	Phonemes []string

	// Stresses holds one stress level per syllable, in syllable order.
	// Its length equals SyllableCount.
	Stresses []Stress

	// SyllableCount is the number of syllables, always >= 1 for a
	// transcribable word.
	SyllableCount int

	// Source records which ranked source produced this profile.
	Source Source
}

// StressString renders the stress sequence as a compact digit string
// ("102" = primary, none, secondary), the format used by reports.
func (p *Profile) StressString() string {
	b := make([]byte, len(p.Stresses))
	for i, s := range p.Stresses {
		b[i] = s.String()[0]
	}
	return string(b)
}
