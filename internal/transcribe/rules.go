package transcribe

import (
	"context"

	"github.com/lexibase/phonosim/pkg/phonetics"
)

// Rules is the grapheme-to-phoneme generator of last resort. It applies a
// small set of English spelling heuristics: digraphs first, then per-letter
// defaults. Coverage is rough but total, so the chain can always produce a
// profile, and it is fully deterministic.
type Rules struct{}

// NewRules returns the rule-based source.
func NewRules() *Rules { return &Rules{} }

// Name identifies the source tier.
func (*Rules) Name() phonetics.Source { return phonetics.SourceRules }

// consonantRules maps single consonant letters to their default phonemes.
// 'x' expands to two segments.
var consonantRules = map[byte][]string{
	'b': {"B"}, 'c': {"K"}, 'd': {"D"}, 'f': {"F"}, 'g': {"G"},
	'h': {"HH"}, 'j': {"JH"}, 'k': {"K"}, 'l': {"L"}, 'm': {"M"},
	'n': {"N"}, 'p': {"P"}, 'q': {"K"}, 'r': {"R"}, 's': {"S"},
	't': {"T"}, 'v': {"V"}, 'w': {"W"}, 'x': {"K", "S"}, 'y': {"Y"},
	'z': {"Z"},
}

// Transcribe never declines and never fails: every term gets some
// pronunciation. Rule output carries no stress information, so every
// syllable is unstressed.
func (*Rules) Transcribe(_ context.Context, term string) (*phonetics.Profile, error) {
	var phonemes []string

	for i := 0; i < len(term); {
		// Digraphs take precedence over single letters.
		if i+1 < len(term) {
			switch term[i : i+2] {
			case "ch":
				phonemes = append(phonemes, "CH")
				i += 2
				continue
			case "sh":
				phonemes = append(phonemes, "SH")
				i += 2
				continue
			case "th":
				// Voiced word-initially or after a vowel, unvoiced otherwise.
				if i == 0 || isVowelLetter(term[i-1]) {
					phonemes = append(phonemes, "DH")
				} else {
					phonemes = append(phonemes, "TH")
				}
				i += 2
				continue
			case "ph":
				phonemes = append(phonemes, "F")
				i += 2
				continue
			case "gh":
				// Silent at the end of a word ("though"), hard G elsewhere.
				if i+2 < len(term) {
					phonemes = append(phonemes, "G")
				}
				i += 2
				continue
			}
		}

		ch := term[i]
		switch ch {
		case 'a':
			if i == len(term)-1 {
				phonemes = append(phonemes, "AH")
			} else {
				phonemes = append(phonemes, "AE")
			}
		case 'e':
			// Terminal e is usually silent.
			if i < len(term)-1 {
				phonemes = append(phonemes, "EH")
			}
		case 'i':
			phonemes = append(phonemes, "IH")
		case 'o':
			phonemes = append(phonemes, "AA")
		case 'u':
			phonemes = append(phonemes, "AH")
		default:
			phonemes = append(phonemes, consonantRules[ch]...)
		}
		i++
	}

	var stresses []phonetics.Stress
	syllables := 0
	for _, p := range phonemes {
		if arpabetVowels[p] {
			stresses = append(stresses, phonetics.StressNone)
			syllables++
		}
	}
	if syllables == 0 {
		syllables = 1
	}

	return &phonetics.Profile{
		Phonemes:      phonemes,
		Stresses:      stresses,
		SyllableCount: syllables,
	}, nil
}

// isVowelLetter reports whether a spelling letter is a vowel.
func isVowelLetter(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}
