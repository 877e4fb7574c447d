// Package transcribe produces phonetic profiles for vocabulary words from a
// ranked chain of sources: the bundled pronouncing dictionary, an online
// dictionary lookup API, and a rule-based grapheme-to-phoneme generator of
// last resort. Higher-ranked sources are consulted first; a source failure
// falls through to the next source rather than failing the word.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lexibase/phonosim/internal/observe"
	"github.com/lexibase/phonosim/pkg/phonetics"
)

// ErrNotTranscribable reports that every source declined a word. It cannot
// occur while the rule generator is in the chain; the rules never decline.
var ErrNotTranscribable = errors.New("transcribe: no source produced a transcription")

// DefaultCacheSize is the default transcription cache capacity in words.
const DefaultCacheSize = 65536

// Source produces a transcription for a normalized term, or (nil, nil) when
// it has none to offer. An error means the source itself failed and the
// chain should fall through.
type Source interface {
	// Name identifies the source tier.
	Name() phonetics.Source

	// Transcribe returns a profile with the phonetic fields populated. The
	// caller owns WordID and Term.
	Transcribe(ctx context.Context, term string) (*phonetics.Profile, error)
}

// Option is a functional option for configuring a [Transcriber].
type Option func(*Transcriber)

// WithCacheSize sets the transcription cache capacity.
func WithCacheSize(n int) Option {
	return func(t *Transcriber) {
		if n > 0 {
			t.cacheSize = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(t *Transcriber) {
		if log != nil {
			t.log = log
		}
	}
}

// WithMetrics sets the metrics instruments. Nil disables recording.
func WithMetrics(met *observe.Metrics) Option {
	return func(t *Transcriber) { t.met = met }
}

// Transcriber runs the ranked source chain with a term-keyed cache in
// front. Transcription is deterministic for a fixed source chain: the same
// term always yields the same profile. Safe for concurrent use.
type Transcriber struct {
	sources []Source
	log     *slog.Logger
	met     *observe.Metrics

	cacheSize int
	cache     *lru.Cache[string, *phonetics.Profile]
}

// New builds a transcriber over sources, ordered highest rank first.
func New(sources []Source, opts ...Option) (*Transcriber, error) {
	if len(sources) == 0 {
		return nil, errors.New("transcribe: no sources")
	}
	for i := 1; i < len(sources); i++ {
		if sources[i-1].Name().Rank() < sources[i].Name().Rank() {
			return nil, fmt.Errorf("transcribe: sources out of rank order: %s before %s",
				sources[i-1].Name(), sources[i].Name())
		}
	}

	t := &Transcriber{
		sources:   sources,
		log:       slog.Default(),
		cacheSize: DefaultCacheSize,
	}
	for _, o := range opts {
		o(t)
	}

	cache, err := lru.New[string, *phonetics.Profile](t.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("transcribe: create cache: %w", err)
	}
	t.cache = cache
	return t, nil
}

// Transcribe produces the profile for one vocabulary word. The cached entry
// is keyed by the normalized term, so repeated terms under different word
// IDs share one lookup.
func (t *Transcriber) Transcribe(ctx context.Context, word phonetics.Word) (*phonetics.Profile, error) {
	term := Normalize(word.Term)

	if cached, ok := t.cache.Get(term); ok {
		return materialize(cached, word), nil
	}

	for _, src := range t.sources {
		p, err := src.Transcribe(ctx, term)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			t.log.Warn("transcription source failed, falling through",
				"source", string(src.Name()),
				"term", term,
				"error", err,
			)
			continue
		}
		if p == nil {
			continue
		}
		p.Source = src.Name()
		t.cache.Add(term, p)
		if t.met != nil {
			t.met.RecordTranscription(ctx, string(p.Source))
		}
		return materialize(p, word), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrNotTranscribable, word.Term)
}

// Normalize lowercases and trims a term the way every source expects it.
func Normalize(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// materialize copies a cached profile and binds it to a concrete vocabulary
// word.
func materialize(p *phonetics.Profile, word phonetics.Word) *phonetics.Profile {
	out := *p
	out.WordID = word.ID
	out.Term = word.Term
	out.Phonemes = append([]string(nil), p.Phonemes...)
	out.Stresses = append([]phonetics.Stress(nil), p.Stresses...)
	return &out
}

// arpabetVowels is the vowel subset of the ARPABET inventory; each vowel
// carries one syllable.
var arpabetVowels = map[string]bool{
	"AA": true, "AE": true, "AH": true, "AO": true, "AW": true,
	"AY": true, "EH": true, "ER": true, "EY": true, "IH": true,
	"IY": true, "OW": true, "OY": true, "UH": true, "UW": true,
}

// fromARPABET converts raw dictionary tokens ("K", "AE1", "T") into clean
// phoneme codes, the per-syllable stress sequence, and the syllable count.
// Stress digits ride on vowel tokens; consonants carry none.
func fromARPABET(tokens []string) (phonemes []string, stresses []phonetics.Stress, syllables int) {
	phonemes = make([]string, 0, len(tokens))
	for _, tok := range tokens {
		code := tok
		stress := phonetics.StressNone
		hasDigit := false
		if n := len(tok); n > 0 {
			switch tok[n-1] {
			case '0':
				hasDigit = true
			case '1':
				stress = phonetics.StressPrimary
				hasDigit = true
			case '2':
				stress = phonetics.StressSecondary
				hasDigit = true
			}
			if hasDigit {
				code = tok[:n-1]
			}
		}
		phonemes = append(phonemes, code)
		if hasDigit || arpabetVowels[code] {
			stresses = append(stresses, stress)
			syllables++
		}
	}
	if syllables == 0 {
		syllables = 1
	}
	return phonemes, stresses, syllables
}
