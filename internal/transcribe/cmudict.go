package transcribe

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/klauspost/compress/gzip"

	"github.com/lexibase/phonosim/pkg/phonetics"
)

// DefaultRecoveryThreshold is the minimum Jaro-Winkler similarity a
// phonetically-matched headword needs before a miss is recovered to it. High
// enough that only spelling variants ("colour" -> "color") pass, not
// neighbors.
const DefaultRecoveryThreshold = 0.92

// DictOption is a functional option for configuring a [Dict].
type DictOption func(*Dict)

// WithHeadwordRecovery toggles phonetic headword recovery for terms missing
// from the dictionary. Enabled by default.
func WithHeadwordRecovery(on bool) DictOption {
	return func(d *Dict) { d.recover = on }
}

// WithRecoveryThreshold sets the Jaro-Winkler floor for headword recovery.
func WithRecoveryThreshold(t float64) DictOption {
	return func(d *Dict) {
		if t > 0 && t <= 1 {
			d.recoveryThreshold = t
		}
	}
}

// Dict is the pronouncing-dictionary source, the highest-ranked tier of the
// chain. Entries map lowercase headwords to raw ARPABET tokens with stress
// digits. Read-only after load and safe for concurrent use.
type Dict struct {
	entries map[string][]string

	// dmIndex maps a Double Metaphone code to the headwords sharing it,
	// for recovering near-miss spellings.
	dmIndex map[string][]string

	recover           bool
	recoveryThreshold float64
}

// OpenDict loads a pronouncing dictionary file. Files ending in .gz are
// transparently decompressed.
func OpenDict(path string, opts ...DictOption) (*Dict, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transcribe: open dictionary: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("transcribe: open gzip dictionary: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	return LoadDict(r, opts...)
}

// LoadDict parses a pronouncing dictionary in CMU format: one entry per
// line, headword followed by ARPABET tokens, ";;;" comment lines, and
// "(n)" suffixes marking pronunciation variants. Only the first variant of
// each headword is kept.
func LoadDict(r io.Reader, opts ...DictOption) (*Dict, error) {
	d := &Dict{
		entries:           make(map[string][]string),
		dmIndex:           make(map[string][]string),
		recover:           true,
		recoveryThreshold: DefaultRecoveryThreshold,
	}
	for _, o := range opts {
		o(d)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ";;;") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		head, _, _ := strings.Cut(parts[0], "(")
		head = strings.ToLower(head)
		if _, exists := d.entries[head]; exists {
			continue
		}
		d.entries[head] = parts[1:]

		primary, secondary := matchr.DoubleMetaphone(head)
		if primary != "" {
			d.dmIndex[primary] = append(d.dmIndex[primary], head)
		}
		if secondary != "" && secondary != primary {
			d.dmIndex[secondary] = append(d.dmIndex[secondary], head)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("transcribe: read dictionary: %w", err)
	}
	return d, nil
}

// Len returns the number of loaded headwords.
func (d *Dict) Len() int { return len(d.entries) }

// Name identifies the source tier.
func (d *Dict) Name() phonetics.Source { return phonetics.SourceDictionary }

// Transcribe looks the term up directly, then through phonetic headword
// recovery. Returns (nil, nil) when the dictionary has nothing acceptable.
func (d *Dict) Transcribe(_ context.Context, term string) (*phonetics.Profile, error) {
	tokens, ok := d.entries[term]
	if !ok && d.recover {
		if head, found := d.recoverHeadword(term); found {
			tokens, ok = d.entries[head], true
		}
	}
	if !ok {
		return nil, nil
	}

	phonemes, stresses, syllables := fromARPABET(tokens)
	return &phonetics.Profile{
		Phonemes:      phonemes,
		Stresses:      stresses,
		SyllableCount: syllables,
	}, nil
}

// recoverHeadword finds the headword most likely to be the intended
// spelling of a missed term: Double Metaphone narrows the candidates,
// Jaro-Winkler ranks them, and the best must clear the recovery threshold.
func (d *Dict) recoverHeadword(term string) (string, bool) {
	primary, secondary := matchr.DoubleMetaphone(term)

	seen := make(map[string]bool)
	var best string
	var bestScore float64
	for _, code := range []string{primary, secondary} {
		if code == "" {
			continue
		}
		for _, head := range d.dmIndex[code] {
			if seen[head] {
				continue
			}
			seen[head] = true
			score := matchr.JaroWinkler(term, head, true)
			if score > bestScore {
				best, bestScore = head, score
			}
		}
	}

	if bestScore < d.recoveryThreshold {
		return "", false
	}
	return best, true
}
