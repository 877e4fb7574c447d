package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/lexibase/phonosim/pkg/phonetics"
)

// DefaultAPIBaseURL is the free dictionary API consulted when the bundled
// dictionary misses a word.
const DefaultAPIBaseURL = "https://api.dictionaryapi.dev/api/v2/entries/en"

// DefaultAPIRate is the default request rate limit against the public API.
const DefaultAPIRate = rate.Limit(2)

// APIOption is a functional option for configuring an [APIClient].
type APIOption func(*APIClient)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(base string) APIOption {
	return func(c *APIClient) {
		if base != "" {
			c.base = strings.TrimRight(base, "/")
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) APIOption {
	return func(c *APIClient) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithRateLimit sets the request rate limit in requests per second.
func WithRateLimit(r rate.Limit) APIOption {
	return func(c *APIClient) {
		if r > 0 {
			c.limiter = rate.NewLimiter(r, 1)
		}
	}
}

// APIClient is the online lookup tier of the source chain. It fetches an
// IPA transcription from a public dictionary API and converts it to the
// ARPABET inventory the rest of the system speaks. Safe for concurrent use.
type APIClient struct {
	base    string
	hc      *http.Client
	limiter *rate.Limiter
}

// NewAPIClient builds a rate-limited API source.
func NewAPIClient(opts ...APIOption) *APIClient {
	c := &APIClient{
		base:    DefaultAPIBaseURL,
		hc:      &http.Client{Timeout: 5 * time.Second},
		limiter: rate.NewLimiter(DefaultAPIRate, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Name identifies the source tier.
func (c *APIClient) Name() phonetics.Source { return phonetics.SourceLookupAPI }

// apiEntry is the slice element of the dictionary API response; only the
// phonetics are read.
type apiEntry struct {
	Phonetics []struct {
		Text string `json:"text"`
	} `json:"phonetics"`
}

// Transcribe fetches the word's IPA and converts it. Returns (nil, nil) on
// a 404: the API simply does not know the word and the chain should fall
// through to the rules.
func (c *APIClient) Transcribe(ctx context.Context, term string) (*phonetics.Profile, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("transcribe: api rate wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/"+url.PathEscape(term), nil)
	if err != nil {
		return nil, fmt.Errorf("transcribe: api request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcribe: api lookup %q: %w", term, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("transcribe: api lookup %q: status %d", term, resp.StatusCode)
	}

	var entries []apiEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("transcribe: api decode %q: %w", term, err)
	}

	ipa := firstIPA(entries)
	if ipa == "" {
		return nil, nil
	}

	phonemes, stresses, syllables := ipaToARPABET(ipa)
	if len(phonemes) == 0 {
		return nil, nil
	}
	return &phonetics.Profile{
		Phonemes:      phonemes,
		Stresses:      stresses,
		SyllableCount: syllables,
	}, nil
}

// firstIPA returns the first non-empty transcription, stripped of its
// delimiting slashes.
func firstIPA(entries []apiEntry) string {
	for _, e := range entries {
		for _, p := range e.Phonetics {
			if t := strings.Trim(strings.TrimSpace(p.Text), "/"); t != "" {
				return t
			}
		}
	}
	return ""
}

// ipaToARPABET is the longest-match-first conversion table. Multi-rune IPA
// sequences (affricates, diphthongs) come before their single-rune
// prefixes.
var ipaToARPABETSeqs = []struct {
	ipa  string
	code string
}{
	{"t͡ʃ", "CH"}, {"d͡ʒ", "JH"},
	{"tʃ", "CH"}, {"dʒ", "JH"},
	{"eɪ", "EY"}, {"aɪ", "AY"}, {"ɔɪ", "OY"}, {"aʊ", "AW"}, {"oʊ", "OW"},
	{"ɜr", "ER"}, {"ɜː", "ER"}, {"əʊ", "OW"},
	{"ɑ", "AA"}, {"æ", "AE"}, {"ʌ", "AH"}, {"ə", "AH"}, {"ɔ", "AO"},
	{"ɛ", "EH"}, {"ɜ", "ER"}, {"ɚ", "ER"}, {"ɪ", "IH"}, {"ɨ", "IH"},
	{"i", "IY"}, {"ʊ", "UH"}, {"u", "UW"}, {"ʉ", "UW"},
	{"b", "B"}, {"d", "D"}, {"ð", "DH"}, {"f", "F"},
	{"ɡ", "G"}, {"g", "G"}, {"h", "HH"}, {"j", "Y"}, {"k", "K"},
	{"l", "L"}, {"m", "M"}, {"n", "N"}, {"ŋ", "NG"}, {"p", "P"},
	{"ɹ", "R"}, {"r", "R"}, {"ɾ", "T"}, {"ʔ", "T"}, {"s", "S"},
	{"ʃ", "SH"}, {"t", "T"}, {"θ", "TH"}, {"v", "V"}, {"w", "W"},
	{"ʍ", "W"}, {"z", "Z"}, {"ʒ", "ZH"},
}

// ipaToARPABET converts an IPA transcription to ARPABET phonemes, the
// per-syllable stress sequence, and the syllable count. IPA stress marks
// precede the syllable they govern; the mark is carried to the next vowel.
// Unmapped symbols become a neutral vowel rather than dropping the segment.
func ipaToARPABET(ipa string) (phonemes []string, stresses []phonetics.Stress, syllables int) {
	pending := phonetics.StressNone

	runes := []rune(ipa)
	for i := 0; i < len(runes); {
		switch runes[i] {
		case 'ˈ':
			pending = phonetics.StressPrimary
			i++
			continue
		case 'ˌ':
			pending = phonetics.StressSecondary
			i++
			continue
		case 'ː', '.', ' ', '\t':
			i++
			continue
		}

		rest := string(runes[i:])
		matched := false
		for _, seq := range ipaToARPABETSeqs {
			if strings.HasPrefix(rest, seq.ipa) {
				phonemes = append(phonemes, seq.code)
				if arpabetVowels[seq.code] {
					stresses = append(stresses, pending)
					pending = phonetics.StressNone
					syllables++
				}
				i += len([]rune(seq.ipa))
				matched = true
				break
			}
		}
		if !matched {
			phonemes = append(phonemes, "UH")
			stresses = append(stresses, pending)
			pending = phonetics.StressNone
			syllables++
			i++
		}
	}

	if syllables == 0 && len(phonemes) > 0 {
		syllables = 1
	}
	return phonemes, stresses, syllables
}
