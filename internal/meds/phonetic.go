package meds

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// MatcherOption is a functional option for configuring a [PhoneticMatcher].
type MatcherOption func(*PhoneticMatcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched medication name to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) MatcherOption {
	return func(m *PhoneticMatcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the matcher falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) MatcherOption {
	return func(m *PhoneticMatcher) {
		m.fuzzyThreshold = threshold
	}
}

// PhoneticMatcher resolves misheard medication names against the formulary
// using Double Metaphone phonetic encoding combined with Jaro-Winkler
// similarity for ranked candidate selection.
//
// The algorithm proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     the spoken word and for each canonical name and variant. A name whose
//     codes overlap with the input becomes a phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates the name with the
//     highest similarity (case-insensitive) is selected, provided its score
//     exceeds the phonetic threshold. When no phonetic candidate exists, a
//     secondary pass tests pure Jaro-Winkler similarity against all names
//     using the higher fuzzy threshold.
//
// Multi-word names such as "Insulin glargin" are supported: the matcher
// considers the best pairwise score across word pairs when ranking.
//
// All methods are safe for concurrent use. The matcher is read-only after
// construction.
type PhoneticMatcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewPhoneticMatcher returns a new [PhoneticMatcher] configured with the
// supplied options. Default thresholds are 0.70 for phonetic matches and
// 0.85 for fuzzy fallback matches.
func NewPhoneticMatcher(opts ...MatcherOption) *PhoneticMatcher {
	m := &PhoneticMatcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match attempts to resolve word to the most phonetically similar entry in
// names. word may be a single word or a space-separated phrase.
//
// When matched is false, corrected equals word unchanged and confidence is 0.
func (m *PhoneticMatcher) Match(word string, names []string) (corrected string, confidence float64, matched bool) {
	if len(names) == 0 || strings.TrimSpace(word) == "" {
		return word, 0, false
	}

	wordLower := strings.ToLower(strings.TrimSpace(word))
	wordTokens := strings.Fields(wordLower)
	inputCodes := phoneticCodes(wordTokens)

	type candidate struct {
		name     string
		score    float64
		phonetic bool
	}

	var best candidate

	for _, name := range names {
		nameLower := strings.ToLower(strings.TrimSpace(name))
		if nameLower == "" {
			continue
		}
		nameTokens := strings.Fields(nameLower)

		phoneticMatch := codesOverlap(inputCodes, phoneticCodes(nameTokens))
		score := bestSimilarity(wordTokens, nameTokens, wordLower, nameLower)

		if phoneticMatch {
			if score >= m.phoneticThreshold {
				if !best.phonetic || score > best.score {
					best = candidate{name: name, score: score, phonetic: true}
				}
			}
		} else if !best.phonetic {
			if score >= m.fuzzyThreshold && score > best.score {
				best = candidate{name: name, score: score, phonetic: false}
			}
		}
	}

	if best.name != "" {
		return best.name, best.score, true
	}
	return word, 0, false
}

// MatchReference resolves word against the full formulary, returning the
// matched [Reference]. Canonical names and all variants are candidates; a
// variant hit resolves to its canonical entry.
func (m *PhoneticMatcher) MatchReference(word string, refs []Reference) (ref *Reference, confidence float64, matched bool) {
	names := make([]string, 0, len(refs)*3)
	owner := make(map[string]int, len(refs)*3)
	for i := range refs {
		names = append(names, refs[i].Canonical)
		owner[strings.ToLower(refs[i].Canonical)] = i
		for _, v := range refs[i].Variants {
			if _, taken := owner[strings.ToLower(v)]; taken {
				continue
			}
			names = append(names, v)
			owner[strings.ToLower(v)] = i
		}
	}

	name, score, ok := m.Match(word, names)
	if !ok {
		return nil, 0, false
	}
	idx, ok := owner[strings.ToLower(name)]
	if !ok {
		return nil, 0, false
	}
	return &refs[idx], score, true
}

// phoneticCodes returns the union of all Double Metaphone codes for the
// given tokens. Empty codes are excluded.
func phoneticCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestSimilarity computes the highest Jaro-Winkler similarity between the
// input and a name: full strings, space-stripped concatenations, and the
// best pairwise token score.
func bestSimilarity(inputTokens, nameTokens []string, inputFull, nameFull string) float64 {
	score := matchr.JaroWinkler(inputFull, nameFull, false)

	if len(inputTokens) > 1 || len(nameTokens) > 1 {
		concat1 := strings.Join(inputTokens, "")
		concat2 := strings.Join(nameTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	for _, it := range inputTokens {
		for _, nt := range nameTokens {
			if s := matchr.JaroWinkler(it, nt, false); s > score {
				score = s
			}
		}
	}

	return score
}
