// Package patterns implements the self-learning correction engine for
// transcribed care notes.
//
// A [Store] holds two kinds of state: correction patterns (pairs of misheard
// and corrected text with a confidence score) and vocabulary terms (domain
// words observed in corrected transcripts). The store is seeded at
// construction with a fixed German care-domain corpus and grows from
// observed corrections via [Store.LearnFromTranscription].
//
// Stores are safe for concurrent use. Tests that need isolated state simply
// construct a fresh store; [Store.Reset] restores the seed corpus in place.
package patterns

import (
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	// applyThreshold filters which patterns participate in
	// [Store.ApplyLearnedCorrections].
	applyThreshold = 0.7

	// confidenceSeed is assigned to corpus-seeded patterns.
	confidenceSeed = 0.8

	// confidenceObserved is assigned to patterns learned from a manual
	// correction.
	confidenceObserved = 0.6

	// confidenceVocabulary is assigned to freshly observed vocabulary terms.
	confidenceVocabulary = 0.4

	// confidenceStep is added on each repeated observation.
	confidenceStep = 0.05

	// confidenceCap bounds every confidence score in the store.
	confidenceCap = 0.95

	// vocabularyMinRunes qualifies long tokens as vocabulary candidates even
	// without a domain-keyword hit.
	vocabularyMinRunes = 7
)

// Pattern is one learned or seeded correction pair. The (Original,
// Corrected) pair is unique within a store.
type Pattern struct {
	Original   string    `json:"original"`
	Corrected  string    `json:"corrected"`
	Context    string    `json:"context,omitempty"`
	Frequency  int       `json:"frequency"`
	Confidence float64   `json:"confidence"`
	LastUsed   time.Time `json:"lastUsed"`

	re *regexp.Regexp
}

// Term is one observed vocabulary term.
type Term struct {
	Term         string    `json:"term"`
	Alternatives []string  `json:"alternatives,omitempty"`
	Category     string    `json:"category,omitempty"`
	UsageCount   int       `json:"usageCount"`
	Confidence   float64   `json:"confidence"`
	LastSeen     time.Time `json:"lastSeen"`
}

// Store holds correction patterns and vocabulary terms. Patterns are applied
// in insertion order; when two patterns overlap, the earlier-inserted one
// rewrites the text first.
type Store struct {
	mu sync.RWMutex

	patterns     []*Pattern
	patternIndex map[patternKey]*Pattern

	terms     []*Term
	termIndex map[string]*Term

	now func() time.Time
}

type patternKey struct {
	original  string
	corrected string
}

// New returns a [Store] seeded with the built-in correction corpus.
func New() *Store {
	s := &Store{now: time.Now}
	s.Reset()
	return s
}

// Reset discards all learned state and restores the seed corpus.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.patterns = nil
	s.patternIndex = make(map[patternKey]*Pattern)
	s.terms = nil
	s.termIndex = make(map[string]*Term)

	seeded := s.now()
	for _, pair := range seedCorrections {
		s.insertPattern(pair[0], pair[1], "seed", confidenceSeed, seeded)
	}
	for _, term := range seedVocabulary {
		s.insertTerm(term, "seed", confidenceSeed, seeded)
	}
}

// ApplyLearnedCorrections rewrites text using every stored pattern whose
// confidence exceeds 0.7, in insertion order, each as a case-insensitive
// substitution across the whole text. A second fixed pass rewrites casual
// caregiver phrasing into professional documentation language.
func (s *Store) ApplyLearnedCorrections(text string) string {
	s.mu.RLock()
	for _, p := range s.patterns {
		if p.Confidence > applyThreshold {
			// Corrected text comes from caregivers; a literal replacement
			// keeps characters like $ out of template expansion.
			text = p.re.ReplaceAllLiteralString(text, p.Corrected)
		}
	}
	s.mu.RUnlock()

	return ProfessionalizePhrasing(text)
}

// ProfessionalizePhrasing rewrites casual caregiver phrasing into
// professional documentation language using the fixed phrase table.
// Text without casual phrases passes through unchanged.
func ProfessionalizePhrasing(text string) string {
	for _, rule := range professionalPhrases {
		text = rule.re.ReplaceAllString(text, rule.professional)
	}
	return text
}

// LearnFromTranscription compares the raw transcription with its manually
// corrected form and records the differences.
//
// Both strings are lowercased, trimmed and tokenized by whitespace; tokens
// are compared position-aligned up to the shorter length, so insertions and
// deletions shift the alignment and are deliberately not realigned. Each
// differing token pair becomes a correction pattern: repeated observations
// raise frequency and confidence by 0.05 up to the 0.95 cap, new pairs start
// at 0.6. Tokens from the corrected text that carry a domain keyword or are
// longer than six runes are recorded as vocabulary terms starting at 0.4.
func (s *Store) LearnFromTranscription(original, corrected, context string) {
	origTokens := strings.Fields(strings.ToLower(strings.TrimSpace(original)))
	corrTokens := strings.Fields(strings.ToLower(strings.TrimSpace(corrected)))

	n := len(origTokens)
	if len(corrTokens) < n {
		n = len(corrTokens)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	for i := 0; i < n; i++ {
		if origTokens[i] == corrTokens[i] {
			continue
		}
		key := patternKey{original: origTokens[i], corrected: corrTokens[i]}
		if p, ok := s.patternIndex[key]; ok {
			p.Frequency++
			p.Confidence = capConfidence(p.Confidence + confidenceStep)
			p.LastUsed = now
			continue
		}
		s.insertPattern(origTokens[i], corrTokens[i], context, confidenceObserved, now)
	}

	for _, token := range corrTokens {
		if !vocabularyCandidate(token) {
			continue
		}
		if t, ok := s.termIndex[token]; ok {
			t.UsageCount++
			t.Confidence = capConfidence(t.Confidence + confidenceStep)
			t.LastSeen = now
			continue
		}
		s.insertTerm(token, context, confidenceVocabulary, now)
	}
}

// Patterns returns a snapshot of all stored correction patterns in insertion
// order.
func (s *Store) Patterns() []Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Pattern, len(s.patterns))
	for i, p := range s.patterns {
		out[i] = *p
	}
	return out
}

// Terms returns a snapshot of all stored vocabulary terms in insertion
// order.
func (s *Store) Terms() []Term {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Term, len(s.terms))
	for i, t := range s.terms {
		out[i] = *t
	}
	return out
}

// insertPattern adds a new pattern. Callers hold the write lock.
func (s *Store) insertPattern(original, corrected, context string, confidence float64, now time.Time) {
	p := &Pattern{
		Original:   original,
		Corrected:  corrected,
		Context:    context,
		Frequency:  1,
		Confidence: confidence,
		LastUsed:   now,
		re:         regexp.MustCompile(`(?i)` + regexp.QuoteMeta(original)),
	}
	s.patterns = append(s.patterns, p)
	s.patternIndex[patternKey{original: original, corrected: corrected}] = p
}

// insertTerm adds a new vocabulary term. Callers hold the write lock.
func (s *Store) insertTerm(term, category string, confidence float64, now time.Time) {
	t := &Term{
		Term:       term,
		Category:   category,
		UsageCount: 1,
		Confidence: confidence,
		LastSeen:   now,
	}
	s.terms = append(s.terms, t)
	s.termIndex[term] = t
}

// vocabularyCandidate reports whether a corrected-text token qualifies as a
// vocabulary term: it carries a domain keyword, or it is longer than six
// runes.
func vocabularyCandidate(token string) bool {
	token = strings.Trim(token, ".,;:!?\"'()")
	if token == "" {
		return false
	}
	for _, kw := range domainKeywords {
		if strings.Contains(token, kw) {
			return true
		}
	}
	return utf8.RuneCountInString(token) >= vocabularyMinRunes
}

func capConfidence(c float64) float64 {
	if c > confidenceCap {
		return confidenceCap
	}
	return c
}
