package meds

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// dosageWindow is the number of bytes searched on each side of a
	// medication hit when resolving its dosage.
	dosageWindow = 50

	// confidenceExact is assigned when the matched variant is the canonical
	// spelling itself.
	confidenceExact = 0.95

	// confidenceVariant is assigned for any other variant hit.
	confidenceVariant = 0.8

	// documentThreshold filters matches out of the rendered documentation.
	documentThreshold = 0.7

	// noMedicationSentence is rendered when no qualifying match exists.
	noMedicationSentence = "Keine Medikamentengabe im Gesprächsverlauf erkannt."
)

// Match is one candidate medication fact extracted from transcript text.
type Match struct {
	// Ref is the reference-table row the variant belongs to.
	Ref Reference

	// Variant is the spelling that was found in the text (lowercase).
	Variant string

	// Dosage is the resolved, normalized dosage string (e.g., "5 mg").
	// Empty when no dosage was found in the window.
	Dosage string

	// Confidence is 0.95 for a canonical-spelling hit, 0.8 otherwise.
	Confidence float64

	// Position is the byte offset of the variant hit in the scanned text.
	Position int
}

var (
	// dosageValueRe finds a numeric dosage value, German decimal comma
	// included.
	dosageValueRe = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

	microgramCueRe = regexp.MustCompile(`(?i)µg|mikrogramm|\bmcg\b|\bug\b`)
	unitCueRe      = regexp.MustCompile(`(?i)\bie\b|\bi\.e\.|einheiten|\bunits?\b`)
	dropsCueRe     = regexp.MustCompile(`(?i)tropfen`)
	tabletCueRe    = regexp.MustCompile(`(?i)tablette`)
)

// FindMatches scans text for every variant spelling of every reference-table
// row. Each hit resolves a dosage from a ±50-byte window and is deduplicated
// by canonical name, keeping the highest-confidence match.
func FindMatches(text string) []Match {
	lower := strings.ToLower(text)

	best := make(map[string]Match)
	var order []string

	for _, ref := range referenceTable {
		for _, variant := range ref.Variants {
			pos := strings.Index(lower, variant)
			if pos < 0 {
				continue
			}

			m := Match{
				Ref:        ref,
				Variant:    variant,
				Dosage:     resolveDosage(lower, pos, pos+len(variant), ref),
				Confidence: confidenceVariant,
				Position:   pos,
			}
			if strings.EqualFold(variant, ref.Canonical) {
				m.Confidence = confidenceExact
			}

			prev, seen := best[ref.Canonical]
			if !seen {
				best[ref.Canonical] = m
				order = append(order, ref.Canonical)
				continue
			}
			if m.Confidence > prev.Confidence {
				best[ref.Canonical] = m
			}
		}
	}

	matches := make([]Match, 0, len(order))
	for _, name := range order {
		matches = append(matches, best[name])
	}
	return matches
}

// resolveDosage searches the window around a variant hit for a dosage.
//
// The 50 bytes following the hit are searched before the 50 bytes preceding
// it: dosages are spoken after the medication name, and the preceding text
// often carries unrelated numbers (vital signs, room numbers). The first
// numeric value in the chosen segment is matched against the reference's
// common-dosage set (a common dosage with the same value wins); failing
// that, the unit is inferred from contextual cues in the segment (µg
// markers, IE/units markers, Tropfen, Tabletten); failing that, mg is
// assumed.
func resolveDosage(lower string, hitStart, hitEnd int, ref Reference) string {
	window := windowAfter(lower, hitEnd, dosageWindow)

	value := dosageValueRe.FindString(window)
	if value == "" {
		window = windowBefore(lower, hitStart, dosageWindow)
		value = dosageValueRe.FindString(window)
	}
	if value == "" {
		return ""
	}
	normValue := strings.ReplaceAll(value, ".", ",")

	for _, dosage := range ref.CommonDosages {
		dosageValue := dosageValueRe.FindString(dosage)
		if dosageValue != "" && strings.ReplaceAll(dosageValue, ".", ",") == normValue {
			return dosage
		}
	}

	switch {
	case microgramCueRe.MatchString(window):
		return normValue + " µg"
	case unitCueRe.MatchString(window):
		return normValue + " IE"
	case dropsCueRe.MatchString(window):
		return normValue + " Tropfen"
	case tabletCueRe.MatchString(window):
		return normValue + " Tabletten"
	default:
		return normValue + " mg"
	}
}

// windowBefore returns up to n bytes of s preceding start, snapped outward
// to a rune boundary.
func windowBefore(s string, start, n int) string {
	lo := start - n
	if lo < 0 {
		lo = 0
	}
	for lo > 0 && !utf8.RuneStart(s[lo]) {
		lo--
	}
	return s[lo:start]
}

// windowAfter returns up to n bytes of s following end, snapped outward to a
// rune boundary.
func windowAfter(s string, end, n int) string {
	hi := end + n
	if hi > len(s) {
		hi = len(s)
	}
	for hi < len(s) && !utf8.RuneStart(s[hi]) {
		hi++
	}
	return s[end:hi]
}

// windowAround returns the substring of s spanning n bytes on each side of
// the [start, end) hit, snapped outward to rune boundaries.
func windowAround(s string, start, end, n int) string {
	return windowBefore(s, start, n) + s[start:end] + windowAfter(s, end, n)
}

// Document renders matches above the documentation threshold as
// "<name> <dosage> verabreicht (<category>)" entries joined by commas.
// Returns a fixed sentence when no qualifying match exists.
func Document(matches []Match) string {
	var parts []string
	for _, m := range matches {
		if m.Confidence <= documentThreshold {
			continue
		}
		entry := m.Ref.Canonical
		if m.Dosage != "" {
			entry += " " + m.Dosage
		}
		entry += " verabreicht (" + m.Ref.Category + ")"
		parts = append(parts, entry)
	}
	if len(parts) == 0 {
		return noMedicationSentence
	}
	return strings.Join(parts, ", ")
}

// timeCueRe finds a time-of-day phrase near a medication mention.
var timeCueRe = regexp.MustCompile(`(?i)\b(morgens|vormittags|mittags|nachmittags|abends|nachts|zur nacht)\b`)

// TimeCue searches the window around position pos for a time-of-day phrase
// and returns it lowercase, or "" when none is present.
func TimeCue(text string, pos int) string {
	window := windowAround(strings.ToLower(text), pos, pos, dosageWindow)
	return timeCueRe.FindString(window)
}
