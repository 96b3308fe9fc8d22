// Package record defines the structured care record produced by the
// normalization pipeline.
//
// A [CareRecord] has exactly eight named sections. Every section is optional:
// a section holds content only when the source transcript supports it, and an
// empty section means "not mentioned" and is never defaulted or inferred.
// Two ingestion shapes exist in the wild: the current eight-section JSON and
// a legacy flat-field JSON written by earlier app versions. [DecodeAny]
// recognises both and converts the legacy arm exactly once at ingestion, so
// downstream code only ever sees [CareRecord].
package record

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Medication is a single entry in the medicationList section.
type Medication struct {
	// Name is the canonical medication name.
	Name string `json:"name"`

	// Dosage is the normalized dosage string (e.g., "5 mg").
	Dosage string `json:"dosage"`

	// Time is an optional time-of-day phrase (e.g., "morgens").
	Time string `json:"time,omitempty"`
}

// UnmarshalJSON accepts either the object form {"name": ..., "dosage": ...}
// or a bare string, which some structuring responses produce for medications
// mentioned without a dosage.
func (m *Medication) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = Medication{Name: s}
		return nil
	}

	type plain Medication
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = Medication(p)
	return nil
}

// CareRecord is the fixed eight-section documentation shape.
type CareRecord struct {
	// Vitals holds normalized, unit-annotated vital sign strings
	// (e.g., "Blutdruck 140/90 mmHg").
	Vitals []string `json:"vitals"`

	// MedicationList holds the administered medications.
	MedicationList []Medication `json:"medicationList"`

	// Mobility documents movement, transfers, and fall risk observations.
	Mobility string `json:"mobility"`

	// NutritionFluid documents food and fluid intake.
	NutritionFluid string `json:"nutritionFluid"`

	// Hygiene documents body care and assistance provided.
	Hygiene string `json:"hygiene"`

	// MoodCognition documents mood, orientation, and cognitive state.
	MoodCognition string `json:"moodCognition"`

	// NotableEvents documents incidents and unusual observations.
	NotableEvents string `json:"notableEvents"`

	// Recommendations documents follow-ups and suggested actions.
	Recommendations string `json:"recommendations"`
}

// IsEmpty reports whether no section carries any content.
func (r *CareRecord) IsEmpty() bool {
	return len(r.Vitals) == 0 &&
		len(r.MedicationList) == 0 &&
		r.Mobility == "" &&
		r.NutritionFluid == "" &&
		r.Hygiene == "" &&
		r.MoodCognition == "" &&
		r.NotableEvents == "" &&
		r.Recommendations == ""
}

// HasMedication reports whether the medication list already contains the
// given (name, dosage) pair. Comparison is case-insensitive.
func (r *CareRecord) HasMedication(name, dosage string) bool {
	for _, m := range r.MedicationList {
		if strings.EqualFold(m.Name, name) && strings.EqualFold(m.Dosage, dosage) {
			return true
		}
	}
	return false
}

// MapStrings applies f to every string-valued field of the record in place:
// the free-text sections, each vitals entry, and each medication field.
// Empty values are passed through untouched so f never fabricates content
// for an absent section.
func (r *CareRecord) MapStrings(f func(string) string) {
	apply := func(s string) string {
		if s == "" {
			return s
		}
		return f(s)
	}

	for i := range r.Vitals {
		r.Vitals[i] = apply(r.Vitals[i])
	}
	for i := range r.MedicationList {
		r.MedicationList[i].Name = apply(r.MedicationList[i].Name)
		r.MedicationList[i].Dosage = apply(r.MedicationList[i].Dosage)
		r.MedicationList[i].Time = apply(r.MedicationList[i].Time)
	}
	r.Mobility = apply(r.Mobility)
	r.NutritionFluid = apply(r.NutritionFluid)
	r.Hygiene = apply(r.Hygiene)
	r.MoodCognition = apply(r.MoodCognition)
	r.NotableEvents = apply(r.NotableEvents)
	r.Recommendations = apply(r.Recommendations)
}

// sectionKeys is the closed set of JSON keys a structuring response may use.
var sectionKeys = map[string]struct{}{
	"vitals":          {},
	"medicationList":  {},
	"mobility":        {},
	"nutritionFluid":  {},
	"hygiene":         {},
	"moodCognition":   {},
	"notableEvents":   {},
	"recommendations": {},
}

// ParseStrict decodes an eight-section JSON object, dropping any keys outside
// the fixed section set. Generative backends are instructed to emit only
// those keys, but the parser enforces it rather than trusting the model.
func ParseStrict(data []byte) (*CareRecord, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("record: decode object: %w", err)
	}

	filtered := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		if _, ok := sectionKeys[k]; ok {
			filtered[k] = v
		}
	}

	buf, err := json.Marshal(filtered)
	if err != nil {
		return nil, fmt.Errorf("record: re-encode filtered object: %w", err)
	}

	rec := &CareRecord{}
	if err := json.Unmarshal(buf, rec); err != nil {
		return nil, fmt.Errorf("record: decode sections: %w", err)
	}
	return rec, nil
}
