package record

import (
	"encoding/json"
	"fmt"
	"strings"
)

// legacyRecord is the flat-field shape written by app versions before the
// eight-section format. Medications and vitals were single free-text strings;
// the remaining observations were collapsed into two catch-all fields.
type legacyRecord struct {
	GeneralCondition string `json:"allgemeinzustand"`
	Vitals           string `json:"vitalwerte"`
	Medication       string `json:"medikamente"`
	Nutrition        string `json:"ernaehrung"`
	SpecialNotes     string `json:"besonderheiten"`
}

// legacyKeys identifies the legacy arm during ingestion.
var legacyKeys = []string{"allgemeinzustand", "vitalwerte", "medikamente", "ernaehrung", "besonderheiten"}

// DecodeAny decodes either the current eight-section JSON or the legacy
// flat-field JSON into a [CareRecord]. The variant is chosen once by key
// inspection; legacy content is converted here and nowhere else, so callers
// never branch on the format again.
func DecodeAny(data []byte) (*CareRecord, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("record: decode object: %w", err)
	}

	for key := range sectionKeys {
		if _, ok := probe[key]; ok {
			return ParseStrict(data)
		}
	}
	for _, key := range legacyKeys {
		if _, ok := probe[key]; ok {
			var lr legacyRecord
			if err := json.Unmarshal(data, &lr); err != nil {
				return nil, fmt.Errorf("record: decode legacy record: %w", err)
			}
			return lr.convert(), nil
		}
	}

	return nil, fmt.Errorf("record: unrecognised record shape (keys: %s)", keysOf(probe))
}

// convert maps the legacy flat fields onto the eight-section shape. The
// legacy vitals and medication strings were comma-separated free text; they
// are split into entries but otherwise left verbatim. Conversion must not
// invent structure the original entry never had.
func (lr *legacyRecord) convert() *CareRecord {
	rec := &CareRecord{
		MoodCognition:  strings.TrimSpace(lr.GeneralCondition),
		NutritionFluid: strings.TrimSpace(lr.Nutrition),
		NotableEvents:  strings.TrimSpace(lr.SpecialNotes),
	}

	for _, v := range strings.Split(lr.Vitals, ",") {
		if v = strings.TrimSpace(v); v != "" {
			rec.Vitals = append(rec.Vitals, v)
		}
	}
	for _, m := range strings.Split(lr.Medication, ",") {
		if m = strings.TrimSpace(m); m != "" {
			rec.MedicationList = append(rec.MedicationList, Medication{Name: m})
		}
	}

	return rec
}

// keysOf renders the keys of probe for error messages.
func keysOf(probe map[string]json.RawMessage) string {
	keys := make([]string, 0, len(probe))
	for k := range probe {
		keys = append(keys, k)
	}
	return strings.Join(keys, ", ")
}
