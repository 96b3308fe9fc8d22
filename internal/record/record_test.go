package record_test

import (
	"strings"
	"testing"

	"github.com/curanote/curanote/internal/record"
)

func TestParseStrict_DropsUnknownKeys(t *testing.T) {
	t.Parallel()

	data := []byte(`{
		"vitals": ["Blutdruck 140/90 mmHg"],
		"mobility": "selbstständig mobil",
		"diagnosis": "should be dropped",
		"medicationList": [{"name": "Ramipril", "dosage": "5 mg", "time": "morgens"}]
	}`)

	rec, err := record.ParseStrict(data)
	if err != nil {
		t.Fatalf("ParseStrict: err=%v", err)
	}
	if len(rec.Vitals) != 1 || rec.Vitals[0] != "Blutdruck 140/90 mmHg" {
		t.Errorf("Vitals=%v, want [Blutdruck 140/90 mmHg]", rec.Vitals)
	}
	if rec.Mobility != "selbstständig mobil" {
		t.Errorf("Mobility=%q", rec.Mobility)
	}
	if len(rec.MedicationList) != 1 || rec.MedicationList[0].Name != "Ramipril" {
		t.Errorf("MedicationList=%v", rec.MedicationList)
	}
}

func TestParseStrict_MedicationAsBareString(t *testing.T) {
	t.Parallel()

	rec, err := record.ParseStrict([]byte(`{"medicationList": ["Ramipril"]}`))
	if err != nil {
		t.Fatalf("ParseStrict: err=%v", err)
	}
	if len(rec.MedicationList) != 1 || rec.MedicationList[0].Name != "Ramipril" {
		t.Fatalf("MedicationList=%v, want one entry named Ramipril", rec.MedicationList)
	}
	if rec.MedicationList[0].Dosage != "" {
		t.Errorf("Dosage=%q, want empty (never invented)", rec.MedicationList[0].Dosage)
	}
}

func TestDecodeAny_LegacyConversion(t *testing.T) {
	t.Parallel()

	data := []byte(`{
		"allgemeinzustand": "wach und orientiert",
		"vitalwerte": "Blutdruck 120/80 mmHg, Puls 72/min",
		"medikamente": "Ramipril, Metoprolol",
		"besonderheiten": "Sturz im Bad"
	}`)

	rec, err := record.DecodeAny(data)
	if err != nil {
		t.Fatalf("DecodeAny: err=%v", err)
	}
	if len(rec.Vitals) != 2 {
		t.Fatalf("Vitals=%v, want 2 entries", rec.Vitals)
	}
	if len(rec.MedicationList) != 2 || rec.MedicationList[1].Name != "Metoprolol" {
		t.Errorf("MedicationList=%v", rec.MedicationList)
	}
	if rec.MoodCognition != "wach und orientiert" {
		t.Errorf("MoodCognition=%q", rec.MoodCognition)
	}
	if rec.NotableEvents != "Sturz im Bad" {
		t.Errorf("NotableEvents=%q", rec.NotableEvents)
	}
	// Sections the legacy record never carried stay empty.
	if rec.Mobility != "" || rec.Hygiene != "" || rec.Recommendations != "" {
		t.Errorf("legacy conversion fabricated content: %+v", rec)
	}
}

func TestDecodeAny_CurrentShapePassesThrough(t *testing.T) {
	t.Parallel()

	rec, err := record.DecodeAny([]byte(`{"hygiene": "Ganzkörperpflege übernommen"}`))
	if err != nil {
		t.Fatalf("DecodeAny: err=%v", err)
	}
	if rec.Hygiene != "Ganzkörperpflege übernommen" {
		t.Errorf("Hygiene=%q", rec.Hygiene)
	}
}

func TestDecodeAny_UnknownShape(t *testing.T) {
	t.Parallel()

	if _, err := record.DecodeAny([]byte(`{"foo": 1}`)); err == nil {
		t.Fatal("DecodeAny: err=nil, want unrecognised-shape error")
	}
}

func TestHasMedication_CaseInsensitive(t *testing.T) {
	t.Parallel()

	rec := &record.CareRecord{
		MedicationList: []record.Medication{{Name: "Ramipril", Dosage: "5 mg"}},
	}
	if !rec.HasMedication("ramipril", "5 MG") {
		t.Error("HasMedication(ramipril, 5 MG)=false, want true")
	}
	if rec.HasMedication("Ramipril", "10 mg") {
		t.Error("HasMedication(Ramipril, 10 mg)=true, want false")
	}
}

func TestMapStrings_SkipsEmptySections(t *testing.T) {
	t.Parallel()

	rec := &record.CareRecord{
		Vitals:   []string{"Puls 78/min"},
		Mobility: "Pat. gut drauf",
	}
	rec.MapStrings(func(s string) string {
		return strings.ReplaceAll(s, "gut drauf", "in gutem Allgemeinzustand")
	})

	if rec.Mobility != "Pat. in gutem Allgemeinzustand" {
		t.Errorf("Mobility=%q", rec.Mobility)
	}
	if rec.Hygiene != "" {
		t.Errorf("Hygiene=%q, want empty, MapStrings must not touch empty sections", rec.Hygiene)
	}
}
