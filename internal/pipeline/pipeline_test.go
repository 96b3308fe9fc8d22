package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/curanote/curanote/internal/gateway"
	"github.com/curanote/curanote/internal/patterns"
	llmmock "github.com/curanote/curanote/pkg/provider/llm/mock"
)

type stubTranscriber struct {
	text  string
	err   error
	calls int
}

func (s *stubTranscriber) Transcribe(_ context.Context, _ []byte, _ string) (*gateway.Transcription, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &gateway.Transcription{Text: s.text, Language: "de", Provider: "mock"}, nil
}

const emptySections = `"mobility":"","nutritionFluid":"","hygiene":"","moodCognition":"","notableEvents":"","recommendations":""`

func TestNormalizeEndToEnd(t *testing.T) {
	t.Parallel()

	tr := &stubTranscriber{text: "Blutdruck 140 zu 90, Puls 78, Ramipril 5 Milligramm morgens"}
	model := &llmmock.Provider{Responses: []string{
		"Blutdruck 140/90 mmHg, Puls 78/min, Ramipril 5 mg morgens verabreicht.",
		`{"vitals":["Blutdruck 140/90 mmHg"],"medicationList":[{"name":"Ramipril","dosage":"5 mg","time":"morgens"}],` + emptySections + `}`,
	}}

	p := New(tr, model, patterns.New())
	res, err := p.Normalize(context.Background(), []byte("clip"), "audio/wav")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	wantVitals := []string{"Blutdruck 140/90 mmHg", "Puls 78/min"}
	if len(res.Record.Vitals) != len(wantVitals) {
		t.Fatalf("vitals: got %v, want %v", res.Record.Vitals, wantVitals)
	}
	for i, v := range wantVitals {
		if res.Record.Vitals[i] != v {
			t.Errorf("vitals[%d]: got %q, want %q", i, res.Record.Vitals[i], v)
		}
	}

	if len(res.Record.MedicationList) != 1 {
		t.Fatalf("medications: got %v, want exactly one entry", res.Record.MedicationList)
	}
	m := res.Record.MedicationList[0]
	if m.Name != "Ramipril" || m.Dosage != "5 mg" || m.Time != "morgens" {
		t.Errorf("medication: got %+v, want {Ramipril 5 mg morgens}", m)
	}

	// The note never mentions mobility, so the section must stay empty.
	if res.Record.Mobility != "" {
		t.Errorf("mobility: got %q, want empty", res.Record.Mobility)
	}

	if res.RawTranscript != tr.text {
		t.Errorf("raw transcript: got %q", res.RawTranscript)
	}
	if res.Provider != "mock" {
		t.Errorf("provider: got %q, want mock", res.Provider)
	}
	if model.RequestCount() != 2 {
		t.Errorf("model calls: got %d, want 2", model.RequestCount())
	}
}

func TestNormalizeEnrichmentFillsMissingDosage(t *testing.T) {
	t.Parallel()

	tr := &stubTranscriber{text: "Ramipril fünf Milligramm morgens gegeben"}
	model := &llmmock.Provider{Responses: []string{
		"Ramipril 5 mg morgens verabreicht.",
		`{"vitals":[],"medicationList":[{"name":"Ramipril","dosage":"","time":""}],` + emptySections + `}`,
	}}

	p := New(tr, model, patterns.New())
	res, err := p.Normalize(context.Background(), []byte("clip"), "audio/wav")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if len(res.Record.MedicationList) != 1 {
		t.Fatalf("medications: got %v, want exactly one entry", res.Record.MedicationList)
	}
	m := res.Record.MedicationList[0]
	if m.Dosage != "5 mg" || m.Time != "morgens" {
		t.Errorf("medication: got %+v, want dosage and time filled in", m)
	}
}

func TestNormalizeModelFailureRunsLocalFallbacks(t *testing.T) {
	t.Parallel()

	tr := &stubTranscriber{text: "Blutdruck 140 zu 90, er hat gut gegessen, ramipriel 5 mg abends"}
	model := &llmmock.Provider{Err: errors.New("model unreachable")}

	p := New(tr, model, patterns.New())
	res, err := p.Normalize(context.Background(), []byte("clip"), "audio/wav")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if !strings.Contains(res.PolishedTranscript, "140/90") {
		t.Errorf("polished transcript %q: blood pressure not normalized", res.PolishedTranscript)
	}
	if !strings.Contains(res.PolishedTranscript, "Ramipril") {
		t.Errorf("polished transcript %q: medication name not corrected", res.PolishedTranscript)
	}
	if !strings.Contains(res.PolishedTranscript, "hat die Mahlzeiten vollständig eingenommen") {
		t.Errorf("polished transcript %q: casual phrasing not rewritten", res.PolishedTranscript)
	}

	if len(res.Record.Vitals) == 0 || res.Record.Vitals[0] != "Blutdruck 140/90 mmHg" {
		t.Errorf("vitals: got %v, want Blutdruck 140/90 mmHg first", res.Record.Vitals)
	}
	if !res.Record.HasMedication("Ramipril", "5 mg") {
		t.Errorf("medications: got %v, want Ramipril 5 mg", res.Record.MedicationList)
	}
	if len(res.Record.MedicationList) > 0 && res.Record.MedicationList[0].Time != "abends" {
		t.Errorf("medication time: got %q, want abends", res.Record.MedicationList[0].Time)
	}
}

func TestNormalizeNilModelUsesFallbacks(t *testing.T) {
	t.Parallel()

	tr := &stubTranscriber{text: "Puls 82, Pantoprazol 40 mg morgens"}

	p := New(tr, nil, patterns.New())
	res, err := p.Normalize(context.Background(), []byte("clip"), "audio/wav")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !res.Record.HasMedication("Pantoprazol", "40 mg") {
		t.Errorf("medications: got %v, want Pantoprazol 40 mg", res.Record.MedicationList)
	}
	if len(res.Record.Vitals) != 1 || res.Record.Vitals[0] != "Puls 82/min" {
		t.Errorf("vitals: got %v, want [Puls 82/min]", res.Record.Vitals)
	}
}

func TestNormalizeUnparseableStructuringYieldsEmptyRecord(t *testing.T) {
	t.Parallel()

	tr := &stubTranscriber{text: "Der Bewohner war heute ruhig."}
	model := &llmmock.Provider{Responses: []string{
		"Der Bewohner zeigte sich heute ruhig.",
		"Sorry, I cannot produce JSON for this note.",
	}}

	p := New(tr, model, patterns.New())
	res, err := p.Normalize(context.Background(), []byte("clip"), "audio/wav")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !res.Record.IsEmpty() {
		t.Errorf("record: got %+v, want empty record", res.Record)
	}
}

func TestNormalizeTranscriptionErrorPropagates(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("all providers down")
	tr := &stubTranscriber{err: wantErr}
	model := &llmmock.Provider{}

	p := New(tr, model, patterns.New())
	if _, err := p.Normalize(context.Background(), []byte("clip"), "audio/wav"); !errors.Is(err, wantErr) {
		t.Fatalf("Normalize: got %v, want wrapped transcription error", err)
	}
	if model.RequestCount() != 0 {
		t.Errorf("model calls: got %d, want 0 after transcription failure", model.RequestCount())
	}
}

func TestNormalizeTextSkipsTranscription(t *testing.T) {
	t.Parallel()

	model := &llmmock.Provider{Responses: []string{
		"Metamizol 500 mg bei Bedarf verabreicht.",
		`{"vitals":[],"medicationList":[],` + emptySections + `}`,
	}}

	p := New(nil, model, patterns.New())
	res := p.NormalizeText(context.Background(), "Novalgin 500 mg bei Bedarf gegeben")

	if res.RawTranscript != "Novalgin 500 mg bei Bedarf gegeben" {
		t.Errorf("raw transcript: got %q", res.RawTranscript)
	}
	if !res.Record.HasMedication("Metamizol", "500 mg") {
		t.Errorf("medications: got %v, want Metamizol 500 mg", res.Record.MedicationList)
	}
}

func TestStructuringResponseWithMarkdownFence(t *testing.T) {
	t.Parallel()

	tr := &stubTranscriber{text: "Gewicht 72 kg"}
	model := &llmmock.Provider{Responses: []string{
		"Gewicht 72 kg.",
		"```json\n{\"vitals\":[\"Gewicht 72 kg\"],\"medicationList\":[]," + emptySections + "}\n```",
	}}

	p := New(tr, model, patterns.New())
	res, err := p.Normalize(context.Background(), []byte("clip"), "audio/wav")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(res.Record.Vitals) != 1 || res.Record.Vitals[0] != "Gewicht 72 kg" {
		t.Errorf("vitals: got %v, want [Gewicht 72 kg]", res.Record.Vitals)
	}
}

func TestStripMarkdownFences(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced json tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no tag", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced text", "```text\nHallo Welt\n```", "Hallo Welt"},
		{"surrounding whitespace", "  \n{\"a\":1}\n ", `{"a":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := stripMarkdownFences(tc.in); got != tc.want {
				t.Errorf("stripMarkdownFences(%q): got %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestLocalRewrite(t *testing.T) {
	t.Parallel()

	p := New(nil, nil, patterns.New())
	got := p.localRewrite("Blutdruck 130 zu 85, pantosol 20 mg gegeben")

	if !strings.Contains(got, "130/85") {
		t.Errorf("localRewrite: got %q, want normalized blood pressure", got)
	}
	if !strings.Contains(got, "Pantoprazol") {
		t.Errorf("localRewrite: got %q, want corrected medication name", got)
	}
}
