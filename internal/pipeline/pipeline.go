// Package pipeline implements the transcript normalization pipeline: six
// ordered stages that turn a raw audio clip into a structured [record.CareRecord].
//
//  1. Transcription through the provider [gateway].
//  2. Learned correction patterns from the [patterns.Store].
//  3. LLM rewrite into professional documentation language.
//  4. LLM structuring into the eight fixed record sections.
//  5. Deterministic enrichment from the medication reference table and the
//     vital-sign extractors.
//  6. Professional-phrase substitution across every record field.
//
// Only the transcription stage can fail the pipeline as a whole. Every LLM
// stage degrades to a deterministic local fallback, so a caregiver always
// gets a draft record even when no language model is reachable.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/curanote/curanote/internal/gateway"
	"github.com/curanote/curanote/internal/meds"
	"github.com/curanote/curanote/internal/observe"
	"github.com/curanote/curanote/internal/patterns"
	"github.com/curanote/curanote/internal/record"
	"github.com/curanote/curanote/pkg/provider/llm"
)

const (
	// defaultRewriteTemperature keeps the language rewrite close to the
	// source text. Clinical facts must survive the rewrite verbatim.
	defaultRewriteTemperature = 0.2

	// defaultStructureTemperature keeps the JSON structuring deterministic.
	defaultStructureTemperature = 0.1
)

// Transcriber is the transcription front of the pipeline, satisfied by
// [gateway.Gateway].
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (*gateway.Transcription, error)
}

var _ Transcriber = (*gateway.Gateway)(nil)

// Result is the output of one pipeline run.
type Result struct {
	// Record is the structured care record draft.
	Record record.CareRecord

	// RawTranscript is the transcript as the winning provider returned it.
	RawTranscript string

	// PolishedTranscript is the transcript after learned corrections and the
	// professional-language rewrite.
	PolishedTranscript string

	// Provider is the name of the transcription provider that produced the
	// raw transcript.
	Provider string

	// Language is the language tag of the polished transcript.
	Language string
}

// Option is a functional option for configuring a [Pipeline].
type Option func(*Pipeline)

// WithRewriteTemperature sets the sampling temperature of the
// professional-language rewrite. Default: 0.2.
func WithRewriteTemperature(temp float64) Option {
	return func(p *Pipeline) {
		p.rewriteTemp = temp
	}
}

// WithStructureTemperature sets the sampling temperature of the record
// structuring stage. Default: 0.1.
func WithStructureTemperature(temp float64) Option {
	return func(p *Pipeline) {
		p.structureTemp = temp
	}
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// Pipeline normalizes voice notes into structured care records. Safe for
// concurrent use.
//
// The language model is optional: with a nil provider both LLM stages run
// their deterministic fallbacks, which keeps the pipeline usable offline.
type Pipeline struct {
	transcriber Transcriber
	model       llm.Provider
	store       *patterns.Store
	matcher     *meds.PhoneticMatcher

	rewriteTemp   float64
	structureTemp float64

	logger  *slog.Logger
	metrics *observe.Metrics
}

// New returns a [Pipeline] over the given transcriber, language model and
// correction pattern store. model may be nil.
func New(transcriber Transcriber, model llm.Provider, store *patterns.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		transcriber:   transcriber,
		model:         model,
		store:         store,
		matcher:       meds.NewPhoneticMatcher(),
		rewriteTemp:   defaultRewriteTemperature,
		structureTemp: defaultStructureTemperature,
		logger:        slog.Default(),
		metrics:       observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Normalize runs audio through all six stages and returns the structured
// draft. The only fatal stage is transcription; every later stage degrades
// to a deterministic fallback instead of failing the run.
func (p *Pipeline) Normalize(ctx context.Context, audio []byte, mimeType string) (*Result, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.normalize")
	defer span.End()

	start := time.Now()
	defer func() {
		p.metrics.NormalizationDuration.Record(ctx, time.Since(start).Seconds())
	}()

	tr, err := p.transcriber.Transcribe(ctx, audio, mimeType)
	if err != nil {
		return nil, fmt.Errorf("pipeline: transcribe: %w", err)
	}
	span.SetAttributes(
		attribute.String("stt.provider", tr.Provider),
		attribute.String("transcript.language", tr.Language),
	)

	corrected := p.store.ApplyLearnedCorrections(tr.Text)
	polished := p.rewrite(ctx, corrected)
	rec := p.structure(ctx, polished)
	p.enrich(rec, polished)
	rec.MapStrings(patterns.ProfessionalizePhrasing)

	return &Result{
		Record:             *rec,
		RawTranscript:      tr.Text,
		PolishedTranscript: polished,
		Provider:           tr.Provider,
		Language:           tr.Language,
	}, nil
}

// NormalizeText runs the text-only stages (2 through 6) on an existing
// transcript. Used when a caregiver edits a transcript by hand and asks for
// the record to be rebuilt.
func (p *Pipeline) NormalizeText(ctx context.Context, transcript string) *Result {
	corrected := p.store.ApplyLearnedCorrections(transcript)
	polished := p.rewrite(ctx, corrected)
	rec := p.structure(ctx, polished)
	p.enrich(rec, polished)
	rec.MapStrings(patterns.ProfessionalizePhrasing)

	return &Result{
		Record:             *rec,
		RawTranscript:      transcript,
		PolishedTranscript: polished,
	}
}

// rewrite runs the professional-language rewrite. On any model failure the
// deterministic local rewrite takes over, so this stage never fails.
func (p *Pipeline) rewrite(ctx context.Context, text string) string {
	if p.model == nil {
		p.metrics.RecordFallback(ctx, "rewrite")
		return p.localRewrite(text)
	}

	start := time.Now()
	resp, err := p.model.Complete(ctx, llm.Request{
		SystemPrompt: rewriteSystemPrompt,
		Prompt:       text,
		Temperature:  p.rewriteTemp,
	})
	p.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.logger.Warn("rewrite model failed, using local rewrite", "error", err)
		p.metrics.RecordFallback(ctx, "rewrite")
		return p.localRewrite(text)
	}

	polished := strings.TrimSpace(stripMarkdownFences(resp.Content))
	if polished == "" {
		p.metrics.RecordFallback(ctx, "rewrite")
		return p.localRewrite(text)
	}
	return polished
}

// structure asks the model to fill the eight record sections. A model
// failure or an unparseable response yields an empty record; the enrichment
// stage still populates vitals and medications deterministically.
func (p *Pipeline) structure(ctx context.Context, polished string) *record.CareRecord {
	if p.model == nil {
		p.metrics.RecordFallback(ctx, "structure")
		return &record.CareRecord{}
	}

	start := time.Now()
	resp, err := p.model.Complete(ctx, llm.Request{
		SystemPrompt: structureSystemPrompt,
		Prompt:       polished,
		Temperature:  p.structureTemp,
	})
	p.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.logger.Warn("structuring model failed, using empty record", "error", err)
		p.metrics.RecordFallback(ctx, "structure")
		return &record.CareRecord{}
	}

	rec, err := record.ParseStrict([]byte(stripMarkdownFences(resp.Content)))
	if err != nil {
		p.logger.Warn("structuring response unparseable, using empty record", "error", err)
		p.metrics.RecordFallback(ctx, "structure")
		return &record.CareRecord{}
	}
	return rec
}

// enrich merges deterministically extracted vitals and medications into the
// record. Entries the model already placed are kept; the extractors only
// fill what is missing, never overwrite.
func (p *Pipeline) enrich(rec *record.CareRecord, text string) {
	for _, v := range meds.ExtractVitals(text) {
		if !containsFold(rec.Vitals, v) {
			rec.Vitals = append(rec.Vitals, v)
		}
	}

	for _, m := range meds.FindMatches(text) {
		name := m.Ref.Canonical
		if rec.HasMedication(name, m.Dosage) {
			continue
		}
		cue := meds.TimeCue(text, m.Position)
		if existing := findMedication(rec, name); existing != nil && existing.Dosage == "" {
			existing.Dosage = m.Dosage
			if existing.Time == "" {
				existing.Time = cue
			}
			continue
		}
		rec.MedicationList = append(rec.MedicationList, record.Medication{
			Name:   name,
			Dosage: m.Dosage,
			Time:   cue,
		})
	}
}

// localRewrite is the deterministic stand-in for the LLM rewrite: phonetic
// medication-name correction, vital phrase normalization and the
// professional-phrase table.
func (p *Pipeline) localRewrite(text string) string {
	text = p.correctMedicationNames(text)
	text = normalizeVitalPhrases(text)
	return patterns.ProfessionalizePhrasing(text)
}

// wordRe matches a run of letters, umlauts included.
var wordRe = regexp.MustCompile(`\pL+`)

// correctMedicationNames replaces words that phonetically match a reference
// medication with the canonical spelling. Short words are left alone; the
// matcher's thresholds keep ordinary German words from being rewritten.
func (p *Pipeline) correctMedicationNames(text string) string {
	refs := meds.References()
	return wordRe.ReplaceAllStringFunc(text, func(word string) string {
		if utf8.RuneCountInString(word) < 5 {
			return word
		}
		ref, _, ok := p.matcher.MatchReference(word, refs)
		if !ok {
			return word
		}
		return ref.Canonical
	})
}

// spokenBloodPressureRe matches a dictated blood pressure reading with a
// spoken separator ("140 zu 90").
var spokenBloodPressureRe = regexp.MustCompile(`(?i)\b(\d{2,3})\s*(?:zu|über|auf|durch)\s*(\d{2,3})\b`)

// normalizeVitalPhrases rewrites spoken vital separators into the written
// form used in documentation.
func normalizeVitalPhrases(text string) string {
	return spokenBloodPressureRe.ReplaceAllString(text, "$1/$2")
}

// stripMarkdownFences removes a surrounding markdown code fence from a model
// response, with or without a language tag.
func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		// Drop the language tag line ("json", "text", ...).
		first := strings.TrimSpace(s[:idx])
		if first != "" && !strings.ContainsAny(first, "{}") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func findMedication(rec *record.CareRecord, name string) *record.Medication {
	for i := range rec.MedicationList {
		if strings.EqualFold(rec.MedicationList[i].Name, name) {
			return &rec.MedicationList[i]
		}
	}
	return nil
}
