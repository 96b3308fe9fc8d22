// Package gateway implements the transcription gateway: an ordered chain of
// speech-to-text providers with per-provider retry budgets and circuit
// breakers, and an optional translation step towards the documentation
// language.
//
// Providers are tried strictly in configuration order. The first provider to
// return a transcript wins; later providers are never consulted. Within one
// provider, transient failures (timeouts, connection resets, DNS errors) are
// retried with linear backoff up to the attempt budget; a non-transient
// failure skips ahead to the next provider immediately.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/curanote/curanote/internal/observe"
	"github.com/curanote/curanote/internal/resilience"
	"github.com/curanote/curanote/pkg/provider/stt"
)

var (
	// ErrNoProviders is returned by [Gateway.Transcribe] when the chain is
	// empty.
	ErrNoProviders = errors.New("gateway: no transcription providers configured")

	// ErrAllProvidersFailed is returned when every provider in the chain
	// exhausted its retry budget or failed non-transiently.
	ErrAllProvidersFailed = errors.New("gateway: all transcription providers failed")
)

// Translator converts a transcript into the documentation language. Used
// when a provider detects a language other than the configured target.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

// Transcription is a successful gateway result: the winning provider's
// transcript plus the name of the provider that produced it.
type Transcription struct {
	// Text is the transcript, translated into the target language when the
	// detected language differed and a translator is configured.
	Text string

	// Language is the language tag of Text.
	Language string

	// Confidence is the provider-reported confidence, zero when unreported.
	Confidence float64

	// Provider is the chain entry name that produced the transcript.
	Provider string
}

// Entry is one named provider in the chain.
type Entry struct {
	Name     string
	Provider stt.Provider
}

// Option is a functional option for configuring a [Gateway].
type Option func(*Gateway)

// WithMaxAttempts sets the per-provider attempt budget. Default: 2.
func WithMaxAttempts(n int) Option {
	return func(g *Gateway) {
		g.maxAttempts = n
	}
}

// WithAttemptTimeout bounds each individual transcription attempt.
// Default: 30s.
func WithAttemptTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.attemptTimeout = d
	}
}

// WithBackoff sets the linear backoff unit between attempts. Default: 1s.
func WithBackoff(d time.Duration) Option {
	return func(g *Gateway) {
		g.backoff = d
	}
}

// WithTranslator sets the translator used when a provider detects a
// language other than the target. Without one, foreign-language transcripts
// are returned as transcribed.
func WithTranslator(tr Translator) Option {
	return func(g *Gateway) {
		g.translator = tr
	}
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// Gateway is an ordered speech-to-text provider chain. Safe for concurrent
// use.
type Gateway struct {
	entries  []Entry
	breakers map[string]*resilience.CircuitBreaker

	targetLanguage string
	translator     Translator

	maxAttempts    int
	attemptTimeout time.Duration
	backoff        time.Duration

	logger  *slog.Logger
	metrics *observe.Metrics
}

// New returns a [Gateway] over the given provider chain. targetLanguage is
// the ISO 639-1 code of the documentation language (e.g. "de").
func New(targetLanguage string, entries []Entry, opts ...Option) *Gateway {
	g := &Gateway{
		entries:        entries,
		breakers:       make(map[string]*resilience.CircuitBreaker, len(entries)),
		targetLanguage: targetLanguage,
		maxAttempts:    2,
		attemptTimeout: 30 * time.Second,
		backoff:        time.Second,
		logger:         slog.Default(),
		metrics:        observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(g)
	}
	for _, e := range entries {
		g.breakers[e.Name] = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name: e.Name,
		})
	}
	return g
}

// Transcribe runs the audio through the provider chain and returns the first
// successful result, translated into the target language when the provider
// detected a different one.
func (g *Gateway) Transcribe(ctx context.Context, audio []byte, mimeType string) (*Transcription, error) {
	if len(g.entries) == 0 {
		return nil, ErrNoProviders
	}

	var errs []error
	for _, entry := range g.entries {
		result, err := g.transcribeWith(ctx, entry, audio, mimeType)
		if err == nil {
			return g.finish(ctx, entry.Name, result)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.logger.Warn("transcription provider failed, trying next",
			"provider", entry.Name, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", entry.Name, err))
	}

	return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}

// transcribeWith runs one provider through its circuit breaker and retry
// budget.
func (g *Gateway) transcribeWith(ctx context.Context, entry Entry, audio []byte, mimeType string) (*stt.Result, error) {
	breaker := g.breakers[entry.Name]

	var result *stt.Result
	err := resilience.Retry(ctx, resilience.RetryConfig{
		Name:           entry.Name,
		MaxAttempts:    g.maxAttempts,
		AttemptTimeout: g.attemptTimeout,
		Backoff:        g.backoff,
	}, func(ctx context.Context) error {
		return breaker.Execute(func() error {
			start := time.Now()
			r, err := entry.Provider.Transcribe(ctx, audio, mimeType)
			g.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())
			if err != nil {
				g.metrics.RecordProviderRequest(ctx, entry.Name, "stt", "error")
				g.metrics.RecordProviderError(ctx, entry.Name, "stt")
				return err
			}
			g.metrics.RecordProviderRequest(ctx, entry.Name, "stt", "ok")
			result = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// finish applies the translation step when the detected language differs
// from the target. Translation failure is not fatal: the untranslated
// transcript is returned.
func (g *Gateway) finish(ctx context.Context, providerName string, result *stt.Result) (*Transcription, error) {
	out := &Transcription{
		Text:       result.Text,
		Language:   result.Language,
		Confidence: result.Confidence,
		Provider:   providerName,
	}
	if result.Language == "" || languageMatches(result.Language, g.targetLanguage) || g.translator == nil {
		return out, nil
	}

	g.logger.Info("translating transcript",
		"provider", providerName,
		"detected_language", result.Language,
		"target_language", g.targetLanguage)

	translated, err := g.translator.Translate(ctx, result.Text, g.targetLanguage)
	if err != nil {
		g.logger.Warn("translation failed, keeping original transcript",
			"provider", providerName, "error", err)
		return out, nil
	}

	out.Text = translated
	out.Language = g.targetLanguage
	return out, nil
}

// languageMatches compares a detected language tag ("de", "de-DE") against
// the target code.
func languageMatches(detected, target string) bool {
	detected = strings.ToLower(detected)
	target = strings.ToLower(target)
	return detected == target || strings.HasPrefix(detected, target+"-") || strings.HasPrefix(detected, target+"_")
}
