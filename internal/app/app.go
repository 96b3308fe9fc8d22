// Package app wires all curanote subsystems into a running service.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems from the config, Run executes the background loops and the HTTP
// server, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithSTTEntries,
// WithLLMProvider, WithBackend). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/curanote/curanote/internal/api"
	"github.com/curanote/curanote/internal/config"
	"github.com/curanote/curanote/internal/events"
	"github.com/curanote/curanote/internal/gateway"
	"github.com/curanote/curanote/internal/health"
	"github.com/curanote/curanote/internal/offline"
	"github.com/curanote/curanote/internal/patterns"
	"github.com/curanote/curanote/internal/pipeline"
	"github.com/curanote/curanote/internal/remote"
	"github.com/curanote/curanote/pkg/provider/llm"
	"github.com/curanote/curanote/pkg/provider/llm/anyllm"
	llmopenai "github.com/curanote/curanote/pkg/provider/llm/openai"
	"github.com/curanote/curanote/pkg/provider/stt"
	"github.com/curanote/curanote/pkg/provider/stt/deepgram"
	sttopenai "github.com/curanote/curanote/pkg/provider/stt/openai"
	"github.com/curanote/curanote/pkg/provider/stt/whisper"
)

// shutdownTimeout bounds the HTTP server drain during Run teardown.
const shutdownTimeout = 10 * time.Second

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSTTEntries injects the transcription provider chain instead of
// building it from the config.
func WithSTTEntries(entries []gateway.Entry) Option {
	return func(a *App) { a.sttEntries = entries }
}

// WithLLMProvider injects the language model instead of building it from the
// config.
func WithLLMProvider(p llm.Provider) Option {
	return func(a *App) {
		a.model = p
		a.modelInjected = true
	}
}

// WithBackend injects the care-record backend instead of creating a
// [remote.Client] from the config.
func WithBackend(b offline.Backend) Option {
	return func(a *App) { a.backend = b }
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// App owns all subsystem lifetimes.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	sttEntries    []gateway.Entry
	model         llm.Provider
	modelInjected bool
	backend       offline.Backend

	store    *offline.Store
	bus      *events.Bus
	patterns *patterns.Store
	gateway  *gateway.Gateway
	pipe     *pipeline.Pipeline
	actions  *offline.ActionQueue
	audio    *offline.AudioQueue
	monitor  *offline.Monitor
	server   *http.Server

	// closers are called in reverse order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// New creates an App by wiring all subsystems together. Use Option functions
// to inject test doubles for providers and the backend.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}

	store, err := offline.OpenStore(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("app: open offline store: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	a.bus = events.NewBus()
	a.patterns = patterns.New()

	a.initBackend()
	if err := a.initProviders(); err != nil {
		a.Shutdown()
		return nil, err
	}
	a.initPipeline()
	a.initQueues()
	a.initServer()

	return a, nil
}

// initBackend creates the remote client unless one was injected. Without a
// configured base URL the service runs offline-only: every probe fails and
// all work stays queued locally.
func (a *App) initBackend() {
	if a.backend != nil {
		return
	}
	if a.cfg.Backend.BaseURL == "" {
		a.backend = unconfiguredBackend{}
		return
	}

	var opts []remote.Option
	if a.cfg.Backend.APIKey != "" {
		opts = append(opts, remote.WithAPIKey(a.cfg.Backend.APIKey))
	}
	a.backend = remote.New(a.cfg.Backend.BaseURL, opts...)
}

// initProviders builds the transcription chain and the language model from
// the config unless they were injected.
func (a *App) initProviders() error {
	if a.sttEntries == nil {
		for _, entry := range a.cfg.Providers.STT {
			p, err := buildSTTProvider(entry, a.cfg.Pipeline.Language)
			if err != nil {
				return fmt.Errorf("app: init stt provider %q: %w", entry.Name, err)
			}
			a.sttEntries = append(a.sttEntries, gateway.Entry{Name: entry.Name, Provider: p})
		}
	}

	if !a.modelInjected && a.cfg.Providers.LLM.Name != "" {
		model, err := buildLLMProvider(a.cfg.Providers.LLM)
		if err != nil {
			return fmt.Errorf("app: init llm provider %q: %w", a.cfg.Providers.LLM.Name, err)
		}
		a.model = model
	}
	return nil
}

// initPipeline assembles the gateway and the normalization pipeline.
func (a *App) initPipeline() {
	gwOpts := []gateway.Option{gateway.WithLogger(a.logger)}
	if a.cfg.Pipeline.MaxAttempts > 0 {
		gwOpts = append(gwOpts, gateway.WithMaxAttempts(a.cfg.Pipeline.MaxAttempts))
	}
	if d := a.cfg.Pipeline.AttemptTimeout.Std(); d > 0 {
		gwOpts = append(gwOpts, gateway.WithAttemptTimeout(d))
	}
	if a.model != nil {
		gwOpts = append(gwOpts, gateway.WithTranslator(gateway.NewLLMTranslator(a.model)))
	}
	a.gateway = gateway.New(a.cfg.Pipeline.Language, a.sttEntries, gwOpts...)

	pipeOpts := []pipeline.Option{pipeline.WithLogger(a.logger)}
	if a.cfg.Pipeline.RewriteTemperature > 0 {
		pipeOpts = append(pipeOpts, pipeline.WithRewriteTemperature(a.cfg.Pipeline.RewriteTemperature))
	}
	a.pipe = pipeline.New(a.gateway, a.model, a.patterns, pipeOpts...)
}

// initQueues assembles the offline queues and the connectivity monitor. The
// audio queue's processor runs the pipeline and submits the resulting draft
// through the action queue.
func (a *App) initQueues() {
	actionOpts := []offline.ActionQueueOption{offline.WithActionLogger(a.logger)}
	if d := a.cfg.Queues.FlushInterval.Std(); d > 0 {
		actionOpts = append(actionOpts, offline.WithActionFlushInterval(d))
	}
	a.actions = offline.NewActionQueue(a.store, a.backend, a.bus, actionOpts...)

	audioOpts := []offline.AudioQueueOption{
		offline.WithAudioLogger(a.logger),
		offline.WithAudioProbe(a.backend.Ping),
	}
	if d := a.cfg.Queues.SweepInterval.Std(); d > 0 {
		audioOpts = append(audioOpts, offline.WithSweepInterval(d))
	}
	if d := a.cfg.Queues.Retention.Std(); d > 0 {
		audioOpts = append(audioOpts, offline.WithRetention(d))
	}
	a.audio = offline.NewAudioQueue(a.store, offline.ProcessorFunc(a.processClip), a.bus, audioOpts...)

	monitorOpts := []offline.MonitorOption{offline.WithMonitorLogger(a.logger)}
	if d := a.cfg.Queues.ProbeInterval.Std(); d > 0 {
		monitorOpts = append(monitorOpts, offline.WithProbeInterval(d))
	}
	a.monitor = offline.NewMonitor(a.backend.Ping, a.bus, monitorOpts...)
}

// initServer assembles the HTTP surface.
func (a *App) initServer() {
	healthHandler := health.New(
		health.Checker{Name: "storage", Check: func(ctx context.Context) error {
			_, err := a.store.Count(ctx, offline.KeyspaceActions)
			return err
		}},
		health.Checker{Name: "backend", Check: a.backend.Ping},
	)

	apiOpts := []api.Option{api.WithLogger(a.logger)}
	if a.cfg.Server.MaxUploadMB > 0 {
		apiOpts = append(apiOpts, api.WithMaxUploadBytes(int64(a.cfg.Server.MaxUploadMB)<<20))
	}
	server := api.New(a.audio, a.actions, a.store, a.monitor, a.patterns, healthHandler, apiOpts...)

	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run executes the background loops and the HTTP server until ctx is
// cancelled, then drains the server. A clean cancellation returns nil.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.monitor.Run(ctx) })
	g.Go(func() error { return a.actions.Run(ctx) })
	g.Go(func() error { return a.audio.Run(ctx) })

	g.Go(func() error {
		a.logger.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Shutdown releases all resources. Safe to call more than once.
func (a *App) Shutdown() {
	a.stopOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				a.logger.Error("shutdown closer failed", "error", err)
			}
		}
	})
}

// buildSTTProvider constructs one transcription provider from its config
// entry.
func buildSTTProvider(entry config.ProviderEntry, language string) (stt.Provider, error) {
	switch entry.Name {
	case "openai":
		var opts []sttopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		if language != "" {
			opts = append(opts, sttopenai.WithLanguage(language))
		}
		return sttopenai.New(entry.APIKey, entry.Model, opts...)
	case "deepgram":
		opts := []deepgram.Option{}
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
		}
		if language != "" {
			opts = append(opts, deepgram.WithLanguage(language))
		}
		return deepgram.New(entry.APIKey, opts...)
	case "whisper":
		opts := []whisper.Option{}
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if language != "" {
			opts = append(opts, whisper.WithLanguage(language))
		}
		return whisper.New(entry.BaseURL, opts...), nil
	default:
		return nil, fmt.Errorf("unknown stt provider %q", entry.Name)
	}
}

// buildLLMProvider constructs the language model from its config entry.
func buildLLMProvider(entry config.ProviderEntry) (llm.Provider, error) {
	switch entry.Name {
	case "openai":
		var opts []llmopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(entry.BaseURL))
		}
		return llmopenai.New(entry.APIKey, entry.Model, opts...)
	case "anyllm":
		return buildAnyLLM(entry)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", entry.Name)
	}
}

// buildAnyLLM constructs the any-llm-go backed provider. The model field
// carries both halves as "backend/model" (e.g. "ollama/llama3.1").
func buildAnyLLM(entry config.ProviderEntry) (llm.Provider, error) {
	backendName, model, ok := strings.Cut(entry.Model, "/")
	if !ok {
		return nil, fmt.Errorf("anyllm model %q must be of the form backend/model", entry.Model)
	}
	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return anyllm.New(backendName, model, opts...)
}

// unconfiguredBackend stands in when no backend base URL is configured.
// Every probe and delivery fails, so all work queues locally.
type unconfiguredBackend struct{}

var errNoBackend = errors.New("app: no backend configured")

func (unconfiguredBackend) Ping(context.Context) error { return errNoBackend }

func (unconfiguredBackend) Deliver(context.Context, remote.Action) error { return errNoBackend }
