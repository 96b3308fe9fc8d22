package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"openai", "deepgram", "whisper"},
	"llm": {"openai", "anyllm"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${ENV_VAR} references
// in API keys, applies defaults and validates the result. Useful in tests
// where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	expandSecrets(cfg)
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandSecrets resolves ${ENV_VAR} references in credential fields so keys
// never have to live in the config file itself.
func expandSecrets(cfg *Config) {
	for i := range cfg.Providers.STT {
		cfg.Providers.STT[i].APIKey = os.ExpandEnv(cfg.Providers.STT[i].APIKey)
	}
	cfg.Providers.LLM.APIKey = os.ExpandEnv(cfg.Providers.LLM.APIKey)
	cfg.Backend.APIKey = os.ExpandEnv(cfg.Backend.APIKey)
}

// applyDefaults fills zero values with the built-in defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Pipeline.Language == "" {
		cfg.Pipeline.Language = "de"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "curanote.db"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxUploadMB < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb %d must not be negative", cfg.Server.MaxUploadMB))
	}

	if len(cfg.Providers.STT) == 0 {
		errs = append(errs, errors.New("providers.stt requires at least one transcription provider"))
	}
	sttNamesSeen := make(map[string]int, len(cfg.Providers.STT))
	for i, p := range cfg.Providers.STT {
		prefix := fmt.Sprintf("providers.stt[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if prev, ok := sttNamesSeen[p.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of providers.stt[%d]", prefix, p.Name, prev))
		}
		sttNamesSeen[p.Name] = i
		validateProviderName("stt", p.Name)
	}
	validateProviderName("llm", cfg.Providers.LLM.Name)

	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; rewrite and structuring run on deterministic fallbacks only")
	}
	if cfg.Backend.BaseURL == "" {
		slog.Warn("backend.base_url is empty; running offline-only, queued work is never delivered")
	}

	if cfg.Pipeline.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_attempts %d must not be negative", cfg.Pipeline.MaxAttempts))
	}
	if cfg.Pipeline.RewriteTemperature < 0 || cfg.Pipeline.RewriteTemperature > 2 {
		errs = append(errs, fmt.Errorf("pipeline.rewrite_temperature %.2f is out of range [0, 2]", cfg.Pipeline.RewriteTemperature))
	}

	for name, d := range map[string]Duration{
		"queues.flush_interval": cfg.Queues.FlushInterval,
		"queues.sweep_interval": cfg.Queues.SweepInterval,
		"queues.retention":      cfg.Queues.Retention,
		"queues.probe_interval": cfg.Queues.ProbeInterval,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
