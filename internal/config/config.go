// Package config provides the configuration schema and loader for the
// curanote service.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity for the curanote server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Duration wraps [time.Duration] with YAML decoding from Go duration
// strings like "30s" or "168h".
type Duration time.Duration

// UnmarshalYAML decodes a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped [time.Duration].
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration structure for curanote.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Storage   StorageConfig   `yaml:"storage"`
	Backend   BackendConfig   `yaml:"backend"`
	Queues    QueuesConfig    `yaml:"queues"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MaxUploadMB bounds a single audio upload in mebibytes. 0 means the
	// built-in default.
	MaxUploadMB int `yaml:"max_upload_mb"`
}

// ProvidersConfig declares the speech-to-text chain and the language model.
type ProvidersConfig struct {
	// STT is the ordered transcription provider chain. The first provider to
	// return a transcript wins.
	STT []ProviderEntry `yaml:"stt"`

	// LLM is the language model used for the rewrite and structuring stages.
	// Leaving it unconfigured runs the deterministic fallbacks only.
	LLM ProviderEntry `yaml:"llm"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. API keys support ${ENV_VAR} expansion at load time.
type ProviderEntry struct {
	// Name selects the provider implementation (e.g., "deepgram", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini",
	// "nova-2").
	Model string `yaml:"model"`
}

// PipelineConfig holds normalization pipeline settings.
type PipelineConfig struct {
	// Language is the ISO 639-1 code of the documentation language.
	// Default: "de".
	Language string `yaml:"language"`

	// MaxAttempts is the per-provider transcription attempt budget.
	// 0 means the built-in default of 2.
	MaxAttempts int `yaml:"max_attempts"`

	// AttemptTimeout bounds one transcription attempt. 0 means 30s.
	AttemptTimeout Duration `yaml:"attempt_timeout"`

	// RewriteTemperature is the sampling temperature of the
	// professional-language rewrite. 0 means the built-in default.
	RewriteTemperature float64 `yaml:"rewrite_temperature"`
}

// StorageConfig holds the offline store settings.
type StorageConfig struct {
	// Path is the SQLite database file backing the offline store.
	Path string `yaml:"path"`
}

// BackendConfig describes the care-record backend the queues deliver to.
// An empty BaseURL runs the service in offline-only mode: everything queues
// locally and nothing is delivered.
type BackendConfig struct {
	// BaseURL is the backend API root (e.g., "https://records.example.com").
	BaseURL string `yaml:"base_url"`

	// APIKey is sent as a Bearer token on every request. Supports ${ENV_VAR}
	// expansion.
	APIKey string `yaml:"api_key"`
}

// QueuesConfig holds the offline queue timings.
type QueuesConfig struct {
	// FlushInterval is the action queue's periodic flush interval. 0 means 30s.
	FlushInterval Duration `yaml:"flush_interval"`

	// SweepInterval is the audio queue's periodic sweep interval. 0 means 30s.
	SweepInterval Duration `yaml:"sweep_interval"`

	// Retention is how long audio clips are kept before the sweep purges
	// them regardless of processed state. 0 means 7 days.
	Retention Duration `yaml:"retention"`

	// ProbeInterval is how often the connectivity monitor probes the
	// backend. 0 means 15s.
	ProbeInterval Duration `yaml:"probe_interval"`
}
