package config

import (
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
providers:
  stt:
    - name: deepgram
      api_key: key-123
`

func TestLoadFromReaderMinimal(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(minimalYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr default: got %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != LogInfo {
		t.Errorf("log_level default: got %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Pipeline.Language != "de" {
		t.Errorf("language default: got %q, want de", cfg.Pipeline.Language)
	}
	if cfg.Storage.Path != "curanote.db" {
		t.Errorf("storage path default: got %q, want curanote.db", cfg.Storage.Path)
	}
	if len(cfg.Providers.STT) != 1 || cfg.Providers.STT[0].Name != "deepgram" {
		t.Errorf("stt chain: got %+v", cfg.Providers.STT)
	}
}

func TestLoadFromReaderFull(t *testing.T) {
	yaml := `
server:
  listen_addr: ":9090"
  log_level: debug
  max_upload_mb: 16
providers:
  stt:
    - name: deepgram
      api_key: dg-key
      model: nova-2
    - name: whisper
      base_url: http://localhost:9000
  llm:
    name: openai
    api_key: oa-key
    model: gpt-4o-mini
pipeline:
  language: de
  max_attempts: 3
  attempt_timeout: 20s
  rewrite_temperature: 0.3
storage:
  path: /var/lib/curanote/offline.db
backend:
  base_url: https://records.example.com
  api_key: backend-key
queues:
  flush_interval: 10s
  sweep_interval: 15s
  retention: 168h
  probe_interval: 5s
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if got := cfg.Pipeline.AttemptTimeout.Std(); got != 20*time.Second {
		t.Errorf("attempt_timeout: got %v, want 20s", got)
	}
	if got := cfg.Queues.Retention.Std(); got != 168*time.Hour {
		t.Errorf("retention: got %v, want 168h", got)
	}
	if len(cfg.Providers.STT) != 2 {
		t.Fatalf("stt chain: got %d providers, want 2", len(cfg.Providers.STT))
	}
	if cfg.Providers.STT[1].BaseURL != "http://localhost:9000" {
		t.Errorf("stt[1].base_url: got %q", cfg.Providers.STT[1].BaseURL)
	}
	if cfg.Backend.BaseURL != "https://records.example.com" {
		t.Errorf("backend base_url: got %q", cfg.Backend.BaseURL)
	}
}

func TestLoadFromReaderExpandsEnvSecrets(t *testing.T) {
	t.Setenv("CURANOTE_TEST_DG_KEY", "secret-from-env")

	yaml := `
providers:
  stt:
    - name: deepgram
      api_key: ${CURANOTE_TEST_DG_KEY}
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Providers.STT[0].APIKey != "secret-from-env" {
		t.Errorf("api_key: got %q, want expanded env value", cfg.Providers.STT[0].APIKey)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	yaml := `
providers:
  stt:
    - name: deepgram
transcription_chain: [deepgram]
`
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("LoadFromReader: expected error for unknown field, got nil")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	yaml := `
server:
  log_level: loud
providers:
  stt:
    - name: deepgram
    - name: deepgram
pipeline:
  rewrite_temperature: 3.5
`
	_, err := LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("LoadFromReader: expected validation error, got nil")
	}
	for _, want := range []string{"log_level", "duplicate", "rewrite_temperature"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q: missing %q", err, want)
		}
	}
}

func TestValidateRequiresSTTProvider(t *testing.T) {
	if _, err := LoadFromReader(strings.NewReader("server:\n  listen_addr: \":8080\"\n")); err == nil {
		t.Fatal("LoadFromReader: expected error for empty stt chain, got nil")
	}
}

func TestDurationRejectsGarbage(t *testing.T) {
	yaml := `
providers:
  stt:
    - name: deepgram
queues:
  retention: soon
`
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("LoadFromReader: expected error for invalid duration, got nil")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load("/nonexistent/curanote.yaml"); err == nil {
		t.Fatal("Load: expected error for missing file, got nil")
	}
}
