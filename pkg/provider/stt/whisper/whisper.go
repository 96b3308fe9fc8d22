// Package whisper provides an STT provider backed by a local faster-whisper
// HTTP sidecar. It implements the stt.Provider interface and is the usual
// choice for deployments that must transcribe without a cloud dependency.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/curanote/curanote/pkg/provider/stt"
)

const (
	defaultURL     = "http://localhost:8387"
	defaultModel   = "base"
	defaultTimeout = 120 * time.Second
)

// Option is a functional option for configuring the whisper Provider.
type Option func(*Provider)

// WithModel sets the whisper model name (e.g., "base", "large-v3").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage pins the recognition language (ISO 639-1, e.g. "de"). When
// empty, the sidecar auto-detects.
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithTimeout sets the HTTP request timeout. Default: 120s, since local inference
// on CPU can be slow for long clips.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.client.Timeout = d
	}
}

// Provider implements stt.Provider using a faster-whisper HTTP sidecar.
type Provider struct {
	baseURL  string
	model    string
	language string
	client   *http.Client
}

// Compile-time interface assertion.
var _ stt.Provider = (*Provider)(nil)

// New creates a whisper Provider talking to the sidecar at baseURL.
// An empty baseURL selects the default local address.
func New(baseURL string, opts ...Option) *Provider {
	if baseURL == "" {
		baseURL = defaultURL
	}
	p := &Provider{
		baseURL: baseURL,
		model:   defaultModel,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// sidecarResponse models the sidecar's /transcribe JSON response.
type sidecarResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Transcribe implements stt.Provider. The clip is uploaded as a multipart
// form to the sidecar's /transcribe endpoint.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, mimeType string) (*stt.Result, error) {
	if len(audio) == 0 {
		return nil, errors.New("whisper: audio must not be empty")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("whisper: write audio data: %w", err)
	}
	_ = writer.WriteField("model", p.model)
	if p.language != "" {
		_ = writer.WriteField("language", p.language)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/transcribe", &buf)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("whisper: status %d: %s", resp.StatusCode, body)
	}

	var result sidecarResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("whisper: decode response: %w", err)
	}

	return &stt.Result{
		Text:     result.Text,
		Language: result.Language,
	}, nil
}
