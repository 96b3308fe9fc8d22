// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to script transcription results and verify which clips were
// submitted:
//
//	p := &mock.Provider{Result: &stt.Result{Text: "Blutdruck 120 zu 80"}}
//	res, _ := p.Transcribe(ctx, clip, "audio/wav")
package mock

import (
	"context"
	"sync"

	"github.com/curanote/curanote/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Audio is a copy of the clip bytes passed to Transcribe.
	Audio []byte
	// MimeType is the declared mime type passed to Transcribe.
	MimeType string
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned on success. If nil and Err is nil, an empty Result
	// is returned.
	Result *stt.Result

	// Err, if non-nil, is returned from every Transcribe call.
	Err error

	// Errs, if non-empty, is consumed one entry per call before falling back
	// to Err/Result. A nil entry means that call succeeds. This makes
	// fail-then-recover retry sequences scriptable.
	Errs []error

	// Calls records every invocation.
	Calls []TranscribeCall
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// Transcribe records the call and returns the scripted result.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, mimeType string) (*stt.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cp := make([]byte, len(audio))
	copy(cp, audio)
	p.Calls = append(p.Calls, TranscribeCall{Audio: cp, MimeType: mimeType})

	if len(p.Errs) > 0 {
		err := p.Errs[0]
		p.Errs = p.Errs[1:]
		if err != nil {
			return nil, err
		}
		return p.result(), nil
	}
	if p.Err != nil {
		return nil, p.Err
	}
	return p.result(), nil
}

// result must be called with p.mu held.
func (p *Provider) result() *stt.Result {
	if p.Result != nil {
		r := *p.Result
		return &r
	}
	return &stt.Result{}
}

// CallCount returns the number of recorded Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls and scripted errors. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
	p.Errs = nil
}
