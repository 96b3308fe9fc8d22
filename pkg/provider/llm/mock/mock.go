// Package mock provides a scripted test double for the llm package.
package mock

import (
	"context"
	"sync"

	"github.com/curanote/curanote/pkg/provider/llm"
)

// Provider is a mock implementation of llm.Provider.
//
// Responses are consumed in order; when the scripted responses run out, the
// final Response/Err pair is repeated. CompleteFunc, when set, overrides all
// scripting.
type Provider struct {
	mu sync.Mutex

	// Response is the default reply content.
	Response string

	// Err, if non-nil, is returned from Complete.
	Err error

	// Responses, if non-empty, is consumed one entry per call before falling
	// back to Response/Err.
	Responses []string

	// CompleteFunc, if non-nil, fully replaces the scripted behaviour.
	CompleteFunc func(ctx context.Context, req llm.Request) (*llm.Response, error)

	// Requests records every request passed to Complete.
	Requests []llm.Request
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)

// Complete records the call and returns the scripted response.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	p.Requests = append(p.Requests, req)
	fn := p.CompleteFunc
	var content string
	if len(p.Responses) > 0 {
		content = p.Responses[0]
		p.Responses = p.Responses[1:]
	} else {
		content = p.Response
	}
	err := p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return &llm.Response{Content: content}, nil
}

// RequestCount returns the number of recorded calls. Thread-safe.
func (p *Provider) RequestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}
