// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a transcription service (e.g., OpenAI, Deepgram, or a
// local Whisper sidecar) and exposes a uniform batch interface: a complete
// audio clip goes in, a single [Result] comes out. Streaming recognition is
// deliberately out of scope: care notes are short recorded clips, not live
// audio, and the batch contract is what the fallback gateway needs to retry
// a clip against multiple backends.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Result is the uniform transcription result shape returned by every provider.
type Result struct {
	// Text is the transcribed speech content.
	Text string

	// Language is the BCP-47 language tag the provider detected (e.g., "de",
	// "en-US"). Empty when the provider does not report a language.
	Language string

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// provider does not report confidence.
	Confidence float64
}

// Provider is the abstraction over any batch STT backend.
//
// Implementations must be safe for concurrent use. Multiple clips may be in
// flight simultaneously.
type Provider interface {
	// Transcribe submits a complete audio clip for recognition and blocks
	// until the provider returns a result or ctx is done.
	//
	// audio is the raw clip bytes; mimeType declares its container format
	// (e.g., "audio/wav", "audio/ogg"). Providers that cannot handle the
	// given format must return an error rather than guessing.
	Transcribe(ctx context.Context, audio []byte, mimeType string) (*Result, error)
}
