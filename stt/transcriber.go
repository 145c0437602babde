package stt

import "context"

// Transcriber turns one WAV-encoded utterance into text. An empty string
// means nothing intelligible was said.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

type TranscriberFunc func(ctx context.Context, wav []byte) (string, error)

func (f TranscriberFunc) Transcribe(ctx context.Context, wav []byte) (string, error) {
	return f(ctx, wav)
}
