package core

import (
	"context"
	"sync"
)

// Test doubles with per-test behaviour.

type fakeGenerator struct {
	mu       sync.Mutex
	calls    int
	prompts  []string
	generate func(ctx context.Context, prompt string, d Decoding) (string, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, d Decoding) (string, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.generate(ctx, prompt, d)
}

type fakeTranslator struct {
	translate func(ctx context.Context, text, src, dst string) (string, error)
}

func (f *fakeTranslator) Translate(ctx context.Context, text, src, dst string) (string, error) {
	return f.translate(ctx, text, src, dst)
}

type fakeRecognizer struct {
	transcribe func(ctx context.Context, audio []byte, format, hint string) (string, error)
}

func (f *fakeRecognizer) Transcribe(ctx context.Context, audio []byte, format, hint string) (string, error) {
	return f.transcribe(ctx, audio, format, hint)
}

type fakeProducer struct {
	produce func(ctx context.Context, query string, res GuidanceResult, opts ArtifactOptions) Artifacts
}

func (f *fakeProducer) Produce(ctx context.Context, query string, res GuidanceResult, opts ArtifactOptions) Artifacts {
	return f.produce(ctx, query, res, opts)
}

type fakeNotifier struct {
	ids []string
	err error
}

func (f *fakeNotifier) Notify(_ context.Context, id string) error {
	f.ids = append(f.ids, id)
	return f.err
}

type notifierFunc func(ctx context.Context, id string) error

func (f notifierFunc) Notify(ctx context.Context, id string) error {
	return f(ctx, id)
}
