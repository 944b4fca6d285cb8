package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNormalizer(tr Translator, rec Recognizer) *Normalizer {
	return &Normalizer{
		Translator:         tr,
		Recognizer:         rec,
		EnableVoiceInput:   true,
		EnableTranslation:  true,
		TranslationTimeout: time.Second,
		RecognitionTimeout: time.Second,
	}
}

func failingTranslator(t *testing.T) *fakeTranslator {
	return &fakeTranslator{translate: func(context.Context, string, string, string) (string, error) {
		t.Fatal("translator should not be called")
		return "", nil
	}}
}

func TestNormalizeEnglishUnchanged(t *testing.T) {
	n := newNormalizer(failingTranslator(t), nil)
	for _, lang := range []string{"", "en", "en-GB", "EN-us", "auto"} {
		got, err := n.Normalize(context.Background(), GuidanceRequest{
			RawQuery:       "  I have a headache ",
			SourceLanguage: lang,
			Modality:       ModalityTyped,
		})
		require.NoError(t, err, lang)
		assert.Equal(t, "I have a headache", got, lang)
	}
}

func TestNormalizeEmptyQuery(t *testing.T) {
	n := newNormalizer(nil, nil)
	_, err := n.Normalize(context.Background(), GuidanceRequest{RawQuery: " \t\n", Modality: ModalityTyped})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInput))
}

func TestNormalizeInvalidLanguageTag(t *testing.T) {
	n := newNormalizer(nil, nil)
	_, err := n.Normalize(context.Background(), GuidanceRequest{RawQuery: "x", SourceLanguage: "not a tag!"})
	assert.True(t, IsKind(err, KindInput))
}

func TestNormalizeTranslates(t *testing.T) {
	var gotSrc, gotDst string
	tr := &fakeTranslator{translate: func(_ context.Context, text, src, dst string) (string, error) {
		gotSrc, gotDst = src, dst
		assert.Equal(t, "j'ai mal à la poitrine", text)
		return " I have chest pain ", nil
	}}
	n := newNormalizer(tr, nil)

	got, err := n.Normalize(context.Background(), GuidanceRequest{
		RawQuery:       "j'ai mal à la poitrine",
		SourceLanguage: "fr",
	})
	require.NoError(t, err)
	assert.Equal(t, "I have chest pain", got)
	assert.Equal(t, "fr", gotSrc)
	assert.Equal(t, "en", gotDst)
}

func TestNormalizeTranslationFailureSurfaces(t *testing.T) {
	tr := &fakeTranslator{translate: func(context.Context, string, string, string) (string, error) {
		return "", errors.New("connection refused")
	}}
	n := newNormalizer(tr, nil)

	got, err := n.Normalize(context.Background(), GuidanceRequest{RawQuery: "dolor de cabeza", SourceLanguage: "es"})
	require.Error(t, err)
	assert.Empty(t, got, "must not fall back to the untranslated text")
	assert.True(t, IsKind(err, KindTranslation))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNormalizeTranslationEmptyResult(t *testing.T) {
	tr := &fakeTranslator{translate: func(context.Context, string, string, string) (string, error) {
		return "   ", nil
	}}
	n := newNormalizer(tr, nil)

	_, err := n.Normalize(context.Background(), GuidanceRequest{RawQuery: "dolor", SourceLanguage: "es"})
	assert.True(t, IsKind(err, KindTranslation))
}

func TestNormalizeTranslationDisabled(t *testing.T) {
	n := newNormalizer(failingTranslator(t), nil)
	n.EnableTranslation = false

	_, err := n.Normalize(context.Background(), GuidanceRequest{RawQuery: "dolor", SourceLanguage: "es"})
	assert.True(t, IsKind(err, KindInput))
}

func TestNormalizeSpoken(t *testing.T) {
	rec := &fakeRecognizer{transcribe: func(_ context.Context, audio []byte, format, hint string) (string, error) {
		assert.Equal(t, []byte("RIFF"), audio)
		assert.Equal(t, "wav", format)
		assert.Equal(t, "en", hint)
		return "my knee hurts", nil
	}}
	n := newNormalizer(nil, rec)

	got, err := n.Normalize(context.Background(), GuidanceRequest{
		Modality:       ModalitySpoken,
		SourceLanguage: "en-US",
		Audio:          []byte("RIFF"),
		AudioFormat:    "wav",
	})
	require.NoError(t, err)
	assert.Equal(t, "my knee hurts", got)
}

func TestNormalizeInputKeepsTranscript(t *testing.T) {
	rec := &fakeRecognizer{transcribe: func(context.Context, []byte, string, string) (string, error) {
		return " j'ai de la fièvre ", nil
	}}
	tr := &fakeTranslator{translate: func(context.Context, string, string, string) (string, error) {
		return "I have a fever", nil
	}}
	n := newNormalizer(tr, rec)

	got, err := n.NormalizeInput(context.Background(), GuidanceRequest{
		Modality:       ModalitySpoken,
		SourceLanguage: "fr",
		Audio:          []byte{1},
	})
	require.NoError(t, err)
	assert.Equal(t, Normalized{Input: "j'ai de la fièvre", Canonical: "I have a fever"}, got)
}

func TestNormalizeSpokenNoSpeech(t *testing.T) {
	rec := &fakeRecognizer{transcribe: func(context.Context, []byte, string, string) (string, error) {
		return "", nil
	}}
	n := newNormalizer(nil, rec)

	_, err := n.Normalize(context.Background(), GuidanceRequest{Modality: ModalitySpoken, Audio: []byte{0, 0, 0}})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindRecognition))
}

func TestNormalizeSpokenServiceError(t *testing.T) {
	rec := &fakeRecognizer{transcribe: func(context.Context, []byte, string, string) (string, error) {
		return "", errors.New("service unavailable")
	}}
	n := newNormalizer(nil, rec)

	_, err := n.Normalize(context.Background(), GuidanceRequest{Modality: ModalitySpoken, Audio: []byte{1}})
	assert.True(t, IsKind(err, KindRecognition))
}

func TestNormalizeSpokenDisabled(t *testing.T) {
	n := newNormalizer(nil, &fakeRecognizer{})
	n.EnableVoiceInput = false

	_, err := n.Normalize(context.Background(), GuidanceRequest{Modality: ModalitySpoken, Audio: []byte{1}})
	assert.True(t, IsKind(err, KindInput))
}

func TestNormalizeRecognitionTimeout(t *testing.T) {
	rec := &fakeRecognizer{transcribe: func(ctx context.Context, _ []byte, _, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	n := newNormalizer(nil, rec)
	n.RecognitionTimeout = 10 * time.Millisecond

	_, err := n.Normalize(context.Background(), GuidanceRequest{Modality: ModalitySpoken, Audio: []byte{1}})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindRecognition))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
