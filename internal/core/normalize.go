package core

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// TargetLanguage is the language prompts are written in.
var TargetLanguage = language.English

// Normalizer turns typed or spoken input into the canonical English query.
type Normalizer struct {
	Translator Translator
	Recognizer Recognizer

	EnableVoiceInput  bool
	EnableTranslation bool

	TranslationTimeout time.Duration
	RecognitionTimeout time.Duration
}

// Normalized is what a request reduced to. Input is the trimmed text the
// user typed or the transcript of what they said; Canonical is the English
// query prompts are built from.
type Normalized struct {
	Input     string
	Canonical string
}

// Normalize returns the canonical query for req. Recognition and translation
// failures are returned as-is; the caller must not build a prompt from a
// failed normalisation.
func (n *Normalizer) Normalize(ctx context.Context, req GuidanceRequest) (string, error) {
	out, err := n.NormalizeInput(ctx, req)
	if err != nil {
		return "", err
	}
	return out.Canonical, nil
}

// NormalizeInput is Normalize but keeps the pre-translation text as well.
func (n *Normalizer) NormalizeInput(ctx context.Context, req GuidanceRequest) (Normalized, error) {
	src, needsTranslation, err := parseSourceLanguage(req.SourceLanguage)
	if err != nil {
		return Normalized{}, err
	}

	text := req.RawQuery
	if req.Modality == ModalitySpoken {
		text, err = n.recognize(ctx, req, src)
		if err != nil {
			return Normalized{}, err
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Normalized{}, NewError(KindInput, "query is empty")
	}
	if !needsTranslation {
		return Normalized{Input: text, Canonical: text}, nil
	}
	canonical, err := n.translate(ctx, text, src)
	if err != nil {
		return Normalized{}, err
	}
	return Normalized{Input: text, Canonical: canonical}, nil
}

func (n *Normalizer) recognize(ctx context.Context, req GuidanceRequest, src language.Tag) (string, error) {
	if !n.EnableVoiceInput {
		return "", NewError(KindInput, "voice input is disabled")
	}
	if n.Recognizer == nil {
		return "", NewError(KindRecognition, "speech recognition is not configured")
	}
	if len(req.Audio) == 0 {
		return "", NewError(KindRecognition, "no audio received")
	}

	hint := ""
	if src != language.Und {
		base, _ := src.Base()
		hint = base.String()
	}

	ctx, cancel := withTimeout(ctx, n.RecognitionTimeout)
	defer cancel()
	transcript, err := n.Recognizer.Transcribe(ctx, req.Audio, req.AudioFormat, hint)
	if err != nil {
		return "", WrapError(KindRecognition, "could not transcribe audio", err)
	}
	if strings.TrimSpace(transcript) == "" {
		return "", NewError(KindRecognition, "no speech detected")
	}
	return transcript, nil
}

func (n *Normalizer) translate(ctx context.Context, text string, src language.Tag) (string, error) {
	if !n.EnableTranslation {
		return "", NewError(KindInput, "translation is disabled; submit the query in English")
	}
	if n.Translator == nil {
		return "", NewError(KindTranslation, "translation is not configured")
	}

	ctx, cancel := withTimeout(ctx, n.TranslationTimeout)
	defer cancel()
	out, err := n.Translator.Translate(ctx, text, src.String(), TargetLanguage.String())
	if err != nil {
		return "", WrapError(KindTranslation, "translation failed", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", NewError(KindTranslation, "translation returned no text")
	}
	return out, nil
}

// parseSourceLanguage reports the declared tag and whether it differs from
// the target language. An absent tag (or "auto") needs no translation.
func parseSourceLanguage(raw string) (language.Tag, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "auto") {
		return language.Und, false, nil
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return language.Und, false, WrapError(KindInput, "invalid language tag "+raw, err)
	}
	base, _ := tag.Base()
	target, _ := TargetLanguage.Base()
	return tag, base != target, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
