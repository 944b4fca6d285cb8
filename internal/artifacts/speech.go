package artifacts

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/language"

	"symptom-guide/internal/core"
)

// MaxSpeechChars is the longest input the synthesis service accepts.
const MaxSpeechChars = 4096

// Synthesizer is the external text-to-speech collaborator. It returns the
// encoded audio and its format (e.g. "mp3").
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language string) ([]byte, string, error)
}

// speechLanguages are the base languages the synthesis voice handles.
var speechLanguages = map[string]bool{
	"ar": true, "de": true, "en": true, "es": true, "fr": true, "hi": true,
	"it": true, "ja": true, "ko": true, "nl": true, "pl": true, "pt": true,
	"ru": true, "sv": true, "tr": true, "uk": true, "zh": true,
}

// Speech wraps a Synthesizer with input validation and a call timeout.
type Speech struct {
	Synth   Synthesizer
	Timeout time.Duration
}

// SynthesizeSpeech narrates text in the given language (default English).
// Unsupported languages and over-long text are rejected before calling out.
func (s *Speech) SynthesizeSpeech(ctx context.Context, text, lang string) (core.AudioClip, error) {
	base, err := speechLanguage(lang)
	if err != nil {
		return core.AudioClip{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return core.AudioClip{}, core.NewError(core.KindSynthesis, "nothing to narrate")
	}
	if n := utf8.RuneCountInString(text); n > MaxSpeechChars {
		return core.AudioClip{}, core.NewError(core.KindSynthesis, "text too long for speech synthesis")
	}
	if s.Synth == nil {
		return core.AudioClip{}, core.NewError(core.KindSynthesis, "speech synthesis is not configured")
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	data, format, err := s.Synth.Synthesize(ctx, text, base)
	if err != nil {
		return core.AudioClip{}, core.WrapError(core.KindSynthesis, "speech synthesis failed", err)
	}
	if len(data) == 0 {
		return core.AudioClip{}, core.NewError(core.KindSynthesis, "speech synthesis returned no audio")
	}
	return core.AudioClip{Data: data, Language: base, Format: format}, nil
}

func speechLanguage(lang string) (string, error) {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return "en", nil
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return "", core.WrapError(core.KindSynthesis, "invalid speech language "+lang, err)
	}
	base, _ := tag.Base()
	if !speechLanguages[base.String()] {
		return "", core.NewError(core.KindSynthesis, "unsupported speech language "+lang)
	}
	return base.String(), nil
}
