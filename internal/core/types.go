package core

import "context"

// Modality records how the query reached us.
type Modality string

const (
	ModalityTyped  Modality = "typed"
	ModalitySpoken Modality = "spoken"
)

// GuidanceRequest is one user submission.
type GuidanceRequest struct {
	RawQuery       string
	SourceLanguage string
	Modality       Modality
	// Audio and AudioFormat are only set for spoken requests.
	Audio       []byte
	AudioFormat string
}

// Prompt is the instruction text sent to the generation service.
type Prompt struct {
	Text string
}

// GuidanceResult is derived once from the generation output.
type GuidanceResult struct {
	RawText          string   `json:"raw_text"`
	SanitizedText    string   `json:"sanitized_text"`
	EmergencyFlagged bool     `json:"emergency_flagged"`
	MatchedKeywords  []string `json:"matched_keywords,omitempty"`
}

// Decoding holds the generation parameters.
type Decoding struct {
	Method       string
	MaxNewTokens int
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, decoding Decoding) (string, error)
}

// Translator translates text into the target language.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Recognizer transcribes recorded speech.
type Recognizer interface {
	Transcribe(ctx context.Context, audio []byte, format, languageHint string) (string, error)
}

// AudioClip is synthesized narration of the guidance.
type AudioClip struct {
	Data     []byte
	Language string
	Format   string
}

// Document is the rendered report. Text is the plain-text body the PDF was
// laid out from.
type Document struct {
	Data []byte
	Text string
}

// QrImage is a PNG encoding of Payload.
type QrImage struct {
	Data    []byte
	Payload string
}

// ArtifactOptions selects which optional artifacts a request wants. Each is
// still subject to its feature flag.
type ArtifactOptions struct {
	Speech         bool
	SpeechLanguage string
	Document       bool
	QR             bool
	EmailTo        string
}

// Artifacts collects whatever the optional stages produced. Errors is keyed
// by stage name and holds a user-facing message per failed stage.
type Artifacts struct {
	Audio    *AudioClip
	Document *Document
	QR       *QrImage
	Emailed  bool
	Errors   map[string]string
}

// ArtifactProducer derives optional artifacts from a result. It never fails
// as a whole; stage failures land in Artifacts.Errors.
type ArtifactProducer interface {
	Produce(ctx context.Context, query string, res GuidanceResult, opts ArtifactOptions) Artifacts
}

// EmergencyNotifier is told about flagged requests.
type EmergencyNotifier interface {
	Notify(ctx context.Context, requestID string) error
}
