package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"symptom-guide/internal/config"
	"symptom-guide/internal/core"
)

// Message is a minimal chat message.
// Role must be one of: "system", "user", or "assistant".
type Message struct {
	Role    string
	Content string
}

// OpenAIClient calls the OpenAI API for generation, translation, speech
// recognition and speech synthesis.
type OpenAIClient struct {
	client             *openai.Client
	chatModel          string
	transcriptionModel string
	speechModel        string
	voice              string
}

var (
	_ core.Generator  = (*OpenAIClient)(nil)
	_ core.Translator = (*OpenAIClient)(nil)
	_ core.Recognizer = (*OpenAIClient)(nil)
)

// NewOpenAIClient constructs an OpenAI-backed client from cfg. httpClient may
// be nil.
func NewOpenAIClient(cfg config.OpenAIConfig, httpClient *http.Client) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if httpClient != nil {
		oc.HTTPClient = httpClient
	}
	return &OpenAIClient{
		client:             openai.NewClientWithConfig(oc),
		chatModel:          cfg.ChatModel,
		transcriptionModel: cfg.TranscriptionModel,
		speechModel:        cfg.SpeechModel,
		voice:              cfg.Voice,
	}
}

// greedyTemperature stands in for zero, which the request encoder drops as
// an empty value.
const greedyTemperature = math.SmallestNonzeroFloat32

// Chat sends the message history to the chat completion API and returns the
// assistant's response.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, temperature float32, maxTokens int) (string, error) {
	if c.client == nil {
		return "", errors.New("openai client not initialized")
	}

	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			// coerce anything unknown to user
			role = openai.ChatMessageRoleUser
		}
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    oaMsgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Generate sends prompt as a single user message.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, d core.Decoding) (string, error) {
	temp := float32(greedyTemperature)
	if d.Method != "" && d.Method != "greedy" {
		temp = 0.7
	}
	return c.Chat(ctx, []Message{{Role: openai.ChatMessageRoleUser, Content: prompt}}, temp, d.MaxNewTokens)
}

const translateInstruction = "You are a medical translator. Translate the user's message from %s to %s. " +
	"Keep symptom descriptions, durations and body parts precise. Reply with the translation only."

// Translate translates text between two BCP-47 languages.
func (c *OpenAIClient) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	system := fmt.Sprintf(translateInstruction, languageName(sourceLang), languageName(targetLang))
	return c.Chat(ctx, []Message{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: text},
	}, greedyTemperature, 0)
}

// Transcribe runs speech recognition on an audio clip. format is the file
// extension of the clip (wav, mp3, webm, ...).
func (c *OpenAIClient) Transcribe(ctx context.Context, audio []byte, format, languageHint string) (string, error) {
	if format == "" {
		format = "wav"
	}
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcriptionModel,
		FilePath: "speech." + strings.TrimPrefix(format, "."),
		Reader:   bytes.NewReader(audio),
		Language: languageHint,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// Synthesize narrates text and returns MP3 audio. The voice is multilingual,
// so language is informational only.
func (c *OpenAIClient) Synthesize(ctx context.Context, text, _ string) ([]byte, string, error) {
	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.speechModel),
		Input:          text,
		Voice:          openai.SpeechVoice(c.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, "", err
	}
	defer resp.Close()
	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, "", fmt.Errorf("read speech audio: %w", err)
	}
	return data, "mp3", nil
}

func languageName(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	if name := display.English.Languages().Name(t); name != "" {
		return name
	}
	return tag
}
