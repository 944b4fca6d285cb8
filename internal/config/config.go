package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is built once at startup and handed to every adapter that needs it.
// Secrets are only ever read from the environment (or a .env file), never
// from the YAML file.
type Config struct {
	HTTPAddr      string
	Environment   string
	LogLevel      string
	DatabaseURL   string
	NotifyChannel string
	StrictConfig  bool

	Features   Features
	Generation GenerationConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	SMTP       SMTPConfig
	QR         QRConfig
	Timeouts   Timeouts

	EmergencyKeywords []string
}

// Features toggles the optional pipeline stages.
type Features struct {
	EnableVoiceInput         bool `yaml:"enable_voice_input"`
	EnableTTS                bool `yaml:"enable_tts"`
	EnablePDF                bool `yaml:"enable_pdf"`
	EnableQR                 bool `yaml:"enable_qr"`
	EnableEmail              bool `yaml:"enable_email"`
	EnableTranslation        bool `yaml:"enable_translation"`
	EnableEmergencyDetection bool `yaml:"enable_emergency_detection"`
}

// GenerationConfig selects and parameterises the text-generation backend.
type GenerationConfig struct {
	Provider       string
	Model          string
	APIKey         string `json:"-"`
	Region         string
	ProjectID      string
	BaseURL        string
	IAMURL         string
	DecodingMethod string
	MaxNewTokens   int
	PromptVariant  string
}

// OpenAIConfig covers translation, transcription and speech synthesis (and
// generation when the provider is "openai").
type OpenAIConfig struct {
	APIKey             string `json:"-"`
	BaseURL            string
	ChatModel          string
	TranscriptionModel string
	SpeechModel        string
	Voice              string
}

type GeminiConfig struct {
	APIKey string `json:"-"`
}

// SMTPConfig holds the email transport settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string `json:"-"`
	From     string
	Subject  string
}

type QRConfig struct {
	Size  int
	Level string
}

// Timeouts bounds each external collaborator call.
type Timeouts struct {
	Generation  time.Duration
	Translation time.Duration
	Recognition time.Duration
	Synthesis   time.Duration
	Email       time.Duration
	Notify      time.Duration
}

type fileConfig struct {
	HTTPAddr          string            `yaml:"http_addr"`
	Environment       string            `yaml:"environment"`
	LogLevel          string            `yaml:"log_level"`
	NotifyChannel     string            `yaml:"notify_channel"`
	Features          Features          `yaml:"features"`
	Generation        fileGeneration    `yaml:"generation"`
	OpenAI            fileOpenAI        `yaml:"openai"`
	SMTP              fileSMTP          `yaml:"smtp"`
	QR                fileQR            `yaml:"qr"`
	Timeouts          map[string]string `yaml:"timeouts"`
	EmergencyKeywords []string          `yaml:"emergency_keywords"`
}

type fileGeneration struct {
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model"`
	Region         string `yaml:"region"`
	ProjectID      string `yaml:"project_id"`
	BaseURL        string `yaml:"base_url"`
	DecodingMethod string `yaml:"decoding_method"`
	MaxNewTokens   *int   `yaml:"max_new_tokens"`
	PromptVariant  string `yaml:"prompt_variant"`
}

type fileOpenAI struct {
	BaseURL            string `yaml:"base_url"`
	ChatModel          string `yaml:"chat_model"`
	TranscriptionModel string `yaml:"transcription_model"`
	SpeechModel        string `yaml:"speech_model"`
	Voice              string `yaml:"voice"`
}

type fileSMTP struct {
	Host    string `yaml:"host"`
	Port    *int   `yaml:"port"`
	From    string `yaml:"from"`
	Subject string `yaml:"subject"`
}

type fileQR struct {
	Size  *int   `yaml:"size"`
	Level string `yaml:"level"`
}

const (
	defaultHTTPAddr      = ":8080"
	defaultConfigPath    = "config.yaml"
	defaultNotifyChannel = "emergency_guidance"
	defaultModel         = "ibm/granite-3-3-8b-instruct"
	defaultMaxNewTokens  = 300
	minMaxNewTokens      = 16
	maxMaxNewTokens      = 4096
	defaultQRSize        = 256
)

// DefaultEmergencyKeywords is the built-in emergency keyword set.
var DefaultEmergencyKeywords = []string{
	"chest pain",
	"shortness of breath",
	"severe bleeding",
	"heart attack",
	"unconscious",
	"stroke",
	"difficulty breathing",
	"seizure",
	"suicidal",
}

// Default returns the baked-in configuration with every feature enabled.
func Default() Config {
	return Config{
		HTTPAddr:      defaultHTTPAddr,
		Environment:   "local",
		LogLevel:      "info",
		NotifyChannel: defaultNotifyChannel,
		Features: Features{
			EnableVoiceInput:         true,
			EnableTTS:                true,
			EnablePDF:                true,
			EnableQR:                 true,
			EnableEmail:              true,
			EnableTranslation:        true,
			EnableEmergencyDetection: true,
		},
		Generation: GenerationConfig{
			Provider:       "watsonx",
			Model:          defaultModel,
			Region:         "us-south",
			IAMURL:         "https://iam.cloud.ibm.com/identity/token",
			DecodingMethod: "greedy",
			MaxNewTokens:   defaultMaxNewTokens,
			PromptVariant:  "standard",
		},
		OpenAI: OpenAIConfig{
			ChatModel:          "gpt-4o-mini",
			TranscriptionModel: "whisper-1",
			SpeechModel:        "tts-1",
			Voice:              "alloy",
		},
		SMTP: SMTPConfig{
			Host:    "smtp.gmail.com",
			Port:    587,
			Subject: "Your symptom guidance report",
		},
		QR: QRConfig{Size: defaultQRSize, Level: "medium"},
		Timeouts: Timeouts{
			Generation:  60 * time.Second,
			Translation: 15 * time.Second,
			Recognition: 30 * time.Second,
			Synthesis:   30 * time.Second,
			Email:       20 * time.Second,
			Notify:      5 * time.Second,
		},
		EmergencyKeywords: append([]string(nil), DefaultEmergencyKeywords...),
	}
}

// Load reads configuration from defaults, the optional YAML file, an optional
// .env file and the environment, in increasing order of precedence.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	cfg.StrictConfig = parseBoolEnv("STRICT_CONFIG", false)

	path := getEnv("CONFIG_PATH", defaultConfigPath)
	fc, err := loadFileConfig(path, cfg.Features)
	if err != nil {
		if cfg.StrictConfig || !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("config load failed (%s): %w", path, err)
		}
	}
	if err := cfg.applyFile(fc); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// loadFileConfig seeds the feature flags so keys absent from the file keep
// their defaults.
func loadFileConfig(path string, features Features) (fileConfig, error) {
	fc := fileConfig{Features: features}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse yaml: %w", err)
	}
	return fc, nil
}

func (c *Config) applyFile(fc fileConfig) error {
	c.HTTPAddr = firstNonEmpty(fc.HTTPAddr, c.HTTPAddr)
	c.Environment = firstNonEmpty(fc.Environment, c.Environment)
	c.LogLevel = firstNonEmpty(fc.LogLevel, c.LogLevel)
	c.NotifyChannel = firstNonEmpty(fc.NotifyChannel, c.NotifyChannel)
	c.Features = fc.Features

	g := fc.Generation
	c.Generation.Provider = firstNonEmpty(g.Provider, c.Generation.Provider)
	c.Generation.Model = firstNonEmpty(g.Model, c.Generation.Model)
	c.Generation.Region = firstNonEmpty(g.Region, c.Generation.Region)
	c.Generation.ProjectID = firstNonEmpty(g.ProjectID, c.Generation.ProjectID)
	c.Generation.BaseURL = firstNonEmpty(g.BaseURL, c.Generation.BaseURL)
	c.Generation.DecodingMethod = firstNonEmpty(g.DecodingMethod, c.Generation.DecodingMethod)
	c.Generation.PromptVariant = firstNonEmpty(g.PromptVariant, c.Generation.PromptVariant)
	if g.MaxNewTokens != nil {
		c.Generation.MaxNewTokens = *g.MaxNewTokens
	}

	o := fc.OpenAI
	c.OpenAI.BaseURL = firstNonEmpty(o.BaseURL, c.OpenAI.BaseURL)
	c.OpenAI.ChatModel = firstNonEmpty(o.ChatModel, c.OpenAI.ChatModel)
	c.OpenAI.TranscriptionModel = firstNonEmpty(o.TranscriptionModel, c.OpenAI.TranscriptionModel)
	c.OpenAI.SpeechModel = firstNonEmpty(o.SpeechModel, c.OpenAI.SpeechModel)
	c.OpenAI.Voice = firstNonEmpty(o.Voice, c.OpenAI.Voice)

	c.SMTP.Host = firstNonEmpty(fc.SMTP.Host, c.SMTP.Host)
	c.SMTP.From = firstNonEmpty(fc.SMTP.From, c.SMTP.From)
	c.SMTP.Subject = firstNonEmpty(fc.SMTP.Subject, c.SMTP.Subject)
	if fc.SMTP.Port != nil {
		c.SMTP.Port = *fc.SMTP.Port
	}

	c.QR.Level = firstNonEmpty(fc.QR.Level, c.QR.Level)
	if fc.QR.Size != nil {
		c.QR.Size = *fc.QR.Size
	}

	for name, raw := range fc.Timeouts {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("timeouts.%s: %w", name, err)
		}
		if err := c.Timeouts.set(name, d); err != nil {
			return err
		}
	}

	if len(fc.EmergencyKeywords) > 0 {
		c.EmergencyKeywords = fc.EmergencyKeywords
	}
	return nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	if port := os.Getenv("PORT"); port != "" && c.HTTPAddr == defaultHTTPAddr {
		c.HTTPAddr = ":" + port
	}
	if !strings.Contains(c.HTTPAddr, ":") {
		c.HTTPAddr = ":" + c.HTTPAddr
	}
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DatabaseURL = os.Getenv("DATABASE_URL")
	c.NotifyChannel = getEnv("POSTGRES_NOTIFY_CHANNEL", c.NotifyChannel)

	f := &c.Features
	f.EnableVoiceInput = parseBoolEnv("ENABLE_VOICE_INPUT", f.EnableVoiceInput)
	f.EnableTTS = parseBoolEnv("ENABLE_TTS", f.EnableTTS)
	f.EnablePDF = parseBoolEnv("ENABLE_PDF", f.EnablePDF)
	f.EnableQR = parseBoolEnv("ENABLE_QR", f.EnableQR)
	f.EnableEmail = parseBoolEnv("ENABLE_EMAIL", f.EnableEmail)
	f.EnableTranslation = parseBoolEnv("ENABLE_TRANSLATION", f.EnableTranslation)
	f.EnableEmergencyDetection = parseBoolEnv("ENABLE_EMERGENCY_DETECTION", f.EnableEmergencyDetection)

	g := &c.Generation
	g.Provider = getEnv("GENERATION_PROVIDER", g.Provider)
	g.Model = getEnv("GENERATION_MODEL", g.Model)
	g.APIKey = os.Getenv("WATSONX_API_KEY")
	g.Region = getEnv("WATSONX_REGION", g.Region)
	g.ProjectID = getEnv("WATSONX_PROJECT_ID", g.ProjectID)
	g.BaseURL = getEnv("WATSONX_URL", g.BaseURL)
	g.PromptVariant = getEnv("PROMPT_VARIANT", g.PromptVariant)
	g.MaxNewTokens = clampInt(getEnvInt("MAX_NEW_TOKENS", g.MaxNewTokens), minMaxNewTokens, maxMaxNewTokens)

	c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	c.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", c.OpenAI.BaseURL)
	c.OpenAI.ChatModel = getEnv("OPENAI_MODEL_CHAT", c.OpenAI.ChatModel)
	c.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")

	c.SMTP.Host = getEnv("SMTP_HOST", c.SMTP.Host)
	c.SMTP.Port = getEnvInt("SMTP_PORT", c.SMTP.Port)
	c.SMTP.Username = getEnv("SMTP_USERNAME", c.SMTP.Username)
	c.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	c.SMTP.From = getEnv("SMTP_FROM", firstNonEmpty(c.SMTP.From, c.SMTP.Username))

	if v := os.Getenv("EMERGENCY_KEYWORDS"); v != "" {
		c.EmergencyKeywords = splitList(v)
	}
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	switch c.Generation.Provider {
	case "watsonx", "openai", "gemini":
	default:
		return fmt.Errorf("unknown generation provider %q", c.Generation.Provider)
	}
	switch c.Generation.PromptVariant {
	case "standard", "confidence", "appointment":
	default:
		return fmt.Errorf("unknown prompt variant %q", c.Generation.PromptVariant)
	}
	switch strings.ToLower(c.QR.Level) {
	case "low", "medium", "high", "highest":
	default:
		return fmt.Errorf("unknown qr level %q", c.QR.Level)
	}
	if c.QR.Size <= 0 {
		return errors.New("qr size must be positive")
	}
	return nil
}

func (t *Timeouts) set(name string, d time.Duration) error {
	switch name {
	case "generation":
		t.Generation = d
	case "translation":
		t.Translation = d
	case "recognition":
		t.Recognition = d
	case "synthesis":
		t.Synthesis = d
	case "email":
		t.Email = d
	case "notify":
		t.Notify = d
	default:
		return fmt.Errorf("unknown timeout %q", name)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func parseBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
