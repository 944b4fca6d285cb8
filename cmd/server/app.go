package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"symptom-guide/internal/artifacts"
	"symptom-guide/internal/config"
	"symptom-guide/internal/core"
	"symptom-guide/internal/db"
	"symptom-guide/internal/llm"
)

// app is the wired pipeline plus the resources it owns.
type app struct {
	pipeline *core.Pipeline
	reports  *artifacts.Producer
	conn     *sql.DB
}

func (a *app) Close() {
	if a.conn != nil {
		_ = a.conn.Close()
	}
}

// buildApp wires every collaborator from cfg. The database is optional; when
// DATABASE_URL is unset the built-in keyword list is used and nobody is
// notified of emergencies.
func buildApp(ctx context.Context, cfg config.Config, log *zap.Logger) (*app, error) {
	a := &app{}

	var oa *llm.OpenAIClient
	if cfg.OpenAI.APIKey != "" {
		oa = llm.NewOpenAIClient(cfg.OpenAI, nil)
	} else {
		log.Warn("OPENAI_API_KEY not set; translation, voice input and speech are unavailable")
	}

	gen, err := llm.NewGenerator(ctx, cfg, oa, nil)
	if err != nil {
		return nil, err
	}

	keywords := cfg.EmergencyKeywords
	var notifier core.EmergencyNotifier
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.conn = conn
		if err := db.Migrate(ctx, conn); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		extra, err := db.NewRepository(conn).ListEmergencyKeywords(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to load emergency keywords: %w", err)
		}
		keywords = append(append([]string(nil), keywords...), extra...)
		notifier = db.NewNotifier(conn, cfg.NotifyChannel)
	}

	normalizer := &core.Normalizer{
		EnableVoiceInput:   cfg.Features.EnableVoiceInput,
		EnableTranslation:  cfg.Features.EnableTranslation,
		TranslationTimeout: cfg.Timeouts.Translation,
		RecognitionTimeout: cfg.Timeouts.Recognition,
	}
	speech := &artifacts.Speech{Timeout: cfg.Timeouts.Synthesis}
	if oa != nil {
		normalizer.Translator = oa
		normalizer.Recognizer = oa
		speech.Synth = oa
	}

	level, err := artifacts.ParseLevel(cfg.QR.Level)
	if err != nil {
		a.Close()
		return nil, err
	}

	var mailer *artifacts.Mailer
	if cfg.SMTP.Host != "" && cfg.SMTP.From != "" {
		mailer = &artifacts.Mailer{
			Transport: artifacts.NewSMTPTransport(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.Timeouts.Email),
			From:      cfg.SMTP.From,
			Subject:   cfg.SMTP.Subject,
			Timeout:   cfg.Timeouts.Email,
		}
	}

	a.reports = &artifacts.Producer{
		Speech:      speech,
		Renderer:    artifacts.NewRenderer(),
		QR:          &artifacts.QREncoder{Level: level, Size: cfg.QR.Size},
		Mailer:      mailer,
		EnableTTS:   cfg.Features.EnableTTS,
		EnablePDF:   cfg.Features.EnablePDF,
		EnableQR:    cfg.Features.EnableQR,
		EnableEmail: cfg.Features.EnableEmail,
	}

	a.pipeline = &core.Pipeline{
		Normalizer:        normalizer,
		Builder:           core.PromptBuilder{Variant: core.PromptVariant(cfg.Generation.PromptVariant)},
		Generator:         gen,
		Decoding:          core.Decoding{Method: cfg.Generation.DecodingMethod, MaxNewTokens: cfg.Generation.MaxNewTokens},
		GenerationTimeout: cfg.Timeouts.Generation,
		NotifyTimeout:     cfg.Timeouts.Notify,
		Formatter:         core.NewFormatter(keywords, cfg.Features.EnableEmergencyDetection),
		Artifacts:         a.reports,
		Notifier:          notifier,
		Logger:            log,
	}

	log.Info("pipeline ready",
		zap.String("provider", cfg.Generation.Provider),
		zap.String("variant", cfg.Generation.PromptVariant),
		zap.Int("emergency_keywords", len(a.pipeline.Formatter.Keywords())),
		zap.Bool("database", a.conn != nil),
	)
	return a, nil
}
