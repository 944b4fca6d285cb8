package core

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pipeline runs one guidance request end to end: normalise, build the
// prompt, generate, format, then produce optional artifacts. It holds only
// immutable configuration and collaborators, so a single Pipeline may serve
// concurrent requests.
type Pipeline struct {
	Normalizer        *Normalizer
	Builder           PromptBuilder
	Generator         Generator
	Decoding          Decoding
	GenerationTimeout time.Duration
	NotifyTimeout     time.Duration
	Formatter         *Formatter
	Artifacts         ArtifactProducer
	Notifier          EmergencyNotifier
	Logger            *zap.Logger
}

// Response is everything a caller can show for a successful request. Query
// is the typed text or the transcript, before translation.
type Response struct {
	RequestID      string
	Query          string
	CanonicalQuery string
	Prompt         Prompt
	Result         GuidanceResult
	Artifacts      Artifacts
}

// Run processes req. Failures on the required path (input, recognition,
// translation, generation) return an error and no partial response. Optional
// artifact failures are reported in Response.Artifacts.Errors.
func (p *Pipeline) Run(ctx context.Context, req GuidanceRequest, opts ArtifactOptions) (*Response, error) {
	id := uuid.NewString()
	log := p.logger().With(zap.String("request_id", id), zap.String("modality", string(req.Modality)))

	norm, err := p.Normalizer.NormalizeInput(ctx, req)
	if err != nil {
		log.Warn("normalisation failed", zap.Error(err))
		return nil, err
	}
	canonical := norm.Canonical

	prompt := p.Builder.Build(canonical)

	raw, err := p.generate(ctx, prompt)
	if err != nil {
		log.Error("generation failed", zap.Error(err))
		return nil, err
	}

	res := p.Formatter.Format(canonical, raw)
	if strings.TrimSpace(res.RawText) == "" {
		log.Warn("generation returned empty text")
	}
	if res.EmergencyFlagged {
		log.Warn("emergency keywords matched", zap.Strings("keywords", res.MatchedKeywords))
		p.notify(ctx, log, id)
	}

	resp := &Response{
		RequestID:      id,
		Query:          norm.Input,
		CanonicalQuery: canonical,
		Prompt:         prompt,
		Result:         res,
	}
	if p.Artifacts != nil {
		resp.Artifacts = p.Artifacts.Produce(ctx, canonical, res, opts)
		for stage, msg := range resp.Artifacts.Errors {
			log.Warn("artifact stage failed", zap.String("stage", stage), zap.String("error", msg))
		}
	}
	log.Info("guidance served", zap.Bool("emergency", res.EmergencyFlagged), zap.Int("chars", len(raw)))
	return resp, nil
}

func (p *Pipeline) generate(ctx context.Context, prompt Prompt) (string, error) {
	if p.Generator == nil {
		return "", NewError(KindGeneration, "no generation provider configured")
	}
	ctx, cancel := withTimeout(ctx, p.GenerationTimeout)
	defer cancel()
	out, err := p.Generator.Generate(ctx, prompt.Text, p.Decoding)
	if err != nil {
		return "", WrapError(KindGeneration, "generation service failed", err)
	}
	return out, nil
}

func (p *Pipeline) notify(ctx context.Context, log *zap.Logger, id string) {
	if p.Notifier == nil {
		return
	}
	ctx, cancel := withTimeout(ctx, p.NotifyTimeout)
	defer cancel()
	if err := p.Notifier.Notify(ctx, id); err != nil {
		log.Warn("emergency notification failed", zap.Error(err))
	}
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}
