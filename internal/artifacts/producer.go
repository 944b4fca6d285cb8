package artifacts

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"symptom-guide/internal/core"
)

// Stage names used as keys in core.Artifacts.Errors.
const (
	StageSpeech   = "speech"
	StageDocument = "document"
	StageQR       = "qr"
	StageEmail    = "email"
)

// Producer runs the optional artifact stages. A nil stage or a disabled flag
// skips that stage; failures are isolated per stage.
type Producer struct {
	Speech   *Speech
	Renderer *Renderer
	QR       *QREncoder
	Mailer   *Mailer

	EnableTTS   bool
	EnablePDF   bool
	EnableQR    bool
	EnableEmail bool

	Now func() time.Time
}

var _ core.ArtifactProducer = (*Producer)(nil)

// Produce builds the requested artifacts concurrently and then, if asked,
// emails the report. It never returns an error; see Artifacts.Errors.
func (p *Producer) Produce(ctx context.Context, query string, res core.GuidanceResult, opts core.ArtifactOptions) core.Artifacts {
	var (
		out core.Artifacts
		mu  sync.Mutex
		g   errgroup.Group
	)
	fail := func(stage string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if out.Errors == nil {
			out.Errors = make(map[string]string)
		}
		out.Errors[stage] = err.Error()
	}

	wantEmail := opts.EmailTo != "" && p.EnableEmail && p.Mailer != nil
	wantDoc := (opts.Document || wantEmail) && p.EnablePDF && p.Renderer != nil

	if opts.Speech && p.EnableTTS && p.Speech != nil {
		g.Go(func() error {
			clip, err := p.Speech.SynthesizeSpeech(ctx, res.SanitizedText, opts.SpeechLanguage)
			if err != nil {
				fail(StageSpeech, err)
				return nil
			}
			mu.Lock()
			out.Audio = &clip
			mu.Unlock()
			return nil
		})
	}
	if wantDoc {
		g.Go(func() error {
			doc, err := p.Renderer.RenderDocument(query, res.SanitizedText, p.now())
			if err != nil {
				fail(StageDocument, err)
				return nil
			}
			mu.Lock()
			out.Document = &doc
			mu.Unlock()
			return nil
		})
	}
	if opts.QR && p.EnableQR && p.QR != nil {
		g.Go(func() error {
			img, err := p.QR.EncodeQR(query, res.SanitizedText)
			if err != nil {
				fail(StageQR, err)
				return nil
			}
			mu.Lock()
			out.QR = &img
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if opts.EmailTo != "" {
		switch {
		case !wantEmail:
			fail(StageEmail, core.WrapError(core.KindEmail, "", ErrEmailDisabled))
		case out.Document == nil:
			fail(StageEmail, core.NewError(core.KindEmail, "no report to attach"))
		default:
			if err := p.Mailer.DispatchEmail(ctx, opts.EmailTo, *out.Document); err != nil {
				fail(StageEmail, err)
			} else {
				out.Emailed = true
			}
		}
	}
	return out
}

// EmailReport renders a report for guidance already shown to the user and
// mails it. Unlike Produce it returns the stage error.
func (p *Producer) EmailReport(ctx context.Context, recipient, query, guidance string) error {
	if !p.EnableEmail || p.Mailer == nil || p.Renderer == nil {
		return core.WrapError(core.KindEmail, "", ErrEmailDisabled)
	}
	if _, err := ValidateRecipient(recipient); err != nil {
		return core.WrapError(core.KindEmail, recipient, err)
	}
	doc, err := p.Renderer.RenderDocument(query, core.Sanitize(guidance), p.now())
	if err != nil {
		return err
	}
	return p.Mailer.DispatchEmail(ctx, recipient, doc)
}

func (p *Producer) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}
