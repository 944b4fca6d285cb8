package http

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"symptom-guide/internal/artifacts"
	"symptom-guide/internal/config"
	"symptom-guide/internal/core"
	"symptom-guide/pkg"
)

//go:embed templates/*.html
var templateFS embed.FS

// DefaultMaxUploadBytes matches the transcription service's file limit.
const DefaultMaxUploadBytes = 25 << 20

// Server bundles together the dependencies required by HTTP handlers. It
// implements http.Handler so it can be passed to an http.Server.
type Server struct {
	Pipeline       *core.Pipeline
	Reports        *artifacts.Producer
	Features       config.Features
	Provider       string
	MaxUploadBytes int64
	Logger         *zap.Logger

	router    *mux.Router
	templates *template.Template
}

// NewServer constructs a Server and its routes.
func NewServer(p *core.Pipeline, reports *artifacts.Producer, cfg config.Config, logger *zap.Logger) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		Pipeline:       p,
		Reports:        reports,
		Features:       cfg.Features,
		Provider:       cfg.Generation.Provider,
		MaxUploadBytes: DefaultMaxUploadBytes,
		Logger:         logger,
		templates:      tmpl,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/guidance", s.handleGuidance).Methods(http.MethodPost)
	api.HandleFunc("/guidance/email", s.handleEmail).Methods(http.MethodPost)

	s.router = r
}

// ServeHTTP dispatches to the mux router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleIndex renders the single-page form.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct{ Features config.Features }{s.Features}
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		s.Logger.Error("render index", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	f := s.Features
	writeJSON(w, http.StatusOK, pkg.HealthResponse{
		Status:   "ok",
		Provider: s.Provider,
		Features: map[string]bool{
			"voice_input":         f.EnableVoiceInput,
			"tts":                 f.EnableTTS,
			"pdf":                 f.EnablePDF,
			"qr":                  f.EnableQR,
			"email":               f.EnableEmail,
			"translation":         f.EnableTranslation,
			"emergency_detection": f.EnableEmergencyDetection,
		},
	})
}

// handleGuidance runs the pipeline for a JSON or multipart submission.
func (s *Server) handleGuidance(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload())

	req, opts, err := s.decodeGuidance(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, core.KindPayloadTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, core.KindInput, err.Error())
		return
	}

	resp, err := s.Pipeline.Run(r.Context(), req, opts)
	if err != nil {
		writeStageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(resp))
}

// handleEmail mails a PDF of guidance the client already holds.
func (s *Server) handleEmail(w http.ResponseWriter, r *http.Request) {
	var body pkg.EmailRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, core.KindInput, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Guidance) == "" {
		writeError(w, http.StatusBadRequest, core.KindInput, "guidance is required")
		return
	}
	if s.Reports == nil {
		writeError(w, http.StatusServiceUnavailable, core.KindEmail, "email delivery is disabled")
		return
	}
	if err := s.Reports.EmailReport(r.Context(), body.Recipient, body.Query, body.Guidance); err != nil {
		writeStageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"emailed": true})
}

func (s *Server) decodeGuidance(r *http.Request) (core.GuidanceRequest, core.ArtifactOptions, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		return s.decodeForm(r)
	default:
		var body pkg.GuidanceRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return core.GuidanceRequest{}, core.ArtifactOptions{}, err
			}
			return core.GuidanceRequest{}, core.ArtifactOptions{}, errors.New("invalid JSON body")
		}
		req := core.GuidanceRequest{
			RawQuery:       body.Query,
			SourceLanguage: body.Language,
			Modality:       core.ModalityTyped,
		}
		return req, artifactOptions(body.Speech, body.PDF, body.QR, body.Email, body.SpeechLanguage), nil
	}
}

func (s *Server) decodeForm(r *http.Request) (core.GuidanceRequest, core.ArtifactOptions, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(s.maxUpload()); err != nil {
			return core.GuidanceRequest{}, core.ArtifactOptions{}, err
		}
	} else if err := r.ParseForm(); err != nil {
		return core.GuidanceRequest{}, core.ArtifactOptions{}, err
	}

	lang := r.FormValue("language")
	req := core.GuidanceRequest{
		RawQuery:       r.FormValue("query"),
		SourceLanguage: lang,
		Modality:       core.ModalityTyped,
	}
	opts := artifactOptions(formBool(r, "speech"), formBool(r, "pdf"), formBool(r, "qr"), r.FormValue("email"), r.FormValue("speech_language"))

	file, hdr, err := r.FormFile("audio")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return req, opts, nil
	case err != nil:
		return req, opts, err
	}
	defer file.Close()
	audio, err := io.ReadAll(file)
	if err != nil {
		return req, opts, err
	}
	if len(audio) == 0 {
		// an empty file input is a typed submission
		return req, opts, nil
	}
	req.Modality = core.ModalitySpoken
	req.Audio = audio
	req.AudioFormat = audioFormat(hdr.Filename, hdr.Header.Get("Content-Type"))
	return req, opts, nil
}

func artifactOptions(speech, pdf, qr bool, email, speechLang string) core.ArtifactOptions {
	return core.ArtifactOptions{
		Speech:         speech,
		SpeechLanguage: speechLang,
		Document:       pdf,
		QR:             qr,
		EmailTo:        strings.TrimSpace(email),
	}
}

func formBool(r *http.Request, key string) bool {
	v := r.FormValue(key)
	if v == "on" {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

// audioFormat prefers the file extension, then the part's media subtype.
func audioFormat(filename, contentType string) string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."); ext != "" {
		return ext
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if _, sub, ok := strings.Cut(mt, "/"); ok {
			sub = strings.TrimPrefix(sub, "x-")
			if sub == "mpeg" {
				return "mp3"
			}
			return sub
		}
	}
	return "wav"
}

func (s *Server) maxUpload() int64 {
	if s.MaxUploadBytes > 0 {
		return s.MaxUploadBytes
	}
	return DefaultMaxUploadBytes
}

func toResponse(resp *core.Response) pkg.GuidanceResponse {
	out := pkg.GuidanceResponse{
		RequestID:         resp.RequestID,
		Query:             resp.Query,
		CanonicalQuery:    resp.CanonicalQuery,
		Guidance:          resp.Result.RawText,
		SanitizedGuidance: resp.Result.SanitizedText,
		EmergencyFlagged:  resp.Result.EmergencyFlagged,
		MatchedKeywords:   resp.Result.MatchedKeywords,
		Emailed:           resp.Artifacts.Emailed,
		Errors:            resp.Artifacts.Errors,
	}
	if out.EmergencyFlagged {
		out.EmergencyNotice = pkg.EmergencyNotice
	}
	a := resp.Artifacts
	if a.Audio != nil {
		ct := "audio/" + a.Audio.Format
		if a.Audio.Format == "mp3" {
			ct = "audio/mpeg"
		}
		out.Audio = &pkg.Attachment{ContentType: ct, Filename: "guidance." + a.Audio.Format, Data: a.Audio.Data}
	}
	if a.Document != nil {
		out.PDF = &pkg.Attachment{ContentType: "application/pdf", Filename: artifacts.AttachmentName, Data: a.Document.Data}
	}
	if a.QR != nil {
		out.QR = &pkg.Attachment{ContentType: "image/png", Filename: "guidance-qr.png", Data: a.QR.Data}
	}
	return out
}

// statusFor maps a stage error onto the HTTP status returned to the client.
func statusFor(err error) int {
	kind, ok := core.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case core.KindInput:
		return http.StatusBadRequest
	case core.KindRecognition:
		return http.StatusUnprocessableEntity
	case core.KindTranslation, core.KindGeneration:
		return http.StatusBadGateway
	case core.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case core.KindEmail:
		if errors.Is(err, artifacts.ErrInvalidRecipient) {
			return http.StatusBadRequest
		}
		if errors.Is(err, artifacts.ErrEmailDisabled) {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeStageError(w http.ResponseWriter, err error) {
	kind, _ := core.KindOf(err)
	writeError(w, statusFor(err), kind, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind core.Kind, msg string) {
	writeJSON(w, status, pkg.ErrorResponse{Error: msg, Kind: string(kind)})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.Logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
