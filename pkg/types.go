package pkg

// EmergencyNotice is shown alongside guidance for flagged requests.
const EmergencyNotice = "Your description mentions symptoms that can be an emergency. " +
	"Call your local emergency number or go to the nearest emergency department now."

// GuidanceRequest is the JSON body of POST /api/guidance. Multipart
// submissions use the same field names plus an "audio" file part.
type GuidanceRequest struct {
	Query          string `json:"query"`
	Language       string `json:"language,omitempty"`
	Speech         bool   `json:"speech,omitempty"`
	SpeechLanguage string `json:"speech_language,omitempty"`
	PDF            bool   `json:"pdf,omitempty"`
	QR             bool   `json:"qr,omitempty"`
	Email          string `json:"email,omitempty"`
}

// Attachment carries a binary artifact. Data is base64 in JSON.
type Attachment struct {
	ContentType string `json:"content_type"`
	Filename    string `json:"filename,omitempty"`
	Data        []byte `json:"data"`
}

// GuidanceResponse is returned for a successful guidance request. Stage
// failures of optional artifacts are listed in Errors keyed by stage.
type GuidanceResponse struct {
	RequestID         string            `json:"request_id"`
	Query             string            `json:"query"`
	CanonicalQuery    string            `json:"canonical_query"`
	Guidance          string            `json:"guidance"`
	SanitizedGuidance string            `json:"sanitized_guidance"`
	EmergencyFlagged  bool              `json:"emergency_flagged"`
	EmergencyNotice   string            `json:"emergency_notice,omitempty"`
	MatchedKeywords   []string          `json:"matched_keywords,omitempty"`
	Audio             *Attachment       `json:"audio,omitempty"`
	PDF               *Attachment       `json:"pdf,omitempty"`
	QR                *Attachment       `json:"qr,omitempty"`
	Emailed           bool              `json:"emailed"`
	Errors            map[string]string `json:"errors,omitempty"`
}

// EmailRequest asks for an already shown guidance to be mailed as a PDF.
type EmailRequest struct {
	Recipient string `json:"recipient"`
	Query     string `json:"query"`
	Guidance  string `json:"guidance"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// HealthResponse reports liveness and the enabled feature flags.
type HealthResponse struct {
	Status   string          `json:"status"`
	Provider string          `json:"provider"`
	Features map[string]bool `json:"features"`
}
