package core

import (
	"strings"
	"time"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// ReportTitle heads every rendered report.
const ReportTitle = "Symptom Guidance Report"

// Formatter derives the GuidanceResult from raw model output.
type Formatter struct {
	keywords []string
	detect   bool
}

// NewFormatter lower-cases and de-duplicates keywords. When detect is false
// no request is ever flagged.
func NewFormatter(keywords []string, detect bool) *Formatter {
	seen := make(map[string]struct{}, len(keywords))
	var out []string
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return &Formatter{keywords: out, detect: detect}
}

// Keywords returns the effective keyword set.
func (f *Formatter) Keywords() []string {
	return append([]string(nil), f.keywords...)
}

// Format builds the result for rawText. The emergency flag is computed from
// the canonical (English) query, never from the model output. Empty rawText
// is a valid result.
func (f *Formatter) Format(canonicalQuery, rawText string) GuidanceResult {
	res := GuidanceResult{
		RawText:       rawText,
		SanitizedText: Sanitize(rawText),
	}
	if f.detect {
		res.EmergencyFlagged, res.MatchedKeywords = f.DetectEmergency(canonicalQuery)
	}
	return res
}

// DetectEmergency reports whether query contains any keyword as a
// case-insensitive substring, and which ones matched.
func (f *Formatter) DetectEmergency(query string) (bool, []string) {
	q := strings.ToLower(query)
	var matched []string
	for _, k := range f.keywords {
		if strings.Contains(q, k) {
			matched = append(matched, k)
		}
	}
	return len(matched) > 0, matched
}

func notPrintableASCII(r rune) bool {
	if r == '\n' || r == '\t' {
		return false
	}
	return r < 0x20 || r > 0x7e
}

// Sanitize strips every code point outside printable ASCII, keeping newlines
// and tabs so bullet layout survives. Nothing is substituted.
func Sanitize(s string) string {
	// remove never fails on in-memory input
	out, _, _ := transform.String(runes.Remove(runes.Predicate(notPrintableASCII)), s)
	return out
}

// ReportBody is the plain-text report shared by the PDF renderer and email
// body. Both query and guidance are sanitized.
func ReportBody(query, sanitizedGuidance string, ts time.Time) string {
	var sb strings.Builder
	sb.WriteString(ReportTitle)
	sb.WriteString("\nGenerated: ")
	sb.WriteString(ts.Format("2006-01-02 15:04 MST"))
	sb.WriteString("\n\nQuery:\n")
	sb.WriteString(Sanitize(query))
	sb.WriteString("\n\nGuidance:\n")
	sb.WriteString(Sanitize(sanitizedGuidance))
	sb.WriteString("\n")
	return sb.String()
}
