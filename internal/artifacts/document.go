package artifacts

import (
	"bytes"
	"time"

	"github.com/go-pdf/fpdf"

	"symptom-guide/internal/core"
)

// Renderer lays out the plain-text report as a single-column PDF. The core
// Helvetica font only covers Latin-1, so everything it prints is sanitized to
// ASCII first.
type Renderer struct {
	// Compress toggles PDF stream compression; tests turn it off to inspect
	// the output.
	Compress bool
}

// NewRenderer returns a renderer with compression on.
func NewRenderer() *Renderer { return &Renderer{Compress: true} }

// RenderDocument builds the report for query and guidance at ts.
func (r *Renderer) RenderDocument(query, sanitizedText string, ts time.Time) (core.Document, error) {
	query = core.Sanitize(query)
	sanitizedText = core.Sanitize(sanitizedText)
	body := core.ReportBody(query, sanitizedText, ts)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.Compress)
	pdf.SetCreationDate(ts)
	pdf.SetModificationDate(ts)
	pdf.SetTitle(core.ReportTitle, false)
	pdf.SetCreator("symptom-guide", false)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, core.ReportTitle)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(90, 90, 90)
	pdf.Cell(0, 6, "Generated: "+ts.Format("2006-01-02 15:04 MST"))
	pdf.Ln(10)

	pdf.SetTextColor(0, 0, 0)
	section(pdf, "Query", query)
	section(pdf, "Guidance", sanitizedText)

	pdf.SetFont("Helvetica", "I", 8)
	pdf.MultiCell(0, 4, "This report is informational only and is not a diagnosis. Consult a doctor or qualified healthcare professional.", "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return core.Document{}, core.WrapError(core.KindDocument, "could not render report", err)
	}
	return core.Document{Data: buf.Bytes(), Text: body}, nil
}

func section(pdf *fpdf.Fpdf, heading, text string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, heading)
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	if text == "" {
		text = "(none)"
	}
	pdf.MultiCell(0, 6, text, "", "L", false)
	pdf.Ln(4)
}
