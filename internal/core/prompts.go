package core

import (
	"fmt"
	"strings"
)

// prompts.go holds the instruction templates sent to the generation service.
// Keeping them in one place makes the wording easy to tweak without touching
// the pipeline.

// PromptVariant selects optional extra instructions.
type PromptVariant string

const (
	VariantStandard    PromptVariant = "standard"
	VariantConfidence  PromptVariant = "confidence"
	VariantAppointment PromptVariant = "appointment"
)

const (
	// promptHeader quotes the canonical query verbatim.
	promptHeader = "A patient says: \"%s\"\n\nBased on this, provide:\n"

	promptFooter = "\nFormat the response as clear bullet points."

	// Disclaimer is the mandatory consultation note; it is always the last
	// numbered instruction.
	Disclaimer = "Add a note advising the user to consult a doctor or qualified healthcare professional for a proper diagnosis."
)

// guidanceFields are the fixed, ordered sections every answer must cover.
var guidanceFields = []string{
	"Medical department to consult.",
	"Possible related causes.",
	"Common symptoms to watch for.",
	"Safe precautions or home remedies (only if safe).",
}

var variantFields = map[PromptVariant]string{
	VariantConfidence:  "A confidence level (low, medium or high) for the suggested department.",
	VariantAppointment: "Whether to book a routine appointment, see a doctor within 24 hours, or seek emergency care now.",
}

// PromptBuilder renders canonical queries into prompts.
type PromptBuilder struct {
	Variant PromptVariant
}

// BuildPrompt renders query with the standard template.
func BuildPrompt(query string) Prompt {
	return PromptBuilder{Variant: VariantStandard}.Build(query)
}

// Build renders query into the template for b.Variant. Unknown variants fall
// back to the standard template.
func (b PromptBuilder) Build(query string) Prompt {
	fields := append([]string(nil), guidanceFields...)
	if extra, ok := variantFields[b.Variant]; ok {
		fields = append(fields, extra)
	}
	fields = append(fields, Disclaimer)

	var sb strings.Builder
	fmt.Fprintf(&sb, promptHeader, query)
	for i, f := range fields {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, f)
	}
	sb.WriteString(promptFooter)
	return Prompt{Text: sb.String()}
}
