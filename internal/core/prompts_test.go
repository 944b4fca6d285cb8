package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPromptContainsQueryVerbatim(t *testing.T) {
	queries := []string{
		"I have chest pain and shortness of breath",
		`she said "it burns" when swallowing`,
		"%s %d %% odd formatting verbs",
		"",
		"ünïcödé fever 39°C",
	}
	for _, q := range queries {
		p := BuildPrompt(q)
		assert.Contains(t, p.Text, `"`+q+`"`, "query must appear verbatim inside the quoted clause")
	}
}

func TestBuildPromptFieldOrder(t *testing.T) {
	p := BuildPrompt("sore throat").Text

	markers := []string{"department", "causes", "symptoms", "precautions", "consult a doctor", "bullet points"}
	last := -1
	for _, m := range markers {
		idx := strings.Index(p, m)
		if !assert.Greater(t, idx, last, "%q out of order", m) {
			return
		}
		last = idx
	}
	assert.True(t, strings.HasPrefix(p, `A patient says: "sore throat"`))
}

func TestBuildPromptDeterministic(t *testing.T) {
	assert.Equal(t, BuildPrompt("cough"), BuildPrompt("cough"))
}

func TestPromptVariants(t *testing.T) {
	std := PromptBuilder{Variant: VariantStandard}.Build("cough").Text
	conf := PromptBuilder{Variant: VariantConfidence}.Build("cough").Text
	appt := PromptBuilder{Variant: VariantAppointment}.Build("cough").Text
	unknown := PromptBuilder{Variant: "mystery"}.Build("cough").Text

	assert.NotContains(t, std, "confidence")
	assert.Contains(t, conf, "confidence level")
	assert.Contains(t, appt, "emergency care")
	assert.Equal(t, std, unknown)

	// the disclaimer stays last whatever the variant
	assert.Contains(t, std, "5. "+Disclaimer+"\n")
	assert.Contains(t, conf, "6. "+Disclaimer+"\n")
	assert.Contains(t, appt, "6. "+Disclaimer+"\n")
}
