package core

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

var testKeywords = []string{"chest pain", "shortness of breath", "severe bleeding", "heart attack", "unconscious", "stroke"}

func TestDetectEmergencyChestPainAnyCase(t *testing.T) {
	f := NewFormatter(testKeywords, true)
	for _, q := range []string{
		"chest pain",
		"I have CHEST PAIN since morning",
		"sudden Chest Pain",
		"xxchest painxx",
	} {
		flagged, matched := f.DetectEmergency(q)
		assert.True(t, flagged, q)
		assert.Contains(t, matched, "chest pain", q)
	}
}

func TestDetectEmergencyNoMatch(t *testing.T) {
	f := NewFormatter(testKeywords, true)
	for _, q := range []string{"mild headache", "chest", "pain in my back", "", "short of breath"} {
		flagged, matched := f.DetectEmergency(q)
		assert.False(t, flagged, q)
		assert.Empty(t, matched, q)
	}
}

func TestFormatFlagsFromQueryNotOutput(t *testing.T) {
	f := NewFormatter(testKeywords, true)

	res := f.Format("mild headache", "If you also feel chest pain, call emergency services.")
	assert.False(t, res.EmergencyFlagged, "model output must not drive the flag")

	res = f.Format("I had a stroke last year and now dizziness", "Rest and hydrate.")
	assert.True(t, res.EmergencyFlagged)
	assert.Equal(t, []string{"stroke"}, res.MatchedKeywords)
}

func TestFormatDetectionDisabled(t *testing.T) {
	f := NewFormatter(testKeywords, false)
	res := f.Format("chest pain", "text")
	assert.False(t, res.EmergencyFlagged)
}

func TestNewFormatterNormalisesKeywords(t *testing.T) {
	f := NewFormatter([]string{" Chest Pain ", "chest pain", "", "STROKE"}, true)
	if diff := cmp.Diff([]string{"chest pain", "stroke"}, f.Keywords()); diff != "" {
		t.Fatalf("keywords mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatEmptyOutput(t *testing.T) {
	f := NewFormatter(testKeywords, true)
	res := f.Format("cough", "")
	assert.Equal(t, "", res.RawText)
	assert.Equal(t, "", res.SanitizedText)
	assert.False(t, res.EmergencyFlagged)
}

func TestSanitizeStripsNonASCII(t *testing.T) {
	cases := []struct{ in, want string }{
		{in: "plain text", want: "plain text"},
		{in: "• Fever — 39°C", want: " Fever  39C"},
		{in: "café\r\nnaïve", want: "caf\nnave"},
		{in: "emoji 🩺 here\tok", want: "emoji  here\tok"},
		{in: "bell\x07 and del\x7f", want: "bell and del"},
		{in: string([]byte{0xff, 'a', 0xfe}), want: "a"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Sanitize(c.in), "%q", c.in)
	}
}

func TestSanitizeInvariants(t *testing.T) {
	inputs := []string{
		"",
		"ASCII only - 1. Rest\n2. Fluids",
		"混合 mixed 文字",
		"Ωmega ∑ sum",
		strings.Repeat("é", 100),
	}
	for _, in := range inputs {
		out := Sanitize(in)
		for _, r := range out {
			assert.LessOrEqual(t, r, rune(0x7e), "%q produced %q", in, out)
		}
		assert.Equal(t, out, Sanitize(out), "sanitize must be idempotent")
	}
}

func TestReportBody(t *testing.T) {
	ts := time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)
	body := ReportBody("I have chest pain", "- See cardiology\n- Rest", ts)

	assert.True(t, strings.HasPrefix(body, ReportTitle+"\n"))
	assert.Contains(t, body, "Generated: 2026-03-04 09:30 UTC")
	assert.Contains(t, body, "Query:\nI have chest pain\n")
	assert.Contains(t, body, "Guidance:\n- See cardiology\n- Rest\n")
}
