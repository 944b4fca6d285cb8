package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"symptom-guide/internal/core"
	"symptom-guide/pkg"
)

var (
	askLang     string
	askPDF      string
	askQR       string
	askAudio    string
	askAudioIn  string
	askEmail    string
	askShowText bool
)

var askCmd = &cobra.Command{
	Use:   "ask [symptoms...]",
	Short: "Run one guidance request and print the result",
	Long: `Runs the full pipeline once. Artifacts are written to the given paths.

Example:
  symptom-guide ask --pdf report.pdf --qr report.png "sore throat and fever for two days"
  symptom-guide ask --audio-in question.wav --lang es`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askLang, "lang", "", "source language of the query (BCP-47, default English)")
	askCmd.Flags().StringVar(&askPDF, "pdf", "", "write the PDF report to this path")
	askCmd.Flags().StringVar(&askQR, "qr", "", "write the QR code PNG to this path")
	askCmd.Flags().StringVar(&askAudio, "audio", "", "write the narrated guidance to this path")
	askCmd.Flags().StringVar(&askAudioIn, "audio-in", "", "read the query from a recording instead of arguments")
	askCmd.Flags().StringVar(&askEmail, "email", "", "email the PDF report to this address")
	askCmd.Flags().BoolVar(&askShowText, "sanitized", false, "print the ASCII-safe guidance instead of the raw text")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	req := core.GuidanceRequest{
		RawQuery:       strings.Join(args, " "),
		SourceLanguage: askLang,
		Modality:       core.ModalityTyped,
	}
	if askAudioIn != "" {
		audio, err := os.ReadFile(askAudioIn)
		if err != nil {
			return err
		}
		req.Modality = core.ModalitySpoken
		req.Audio = audio
		req.AudioFormat = strings.TrimPrefix(strings.ToLower(filepath.Ext(askAudioIn)), ".")
	} else if len(args) == 0 {
		return fmt.Errorf("describe your symptoms as arguments or pass --audio-in")
	}

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.pipeline.Run(ctx, req, core.ArtifactOptions{
		Speech:   askAudio != "",
		Document: askPDF != "",
		QR:       askQR != "",
		EmailTo:  askEmail,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if resp.Result.EmergencyFlagged {
		fmt.Fprintf(out, "!! %s\n   matched: %s\n\n", pkg.EmergencyNotice, strings.Join(resp.Result.MatchedKeywords, ", "))
	}
	if resp.CanonicalQuery != resp.Query {
		fmt.Fprintf(out, "Query (English): %s\n\n", resp.CanonicalQuery)
	}
	text := resp.Result.RawText
	if askShowText {
		text = resp.Result.SanitizedText
	}
	fmt.Fprintln(out, strings.TrimSpace(text))

	art := resp.Artifacts
	if art.Document != nil {
		if err := writeArtifact(cmd, askPDF, art.Document.Data); err != nil {
			return err
		}
	}
	if art.QR != nil {
		if err := writeArtifact(cmd, askQR, art.QR.Data); err != nil {
			return err
		}
	}
	if art.Audio != nil {
		if err := writeArtifact(cmd, askAudio, art.Audio.Data); err != nil {
			return err
		}
	}
	if art.Emailed {
		fmt.Fprintf(cmd.ErrOrStderr(), "emailed report to %s\n", askEmail)
	}
	for stage, msg := range art.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", stage, msg)
	}
	return nil
}

func writeArtifact(cmd *cobra.Command, path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", path, len(data))
	return nil
}
