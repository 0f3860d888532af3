package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"captioner/internal/subtitles"
)

func newSubsCommand(ctx *commandContext) *cobra.Command {
	var formatName string
	var outPath string
	var stylePath string

	cmd := &cobra.Command{
		Use:   "subs <captions>",
		Short: "Convert a caption file to SRT, WebVTT, ASS, JSON, CSV, or plain text",
		Long: "Convert a caption file to another subtitle format.\n\n" +
			"Readable inputs: " + readableFormats() + "\nWritable outputs: " + writableFormats(),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			doc, err := loadCaptionDocument(args[0])
			if err != nil {
				return err
			}
			format, err := subtitles.ParseFormat(formatName)
			if err != nil {
				return err
			}
			out := strings.TrimSpace(outPath)
			if out == "" {
				base := strings.TrimSuffix(args[0], ".captions.json")
				out = siblingPath(base, strings.TrimPrefix(format.Extension(), "."))
				if filepath.Clean(out) == filepath.Clean(args[0]) {
					out = siblingPath(base, "converted"+format.Extension())
				}
			}
			style, err := resolveStyle(cfg, &doc, stylePath)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, warning := range subtitles.Validate(doc.Captions, 0) {
				fmt.Fprintf(w, "warning: %s\n", warning)
			}
			if err := subtitles.WriteFile(out, format, doc.Captions, subtitles.Options{
				Style:    &style,
				Language: doc.Language,
				Title:    filepath.Base(args[0]),
			}); err != nil {
				return fmt.Errorf("write %s: %w", format, err)
			}
			fmt.Fprintf(w, "Wrote %d captions to %s\n", len(doc.Captions), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&formatName, "format", "f", "srt", "Output format: srt, vtt, ass, json, csv, txt")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output path (default: alongside the input)")
	cmd.Flags().StringVar(&stylePath, "style", "", "Style file for the ASS header")
	return cmd
}

func readableFormats() string {
	var names []string
	for _, f := range subtitles.Formats() {
		if f.Readable() {
			names = append(names, string(f))
		}
	}
	return strings.Join(names, ", ")
}

func writableFormats() string {
	names := make([]string, 0, len(subtitles.Formats()))
	for _, f := range subtitles.Formats() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}
