package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"captioner/internal/captions"
	"captioner/internal/config"
	"captioner/internal/logging"
	"captioner/internal/media/audio"
	"captioner/internal/session"
	"captioner/internal/subtitles"
	"captioner/internal/transcribe"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var words int
	var outPath string
	var formatName string
	var tokensPath string
	var language string

	cmd := &cobra.Command{
		Use:   "transcribe <video>",
		Short: "Transcribe a video's speech into timed captions",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("provide the path to a video file. Example: captioner transcribe /path/to/clip.mp4")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := resolveSource(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			format, out, err := subtitleTarget(source, outPath, formatName)
			if err != nil {
				return err
			}

			engine, store, err := session.NewEngine(cfg, logger)
			if err != nil {
				return err
			}
			defer engine.Close()
			if store != nil {
				defer store.Close()
			}

			lang := strings.TrimSpace(language)
			if lang == "" {
				lang = cfg.Transcription.Language
			}
			sess, err := session.New(session.Options{
				Pipeline: session.Pipeline{
					Extractor:   audio.NewExtractor(cfg.FFmpegBinary(), cfg.FFprobeBinary(), logger),
					Transcriber: engine,
					Mode:        segmentMode(words, cfg),
					Language:    lang,
					Logger:      logger,
				},
				FFprobe: cfg.FFprobeBinary(),
				Style:   cfg.Style,
				Logger:  logger,
			})
			if err != nil {
				return err
			}
			if err := sess.Open(cmd.Context(), source); err != nil {
				return err
			}

			report, finish := newProgressReporter(cmd.ErrOrStderr(), shouldColorize(cmd.ErrOrStderr()))
			outcome, err := sess.Transcribe(cmd.Context(), report)
			finish()
			if err != nil {
				return err
			}

			style := sess.Style()
			if err := subtitles.WriteFile(out, format, outcome.Captions, subtitles.Options{
				Style:    &style,
				Language: outcome.Result.Language,
				Title:    filepath.Base(source),
			}); err != nil {
				return fmt.Errorf("write captions: %w", err)
			}
			if path := strings.TrimSpace(tokensPath); path != "" {
				if err := writeTokens(path, outcome.Result); err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Wrote %d captions to %s (%s segmentation)\n", len(outcome.Captions), out, outcome.Mode)
			fmt.Fprintf(w, "Model: %s, words: %d, cached: %s\n", outcome.Result.Model, len(outcome.Result.Tokens), yesNo(outcome.Result.Cached))
			if outcome.Result.Degraded {
				fmt.Fprintln(w, "Word timing was estimated from segment timestamps; check caption edges before export.")
			}
			for _, warning := range subtitles.Validate(outcome.Captions, sess.Duration()) {
				logging.WarnWithContext(logger, "caption check", "caption_validation",
					logging.String("detail", warning),
					logging.String(logging.FieldImpact, "caption may display incorrectly"),
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&words, "words", "w", -1, "Words per caption (0 = automatic; default from config)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Caption output path (default: <video>.captions.json)")
	cmd.Flags().StringVarP(&formatName, "format", "f", "", "Output format: srt, vtt, ass, json, csv, txt (default: from --out extension, else json)")
	cmd.Flags().StringVar(&tokensPath, "tokens", "", "Also write the word tokens to this JSON file for `captioner segment`")
	cmd.Flags().StringVarP(&language, "language", "l", "", "Spoken language code (default from config; empty detects)")
	return cmd
}

func newSegmentCommand(ctx *commandContext) *cobra.Command {
	var words int
	var outPath string
	var formatName string

	cmd := &cobra.Command{
		Use:   "segment <tokens.json>",
		Short: "Group saved word tokens into captions without running the model again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := readTokens(args[0])
			if err != nil {
				return err
			}
			if len(result.Tokens) == 0 {
				return fmt.Errorf("%s contains no word tokens", args[0])
			}
			format, out, err := subtitleTarget(strings.TrimSuffix(args[0], ".tokens.json"), outPath, formatName)
			if err != nil {
				return err
			}
			mode := segmentMode(words, cfg)
			list := captions.Segment(result.Tokens, mode)
			style := cfg.Style
			if err := subtitles.WriteFile(out, format, list, subtitles.Options{Style: &style, Language: result.Language}); err != nil {
				return fmt.Errorf("write captions: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d captions to %s (%s segmentation from %d words)\n", len(list), out, mode, len(result.Tokens))
			return nil
		},
	}

	cmd.Flags().IntVarP(&words, "words", "w", -1, "Words per caption (0 = automatic; default from config)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Caption output path")
	cmd.Flags().StringVarP(&formatName, "format", "f", "", "Output format (default: from --out extension, else json)")
	return cmd
}

// subtitleTarget resolves the output format and path. An explicit format
// wins; otherwise the --out extension decides; otherwise JSON next to base.
func subtitleTarget(base, outPath, formatName string) (subtitles.Format, string, error) {
	out := strings.TrimSpace(outPath)
	if out != "" {
		expanded, err := config.ExpandPath(out)
		if err != nil {
			return "", "", err
		}
		out = expanded
	}
	var format subtitles.Format
	switch {
	case strings.TrimSpace(formatName) != "":
		f, err := subtitles.ParseFormat(formatName)
		if err != nil {
			return "", "", err
		}
		format = f
	case out != "":
		f, err := subtitles.FormatFromPath(out)
		if err != nil {
			return "", "", fmt.Errorf("%w (pass --format)", err)
		}
		format = f
	default:
		format = subtitles.FormatJSON
	}
	if out == "" {
		suffix := "captions" + format.Extension()
		if format != subtitles.FormatJSON {
			suffix = strings.TrimPrefix(format.Extension(), ".")
		}
		out = siblingPath(base, suffix)
	}
	return format, out, nil
}

func writeTokens(path string, result transcribe.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tokens: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write tokens: %w", err)
	}
	return nil
}

func readTokens(path string) (transcribe.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("read tokens: %w", err)
	}
	var result transcribe.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return transcribe.Result{}, fmt.Errorf("parse tokens %s: %w", path, err)
	}
	return result, nil
}
