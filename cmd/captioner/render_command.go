package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"captioner/internal/config"
	"captioner/internal/export"
	"captioner/internal/services/drapto"
	"captioner/internal/session"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var captionsPath string
	var stylePath string
	var outPath string
	var formatName string
	var quality int
	var bitrate int
	var realtime bool
	var av1 bool

	cmd := &cobra.Command{
		Use:   "render <video>",
		Short: "Burn captions into a new video file",
		Long: "Render the video with its captions drawn into every frame.\n\n" +
			"Formats: " + exportFormats() + ". When the requested container has no encoder in this\n" +
			"ffmpeg build, the export falls back to mp4, then webm, then mkv, and says so.\n" +
			"Press Ctrl-C to stop early; the frames rendered so far are kept as a playable file.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := resolveSource(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if !flags.Changed("format") {
				formatName = cfg.Export.Format
			}
			format, err := export.ParseFormat(formatName)
			if err != nil {
				return err
			}
			if !flags.Changed("quality") {
				quality = cfg.Export.Quality
			}
			if !flags.Changed("bitrate") {
				bitrate = cfg.Export.BitrateKbps
			}
			if !flags.Changed("realtime") {
				realtime = cfg.Export.Realtime
			}
			if !flags.Changed("av1") {
				av1 = cfg.Export.AV1PostPass
			}

			if strings.TrimSpace(captionsPath) == "" {
				captionsPath = siblingPath(source, "captions.json")
			}
			doc, err := loadCaptionDocument(captionsPath)
			if err != nil {
				return err
			}
			style, err := resolveStyle(cfg, &doc, stylePath)
			if err != nil {
				return err
			}
			if strings.TrimSpace(outPath) != "" {
				if outPath, err = config.ExpandPath(outPath); err != nil {
					return err
				}
			}

			sess, err := session.New(session.Options{
				Exporter: newExportRenderer(cfg, logger, av1),
				FFprobe:  cfg.FFprobeBinary(),
				Style:    style,
				Playback: playbackOptions(cfg),
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			if err := sess.LoadCaptions(doc.Captions); err != nil {
				return fmt.Errorf("load captions: %w", err)
			}
			if err := sess.Open(cmd.Context(), source); err != nil {
				return err
			}

			report, finish := newProgressReporter(cmd.ErrOrStderr(), shouldColorize(cmd.ErrOrStderr()))
			started := time.Now()
			res, err := sess.Export(cmd.Context(), session.ExportOptions{
				Output:      outPath,
				Format:      format,
				Quality:     quality,
				BitrateKbps: bitrate,
				Realtime:    realtime,
				AV1PostPass: av1,
			}, report)
			finish()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, warning := range res.Warnings {
				fmt.Fprintf(w, "warning: %s\n", warning)
			}
			status := "Exported"
			if res.Stopped {
				status = "Stopped early; kept"
			}
			fmt.Fprintf(w, "%s %d frames (%dx%d @ %sfps, %s/%s) to %s in %s\n",
				status, res.Frames, res.Width, res.Height, humanize.FtoaWithDigits(res.FPS, 2),
				res.Plan.Format, res.Plan.VideoEncoder, res.Output,
				time.Since(started).Round(time.Second))
			return nil
		},
	}

	cmd.Flags().StringVar(&captionsPath, "captions", "", "Caption file (default: <video>.captions.json)")
	cmd.Flags().StringVar(&stylePath, "style", "", "Style file overriding the configured style")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output video path (default: <video>.captioned.<format>)")
	cmd.Flags().StringVarP(&formatName, "format", "f", "mp4", "Container: "+exportFormats())
	cmd.Flags().IntVarP(&quality, "quality", "q", 0, "Output frame height in pixels (0 keeps the source height)")
	cmd.Flags().IntVar(&bitrate, "bitrate", 0, "Video bitrate in kbps (0 lets the encoder choose)")
	cmd.Flags().BoolVar(&realtime, "realtime", false, "Pace rendering at playback speed")
	cmd.Flags().BoolVar(&av1, "av1", false, "Re-encode mkv exports to AV1 with drapto")
	return cmd
}

func newExportRenderer(cfg *config.Config, logger *slog.Logger, av1 bool) *export.Renderer {
	opts := []export.Option{export.WithLogger(logger)}
	if av1 {
		var client drapto.Client = drapto.NewLibrary()
		if bin := strings.TrimSpace(cfg.Tools.Drapto); bin != "" {
			client = drapto.NewCLI(drapto.WithBinary(bin))
		}
		opts = append(opts, export.WithPostPass(client))
	}
	return export.NewRenderer(cfg.FFmpegBinary(), cfg.FFprobeBinary(), opts...)
}

func exportFormats() string {
	names := make([]string, 0, len(export.Formats()))
	for _, f := range export.Formats() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}
