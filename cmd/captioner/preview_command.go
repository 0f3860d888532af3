package main

import (
	"context"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"captioner/internal/captions"
	"captioner/internal/config"
	"captioner/internal/export"
	"captioner/internal/playback"
	"captioner/internal/session"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var captionsPath string
	var stylePath string
	var atValue string
	var pngPath string
	var step float64
	var play bool
	var speed float64
	var quality int

	cmd := &cobra.Command{
		Use:   "preview <video>",
		Short: "Show which caption is visible over time, or render one frame to PNG",
		Long: "Without --png, walks the video timeline and prints each change of the visible caption.\n" +
			"With --play, follows a real-time clock instead (use --speed to run faster).\n" +
			"With --png, decodes the frame at --at and draws the visible caption over it.",
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

			sess, err := session.New(session.Options{
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

			at := 0.0
			if strings.TrimSpace(atValue) != "" {
				if at, err = parseClock(atValue); err != nil {
					return fmt.Errorf("--at: %w", err)
				}
			}
			out := cmd.OutOrStdout()

			if strings.TrimSpace(pngPath) != "" {
				renderer := export.NewRenderer(cfg.FFmpegBinary(), cfg.FFprobeBinary(), export.WithLogger(logger))
				return writeStill(cmd.Context(), renderer, sess, export.StillJob{
					Source:   source,
					At:       at,
					Quality:  quality,
					Captions: sess.Captions(),
					Style:    sess.Style(),
					Bias:     sess.Bias(),
				}, pngPath, out)
			}
			if play {
				return playTimeline(cmd.Context(), sess, at, speed, out)
			}
			return walkTimeline(sess, at, step, out)
		},
	}

	cmd.Flags().StringVar(&captionsPath, "captions", "", "Caption file (default: <video>.captions.json)")
	cmd.Flags().StringVar(&stylePath, "style", "", "Style file overriding the configured style")
	cmd.Flags().StringVar(&atValue, "at", "", "Start time, or the frame time with --png")
	cmd.Flags().StringVar(&pngPath, "png", "", "Write the captioned frame at --at to this PNG file")
	cmd.Flags().Float64Var(&step, "step", 0.1, "Timeline step in seconds")
	cmd.Flags().BoolVar(&play, "play", false, "Follow a real-time clock")
	cmd.Flags().Float64Var(&speed, "speed", 1, "Playback rate with --play")
	cmd.Flags().IntVar(&quality, "quality", 0, "Frame height for --png (0 keeps the source height)")
	return cmd
}

func playbackOptions(cfg *config.Config) playback.Options {
	return playback.Options{
		Bias:         cfg.Playback.BiasSeconds,
		PollInterval: msDuration(cfg.Playback.PollIntervalMS),
	}
}

// timelinePrinter prints a line whenever the visible caption changes.
type timelinePrinter struct {
	out     io.Writer
	current string
	started bool
}

func (p *timelinePrinter) observe(u playback.Update) {
	id := ""
	if u.HasActive {
		id = u.Active.ID
	}
	if p.started && id == p.current {
		return
	}
	p.started = true
	p.current = id
	if !u.HasActive {
		fmt.Fprintf(p.out, "%s  (no caption)\n", formatClock(u.State.CurrentTime))
		return
	}
	fmt.Fprintf(p.out, "%s  [%s] %s\n", formatClock(u.State.CurrentTime), shortID(u.Active.ID), u.Active.Text)
}

func walkTimeline(sess *session.Session, from, step float64, out io.Writer) error {
	if step <= 0 {
		return fmt.Errorf("--step must be positive")
	}
	syncer := sess.Synchronizer()
	duration := sess.Duration()
	printer := &timelinePrinter{out: out}
	for i := 0; ; i++ {
		t := from + float64(i)*step
		if t > duration {
			t = duration
		}
		if err := syncer.Seek(t); err != nil {
			return err
		}
		printer.observe(syncer.Last())
		if t >= duration {
			return nil
		}
	}
}

func playTimeline(ctx context.Context, sess *session.Session, from, speed float64, out io.Writer) error {
	if speed <= 0 {
		return fmt.Errorf("--speed must be positive")
	}
	syncer := sess.Synchronizer()
	sess.Clock().SetRate(speed)
	if err := syncer.Seek(from); err != nil {
		return err
	}

	updates, unsubscribe := syncer.Subscribe()
	defer unsubscribe()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = syncer.Run(runCtx) }()

	if err := syncer.Play(); err != nil {
		return err
	}
	printer := &timelinePrinter{out: out}
	for {
		select {
		case <-ctx.Done():
			_ = syncer.Pause()
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			printer.observe(u)
			if u.State.Status == playback.StatusPaused {
				return nil
			}
		}
	}
}

func writeStill(ctx context.Context, renderer *export.Renderer, sess *session.Session, job export.StillJob, path string, out io.Writer) error {
	frame, active, visible, err := renderer.Still(ctx, job)
	if err != nil {
		return err
	}
	path, err = config.ExpandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, frame); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	fmt.Fprintf(out, "Wrote %dx%d frame at %s to %s\n", frame.Bounds().Dx(), frame.Bounds().Dy(), formatClock(job.At), path)
	if visible {
		fmt.Fprintf(out, "Visible caption: %s\n", describeCaption(active))
	} else {
		fmt.Fprintf(out, "No caption visible (%d captions in track)\n", len(sess.Captions()))
	}
	return nil
}

func describeCaption(c captions.Caption) string {
	return fmt.Sprintf("[%s] %s-%s %q", shortID(c.ID), formatClock(c.Start), formatClock(c.End), c.Text)
}
