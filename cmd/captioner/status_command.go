package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"captioner/internal/deps"
	"captioner/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check external tools, directories, and the transcription backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			lines := renderSectionHeader("Configuration", colorize)
			lines = append(lines,
				renderStatusLine("Backend", statusInfo, cfg.Transcription.Backend+" ("+cfg.Transcription.Model+")", colorize),
				renderStatusLine("Transcript cache", statusInfo, yesNo(cfg.Transcription.CacheEnabled), colorize),
				renderStatusLine("AV1 post-pass", statusInfo, yesNo(cfg.Export.AV1PostPass), colorize),
			)

			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			lines = append(lines, dependencyLines(statuses, colorize)...)

			results := preflight.RunAll(cmd.Context(), cfg)
			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Checks", colorize)...)
			lines = append(lines, checkLines(results, colorize)...)

			for _, line := range lines {
				fmt.Fprintln(out, line)
			}

			failed := len(deps.MissingRequired(statuses))
			for _, r := range results {
				if !r.Passed {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d status check(s) failed", failed)
			}
			return nil
		},
	}
}
