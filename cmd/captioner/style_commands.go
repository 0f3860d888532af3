package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"captioner/internal/captions"
	"captioner/internal/config"
	"captioner/internal/render"
)

func newStyleCommand(ctx *commandContext) *cobra.Command {
	styleCmd := &cobra.Command{
		Use:   "style",
		Short: "Create and inspect caption style files",
	}

	styleCmd.AddCommand(newStyleInitCommand(ctx))
	styleCmd.AddCommand(newStyleShowCommand(ctx))

	return styleCmd
}

func newStyleInitCommand(ctx *commandContext) *cobra.Command {
	var targetPath string
	var overwrite bool
	var fromConfig bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a style file to customize and pass with --style",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveTarget(targetPath, func() (string, error) {
				return filepath.Abs("caption-style.toml")
			})
			if err != nil {
				return err
			}
			if err := ensureWritable(target, overwrite); err != nil {
				return err
			}
			style := captions.DefaultStyle()
			if fromConfig {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				style = cfg.Style.Normalize()
			}
			data, err := encodeStyle(style)
			if err != nil {
				return err
			}
			if err := os.WriteFile(target, data, 0o644); err != nil {
				return fmt.Errorf("write style: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote caption style to %s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination (default: ./caption-style.toml)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite an existing file")
	cmd.Flags().BoolVar(&fromConfig, "from-config", false, "Start from the configured style instead of the defaults")
	return cmd
}

func newStyleShowCommand(ctx *commandContext) *cobra.Command {
	var stylePath string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective caption style and the available font families",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(stylePath) != "" {
				if stylePath, err = config.ExpandPath(stylePath); err != nil {
					return err
				}
			}
			style, err := resolveStyle(cfg, nil, stylePath)
			if err != nil {
				return err
			}
			data, err := encodeStyle(style)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := out.Write(data); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n# font families: %s\n", strings.Join(render.Families(), ", "))
			return nil
		},
	}
	cmd.Flags().StringVar(&stylePath, "style", "", "Style file layered over the configured style")
	return cmd
}

func encodeStyle(style captions.Style) ([]byte, error) {
	data, err := toml.Marshal(style)
	if err != nil {
		return nil, fmt.Errorf("encode style: %w", err)
	}
	return data, nil
}
