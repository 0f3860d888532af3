package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"captioner/internal/transcribe/cache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the transcript cache",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

// openCache opens the transcript cache. A missing database is reported as a
// message rather than created.
func openCache(ctx *commandContext) (*cache.Store, string, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, "", err
	}
	path := cfg.TranscriptCachePath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, "Transcript cache is empty (" + path + " does not exist)", nil
	}
	store, err := cache.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open transcript cache: %w", err)
	}
	return store, "", nil
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show cached transcripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, msg, err := openCache(ctx)
			if err != nil || store == nil {
				if msg != "" {
					fmt.Fprintln(cmd.OutOrStdout(), msg)
				}
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No cached transcripts")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for i, e := range entries {
				lang := e.Language
				if lang == "" {
					lang = "auto"
				}
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					shortID(e.Key),
					e.Model,
					lang,
					strconv.Itoa(e.TokenCount),
					yesNo(e.Degraded),
					humanize.Time(e.AccessedAt),
				})
			}
			fmt.Fprintln(out, renderTable([]column{
				{Header: "#", Align: alignRight},
				{Header: "Key"},
				{Header: "Model"},
				{Header: "Language"},
				{Header: "Words", Align: alignRight},
				{Header: "Estimated"},
				{Header: "Last used"},
			}, rows))
			fmt.Fprintf(out, "%d transcripts in %s\n", len(entries), store.Path())
			return nil
		},
	}
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove transcripts not used recently",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			store, msg, err := openCache(ctx)
			if err != nil || store == nil {
				if msg != "" {
					fmt.Fprintln(cmd.OutOrStdout(), msg)
				}
				return err
			}
			defer store.Close()

			cutoff := time.Now().Add(-olderThan)
			removed, err := store.Prune(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			if removed == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No cache entries pruned")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d transcripts last used before %s\n", removed, humanize.Time(cutoff))
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Remove entries unused for this long")
	return cmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, msg, err := openCache(ctx)
			if err != nil || store == nil {
				if msg != "" {
					fmt.Fprintln(cmd.OutOrStdout(), msg)
				}
				return err
			}
			defer store.Close()
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Transcript cache cleared")
			return nil
		},
	}
}
