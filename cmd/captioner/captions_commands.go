package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"captioner/internal/captions"
	"captioner/internal/fileutil"
	"captioner/internal/subtitles"
)

func newCaptionsCommand(ctx *commandContext) *cobra.Command {
	captionsCmd := &cobra.Command{
		Use:   "captions",
		Short: "List and edit the captions in a caption document",
	}

	captionsCmd.PersistentFlags().Bool("backup", false, "Keep a copy of the caption document before editing it")

	captionsCmd.AddCommand(newCaptionsListCommand())
	captionsCmd.AddCommand(newCaptionsAddCommand())
	captionsCmd.AddCommand(newCaptionsEditCommand())
	captionsCmd.AddCommand(newCaptionsDeleteCommand())
	captionsCmd.AddCommand(newCaptionsDuplicateCommand())
	captionsCmd.AddCommand(newCaptionsShiftCommand())

	return captionsCmd
}

// editTrack loads path into a track, applies fn, and saves the result back
// as JSON. Nothing is written when fn fails. With --backup the previous
// document is kept next to the new one.
func editTrack(cmd *cobra.Command, path string, fn func(*captions.Track) (string, error)) error {
	out := cmd.OutOrStdout()
	doc, err := loadCaptionDocument(path)
	if err != nil {
		return err
	}
	track, err := captions.NewTrack(doc.Captions)
	if err != nil {
		return fmt.Errorf("load captions: %w", err)
	}
	message, err := fn(track)
	if err != nil {
		return err
	}
	doc.Captions = track.Snapshot()
	if backup, _ := cmd.Flags().GetBool("backup"); backup {
		saved, err := fileutil.Backup(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Backup written to %s\n", saved)
	}
	if err := saveCaptionDocument(path, doc); err != nil {
		return fmt.Errorf("save captions: %w", err)
	}
	fmt.Fprintln(out, message)
	return nil
}

func newCaptionsListCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:         "list <captions>",
		Short:       "Show captions in time order",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadCaptionDocument(args[0])
			if err != nil {
				return err
			}
			list := doc.Captions
			if !captions.IsSorted(list) {
				captions.SortByStart(list)
			}
			if asJSON {
				return writeJSON(cmd, list)
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No captions")
				return nil
			}
			fmt.Fprintln(out, renderCaptionTable(list))
			for _, warning := range subtitles.Validate(list, 0) {
				fmt.Fprintf(out, "warning: %s\n", warning)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print captions as JSON")
	return cmd
}

func renderCaptionTable(list []captions.Caption) string {
	rows := make([][]string, 0, len(list))
	for i, c := range list {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			shortID(c.ID),
			formatClock(c.Start),
			formatClock(c.End),
			fmt.Sprintf("%.2fs", c.Duration()),
			c.Text,
		})
	}
	return renderTable([]column{
		{Header: "#", Align: alignRight},
		{Header: "ID"},
		{Header: "Start", Align: alignRight},
		{Header: "End", Align: alignRight},
		{Header: "Length", Align: alignRight},
		{Header: "Text", MaxWidth: 48},
	}, rows)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newCaptionsAddCommand() *cobra.Command {
	var textValue, atValue, endValue string
	cmd := &cobra.Command{
		Use:         "add <captions>",
		Short:       "Insert a caption at a time",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseClock(atValue)
			if err != nil {
				return fmt.Errorf("--at: %w", err)
			}
			return editTrack(cmd, args[0], func(track *captions.Track) (string, error) {
				c, err := track.Add(textValue, at)
				if err != nil {
					return "", err
				}
				if strings.TrimSpace(endValue) != "" {
					end, err := parseClock(endValue)
					if err != nil {
						return "", fmt.Errorf("--end: %w", err)
					}
					if c, err = track.SetSpan(c.ID, c.Start, end); err != nil {
						return "", err
					}
				}
				return fmt.Sprintf("Added caption %s at %s-%s", shortID(c.ID), formatClock(c.Start), formatClock(c.End)), nil
			})
		},
	}
	cmd.Flags().StringVarP(&textValue, "text", "t", "", "Caption text")
	cmd.Flags().StringVar(&atValue, "at", "0", "Start time (seconds or HH:MM:SS.mmm)")
	cmd.Flags().StringVar(&endValue, "end", "", "End time (default: start + 3s)")
	return cmd
}

func newCaptionsEditCommand() *cobra.Command {
	var textValue, startValue, endValue, moveValue string
	cmd := &cobra.Command{
		Use:         "edit <captions> <id|#>",
		Short:       "Change a caption's text or timing",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("text") && !flags.Changed("start") && !flags.Changed("end") && !flags.Changed("move-to") {
				return fmt.Errorf("nothing to change; pass --text, --start, --end, or --move-to")
			}
			return editTrack(cmd, args[0], func(track *captions.Track) (string, error) {
				c, err := findCaption(track.Snapshot(), args[1])
				if err != nil {
					return "", err
				}
				if flags.Changed("text") {
					if c, err = track.SetText(c.ID, textValue); err != nil {
						return "", err
					}
				}
				if flags.Changed("move-to") {
					start, err := parseClock(moveValue)
					if err != nil {
						return "", fmt.Errorf("--move-to: %w", err)
					}
					if c, err = track.MoveSpan(c.ID, start); err != nil {
						return "", err
					}
				}
				if flags.Changed("start") || flags.Changed("end") {
					start, end := c.Start, c.End
					if flags.Changed("start") {
						if start, err = parseClock(startValue); err != nil {
							return "", fmt.Errorf("--start: %w", err)
						}
					}
					if flags.Changed("end") {
						if end, err = parseClock(endValue); err != nil {
							return "", fmt.Errorf("--end: %w", err)
						}
					}
					if c, err = track.SetSpan(c.ID, start, end); err != nil {
						return "", err
					}
				}
				return fmt.Sprintf("Updated caption %s: %s-%s %q", shortID(c.ID), formatClock(c.Start), formatClock(c.End), c.Text), nil
			})
		},
	}
	cmd.Flags().StringVarP(&textValue, "text", "t", "", "New caption text")
	cmd.Flags().StringVar(&startValue, "start", "", "New start time")
	cmd.Flags().StringVar(&endValue, "end", "", "New end time")
	cmd.Flags().StringVar(&moveValue, "move-to", "", "Move the caption to start here, keeping its length")
	return cmd
}

func newCaptionsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "delete <captions> <id|#>",
		Short:       "Remove a caption",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return editTrack(cmd, args[0], func(track *captions.Track) (string, error) {
				c, err := findCaption(track.Snapshot(), args[1])
				if err != nil {
					return "", err
				}
				if err := track.Delete(c.ID); err != nil {
					return "", err
				}
				return fmt.Sprintf("Deleted caption %s %q", shortID(c.ID), c.Text), nil
			})
		},
	}
}

func newCaptionsDuplicateCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "duplicate <captions> <id|#>",
		Short:       "Copy a caption to start where it ends",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return editTrack(cmd, args[0], func(track *captions.Track) (string, error) {
				c, err := findCaption(track.Snapshot(), args[1])
				if err != nil {
					return "", err
				}
				dup, err := track.Duplicate(c.ID)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Duplicated caption %s as %s at %s", shortID(c.ID), shortID(dup.ID), formatClock(dup.Start)), nil
			})
		},
	}
}

func newCaptionsShiftCommand() *cobra.Command {
	var by float64
	cmd := &cobra.Command{
		Use:         "shift <captions>",
		Short:       "Offset every caption by a number of seconds",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if by == 0 {
				return fmt.Errorf("--by must be non-zero")
			}
			return editTrack(cmd, args[0], func(track *captions.Track) (string, error) {
				if err := track.Shift(by); err != nil {
					return "", err
				}
				return fmt.Sprintf("Shifted %d captions by %+.3fs", track.Len(), by), nil
			})
		},
	}
	cmd.Flags().Float64Var(&by, "by", 0, "Seconds to add (negative moves captions earlier)")
	return cmd
}
