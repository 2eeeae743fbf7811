package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/channel-reaper/internal/command"
)

var archiveYes bool

var archiveCmd = &cobra.Command{
	Use:     "archive <N>days",
	Aliases: []string{"kill"},
	Short:   "Archive the channels with no activity for N days",
	Long: `Archive every public channel with no activity for N days, skipping
protected channels. N must be at least the policy minimum (30 by default).
Without --yes the command only prints what it would archive.`,
	Example: `  reaper archive 90days --yes`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days, err := parseDays(args[0])
		if err != nil {
			return err
		}

		comp, err := buildComponents(cfg, logger)
		if err != nil {
			return err
		}
		defer comp.Close()

		ctx := commandContext(cmd)
		out := cmd.OutOrStdout()
		minDays := comp.dispatcher.MinArchiveDays()

		if !archiveYes {
			if days < minDays {
				return fmt.Errorf("%d days is too short, archiving needs at least %d days", days, minDays)
			}
			allowed, protected, err := comp.dispatcher.Find(ctx, days)
			if err != nil {
				return fmt.Errorf("find disused channels: %w", err)
			}
			fmt.Fprintf(out, "would archive %d channels disused for %d days (re-run with --yes):\n", len(allowed), days)
			printChannels(out, allowed)
			if len(protected) > 0 {
				fmt.Fprintf(out, "\nprotected (skipped):\n")
				printChannels(out, protected)
			}
			return nil
		}

		requestedBy := "cli"
		if u := os.Getenv("USER"); u != "" {
			requestedBy = "cli:" + u
		}

		res, err := comp.dispatcher.Archive(ctx, days, requestedBy)
		if errors.Is(err, command.ErrThresholdTooShort) {
			return fmt.Errorf("%d days is too short, archiving needs at least %d days", days, minDays)
		}
		if err != nil {
			return fmt.Errorf("archive: %w", err)
		}

		fmt.Fprintf(out, "archived %d of %d channels\n", len(res.Archived), len(res.Candidates))
		if len(res.Archived) > 0 {
			printChannels(out, res.Archived)
		}
		if len(res.Failed) > 0 {
			fmt.Fprintf(out, "\nfailed:\n")
			printChannels(out, res.Failed)
		}
		if len(res.Protected) > 0 {
			fmt.Fprintf(out, "\nprotected (skipped):\n")
			printChannels(out, res.Protected)
		}
		if len(res.Failed) > 0 {
			return fmt.Errorf("%d channels could not be archived", len(res.Failed))
		}
		return nil
	},
}

func init() {
	archiveCmd.Flags().BoolVarP(&archiveYes, "yes", "y", false, "archive for real instead of printing the candidates")
}
