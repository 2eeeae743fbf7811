package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/channel-reaper/internal/models"
)

var listCmd = &cobra.Command{
	Use:   "list <N>days",
	Short: "Print the channels with no activity for N days",
	Example: `  reaper list 90days
  reaper list 30`,
	Args: cobra.ExactArgs(1),
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

		allowed, protected, err := comp.dispatcher.Find(commandContext(cmd), days)
		if err != nil {
			return fmt.Errorf("find disused channels: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(allowed) == 0 {
			fmt.Fprintf(out, "no channels disused for %d days\n", days)
		} else {
			fmt.Fprintf(out, "channels disused for %d days:\n", days)
			printChannels(out, allowed)
		}
		if len(protected) > 0 {
			fmt.Fprintf(out, "\nprotected (never archived):\n")
			printChannels(out, protected)
		}
		return nil
	},
}

// parseDays accepts "90days", "90 days" or "90".
func parseDays(arg string) (int, error) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(arg)), "days"))
	days, err := strconv.Atoi(s)
	if err != nil || days < 0 {
		return 0, fmt.Errorf("invalid threshold %q, expected <N>days", arg)
	}
	return days, nil
}

func printChannels(w io.Writer, chs []models.Channel) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLAST ACTIVITY")
	for _, ch := range chs {
		fmt.Fprintf(tw, "%s\t#%s\t%s\n", ch.ID, ch.Name, lastActivity(ch))
	}
	_ = tw.Flush()
}

func lastActivity(ch models.Channel) string {
	if ch.Latest == nil {
		return "-"
	}
	t, err := ch.Latest.Time()
	if err != nil {
		return "-"
	}
	return t.UTC().Format(time.DateOnly)
}

// commandContext is cmd.Context() or Background when cobra was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
