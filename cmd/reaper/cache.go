package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or reset the last-message cache",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the cached last message per channel as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, c, err := openCache(cfg, logger)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close()
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(c.Snapshot())
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached entry so the next run re-reads channel history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, c, err := openCache(cfg, logger)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close()
		}

		n := c.Len()
		if err := c.Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared %d cache entries\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
