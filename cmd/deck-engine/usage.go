// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deck-engine/internal/store"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show token usage per provider and model",
	RunE:  runUsage,
}

func init() {
	usageCmd.Flags().Bool("all", false, "sum usage across all sessions")

	rootCmd.AddCommand(usageCmd)
}

func runUsage(cmd *cobra.Command, args []string) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	defer w.close()

	var id string
	if all, _ := cmd.Flags().GetBool("all"); !all {
		if err := w.loadSession(cmd.Context(), false); err != nil {
			return err
		}
		id = w.sess.ID()
		fmt.Printf("Session %s\n\n", id)
	}

	totals, err := w.store.UsageTotals(cmd.Context(), id)
	if err != nil {
		return err
	}
	return formatUsage(totals)
}

func formatUsage(totals []store.UsageTotal) error {
	if len(totals) == 0 {
		fmt.Println("No usage recorded.")
		return nil
	}

	fmt.Printf("%-10s  %-30s  %5s  %10s  %10s  %10s  %10s\n",
		"Provider", "Model", "Calls", "Input", "Output", "CacheRead", "CacheWrite")
	fmt.Println(strings.Repeat("-", 100))
	for _, t := range totals {
		fmt.Printf("%-10s  %-30s  %5d  %10d  %10d  %10d  %10d\n",
			t.Provider, t.Model, t.Calls, t.InputTokens, t.OutputTokens, t.CacheReadTokens, t.CacheWriteTokens)
	}
	return nil
}
