// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deck-engine/internal/store"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search over produced cards across all sessions",
	Long: `Search runs an FTS5 query over the titles and text of every produced
card in the store. Matches in the card text are bracketed in the snippet.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("limit", 20, "maximum number of results")
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	w, err := openWorkspace()
	if err != nil {
		return err
	}
	defer w.close()

	hits, err := w.store.SearchCards(cmd.Context(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}
	return formatSearchOutput(hits)
}

func formatSearchOutput(hits []store.CardHit) error {
	if len(hits) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("%-4s  %-36s  %-4s  %-30s  %s\n", "Rank", "Session", "Card", "Title", "Snippet")
	fmt.Println(strings.Repeat("-", 120))
	for i, h := range hits {
		title := h.Title
		if len(title) > 30 {
			title = title[:27] + "..."
		}
		fmt.Printf("%-4d  %-36s  %-4d  %-30s  %s\n", i+1, h.SessionID, h.Number, title, h.Snippet)
	}
	fmt.Printf("\n%d results\n", len(hits))
	return nil
}
