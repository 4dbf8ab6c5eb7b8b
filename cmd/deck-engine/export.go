// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deck-engine/internal/deck"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the session's deck to Markdown, YAML, or JSON",
	Long: `Export writes the produced cards of a session to the session directory:
deck.md, deck.yaml, or deck.json. YAML and JSON exports also carry the
briefing, notices, and token usage. Partial decks export as they are.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("format", "markdown", "output format: markdown, yaml, or json")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	w, err := openWorkspace()
	if err != nil {
		return err
	}
	defer w.close()

	if err := w.loadSession(cmd.Context(), false); err != nil {
		return err
	}
	id := w.sess.ID()

	var path string
	switch format {
	case "markdown", "md", "":
		path = filepath.Join(w.sessionDir(), deck.DeckFile)
		err = deck.WriteMarkdown(path, w.sess.Briefing(), w.sess.Cards())
	case "yaml":
		path, err = w.store.ExportYAML(cmd.Context(), id)
	case "json":
		path, err = w.store.ExportJSON(cmd.Context(), id)
	default:
		return fmt.Errorf("unsupported format %q: use markdown, yaml, or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d card(s) to %s\n", len(w.sess.Cards()), path)
	return nil
}
