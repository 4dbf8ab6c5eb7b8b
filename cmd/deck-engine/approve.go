// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deck-engine/internal/deck"
	"github.com/pdiddy/deck-engine/internal/session"
)

var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Approve the reviewed plan and produce the deck",
	Long: `Approve applies the review file, renumbers the included cards, and
produces their text in batches. The finished deck is written as Markdown to
the session directory. If some batches fail, the cards of the others are
kept and 'deck-engine retry' produces only the missing ones.`,
	RunE: runApprove,
}

func init() {
	approveCmd.Flags().Bool("accept-recommended", false, "accept the recommended answer for every open question")

	rootCmd.AddCommand(approveCmd)
}

func runApprove(cmd *cobra.Command, args []string) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	defer w.close()

	if err := w.loadSession(cmd.Context(), true); err != nil {
		return err
	}
	if err := w.applyReviewFile(); err != nil {
		return err
	}
	if accept, _ := cmd.Flags().GetBool("accept-recommended"); accept {
		if err := w.sess.SetAllRecommended(true); err != nil {
			return err
		}
	}

	plan, _ := w.sess.Plan()
	fmt.Fprintf(os.Stderr, "Producing %d card(s)...\n", len(plan.Included().Cards))
	state, opErr := w.sess.ApprovePlan(cmd.Context())
	return reportProduction(w, state, opErr)
}

// reportProduction saves the session, writes whatever cards exist to the
// deck file, and lists grounding gaps and notices.
func reportProduction(w *workspace, state session.State, opErr error) error {
	if err := w.finish(state, opErr); err != nil && state != session.StateError {
		return err
	}

	cards := w.sess.Cards()
	if len(cards) > 0 {
		path := filepath.Join(w.sessionDir(), deck.DeckFile)
		if err := deck.WriteMarkdown(path, w.sess.Briefing(), cards); err != nil {
			return err
		}
		fmt.Printf("Deck (%d card(s)): %s\n", len(cards), path)
	}

	if gaps := deck.GroundingGaps(cards); len(gaps) > 0 {
		fmt.Println("\nGrounding gaps:")
		for _, g := range gaps {
			fmt.Printf("  card %d %q: %s x%d\n", g.Card, g.Title, g.Marker, g.Count)
		}
	}
	if notices := w.sess.Notices(); len(notices) > 0 {
		fmt.Println("\nNotices:")
		for _, n := range notices {
			fmt.Printf("  card %d: %s\n", n.Card, n.Message)
		}
	}

	if state == session.StateError {
		return opErr
	}
	return nil
}
