// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deck-engine/pkg/types"
)

var reviseCmd = &cobra.Command{
	Use:   "revise",
	Short: "Send the reviewed plan back to the model for revision",
	Long: `Revise applies the review file (card toggles, answers, comment) to the
plan and asks the model for a revised plan. A failed revision keeps the
previous plan and your edits; run retry to send it again.`,
	RunE: runRevise,
}

func init() {
	reviseCmd.Flags().String("comment", "", "general comment for the model (overrides the review file)")
	reviseCmd.Flags().Bool("accept-recommended", false, "accept the recommended answer for every open question")

	rootCmd.AddCommand(reviseCmd)
}

func runRevise(cmd *cobra.Command, args []string) error {
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

	var fb types.Feedback
	fb.Comment, _ = cmd.Flags().GetString("comment")
	fb.AcceptAllRecommended, _ = cmd.Flags().GetBool("accept-recommended")

	fmt.Fprintln(os.Stderr, "Revising plan...")
	state, opErr := w.sess.RevisePlan(cmd.Context(), fb)
	if err := w.finish(state, opErr); err != nil {
		return err
	}
	if opErr != nil {
		return nil
	}
	return showPlan(w)
}
