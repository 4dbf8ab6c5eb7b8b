// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Show the current plan and rewrite its review file",
	Long: `Review prints the session's plan and writes it to the review file in the
session directory. Edits already in the review file are applied first unless
--discard is given, in which case the file is rebuilt from the stored plan.`,
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().Bool("discard", false, "discard edits in the review file")

	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	defer w.close()

	if err := w.loadSession(cmd.Context(), false); err != nil {
		return err
	}
	if _, ok := w.sess.Plan(); !ok {
		return fmt.Errorf("session %s has no plan yet (state %s)", w.sess.ID(), w.sess.State())
	}

	if discard, _ := cmd.Flags().GetBool("discard"); !discard {
		if err := w.applyReviewFile(); err != nil {
			return err
		}
		if err := w.save(); err != nil {
			return err
		}
	}
	fmt.Printf("Session %s: %s\n", w.sess.ID(), w.sess.State())
	return showPlan(w)
}
