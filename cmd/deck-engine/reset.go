// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear a finished, aborted, or failed session and start a fresh one",
	Long: `Reset clears the session and gives it a new ID, leaving an idle session
ready for 'deck-engine plan'. The old session stays in the store unless
--delete is given.`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().Bool("delete", false, "delete the old session from the store")

	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	defer w.close()

	if err := w.loadSession(cmd.Context(), false); err != nil {
		return err
	}
	old := w.sess.ID()
	if _, err := w.sess.Reset(); err != nil {
		return err
	}

	if del, _ := cmd.Flags().GetBool("delete"); del {
		if err := w.store.DeleteSession(cmd.Context(), old); err != nil {
			return err
		}
		fmt.Printf("Deleted session %s\n", old)
	}
	if err := w.save(); err != nil {
		return err
	}
	fmt.Printf("Session %s: %s\n", w.sess.ID(), w.sess.State())
	return nil
}
