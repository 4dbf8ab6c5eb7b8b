// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var abortCmd = &cobra.Command{
	Use:   "abort",
	Short: "Abandon the session's current step",
	Long: `Abort moves the session to the aborted state. Cards already produced are
kept and can still be exported. Use reset to start a new session.`,
	RunE: runAbort,
}

func init() {
	rootCmd.AddCommand(abortCmd)
}

func runAbort(cmd *cobra.Command, args []string) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	defer w.close()

	if err := w.loadSession(cmd.Context(), false); err != nil {
		return err
	}
	state, err := w.sess.Abort()
	if err != nil {
		return err
	}
	if err := w.save(); err != nil {
		return err
	}
	fmt.Printf("Session %s: %s\n", w.sess.ID(), state)
	return nil
}
