// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deck-engine/internal/session"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Recover a session from an error",
	Long: `Retry recovers a session in the error state. After a failed production
run it produces only the missing cards; with --from-review it instead returns
to plan review and drops the partial deck. After a failed revision it sends
the same request again. A failed first plan has nothing to return to: reset
the session and plan again.`,
	RunE: runRetry,
}

func init() {
	retryCmd.Flags().Bool("from-review", false, "after a production failure, return to plan review instead")

	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, args []string) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	defer w.close()

	if err := w.loadSession(cmd.Context(), true); err != nil {
		return err
	}
	info := w.sess.Error()
	if info == nil {
		return fmt.Errorf("session %s is %s, not in error", w.sess.ID(), w.sess.State())
	}

	if info.Op == session.OpPlan {
		return fmt.Errorf("session %s failed its first plan: run 'deck-engine reset' and plan again", w.sess.ID())
	}

	fromReview, _ := cmd.Flags().GetBool("from-review")
	if info.Op == session.OpProduce && !fromReview {
		fmt.Fprintln(os.Stderr, "Producing missing cards...")
		state, opErr := w.sess.RetryProduction(cmd.Context())
		return reportProduction(w, state, opErr)
	}

	fmt.Fprintf(os.Stderr, "Retrying %s...\n", info.Op)
	state, opErr := w.sess.RetryFromReview(cmd.Context())
	if err := w.finish(state, opErr); err != nil {
		return err
	}
	if opErr != nil {
		return nil
	}
	return showPlan(w)
}
