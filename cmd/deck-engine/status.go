// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deck-engine/internal/deck"
	"github.com/pdiddy/deck-engine/internal/session"
	"github.com/pdiddy/deck-engine/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a session, or list all sessions",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().Bool("list", false, "list all stored sessions")
	statusCmd.Flags().Bool("json", false, "print the session snapshot as JSON")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	defer w.close()

	if list, _ := cmd.Flags().GetBool("list"); list {
		sessions, err := w.store.ListSessions(cmd.Context())
		if err != nil {
			return err
		}
		return formatSessionList(sessions)
	}

	if err := w.loadSession(cmd.Context(), false); err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(w.sess.Snapshot())
	}

	s := w.sess
	fmt.Printf("Session:   %s\n", s.ID())
	fmt.Printf("State:     %s\n", s.State())
	if b := s.Briefing(); b.Objective != "" {
		fmt.Printf("Objective: %s\n", b.Objective)
		fmt.Printf("Audience:  %s (%s)\n", b.Audience, b.PresentationType)
	}
	if plan, ok := s.Plan(); ok {
		fmt.Printf("Plan:      %d card(s), %d included, %d question(s)\n",
			len(plan.Cards), len(plan.Included().Cards), len(plan.Questions))
	}
	if approved, ok := s.Approved(); ok {
		fmt.Printf("Produced:  %d of %d card(s)\n", len(s.Cards()), len(approved.Cards))
	}
	if gaps := deck.GroundingGaps(s.Cards()); len(gaps) > 0 {
		fmt.Printf("Gaps:      %d grounding marker(s)\n", len(gaps))
	}
	if n := len(s.Notices()); n > 0 {
		fmt.Printf("Notices:   %d\n", n)
	}
	if info := s.Error(); info != nil {
		fmt.Printf("Error:     %s during %s: %s\n", info.Kind, info.Op, info.Message)
		for _, b := range info.Batches {
			fmt.Printf("           cards %d-%d: %s\n", b.First, b.Last, b.Kind)
		}
	}

	switch s.State() {
	case session.StatePlanReady:
		fmt.Println("\nNext: edit the review file, then 'deck-engine revise' or 'deck-engine approve'.")
	case session.StateError:
		if info := s.Error(); info != nil && info.Op == session.OpPlan {
			fmt.Println("\nNext: 'deck-engine reset', then 'deck-engine plan'.")
			break
		}
		fmt.Println("\nNext: 'deck-engine retry'.")
	case session.StateAborted:
		fmt.Println("\nNext: 'deck-engine reset' to start over.")
	}
	return nil
}

func formatSessionList(sessions []store.SessionSummary) error {
	if len(sessions) == 0 {
		fmt.Println("No sessions.")
		return nil
	}

	fmt.Printf("%-36s  %-10s  %-9s  %-5s  %-16s  %s\n", "ID", "State", "LOD", "Cards", "Updated", "Objective")
	fmt.Println(strings.Repeat("-", 120))
	for _, s := range sessions {
		objective := s.Objective
		if len(objective) > 40 {
			objective = objective[:37] + "..."
		}
		fmt.Printf("%-36s  %-10s  %-9s  %-5d  %-16s  %s\n",
			s.ID, s.State, s.LOD, s.Cards, s.UpdatedAt.Local().Format("2006-01-02 15:04"), objective)
	}
	return nil
}
