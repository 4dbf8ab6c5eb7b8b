// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/deck-engine/internal/docs"
	"github.com/pdiddy/deck-engine/pkg/types"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Start a session and generate a card plan from the source documents",
	Long: `Plan reads the documents in --docs-dir, combines them with the briefing,
and asks the model for a card-by-card plan. The plan is written to a review
file in the session directory; edit it, then run revise or approve.

The briefing comes from flags or from a YAML file given with --briefing
(audience, presentation_type, objective, tone, focus).`,
	RunE: runPlan,
}

func init() {
	addBriefingFlags(planCmd)
	planCmd.Flags().String("lod", "standard", "level of detail: executive, standard, or detailed")
	planCmd.Flags().String("subject", "", "optional subject the deck is about")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	b, err := briefingFromFlags(cmd)
	if err != nil {
		return err
	}
	lodFlag, _ := cmd.Flags().GetString("lod")
	lod, err := types.ParseLOD(lodFlag)
	if err != nil {
		return err
	}
	subject, _ := cmd.Flags().GetString("subject")

	w, err := openWorkspace()
	if err != nil {
		return err
	}
	defer w.close()

	documents, err := docs.DirProvider{Dir: w.cfg.DocsDir}.Documents(cmd.Context())
	if err != nil {
		return err
	}
	if len(documents) == 0 {
		return fmt.Errorf("no documents in %s: add .md, .txt, or .ref files", w.cfg.DocsDir)
	}
	if err := w.newSession(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Planning %s deck from %d document(s) with %s...\n", lod, len(documents), w.cfg.AI.Model)
	state, opErr := w.sess.StartPlanning(cmd.Context(), b, documents, lod, subject)
	if err := w.finish(state, opErr); err != nil {
		return err
	}
	if opErr != nil {
		return nil
	}
	return showPlan(w)
}

func addBriefingFlags(cmd *cobra.Command) {
	cmd.Flags().String("briefing", "", "YAML file holding the briefing")
	cmd.Flags().String("audience", "", "who the deck is for")
	cmd.Flags().String("type", "", "kind of presentation (e.g. training, pitch, update)")
	cmd.Flags().String("objective", "", "what the deck must achieve")
	cmd.Flags().String("tone", "", "optional voice hint")
	cmd.Flags().String("focus", "", "optional focus within the material")
}

func briefingFromFlags(cmd *cobra.Command) (types.Briefing, error) {
	var b types.Briefing
	if path, _ := cmd.Flags().GetString("briefing"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return b, fmt.Errorf("reading briefing: %w", err)
		}
		if err := yaml.Unmarshal(data, &b); err != nil {
			return b, fmt.Errorf("parsing briefing: %w", err)
		}
	}
	for flag, field := range map[string]*string{
		"audience":  &b.Audience,
		"type":      &b.PresentationType,
		"objective": &b.Objective,
		"tone":      &b.Tone,
		"focus":     &b.Focus,
	} {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			*field = strings.TrimSpace(v)
		}
	}
	return b, b.Validate()
}

// showPlan writes the review file and prints the plan.
func showPlan(w *workspace) error {
	path, err := w.writeReview()
	if err != nil {
		return err
	}
	plan, _ := w.sess.Plan()

	fmt.Printf("\n%-4s  %-8s  %s\n", "Card", "Include", "Title")
	fmt.Println(strings.Repeat("-", 60))
	for _, c := range plan.Cards {
		include := "yes"
		if c.Excluded {
			include = "no"
		}
		fmt.Printf("%-4d  %-8s  %s\n", c.Number, include, c.Title)
	}
	if len(plan.Questions) > 0 {
		fmt.Println("\nQuestions:")
		for _, q := range plan.Questions {
			fmt.Printf("  [%s] %s\n", q.ID, q.Text)
			if q.Recommended != "" {
				fmt.Printf("       recommended: %s\n", q.Recommended)
			}
			if q.Answer != "" {
				fmt.Printf("       answer: %s\n", q.Answer)
			}
		}
	}
	fmt.Printf("\nReview file: %s\n", path)
	fmt.Println("Edit it, then run 'deck-engine revise' or 'deck-engine approve'.")
	return nil
}
