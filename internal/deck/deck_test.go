// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package deck

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/deck-engine/internal/planner"
	"github.com/pdiddy/deck-engine/internal/session"
	"github.com/pdiddy/deck-engine/pkg/types"
)

type planFunc func(ctx context.Context, in planner.Input) (types.Plan, error)

func (f planFunc) Generate(ctx context.Context, in planner.Input) (types.Plan, error) {
	return f(ctx, in)
}

func samplePlan() types.Plan {
	return types.Plan{
		Cards: []types.PlannedCard{
			{Number: 1, Title: "Context", Description: "Why now", Sources: []types.SourceRef{{Document: "report", Heading: "Summary"}}},
			{Number: 2, Title: "Numbers", KeyDataPoints: []string{"12% growth"}},
			{Number: 3, Title: "Next steps"},
		},
		Questions: []types.Question{
			{ID: "q1", Text: "Include forecasts?", Recommended: "yes"},
			{ID: "q2", Text: "Name competitors?", Recommended: "no"},
		},
	}
}

// readySession returns a session holding samplePlan in PlanReady.
func readySession(t *testing.T) *session.Session {
	t.Helper()
	s := session.New(planFunc(func(context.Context, planner.Input) (types.Plan, error) {
		return samplePlan(), nil
	}), nil)
	_, err := s.StartPlanning(context.Background(),
		types.Briefing{Audience: "board", PresentationType: "update", Objective: "Explain Q3"},
		[]types.SourceDocument{{ID: "report", Name: "report.md", Content: "# Summary\nText"}},
		types.LODStandard, "")
	if err != nil {
		t.Fatalf("StartPlanning: %v", err)
	}
	return s
}

func TestReviewRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s1", ReviewFile)
	want := NewReview("s1", samplePlan(), false)

	if err := WriteReview(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := LoadReview(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Session != "s1" {
		t.Errorf("Session = %q, want s1", got.Session)
	}
	if len(got.Cards) != 3 || len(got.Questions) != 2 {
		t.Fatalf("got %d cards and %d questions, want 3 and 2", len(got.Cards), len(got.Questions))
	}
	if !got.Cards[0].Include {
		t.Error("card 1 should default to included")
	}
	if got.Cards[0].Sources[0] != "report: Summary" {
		t.Errorf("Sources[0] = %q", got.Cards[0].Sources[0])
	}
	if got.Cards[1].KeyData[0] != "12% growth" {
		t.Errorf("KeyData = %v", got.Cards[1].KeyData)
	}
}

func TestLoadReviewErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadReview(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte(":::bad\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadReview(bad); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestApplyReview(t *testing.T) {
	s := readySession(t)
	plan, _ := s.Plan()
	r := NewReview(s.ID(), plan, false)
	r.Cards[1].Include = false
	r.Questions[0].Answer = "  only the base case "
	r.AcceptAllRecommended = true
	r.Comment = "Shorter please"

	if err := ApplyReview(s, r); err != nil {
		t.Fatalf("ApplyReview: %v", err)
	}

	got, _ := s.Plan()
	if !got.Cards[1].Excluded || got.Cards[0].Excluded || got.Cards[2].Excluded {
		t.Errorf("exclusions = %v %v %v, want only card 2", got.Cards[0].Excluded, got.Cards[1].Excluded, got.Cards[2].Excluded)
	}
	if got.Questions[0].Answer != "only the base case" {
		t.Errorf("answer = %q", got.Questions[0].Answer)
	}
	if got.GeneralComment != "Shorter please" {
		t.Errorf("comment = %q", got.GeneralComment)
	}
	if !s.AcceptAllRecommended() {
		t.Error("accept-all not set")
	}

	// Applying the same review again changes nothing.
	if err := ApplyReview(s, r); err != nil {
		t.Fatal(err)
	}
	again, _ := s.Plan()
	if !again.Cards[1].Excluded {
		t.Error("second apply toggled card 2 back on")
	}
}

func TestApplyReviewRejects(t *testing.T) {
	tests := []struct {
		name   string
		edit   func(r *Review)
		errMsg string
	}{
		{
			name:   "other session",
			edit:   func(r *Review) { r.Session = "someone-else" },
			errMsg: "belongs to session someone-else",
		},
		{
			name:   "unknown card",
			edit:   func(r *Review) { r.Cards = append(r.Cards, ReviewCard{Number: 9, Include: true}) },
			errMsg: "card 9",
		},
		{
			name:   "unknown question",
			edit:   func(r *Review) { r.Questions = append(r.Questions, ReviewQuestion{ID: "q9", Answer: "x"}) },
			errMsg: `"q9"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := readySession(t)
			plan, _ := s.Plan()
			r := NewReview(s.ID(), plan, false)
			tt.edit(&r)
			err := ApplyReview(s, r)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error %q does not contain %q", err, tt.errMsg)
			}
		})
	}
}

func TestApplyReviewWithoutPlan(t *testing.T) {
	s := session.New(nil, nil)
	if err := ApplyReview(s, Review{}); err == nil {
		t.Error("expected error for a session with no plan")
	}
}

func TestRenderMarkdown(t *testing.T) {
	b := types.Briefing{Audience: "board", PresentationType: "update", Objective: "Explain Q3"}
	cards := []types.ProducedCard{
		{Number: 2, Title: "Numbers", Content: "Revenue grew 12%.\n"},
		{Number: 1, Title: "Context", Content: "Demand shifted."},
	}
	got := RenderMarkdown(b, cards)
	want := "# Explain Q3\n\n_update for board_\n\n## 1. Context\n\nDemand shifted.\n\n## 2. Numbers\n\nRevenue grew 12%.\n"
	if got != want {
		t.Errorf("RenderMarkdown =\n%s\nwant\n%s", got, want)
	}
	if cards[0].Number != 2 {
		t.Error("RenderMarkdown reordered the caller's slice")
	}

	path := filepath.Join(t.TempDir(), "out", DeckFile)
	if err := WriteMarkdown(path, b, cards); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != want {
		t.Error("written deck differs from rendered deck")
	}
}

func TestGroundingGaps(t *testing.T) {
	cards := []types.ProducedCard{
		{Number: 3, Title: "Risks", Content: "Churn is [SOURCE NOT FOUND]. Margins are [SOURCE NOT FOUND]."},
		{Number: 1, Title: "Context", Content: "All grounded."},
		{Number: 2, Title: "Market", Content: "[INSUFFICIENT SOURCE MATERIAL] and [SOURCE NOT FOUND]"},
	}
	gaps := GroundingGaps(cards)
	want := []Gap{
		{Card: 2, Title: "Market", Marker: "[INSUFFICIENT SOURCE MATERIAL]", Count: 1},
		{Card: 2, Title: "Market", Marker: "[SOURCE NOT FOUND]", Count: 1},
		{Card: 3, Title: "Risks", Marker: "[SOURCE NOT FOUND]", Count: 2},
	}
	if len(gaps) != len(want) {
		t.Fatalf("got %d gaps, want %d: %+v", len(gaps), len(want), gaps)
	}
	for i := range want {
		if gaps[i] != want[i] {
			t.Errorf("gap %d = %+v, want %+v", i, gaps[i], want[i])
		}
	}
}
