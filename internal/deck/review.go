// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package deck moves plans and produced decks between a session and the
// files a reviewer works with: an editable review file for the plan, and a
// Markdown rendering of the finished cards.
package deck

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/deck-engine/pkg/types"
)

// ReviewFile is the default review file name inside a session directory.
const ReviewFile = "review.yaml"

// ReviewCard is one card of a review file. Only Include is read back.
type ReviewCard struct {
	Number      int      `yaml:"number"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description,omitempty"`
	Sources     []string `yaml:"sources,omitempty"`
	KeyData     []string `yaml:"key_data_points,omitempty"`
	Include     bool     `yaml:"include"`
}

// ReviewQuestion is one planner question of a review file. Only Answer is
// read back.
type ReviewQuestion struct {
	ID          string `yaml:"id"`
	Text        string `yaml:"text"`
	Recommended string `yaml:"recommended,omitempty"`
	Answer      string `yaml:"answer"`
}

// Review is the human-editable form of a plan under review.
type Review struct {
	Session              string           `yaml:"session"`
	Cards                []ReviewCard     `yaml:"cards"`
	Questions            []ReviewQuestion `yaml:"questions,omitempty"`
	AcceptAllRecommended bool             `yaml:"accept_all_recommended"`
	Comment              string           `yaml:"comment"`
}

// NewReview builds the review form of plan.
func NewReview(sessionID string, plan types.Plan, acceptAll bool) Review {
	r := Review{
		Session:              sessionID,
		AcceptAllRecommended: acceptAll,
		Comment:              plan.GeneralComment,
	}
	for _, c := range plan.Cards {
		rc := ReviewCard{
			Number:      c.Number,
			Title:       c.Title,
			Description: c.Description,
			KeyData:     c.KeyDataPoints,
			Include:     !c.Excluded,
		}
		for _, src := range c.Sources {
			rc.Sources = append(rc.Sources, fmt.Sprintf("%s: %s", src.Document, src.Locator()))
		}
		r.Cards = append(r.Cards, rc)
	}
	for _, q := range plan.Questions {
		r.Questions = append(r.Questions, ReviewQuestion{
			ID:          q.ID,
			Text:        q.Text,
			Recommended: q.Recommended,
			Answer:      q.Answer,
		})
	}
	return r
}

// WriteReview writes r to path as YAML, creating parent directories.
func WriteReview(path string, r Review) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling review: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating review directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing review: %w", err)
	}
	return nil
}

// LoadReview reads a review file.
func LoadReview(path string) (Review, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Review{}, fmt.Errorf("reading review: %w", err)
	}
	var r Review
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Review{}, fmt.Errorf("parsing review: %w", err)
	}
	return r, nil
}

// Editor is the part of a session a review is applied through.
type Editor interface {
	ID() string
	Plan() (types.Plan, bool)
	AcceptAllRecommended() bool
	ToggleCardIncluded(n int) error
	SetQuestionAnswer(id, answer string) error
	SetAllRecommended(on bool) error
	SetGeneralComment(text string) error
}

// ApplyReview copies the reviewer's edits in r onto the session's draft.
// The review must belong to the session and may only name cards and
// questions the current plan has.
func ApplyReview(e Editor, r Review) error {
	if r.Session != "" && r.Session != e.ID() {
		return fmt.Errorf("review belongs to session %s, not %s", r.Session, e.ID())
	}
	plan, ok := e.Plan()
	if !ok {
		return fmt.Errorf("session %s has no plan to review", e.ID())
	}

	for _, rc := range r.Cards {
		c, ok := plan.Card(rc.Number)
		if !ok {
			return fmt.Errorf("review names card %d, which the plan does not have", rc.Number)
		}
		if rc.Include == !c.Excluded {
			continue
		}
		if err := e.ToggleCardIncluded(rc.Number); err != nil {
			return fmt.Errorf("card %d: %w", rc.Number, err)
		}
	}

	answers := make(map[string]string, len(plan.Questions))
	for _, q := range plan.Questions {
		answers[q.ID] = q.Answer
	}
	for _, rq := range r.Questions {
		current, ok := answers[rq.ID]
		if !ok {
			return fmt.Errorf("review names question %q, which the plan does not have", rq.ID)
		}
		answer := strings.TrimSpace(rq.Answer)
		if answer == current {
			continue
		}
		if err := e.SetQuestionAnswer(rq.ID, answer); err != nil {
			return fmt.Errorf("question %s: %w", rq.ID, err)
		}
	}

	if r.AcceptAllRecommended != e.AcceptAllRecommended() {
		if err := e.SetAllRecommended(r.AcceptAllRecommended); err != nil {
			return err
		}
	}
	if comment := strings.TrimSpace(r.Comment); comment != plan.GeneralComment {
		if err := e.SetGeneralComment(comment); err != nil {
			return err
		}
	}
	return nil
}
