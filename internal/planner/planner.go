// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package planner asks the model for a card-by-card deck plan, or a revision
// of one, and accepts only responses that satisfy the plan contract.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pdiddy/deck-engine/internal/docs"
	"github.com/pdiddy/deck-engine/internal/llm"
	"github.com/pdiddy/deck-engine/internal/prompt"
	"github.com/pdiddy/deck-engine/pkg/types"
)

const defaultMaxTokens = 8192

// ErrNoDocuments is returned when planning is asked for without sources.
var ErrNoDocuments = errors.New("planner: no source documents")

// Input is what a plan is generated from. Prior and Feedback are set when
// revising.
type Input struct {
	Briefing  types.Briefing
	Documents []types.SourceDocument
	LOD       types.LOD
	Subject   string

	Prior    *types.Plan
	Feedback *types.Feedback
}

// Revision reports whether the input asks for a revised plan.
func (in Input) Revision() bool {
	return in.Prior != nil
}

// Generator produces plans through a model Caller.
type Generator struct {
	caller   llm.Caller
	settings prompt.Settings
	logger   *slog.Logger
}

// New returns a Generator. A zero MaxTokens means 8192.
func New(caller llm.Caller, cfg types.PlanningConfig, logger *slog.Logger) *Generator {
	s := prompt.Settings{MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature}
	if s.MaxTokens <= 0 {
		s.MaxTokens = defaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{caller: caller, settings: s, logger: logger}
}

// Generate returns a validated plan. Malformed model output yields a
// *SchemaError; provider failures and cancellation come back from the
// model client unchanged.
func (g *Generator) Generate(ctx context.Context, in Input) (types.Plan, error) {
	if err := in.Briefing.Validate(); err != nil {
		return types.Plan{}, err
	}
	if len(in.Documents) == 0 {
		return types.Plan{}, ErrNoDocuments
	}

	outlines := docs.Outlines(in.Documents)
	req, err := prompt.PlanRequest(prompt.PlanInput{
		Briefing:  in.Briefing,
		Documents: in.Documents,
		LOD:       in.LOD,
		Subject:   in.Subject,
		Outlines:  outlines,
		Prior:     in.Prior,
		Feedback:  in.Feedback,
		Settings:  g.settings,
	})
	if err != nil {
		return types.Plan{}, fmt.Errorf("building plan request: %w", err)
	}

	g.logger.Info("requesting plan", "documents", len(in.Documents), "lod", in.LOD, "revision", in.Revision())
	resp, err := g.caller.Call(ctx, req)
	if err != nil {
		return types.Plan{}, err
	}

	plan, err := Decode(resp.Text, in.Documents)
	if err != nil {
		var se *SchemaError
		if errors.As(err, &se) && resp.Truncated() {
			se.Problems = append(se.Problems, "response was cut off at the token limit")
		}
		return types.Plan{}, err
	}

	if in.Revision() {
		carryAnswers(&plan, *in.Prior, in.Feedback)
	}
	g.warnUnknownHeadings(plan, outlines)

	g.logger.Info("plan ready", "cards", len(plan.Cards), "questions", len(plan.Questions))
	return plan, nil
}

// carryAnswers keeps reviewer answers on questions the revised plan asks
// again under the same ID.
func carryAnswers(plan *types.Plan, prior types.Plan, fb *types.Feedback) {
	answers := map[string]string{}
	for _, q := range prior.Questions {
		if q.Answer != "" {
			answers[q.ID] = q.Answer
		}
	}
	if fb != nil {
		for id, a := range fb.Answers {
			if a != "" {
				answers[id] = a
			}
		}
	}
	for i, q := range plan.Questions {
		if q.Answer == "" {
			plan.Questions[i].Answer = answers[q.ID]
		}
	}
}

// warnUnknownHeadings logs cited headings missing from the document's
// outline. Hosted documents have no outline and are not checked.
func (g *Generator) warnUnknownHeadings(plan types.Plan, outlines map[string][]string) {
	for _, c := range plan.Cards {
		for _, s := range c.Sources {
			outline, ok := outlines[s.Document]
			if !ok || s.Heading == "" {
				continue
			}
			if !docs.ContainsHeading(outline, s.Heading) {
				g.logger.Warn("plan cites unknown heading",
					"card", c.Number,
					"document", s.Document,
					"heading", s.Heading)
			}
		}
	}
}
