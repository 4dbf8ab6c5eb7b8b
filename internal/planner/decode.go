// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package planner

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pdiddy/deck-engine/internal/docs"
	"github.com/pdiddy/deck-engine/internal/prompt"
	"github.com/pdiddy/deck-engine/pkg/types"
)

// SchemaError reports model output that does not satisfy the plan contract.
type SchemaError struct {
	Stage    string
	Problems []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: invalid model output: %s", e.Stage, strings.Join(e.Problems, "; "))
}

func schemaError(problems ...string) *SchemaError {
	return &SchemaError{Stage: "plan", Problems: problems}
}

// Decode parses a planning response into a Plan. The JSON may be wrapped in
// a Markdown code fence and may be either an array of cards or an object
// with cards and questions. Document references are resolved against docs
// by ID or name; anything that does not resolve is a schema problem.
func Decode(text string, documents []types.SourceDocument) (types.Plan, error) {
	raw := prompt.ExtractJSON(text)
	if raw == "" {
		return types.Plan{}, schemaError("response contains no JSON")
	}

	var resp prompt.PlanResponse
	var err error
	if strings.HasPrefix(raw, "[") {
		err = json.Unmarshal([]byte(raw), &resp.Cards)
	} else {
		err = json.Unmarshal([]byte(raw), &resp)
	}
	if err != nil {
		return types.Plan{}, schemaError(fmt.Sprintf("decoding JSON: %v", err))
	}

	return convert(resp, newResolver(documents))
}

func convert(resp prompt.PlanResponse, r resolver) (types.Plan, error) {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(resp.Cards) == 0 {
		addf("plan has no cards")
	}

	plan := types.Plan{}
	for i, c := range resp.Cards {
		pos := i + 1
		if c.Number != pos {
			addf("card at position %d has number %d", pos, c.Number)
		}
		if strings.TrimSpace(c.Title) == "" {
			addf("card %d: missing title", pos)
		}
		if strings.TrimSpace(c.Description) == "" {
			addf("card %d: missing description", pos)
		}
		if c.Guidance == nil {
			addf("card %d: missing guidance", pos)
		}
		if len(c.Sources) == 0 {
			addf("card %d: no sources", pos)
		}
		if c.WordTarget < 0 {
			addf("card %d: negative word target", pos)
		}

		card := types.PlannedCard{
			Number:          c.Number,
			Title:           strings.TrimSpace(c.Title),
			Description:     strings.TrimSpace(c.Description),
			KeyDataPoints:   nonEmpty(c.KeyDataPoints),
			WordTarget:      c.WordTarget,
			CrossReferences: c.CrossReferences,
		}
		if c.Guidance != nil {
			card.Guidance = types.Guidance{Emphasis: c.Guidance.Emphasis, Tone: c.Guidance.Tone, Exclude: c.Guidance.Exclude}
		}
		for j, s := range c.Sources {
			id, ok := r.resolve(s.Document)
			switch {
			case strings.TrimSpace(s.Document) == "":
				addf("card %d source %d: missing document", pos, j+1)
			case !ok:
				addf("card %d source %d: unknown document %q", pos, j+1, s.Document)
			}
			card.Sources = append(card.Sources, types.SourceRef{
				Document:            id,
				Heading:             s.Heading,
				Section:             s.Section,
				FallbackDescription: s.FallbackDescription,
			})
		}
		plan.Cards = append(plan.Cards, card)
	}

	seen := map[string]bool{}
	for i, q := range resp.Questions {
		id := strings.TrimSpace(q.ID)
		switch {
		case id == "":
			addf("question %d: missing id", i+1)
		case seen[id]:
			addf("question %d: duplicate id %q", i+1, id)
		}
		if strings.TrimSpace(q.Text) == "" {
			addf("question %d: missing text", i+1)
		}
		seen[id] = true
		plan.Questions = append(plan.Questions, types.Question{ID: id, Text: q.Text, Recommended: q.Recommended, Answer: q.Answer})
	}

	if len(problems) > 0 {
		return types.Plan{}, schemaError(problems...)
	}
	return plan, nil
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// resolver maps model-supplied document references to document IDs.
type resolver map[string]string

func newResolver(documents []types.SourceDocument) resolver {
	r := resolver{}
	add := func(key, id string) {
		key = strings.ToLower(strings.TrimSpace(key))
		if _, taken := r[key]; key != "" && !taken {
			r[key] = id
		}
	}
	// IDs take precedence over names.
	for _, d := range documents {
		add(d.ID, d.ID)
	}
	for _, d := range documents {
		name := strings.TrimSuffix(d.Name, filepath.Ext(d.Name))
		add(d.Name, d.ID)
		add(name, d.ID)
		add(docs.DocumentID(name), d.ID)
	}
	return r
}

// resolve returns the document ID for ref. Unresolved refs come back
// unchanged with ok false.
func (r resolver) resolve(ref string) (string, bool) {
	id, ok := r[strings.ToLower(strings.TrimSpace(ref))]
	if !ok {
		return ref, false
	}
	return id, true
}
