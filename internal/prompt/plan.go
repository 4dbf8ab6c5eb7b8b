// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/pdiddy/deck-engine/internal/llm"
	"github.com/pdiddy/deck-engine/pkg/types"
)

var planSystemTmpl = template.Must(template.New("plan-system").Parse(`You are a presentation planner. You design decks of content cards from a fixed set of source documents.

Propose a card-by-card plan. For every card:
- cite the specific document sections it draws on, by document id and heading (or section number, or a short description when the document has no headings);
- list the key data points: facts, figures, or short quotes copied verbatim from the sources;
- give writing guidance: what to emphasise, the tone, and what to leave out.

Every fact in the plan must be traceable to the source text. Never invent content, figures, or sources. If the documents do not support a topic the briefing asks for, say so in a clarifying question instead of planning a card for it.

Number cards 1..N in deck order without gaps. Raise clarifying questions only when the answer would change the plan; give each a short unique id and, when you have one, a recommended answer.

Level of detail: {{.LOD}}. Each card will be written in {{.Profile.WordCountMin}} to {{.Profile.WordCountMax}} words; size the material per card accordingly.

Respond with a single JSON object matching this schema and nothing else:
{{.Schema}}`))

var planTurnTmpl = template.Must(template.New("plan-turn").Parse(`{{with .Briefing}}Briefing:
- Audience: {{.Audience}}
- Presentation type: {{.PresentationType}}
- Objective: {{.Objective}}
{{- if .Tone}}
- Tone: {{.Tone}}{{end}}
{{- if .Focus}}
- Focus: {{.Focus}}{{end}}
{{end}}
{{- if .Subject}}
Subject area: {{.Subject}}. Use its standard terminology.
{{end}}
Documents:
{{.Index}}
{{- if .Outlines}}
Document headings:
{{.Outlines}}
{{- end}}
{{- if .Prior}}
This is a revision. The current plan is:
{{.Prior}}

Reviewer feedback:
{{.Feedback}}
Revise the plan. Drop excluded cards, keep included cards unless the feedback says otherwise, apply the answered questions, and renumber the cards 1..N.
{{- else}}
Propose the plan.
{{- end}}`))

// PlanInput is everything the plan builder needs.
type PlanInput struct {
	Briefing  types.Briefing
	Documents []types.SourceDocument
	LOD       types.LOD
	Subject   string

	// Outlines maps document IDs to their headings.
	Outlines map[string][]string

	// Prior and Feedback are set in revision mode.
	Prior    *types.Plan
	Feedback *types.Feedback

	Settings Settings
}

// PlanRequest builds the planning request.
func PlanRequest(in PlanInput) (llm.Request, error) {
	system, err := render(planSystemTmpl, struct {
		LOD     types.LOD
		Profile types.LODProfile
		Schema  string
	}{in.LOD, types.ProfileFor(in.LOD), PlanSchema()})
	if err != nil {
		return llm.Request{}, fmt.Errorf("rendering plan system prompt: %w", err)
	}

	data := struct {
		Briefing types.Briefing
		Subject  string
		Index    string
		Outlines string
		Prior    string
		Feedback string
	}{
		Briefing: in.Briefing,
		Subject:  in.Subject,
		Index:    documentIndex(in.Documents),
		Outlines: renderOutlines(in.Documents, in.Outlines),
	}
	if in.Prior != nil {
		prior, err := json.MarshalIndent(FromPlan(*in.Prior), "", "  ")
		if err != nil {
			return llm.Request{}, fmt.Errorf("encoding prior plan: %w", err)
		}
		data.Prior = string(prior)

		fb := types.Feedback{}
		if in.Feedback != nil {
			fb = *in.Feedback
		}
		data.Feedback = RenderFeedback(*in.Prior, fb)
	}

	turn, err := render(planTurnTmpl, data)
	if err != nil {
		return llm.Request{}, fmt.Errorf("rendering plan turn: %w", err)
	}
	return build(in.Settings, []string{system}, in.Documents, turn)
}

func renderOutlines(docs []types.SourceDocument, outlines map[string][]string) string {
	var b strings.Builder
	for _, d := range docs {
		headings := outlines[d.ID]
		if len(headings) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s:\n", d.ID)
		for _, h := range headings {
			fmt.Fprintf(&b, "  - %s\n", h)
		}
	}
	return b.String()
}

// RenderFeedback describes the reviewer's draft in prose: excluded cards,
// answered questions, and the general comment.
func RenderFeedback(prior types.Plan, fb types.Feedback) string {
	var b strings.Builder

	excluded := append([]int(nil), fb.Excluded...)
	sort.Ints(excluded)
	if len(excluded) == 0 {
		b.WriteString("- All cards are included.\n")
	}
	for _, n := range excluded {
		title := ""
		if c, ok := prior.Card(n); ok {
			title = c.Title
		}
		fmt.Fprintf(&b, "- Exclude card %d (%s).\n", n, title)
	}

	for _, q := range prior.Questions {
		answer := fb.Answers[q.ID]
		if answer == "" {
			answer = q.Answer
		}
		if answer == "" && fb.AcceptAllRecommended {
			answer = q.Recommended
		}
		if answer == "" {
			fmt.Fprintf(&b, "- Question %s (%s) is unanswered; use your judgement.\n", q.ID, q.Text)
			continue
		}
		fmt.Fprintf(&b, "- Question %s (%s): %s\n", q.ID, q.Text, answer)
	}

	if c := strings.TrimSpace(fb.Comment); c != "" {
		fmt.Fprintf(&b, "- General comment: %s\n", c)
	}
	return b.String()
}

// FromPlan converts a plan into its wire form. Excluded cards are kept so
// the model sees the full prior plan; the feedback names the exclusions.
func FromPlan(p types.Plan) PlanResponse {
	out := PlanResponse{}
	for _, c := range p.Cards {
		wc := PlanCard{
			Number:          c.Number,
			Title:           c.Title,
			Description:     c.Description,
			KeyDataPoints:   c.KeyDataPoints,
			Guidance:        &PlanGuidance{Emphasis: c.Guidance.Emphasis, Tone: c.Guidance.Tone, Exclude: c.Guidance.Exclude},
			WordTarget:      c.WordTarget,
			CrossReferences: c.CrossReferences,
		}
		for _, s := range c.Sources {
			wc.Sources = append(wc.Sources, PlanSource{
				Document:            s.Document,
				Heading:             s.Heading,
				Section:             s.Section,
				FallbackDescription: s.FallbackDescription,
			})
		}
		out.Cards = append(out.Cards, wc)
	}
	for _, q := range p.Questions {
		out.Questions = append(out.Questions, PlanQuestion{ID: q.ID, Text: q.Text, Recommended: q.Recommended, Answer: q.Answer})
	}
	return out
}
