// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/deck-engine/internal/llm"
	"github.com/pdiddy/deck-engine/pkg/types"
)

// Grounding markers the model writes in place of unsupported claims.
const (
	MarkerSourceNotFound       = "[SOURCE NOT FOUND]"
	MarkerInsufficientMaterial = "[INSUFFICIENT SOURCE MATERIAL]"
)

const (
	maxCoveredLines    = 40
	maxCoveredPointLen = 140
)

// GroundingMarkers lists the in-band markers for grounding gaps.
var GroundingMarkers = []string{MarkerSourceNotFound, MarkerInsufficientMaterial}

var produceRoleTmpl = template.Must(template.New("produce-role").Parse(`You write the text of presentation cards using only the source documents provided.

Every sentence must be traceable to the source text. Do not add outside knowledge, estimates, or examples that the documents do not contain. When a card needs a claim the documents do not support, write {{.NotFound}} in its place. When the documents cover a topic too thinly to fill the card, write {{.Insufficient}} rather than padding. Copy each key data point exactly as given.`))

var produceRulesTmpl = template.Must(template.New("produce-rules").Parse(`Formatting rules for the {{.LOD}} level of detail:
- Length: {{.P.WordCountMin}} to {{.P.WordCountMax}} words per card. Report the word count of each card's content.
{{- if eq .P.MaxHeadingLevel 0}}
- Do not use headings.
{{- else}}
- Headings may go down to level {{.P.MaxHeadingLevel}} ({{.HeadingMarks}}) and no deeper. Do not repeat the card title as a heading.
{{- end}}
{{- if .P.MaxBullets}}
- Use at most {{.P.MaxBullets}} bullet points per card, and only for genuinely list-like material.
{{- else}}
- Use bullet points for list-like material; prefer prose for arguments.
{{- end}}
{{- if .P.AllowTables}}
- Tables are allowed for comparisons and figures that read better in rows.
{{- else}}
- Do not use tables.
{{- end}}
{{- if .P.AllowBlockquotes}}
- Blockquotes are allowed for direct quotations from the sources.
{{- else}}
- Do not use blockquotes.
{{- end}}

Respond with a single JSON object matching this schema and nothing else. Set status to "error" with a message only if the cards cannot be written at all.
{{.Schema}}`))

var produceTurnTmpl = template.Must(template.New("produce-turn").Parse(`{{with .Briefing}}Briefing:
- Audience: {{.Audience}}
- Presentation type: {{.PresentationType}}
- Objective: {{.Objective}}
{{- if .Tone}}
- Tone: {{.Tone}}{{end}}
{{- if .Focus}}
- Focus: {{.Focus}}{{end}}
{{end}}
{{- if .Subject}}
Subject area: {{.Subject}}.
{{end}}
Write cards {{.First}} to {{.Last}}, each between {{.Min}} and {{.Max}} words. Use exactly these numbers and titles.

{{.Cards}}
{{- if .Covered}}
Earlier cards already cover the following. Do not repeat their material; refer back to it where useful.
{{.Covered}}
{{- end}}`))

// ProduceInput is everything the production builder needs for one batch.
type ProduceInput struct {
	Briefing  types.Briefing
	Documents []types.SourceDocument
	LOD       types.LOD
	Subject   string

	// Batch holds the cards of this batch only.
	Batch types.Plan

	// Covered summarises completed batches; empty for the first batch.
	Covered string

	Settings Settings
}

// ProduceRequest builds the production request for one batch.
func ProduceRequest(in ProduceInput) (llm.Request, error) {
	if len(in.Batch.Cards) == 0 {
		return llm.Request{}, fmt.Errorf("empty batch")
	}

	role, err := render(produceRoleTmpl, struct{ NotFound, Insufficient string }{MarkerSourceNotFound, MarkerInsufficientMaterial})
	if err != nil {
		return llm.Request{}, fmt.Errorf("rendering production role: %w", err)
	}
	rules, err := FormattingRules(in.LOD)
	if err != nil {
		return llm.Request{}, err
	}

	p := types.ProfileFor(in.LOD)
	cards := in.Batch.Cards
	names := documentNames(in.Documents)
	narratives := make([]string, 0, len(cards))
	for _, c := range cards {
		narratives = append(narratives, CardNarrative(c, names))
	}

	turn, err := render(produceTurnTmpl, struct {
		Briefing    types.Briefing
		Subject     string
		First, Last int
		Min, Max    int
		Cards       string
		Covered     string
	}{
		Briefing: in.Briefing,
		Subject:  in.Subject,
		First:    cards[0].Number,
		Last:     cards[len(cards)-1].Number,
		Min:      p.WordCountMin,
		Max:      p.WordCountMax,
		Cards:    strings.Join(narratives, "\n"),
		Covered:  in.Covered,
	})
	if err != nil {
		return llm.Request{}, fmt.Errorf("rendering production turn: %w", err)
	}
	return build(in.Settings, []string{role, rules}, in.Documents, turn)
}

// FormattingRules returns the formatting instructions for lod.
func FormattingRules(lod types.LOD) (string, error) {
	p := types.ProfileFor(lod)
	marks := strings.Repeat("#", p.MaxHeadingLevel)
	out, err := render(produceRulesTmpl, struct {
		LOD          types.LOD
		P            types.LODProfile
		HeadingMarks string
		Schema       string
	}{lod, p, marks, ProduceSchema()})
	if err != nil {
		return "", fmt.Errorf("rendering formatting rules: %w", err)
	}
	return out, nil
}

// CardNarrative describes a planned card as prose rather than raw fields.
// names maps document IDs to display names.
func CardNarrative(c types.PlannedCard, names map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Card %d, %q.\n", c.Number, c.Title)
	if d := strings.TrimSpace(c.Description); d != "" {
		fmt.Fprintf(&b, "%s\n", sentence(d))
	}

	if len(c.Sources) > 0 {
		refs := make([]string, 0, len(c.Sources))
		for _, s := range c.Sources {
			name := names[s.Document]
			if name == "" {
				name = s.Document
			}
			switch {
			case s.Heading != "":
				refs = append(refs, fmt.Sprintf("the %q section of %s", s.Heading, name))
			case s.Section != "":
				refs = append(refs, fmt.Sprintf("section %s of %s", s.Section, name))
			case s.FallbackDescription != "":
				refs = append(refs, fmt.Sprintf("the part of %s about %s", name, s.FallbackDescription))
			default:
				refs = append(refs, name)
			}
		}
		fmt.Fprintf(&b, "Draw on %s.\n", joinList(refs))
	}

	if len(c.KeyDataPoints) > 0 {
		quoted := make([]string, 0, len(c.KeyDataPoints))
		for _, k := range c.KeyDataPoints {
			quoted = append(quoted, fmt.Sprintf("%q", k))
		}
		fmt.Fprintf(&b, "The card must include, word for word: %s.\n", strings.Join(quoted, "; "))
	}

	g := c.Guidance
	if g.Emphasis != "" {
		fmt.Fprintf(&b, "Emphasise %s.\n", strings.TrimSuffix(g.Emphasis, "."))
	}
	if g.Tone != "" {
		fmt.Fprintf(&b, "Keep the tone %s.\n", strings.TrimSuffix(g.Tone, "."))
	}
	if g.Exclude != "" {
		fmt.Fprintf(&b, "Leave out %s.\n", strings.TrimSuffix(g.Exclude, "."))
	}
	if c.WordTarget > 0 {
		fmt.Fprintf(&b, "Aim for about %d words.\n", c.WordTarget)
	}
	if c.CrossReferences != "" {
		fmt.Fprintf(&b, "It relates to %s.\n", strings.TrimSuffix(c.CrossReferences, "."))
	}
	return b.String()
}

// CoveredSummary lists what completed cards already cover, one line per
// card: "Card N - Title: first key point". Only cards passed in are listed,
// so callers pass completed results only. At most 40 cards are listed.
func CoveredSummary(done []types.ProducedCard, plan types.Plan) string {
	if len(done) == 0 {
		return ""
	}
	cards := append([]types.ProducedCard(nil), done...)
	types.SortCards(cards)

	var b strings.Builder
	for i, c := range cards {
		if i == maxCoveredLines {
			fmt.Fprintf(&b, "(and %d more cards)\n", len(cards)-maxCoveredLines)
			break
		}
		point := ""
		if pc, ok := plan.Card(c.Number); ok && len(pc.KeyDataPoints) > 0 {
			point = pc.KeyDataPoints[0]
		} else {
			point = firstSentence(c.Content)
		}
		point = truncate(point, maxCoveredPointLen)
		if point == "" {
			fmt.Fprintf(&b, "Card %d - %s\n", c.Number, c.Title)
			continue
		}
		fmt.Fprintf(&b, "Card %d - %s: %s\n", c.Number, c.Title, point)
	}
	return b.String()
}

func sentence(s string) string {
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, "?") || strings.HasSuffix(s, "!") {
		return s
	}
	return s + "."
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

// firstSentence returns the first prose sentence of Markdown content,
// skipping headings, table rows, and blank lines.
func firstSentence(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "|") {
			continue
		}
		line = strings.TrimLeft(line, "-*> ")
		if i := strings.Index(line, ". "); i >= 0 {
			return line[:i+1]
		}
		return line
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
