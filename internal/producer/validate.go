// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package producer

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/pdiddy/deck-engine/internal/prompt"
	"github.com/pdiddy/deck-engine/pkg/types"
)

// driftRatio is the share by which the measured word count may differ from
// the reported one before a notice is raised.
const driftRatio = 0.25

// SchemaError reports a batch response that breaks the production contract.
type SchemaError struct {
	Stage    string
	Problems []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: invalid model output: %s", e.Stage, strings.Join(e.Problems, "; "))
}

func schemaError(problems ...string) *SchemaError {
	return &SchemaError{Stage: "batch", Problems: problems}
}

// Validate decodes a batch response and checks it against the batch's plan
// cards and the LOD profile. Contract violations return a *SchemaError and
// no cards. Softer problems come back as notices alongside the cards, which
// are returned in batch order.
func Validate(text string, batch types.Plan, lod types.LOD) ([]types.ProducedCard, []types.Notice, error) {
	raw := prompt.ExtractJSON(text)
	if raw == "" {
		return nil, nil, schemaError("response contains no JSON")
	}

	var resp prompt.ProduceResponse
	var err error
	if strings.HasPrefix(raw, "[") {
		resp.Status = prompt.StatusOK
		err = json.Unmarshal([]byte(raw), &resp.Cards)
	} else {
		err = json.Unmarshal([]byte(raw), &resp)
	}
	if err != nil {
		return nil, nil, schemaError(fmt.Sprintf("decoding JSON: %v", err))
	}

	switch resp.Status {
	case prompt.StatusOK:
	case prompt.StatusError:
		msg := resp.Message
		if msg == "" {
			msg = "no reason given"
		}
		return nil, nil, schemaError("model reported an error: " + msg)
	default:
		return nil, nil, schemaError(fmt.Sprintf("unknown status %q", resp.Status))
	}

	profile := types.ProfileFor(lod)
	planned := make(map[int]types.PlannedCard, len(batch.Cards))
	for _, c := range batch.Cards {
		planned[c.Number] = c
	}

	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	got := make(map[int]prompt.ProduceCard, len(resp.Cards))
	for _, c := range resp.Cards {
		pc, ok := planned[c.Number]
		if !ok {
			addf("card %d is not in this batch", c.Number)
			continue
		}
		if _, dup := got[c.Number]; dup {
			addf("card %d appears more than once", c.Number)
			continue
		}
		got[c.Number] = c

		if strings.TrimSpace(c.Title) != strings.TrimSpace(pc.Title) {
			addf("card %d title %q does not match planned title %q", c.Number, c.Title, pc.Title)
		}
		if strings.TrimSpace(c.Content) == "" {
			addf("card %d has no content", c.Number)
		}
		if !profile.InRange(c.WordCount) {
			addf("card %d word count %d is outside %d-%d", c.Number, c.WordCount, profile.WordCountMin, profile.WordCountMax)
		}
	}
	for _, c := range batch.Cards {
		if _, ok := got[c.Number]; !ok {
			addf("card %d is missing", c.Number)
		}
	}
	if len(problems) > 0 {
		return nil, nil, schemaError(problems...)
	}

	cards := make([]types.ProducedCard, 0, len(batch.Cards))
	var notices []types.Notice
	for _, pc := range batch.Cards {
		c := got[pc.Number]
		card := types.ProducedCard{
			Number:    c.Number,
			Title:     strings.TrimSpace(pc.Title),
			Content:   c.Content,
			WordCount: c.WordCount,
		}
		cards = append(cards, card)
		notices = append(notices, review(card, pc, profile)...)
	}
	return cards, notices, nil
}

// review returns the non-fatal findings for one produced card.
func review(card types.ProducedCard, pc types.PlannedCard, profile types.LODProfile) []types.Notice {
	var out []types.Notice
	warnf := func(format string, args ...any) {
		out = append(out, types.Notice{
			Level:   types.NoticeWarning,
			Card:    card.Number,
			Message: fmt.Sprintf(format, args...),
		})
	}

	body := " " + normalize(card.Content) + " "
	for _, k := range pc.KeyDataPoints {
		if n := normalize(k); n != "" && !strings.Contains(body, " "+n+" ") {
			warnf("key data point %q does not appear in the text", k)
		}
	}
	for _, m := range prompt.GroundingMarkers {
		if strings.Contains(card.Content, m) {
			warnf("contains %s", m)
		}
	}

	s := Inspect(card.Content)
	if card.WordCount > 0 {
		diff := s.Words - card.WordCount
		if diff < 0 {
			diff = -diff
		}
		if float64(diff) > driftRatio*float64(card.WordCount) {
			warnf("reports %d words but the text has %d", card.WordCount, s.Words)
		}
	}
	switch {
	case profile.MaxHeadingLevel == 0 && s.MaxHeadingLevel > 0:
		warnf("uses headings, which this level of detail does not allow")
	case profile.MaxHeadingLevel > 0 && s.MaxHeadingLevel > profile.MaxHeadingLevel:
		warnf("uses a level %d heading, deeper than level %d", s.MaxHeadingLevel, profile.MaxHeadingLevel)
	}
	if !profile.AllowTables && s.Tables > 0 {
		warnf("uses a table, which this level of detail does not allow")
	}
	if !profile.AllowBlockquotes && s.Blockquotes > 0 {
		warnf("uses a blockquote, which this level of detail does not allow")
	}
	if profile.MaxBullets > 0 && s.Bullets > profile.MaxBullets {
		warnf("has %d bullet points, more than %d", s.Bullets, profile.MaxBullets)
	}
	return out
}

// normalize lowercases s and reduces it to space-separated runs of letters,
// digits, and the symbols that carry meaning in figures.
func normalize(s string) string {
	f := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("%$€£", r)
	})
	return strings.Join(f, " ")
}
