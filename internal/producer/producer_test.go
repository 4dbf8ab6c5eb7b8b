// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deck-engine/internal/llm"
	"github.com/pdiddy/deck-engine/internal/prompt"
	"github.com/pdiddy/deck-engine/pkg/types"
)

var (
	rangeRe = regexp.MustCompile(`Write cards (\d+) to (\d+)`)
	titleRe = regexp.MustCompile(`Card (\d+), "([^"]*)"\.`)
)

// fakeCaller answers production requests by reading the requested card
// numbers and titles back out of the prompt.
type fakeCaller struct {
	mu       sync.Mutex
	turns    []string
	inFlight int
	peak     int

	// fail maps the first card number of a batch to the error it returns.
	fail map[int]error
	// reply overrides the generated response for a batch.
	reply func(first, last int, titles map[int]string) string
	// onCall runs inside each call.
	onCall func(first int)
}

func (f *fakeCaller) Call(_ context.Context, req llm.Request) (*llm.Response, error) {
	content := req.Messages[0].Content
	turn := content[len(content)-1].Text

	f.mu.Lock()
	f.turns = append(f.turns, turn)
	f.inFlight++
	f.peak = max(f.peak, f.inFlight)
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	m := rangeRe.FindStringSubmatch(turn)
	if m == nil {
		return nil, fmt.Errorf("no card range in prompt")
	}
	first, _ := strconv.Atoi(m[1])
	last, _ := strconv.Atoi(m[2])
	titles := map[int]string{}
	for _, tm := range titleRe.FindAllStringSubmatch(turn, -1) {
		n, _ := strconv.Atoi(tm[1])
		titles[n] = tm[2]
	}

	if f.onCall != nil {
		f.onCall(first)
	}
	if err := f.fail[first]; err != nil {
		return nil, err
	}
	if f.reply != nil {
		return &llm.Response{Text: f.reply(first, last, titles)}, nil
	}
	return &llm.Response{Text: goodReply(first, last, titles)}, nil
}

func (f *fakeCaller) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.turns...)
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("grounded ", n))
}

func goodReply(first, last int, titles map[int]string) string {
	resp := prompt.ProduceResponse{Status: prompt.StatusOK}
	for n := first; n <= last; n++ {
		resp.Cards = append(resp.Cards, prompt.ProduceCard{
			Number:    n,
			Title:     titles[n],
			Content:   fmt.Sprintf("Card %d opens here. %s", n, words(146)),
			WordCount: 150,
		})
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func planOf(n int) types.Plan {
	var p types.Plan
	for i := 1; i <= n; i++ {
		p.Cards = append(p.Cards, types.PlannedCard{
			Number:      i,
			Title:       fmt.Sprintf("Card title %d", i),
			Description: "Something worth saying",
			Sources:     []types.SourceRef{{Document: "doc", Heading: "Intro"}},
		})
	}
	return p
}

func jobOf(n int) Job {
	return Job{
		Briefing:  types.Briefing{Audience: "staff", PresentationType: "update", Objective: "inform"},
		Documents: []types.SourceDocument{{ID: "doc", Name: "doc.md", Content: "## Intro\nFacts."}},
		LOD:       types.LODStandard,
		Plan:      planOf(n),
	}
}

func numbers(cards []types.ProducedCard) []int {
	out := make([]int, len(cards))
	for i, c := range cards {
		out[i] = c.Number
	}
	return out
}

func seq(from, to int) []int {
	var out []int
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func TestProduce_SingleBatch(t *testing.T) {
	fc := &fakeCaller{}
	out := New(fc, types.ProductionConfig{}, nil, nil).Produce(context.Background(), jobOf(10), nil)

	assert.True(t, out.Complete())
	assert.NoError(t, out.Err())
	assert.Equal(t, seq(1, 10), numbers(out.Cards))
	require.Len(t, fc.calls(), 1)
	assert.Contains(t, fc.calls()[0], "Write cards 1 to 10")
	assert.Equal(t, "Card title 3", out.Cards[2].Title)
}

func TestProduce_ThirtyCardsInThreeBatches(t *testing.T) {
	fc := &fakeCaller{}
	var results []BatchResult
	out := New(fc, types.ProductionConfig{}, nil, nil).Produce(context.Background(), jobOf(30), func(r BatchResult) {
		results = append(results, r)
	})

	require.True(t, out.Complete())
	assert.Equal(t, seq(1, 30), numbers(out.Cards))
	assert.LessOrEqual(t, fc.peak, 3)

	turns := strings.Join(fc.calls(), "\n")
	assert.Len(t, fc.calls(), 3)
	assert.Contains(t, turns, "Write cards 1 to 12")
	assert.Contains(t, turns, "Write cards 13 to 24")
	assert.Contains(t, turns, "Write cards 25 to 30")

	require.Len(t, results, 3)
	sizes := map[int]int{}
	for _, r := range results {
		sizes[r.First] = len(r.Cards)
	}
	assert.Equal(t, map[int]int{1: 12, 13: 12, 25: 6}, sizes)
}

func TestProduce_SortedWhenFirstBatchFinishesLast(t *testing.T) {
	others := make(chan struct{})
	fc := &fakeCaller{onCall: func(first int) {
		if first == 1 {
			<-others
		}
	}}
	var order []int
	out := New(fc, types.ProductionConfig{Concurrency: 3}, nil, nil).Produce(context.Background(), jobOf(30), func(r BatchResult) {
		order = append(order, r.First)
		if len(order) == 2 {
			close(others)
		}
	})

	require.True(t, out.Complete())
	assert.Equal(t, 1, order[2], "card 1's batch finished last")
	assert.Equal(t, seq(1, 30), numbers(out.Cards))
}

func TestProduce_FailedBatchKeepsTheOthers(t *testing.T) {
	fc := &fakeCaller{fail: map[int]error{13: &llm.APIError{Provider: "anthropic", StatusCode: 400, Message: "bad request"}}}
	out := New(fc, types.ProductionConfig{}, nil, nil).Produce(context.Background(), jobOf(30), nil)

	assert.False(t, out.Complete())
	assert.False(t, out.Cancelled)
	require.Len(t, out.Failures, 1)
	f := out.Failures[0]
	assert.Equal(t, 1, f.Batch)
	assert.Equal(t, 13, f.First)
	assert.Equal(t, 24, f.Last)
	assert.Contains(t, out.Err().Error(), "batch 2 (cards 13-24)")

	assert.Equal(t, append(seq(1, 12), seq(25, 30)...), numbers(out.Cards))
}

func TestProduce_SchemaFailureIsScopedToItsBatch(t *testing.T) {
	fc := &fakeCaller{reply: func(first, last int, titles map[int]string) string {
		if first == 13 {
			return `{"status": "ok", "cards": [{"number": 13, "title": "wrong", "content": "x", "wordCount": 10}]}`
		}
		return goodReply(first, last, titles)
	}}
	out := New(fc, types.ProductionConfig{BatchSize: 12}, nil, nil).Produce(context.Background(), jobOf(24), nil)

	require.Len(t, out.Failures, 1)
	var se *SchemaError
	require.ErrorAs(t, out.Failures[0].Err, &se)
	assert.Equal(t, "batch", se.Stage)
	assert.Contains(t, se.Error(), `card 13 title "wrong"`)
	assert.Contains(t, se.Error(), "card 14 is missing")
	assert.Equal(t, seq(1, 12), numbers(out.Cards))
}

func TestProduce_CoveredSummaryComesFromCompletedBatches(t *testing.T) {
	fc := &fakeCaller{}
	job := jobOf(24)
	job.Plan.Cards[0].KeyDataPoints = []string{"grounded"}
	out := New(fc, types.ProductionConfig{Concurrency: 1}, nil, nil).Produce(context.Background(), job, nil)
	require.True(t, out.Complete())

	turns := fc.calls()
	require.Len(t, turns, 2)
	assert.NotContains(t, turns[0], "Earlier cards")
	assert.Contains(t, turns[1], "Earlier cards already cover the following.")
	assert.Contains(t, turns[1], "Card 1 - Card title 1: grounded")
	assert.Contains(t, turns[1], "Card 2 - Card title 2: Card 2 opens here.")
	assert.NotContains(t, turns[1], "Card 13 - ")
}

func TestProduce_DoneCardsAreSkipped(t *testing.T) {
	fc := &fakeCaller{}
	var done []types.ProducedCard
	for n := 1; n <= 12; n++ {
		done = append(done, types.ProducedCard{Number: n, Title: fmt.Sprintf("Card title %d", n), Content: "Earlier.", WordCount: 150})
	}
	job := jobOf(30)
	job.Done = done
	out := New(fc, types.ProductionConfig{Concurrency: 1}, nil, nil).Produce(context.Background(), job, nil)

	require.True(t, out.Complete())
	assert.Equal(t, seq(1, 30), numbers(out.Cards))
	turns := fc.calls()
	require.Len(t, turns, 2)
	assert.Contains(t, turns[0], "Write cards 13 to 24")
	assert.Contains(t, turns[0], "Card 12 - Card title 12: Earlier.")
}

func TestProduce_CancelStopsUnstartedBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fc := &fakeCaller{onCall: func(first int) {
		if first == 1 {
			cancel()
		}
	}}
	var results []BatchResult
	out := New(fc, types.ProductionConfig{Concurrency: 1}, nil, nil).Produce(ctx, jobOf(36), func(r BatchResult) {
		results = append(results, r)
	})

	assert.True(t, out.Cancelled)
	assert.Empty(t, out.Failures)
	assert.Len(t, fc.calls(), 1)
	assert.Len(t, results, 1)
	assert.Equal(t, seq(1, 12), numbers(out.Cards))
}

func TestProduce_CancelledCallIsNotAFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fc := &fakeCaller{fail: map[int]error{1: fmt.Errorf("%w: %w", llm.ErrCancelled, context.Canceled)}}
	out := New(fc, types.ProductionConfig{}, nil, nil).Produce(ctx, jobOf(5), nil)

	assert.True(t, out.Cancelled)
	assert.Empty(t, out.Failures)
	assert.Empty(t, out.Cards)
	assert.Empty(t, fc.calls())
}

func TestProduce_NotifiesWarnings(t *testing.T) {
	job := jobOf(1)
	job.LOD = types.LODExecutive
	job.Plan.Cards[0].KeyDataPoints = []string{"14 incidents"}

	fc := &fakeCaller{reply: func(_, _ int, titles map[int]string) string {
		content := "## Overview\n\n" + words(50) + " " + prompt.MarkerSourceNotFound
		return fmt.Sprintf(`{"status": "ok", "cards": [{"number": 1, "title": %q, "content": %q, "wordCount": 54}]}`, titles[1], content)
	}}

	var mu sync.Mutex
	var got []types.Notice
	notifier := NotifierFunc(func(n types.Notice) {
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
	})
	out := New(fc, types.ProductionConfig{}, notifier, nil).Produce(context.Background(), job, nil)

	require.True(t, out.Complete())
	require.Len(t, out.Cards, 1)
	assert.Equal(t, out.Notices, got)

	var msgs []string
	for _, n := range got {
		assert.Equal(t, 1, n.Card)
		assert.Equal(t, types.NoticeWarning, n.Level)
		msgs = append(msgs, n.Message)
	}
	all := strings.Join(msgs, "\n")
	assert.Contains(t, all, `key data point "14 incidents"`)
	assert.Contains(t, all, "contains [SOURCE NOT FOUND]")
	assert.Contains(t, all, "uses headings")
	assert.NotContains(t, all, "reports 54 words")
}

func TestValidate(t *testing.T) {
	batch := types.Plan{Cards: []types.PlannedCard{
		{Number: 3, Title: "Costs"},
		{Number: 4, Title: "Risks"},
	}}
	card := func(n int, title string, wc int) string {
		return fmt.Sprintf(`{"number": %d, "title": %q, "content": %q, "wordCount": %d}`, n, title, words(wc), wc)
	}

	tests := []struct {
		name    string
		text    string
		problem string
	}{
		{"no json", "Sorry, no cards today.", "no JSON"},
		{"bad json", `{"status": "ok", "cards": [}`, "decoding JSON"},
		{"model error", `{"status": "error", "message": "sources are empty", "cards": []}`, "sources are empty"},
		{"unknown status", `{"status": "partial", "cards": []}`, `unknown status "partial"`},
		{"missing card", `{"status": "ok", "cards": [` + card(3, "Costs", 150) + `]}`, "card 4 is missing"},
		{"extra card", `{"status": "ok", "cards": [` + card(3, "Costs", 150) + `,` + card(4, "Risks", 150) + `,` + card(5, "More", 150) + `]}`, "card 5 is not in this batch"},
		{"duplicate card", `{"status": "ok", "cards": [` + card(3, "Costs", 150) + `,` + card(3, "Costs", 150) + `,` + card(4, "Risks", 150) + `]}`, "card 3 appears more than once"},
		{"title mismatch", `{"status": "ok", "cards": [` + card(3, "Cost", 150) + `,` + card(4, "Risks", 150) + `]}`, `does not match planned title "Costs"`},
		{"word count", `{"status": "ok", "cards": [` + card(3, "Costs", 90) + `,` + card(4, "Risks", 150) + `]}`, "card 3 word count 90 is outside 120-250"},
		{"empty content", `{"status": "ok", "cards": [{"number": 3, "title": "Costs", "content": " ", "wordCount": 150},` + card(4, "Risks", 150) + `]}`, "card 3 has no content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards, _, err := Validate(tt.text, batch, types.LODStandard)
			assert.Nil(t, cards)
			var se *SchemaError
			require.ErrorAs(t, err, &se)
			assert.Contains(t, se.Error(), tt.problem)
		})
	}
}

func TestValidate_AcceptsArrayAndTrimsTitles(t *testing.T) {
	batch := types.Plan{Cards: []types.PlannedCard{{Number: 1, Title: "Costs"}}}
	text := "```json\n" + fmt.Sprintf(`[{"number": 1, "title": " Costs ", "content": %q, "wordCount": 130}]`, words(130)) + "\n```"
	cards, notices, err := Validate(text, batch, types.LODStandard)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "Costs", cards[0].Title)
	assert.Equal(t, 130, cards[0].WordCount)
	assert.Empty(t, notices)
}

func TestReview_FormattingAgainstProfile(t *testing.T) {
	content := "# Big\n\n#### Deep\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n> quoted\n\n- one\n- two\n- three\n- four\n- five\n- six\n"
	card := types.ProducedCard{Number: 7, Content: content, WordCount: 14}

	exec := review(card, types.PlannedCard{}, types.ProfileFor(types.LODExecutive))
	var msgs []string
	for _, n := range exec {
		msgs = append(msgs, n.Message)
	}
	all := strings.Join(msgs, "\n")
	assert.Contains(t, all, "uses headings")
	assert.Contains(t, all, "uses a table")
	assert.Contains(t, all, "uses a blockquote")
	assert.Contains(t, all, "has 6 bullet points, more than 5")

	std := review(card, types.PlannedCard{}, types.ProfileFor(types.LODStandard))
	msgs = msgs[:0]
	for _, n := range std {
		msgs = append(msgs, n.Message)
	}
	all = strings.Join(msgs, "\n")
	assert.Contains(t, all, "uses a level 4 heading, deeper than level 3")
	assert.NotContains(t, all, "table")
	assert.NotContains(t, all, "bullet")
}

func TestReview_WordCountDrift(t *testing.T) {
	card := types.ProducedCard{Number: 1, Content: words(60), WordCount: 150}
	notices := review(card, types.PlannedCard{}, types.ProfileFor(types.LODStandard))
	require.Len(t, notices, 1)
	assert.Equal(t, "reports 150 words but the text has 60", notices[0].Message)

	card.WordCount = 70
	assert.Empty(t, review(card, types.PlannedCard{}, types.ProfileFor(types.LODStandard)))
}

func TestReview_KeyDataPointsMatchLoosely(t *testing.T) {
	card := types.ProducedCard{Number: 1, Content: "Revenue **grew 12%**, to $4.1m.", WordCount: 5}
	pc := types.PlannedCard{KeyDataPoints: []string{"revenue grew 12%", "$4.1m", "grew 1"}}
	notices := review(card, pc, types.ProfileFor(types.LODDetailed))
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0].Message, `"grew 1"`)
}

func TestInspect(t *testing.T) {
	s := Inspect("# Title\n\nSome text.\n\n## Sub\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n> quote\n\n- x\n- y\n\n1. first\n2. second\n")
	assert.Equal(t, 2, s.MaxHeadingLevel)
	assert.Equal(t, 1, s.Tables)
	assert.Equal(t, 1, s.Blockquotes)
	assert.Equal(t, 2, s.Bullets)
}

func TestInspect_Words(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"Revenue **grew** 12% in\nQ3.", 5},
		{"# Heading\nBody line", 3},
		{"- one\n- two words", 3},
		{"A [link](http://example.com) here", 3},
	}
	for _, tt := range tests {
		if got := Inspect(tt.in).Words; got != tt.want {
			t.Errorf("Inspect(%q).Words = %d, want %d", tt.in, got, tt.want)
		}
	}
}
