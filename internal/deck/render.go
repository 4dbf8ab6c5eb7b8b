// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package deck

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/deck-engine/internal/prompt"
	"github.com/pdiddy/deck-engine/pkg/types"
)

// DeckFile is the default Markdown file name inside a session directory.
const DeckFile = "deck.md"

// RenderMarkdown renders the produced cards as one Markdown document, a
// level-two heading per card in card order.
func RenderMarkdown(b types.Briefing, cards []types.ProducedCard) string {
	sorted := append([]types.ProducedCard(nil), cards...)
	types.SortCards(sorted)

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", b.Objective)
	fmt.Fprintf(&sb, "_%s for %s_\n", b.PresentationType, b.Audience)
	for _, c := range sorted {
		fmt.Fprintf(&sb, "\n## %d. %s\n\n", c.Number, c.Title)
		sb.WriteString(strings.TrimSpace(c.Content))
		sb.WriteString("\n")
	}
	return sb.String()
}

// WriteMarkdown renders the deck to path, creating parent directories.
func WriteMarkdown(path string, b types.Briefing, cards []types.ProducedCard) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating deck directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(RenderMarkdown(b, cards)), 0o644); err != nil {
		return fmt.Errorf("writing deck: %w", err)
	}
	return nil
}

// Gap counts one grounding marker in one card.
type Gap struct {
	Card   int    `json:"card" yaml:"card"`
	Title  string `json:"title" yaml:"title"`
	Marker string `json:"marker" yaml:"marker"`
	Count  int    `json:"count" yaml:"count"`
}

// GroundingGaps lists the grounding markers the model left in the cards,
// ordered by card number and then marker.
func GroundingGaps(cards []types.ProducedCard) []Gap {
	var gaps []Gap
	for _, c := range cards {
		for _, m := range prompt.GroundingMarkers {
			if n := strings.Count(c.Content, m); n > 0 {
				gaps = append(gaps, Gap{Card: c.Number, Title: c.Title, Marker: m, Count: n})
			}
		}
	}
	sort.SliceStable(gaps, func(i, j int) bool {
		if gaps[i].Card != gaps[j].Card {
			return gaps[i].Card < gaps[j].Card
		}
		return gaps[i].Marker < gaps[j].Marker
	})
	return gaps
}
