// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docs

import (
	"fmt"
	"strings"

	"github.com/pdiddy/deck-engine/pkg/types"
)

// Section is a chunk of Markdown under one heading.
type Section struct {
	Heading string
	Level   int
	Body    string

	// Page comes from the nearest preceding <!-- page N --> marker.
	Page int
}

// Sections splits Markdown at heading boundaries (levels 1 to 4). Text
// before the first heading forms a section with an empty heading. Page
// markers are consumed, not kept in bodies.
func Sections(content string) []Section {
	var sections []Section
	cur := Section{Page: 1}
	page := 1
	var body []string
	inFence := false

	flush := func() {
		cur.Body = strings.Join(body, "\n")
		if cur.Heading != "" || strings.TrimSpace(cur.Body) != "" {
			sections = append(sections, cur)
		}
		body = nil
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
		}
		if !inFence {
			if p, ok := parsePageMarker(trimmed); ok {
				page = p
				continue
			}
			if level, text, ok := parseHeading(trimmed); ok {
				flush()
				cur = Section{Heading: text, Level: level, Page: page}
				continue
			}
		}
		body = append(body, line)
	}
	flush()
	return sections
}

// Outline lists the headings of an inline document in order. Hosted
// documents have no local text and yield nil.
func Outline(doc types.SourceDocument) []string {
	if !doc.Inline() {
		return nil
	}
	var out []string
	for _, s := range Sections(doc.Content) {
		if s.Heading != "" {
			out = append(out, s.Heading)
		}
	}
	return out
}

// Outlines maps each document ID to its outline.
func Outlines(docs []types.SourceDocument) map[string][]string {
	out := make(map[string][]string, len(docs))
	for _, d := range docs {
		if o := Outline(d); len(o) > 0 {
			out[d.ID] = o
		}
	}
	return out
}

// ContainsHeading reports whether heading matches an outline entry,
// ignoring case, surrounding whitespace, and leading '#' marks.
func ContainsHeading(outline []string, heading string) bool {
	want := normalizeHeading(heading)
	if want == "" {
		return false
	}
	for _, h := range outline {
		if normalizeHeading(h) == want {
			return true
		}
	}
	return false
}

func normalizeHeading(h string) string {
	h = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(h), "#"))
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// parseHeading recognises ATX headings of levels 1 to 4.
func parseHeading(line string) (int, string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 4 || level >= len(line) || line[level] != ' ' {
		return 0, "", false
	}
	text := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(line[level:]), "#"))
	if text == "" {
		return 0, "", false
	}
	return level, text, true
}

// parsePageMarker extracts the page number from an HTML comment like
// <!-- page 3 -->.
func parsePageMarker(line string) (int, bool) {
	if !strings.HasPrefix(line, "<!-- page ") || !strings.HasSuffix(line, " -->") {
		return 0, false
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(line, "<!-- page "), " -->")
	var page int
	if _, err := fmt.Sscanf(inner, "%d", &page); err != nil {
		return 0, false
	}
	return page, true
}
