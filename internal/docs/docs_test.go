// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deck-engine/pkg/types"
)

// --- Sections ---

func TestSections(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantLen  int
		wantHead []string
	}{
		{
			name:     "single section",
			content:  "## Introduction\n\nSome text here.",
			wantLen:  1,
			wantHead: []string{"Introduction"},
		},
		{
			name:     "mixed levels",
			content:  "# Report\n\nIntro.\n\n## Findings\n\nText.\n\n#### Detail\n\nMore.",
			wantLen:  3,
			wantHead: []string{"Report", "Findings", "Detail"},
		},
		{
			name:     "preamble before heading",
			content:  "Preamble text.\n\n## Introduction\n\nBody.",
			wantLen:  2,
			wantHead: []string{"", "Introduction"},
		},
		{
			name:     "level five is body text",
			content:  "## Top\n\n##### too deep\n",
			wantLen:  1,
			wantHead: []string{"Top"},
		},
		{
			name:     "hashtag without space is not a heading",
			content:  "## Top\n#hashtag line",
			wantLen:  1,
			wantHead: []string{"Top"},
		},
		{
			name:     "headings inside code fences are ignored",
			content:  "## Real\n```\n## not a heading\n```\n",
			wantLen:  1,
			wantHead: []string{"Real"},
		},
		{
			name:    "empty",
			content: "",
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sections := Sections(tt.content)
			if len(sections) != tt.wantLen {
				t.Errorf("got %d sections, want %d", len(sections), tt.wantLen)
				for i, s := range sections {
					t.Logf("  section[%d]: heading=%q body=%q", i, s.Heading, s.Body)
				}
				return
			}
			for i, wantH := range tt.wantHead {
				if sections[i].Heading != wantH {
					t.Errorf("section[%d].Heading = %q, want %q", i, sections[i].Heading, wantH)
				}
			}
		})
	}
}

func TestSectionsPageMarkers(t *testing.T) {
	content := "<!-- page 1 -->\n## Intro\n\nText.\n<!-- page 4 -->\n## Results\n\nNumbers."
	sections := Sections(content)
	require.Len(t, sections, 2)
	assert.Equal(t, 1, sections[0].Page)
	assert.Equal(t, 4, sections[1].Page)
	assert.NotContains(t, sections[0].Body, "page")
}

func TestParsePageMarker(t *testing.T) {
	tests := []struct {
		line   string
		want   int
		wantOK bool
	}{
		{"<!-- page 3 -->", 3, true},
		{"<!-- page 12 -->", 12, true},
		{"<!-- page x -->", 0, false},
		{"<!-- note -->", 0, false},
		{"page 3", 0, false},
	}
	for _, tt := range tests {
		got, ok := parsePageMarker(tt.line)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("parsePageMarker(%q) = (%d, %v), want (%d, %v)", tt.line, got, ok, tt.want, tt.wantOK)
		}
	}
}

// --- Outline ---

func TestOutline(t *testing.T) {
	doc := types.SourceDocument{ID: "a", Content: "# Title\n## Costs ##\ntext\n### Q3 numbers\n"}
	assert.Equal(t, []string{"Title", "Costs", "Q3 numbers"}, Outline(doc))

	hosted := types.SourceDocument{ID: "b", ProviderFileRef: "file_1"}
	assert.Nil(t, Outline(hosted))

	outlines := Outlines([]types.SourceDocument{doc, hosted})
	assert.Len(t, outlines, 1)
	assert.Contains(t, outlines, "a")
}

func TestContainsHeading(t *testing.T) {
	outline := []string{"Executive Summary", "Q3   Results"}
	assert.True(t, ContainsHeading(outline, "executive summary"))
	assert.True(t, ContainsHeading(outline, "## Q3 Results"))
	assert.False(t, ContainsHeading(outline, "Appendix"))
	assert.False(t, ContainsHeading(outline, ""))
}

// --- DirProvider ---

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDirProvider(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "B Report.md", "## Summary\nText.")
	writeFile(t, dir, "a-notes.txt", "plain notes")
	writeFile(t, dir, "appendix.ref", "file_abc123\nAppendix (PDF)\n")
	writeFile(t, dir, "image.png", "binary")
	writeFile(t, dir, "empty.md", "   \n")
	writeFile(t, dir, ".hidden.md", "secret")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	docs, err := DirProvider{Dir: dir}.Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, "B Report.md", docs[0].Name)
	assert.Equal(t, "b-report", docs[0].ID)
	assert.True(t, docs[0].Inline())

	assert.Equal(t, "a-notes.txt", docs[1].Name)
	assert.Equal(t, "plain notes", docs[1].Content)

	assert.Equal(t, "Appendix (PDF)", docs[2].Name)
	assert.Equal(t, "appendix", docs[2].ID)
	assert.Equal(t, "file_abc123", docs[2].ProviderFileRef)
	assert.False(t, docs[2].Inline())
}

func TestDirProviderDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "report.md", "one")
	writeFile(t, dir, "report.txt", "two")

	docs, err := DirProvider{Dir: dir}.Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	ids := []string{docs[0].ID, docs[1].ID}
	assert.ElementsMatch(t, []string{"report", "report-2"}, ids)
}

func TestDirProviderEmptyRef(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "x.ref", "\n")
	_, err := DirProvider{Dir: dir}.Documents(context.Background())
	assert.Error(t, err)
}

func TestDirProviderMissingDir(t *testing.T) {
	_, err := DirProvider{Dir: filepath.Join(t.TempDir(), "nope")}.Documents(context.Background())
	assert.Error(t, err)
}

func TestDocumentID(t *testing.T) {
	assert.Equal(t, "q3-board-pack", DocumentID("Q3 Board_Pack"))
	assert.Equal(t, "doc", DocumentID("***"))
}

func TestStatic(t *testing.T) {
	in := []types.SourceDocument{{ID: "a", Content: "x"}}
	docs, err := Static(in...).Documents(context.Background())
	require.NoError(t, err)
	docs[0].ID = "changed"
	assert.Equal(t, "a", in[0].ID)
}
