// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prompt turns briefings, documents, and plans into provider-ready
// model requests. Builders are pure: they perform no I/O.
//
// Every request has the same shape: stable system instructions marked
// cacheable, a user turn that opens with the source documents (the last
// document block carries the cache marker), and ends with the
// per-request text.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/deck-engine/internal/llm"
	"github.com/pdiddy/deck-engine/pkg/types"
)

// Settings are the request knobs taken from configuration.
type Settings struct {
	Model       string
	MaxTokens   int
	Temperature *float64
}

var documentTmpl = template.Must(template.New("document").Parse(`<document id="{{.ID}}" name="{{.Name}}">
{{.Content}}
</document>`))

// DocumentBlocks renders the source documents as content blocks: inline
// documents as text, hosted documents as provider file references. The last
// block is marked cacheable so the whole document prefix can be reused
// across calls.
func DocumentBlocks(docs []types.SourceDocument) ([]llm.Block, error) {
	blocks := make([]llm.Block, 0, len(docs))
	for _, d := range docs {
		if !d.Inline() {
			blocks = append(blocks, llm.DocumentRefBlock(d.ProviderFileRef, d.Name))
			continue
		}
		text, err := render(documentTmpl, d)
		if err != nil {
			return nil, fmt.Errorf("rendering document %s: %w", d.ID, err)
		}
		blocks = append(blocks, llm.TextBlock(text))
	}
	if n := len(blocks); n > 0 {
		blocks[n-1].Cacheable = true
	}
	return blocks, nil
}

// documentIndex lists document IDs and names so the model can cite hosted
// documents by ID.
func documentIndex(docs []types.SourceDocument) string {
	var b strings.Builder
	for _, d := range docs {
		fmt.Fprintf(&b, "- id %q: %s\n", d.ID, d.Name)
	}
	return b.String()
}

func documentNames(docs []types.SourceDocument) map[string]string {
	names := make(map[string]string, len(docs))
	for _, d := range docs {
		names[d.ID] = d.Name
	}
	return names
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func build(s Settings, system []string, docs []types.SourceDocument, turn string) (llm.Request, error) {
	blocks, err := DocumentBlocks(docs)
	if err != nil {
		return llm.Request{}, err
	}
	blocks = append(blocks, llm.TextBlock(turn))

	req := llm.Request{
		Model:       s.Model,
		MaxTokens:   s.MaxTokens,
		Temperature: s.Temperature,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: blocks}},
	}
	for _, text := range system {
		req.System = append(req.System, llm.TextBlock(text))
	}
	if n := len(req.System); n > 0 {
		req.System[n-1].Cacheable = true
	}
	return req, nil
}
