// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package producer

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// Shape summarises the structure of a card's Markdown.
type Shape struct {
	Words           int
	MaxHeadingLevel int
	Tables          int
	Blockquotes     int
	Bullets         int
}

// Inspect parses Markdown content and measures it. Words counts the words
// of rendered text, so Markdown syntax is not counted.
func Inspect(content string) Shape {
	src := []byte(content)
	doc := markdown.Parser().Parse(text.NewReader(src))

	var s Shape
	var words strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				words.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading:
			if h := n.(*ast.Heading); h.Level > s.MaxHeadingLevel {
				s.MaxHeadingLevel = h.Level
			}
		case east.KindTable:
			s.Tables++
		case ast.KindBlockquote:
			s.Blockquotes++
		case ast.KindListItem:
			if list, ok := n.Parent().(*ast.List); ok && !list.IsOrdered() {
				s.Bullets++
			}
		case ast.KindText:
			t := n.(*ast.Text)
			words.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				words.WriteByte(' ')
			}
		case ast.KindCodeBlock, ast.KindFencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				words.Write(seg.Value(src))
				words.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})

	s.Words = len(strings.Fields(words.String()))
	return s
}
