// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"strings"

	"github.com/pdiddy/deck-engine/pkg/types"
)

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType distinguishes inline text from provider-hosted documents.
type BlockType string

const (
	BlockText     BlockType = "text"
	BlockDocument BlockType = "document"
)

// Block is one content block of a system prompt or message.
type Block struct {
	Type BlockType

	// Text is set for text blocks.
	Text string

	// DocumentRef is the provider file ID of a document block.
	DocumentRef string

	// Title labels a document block.
	Title string

	// Cacheable marks the end of a stable prefix the provider may cache.
	Cacheable bool
}

// TextBlock returns a text block.
func TextBlock(text string) Block {
	return Block{Type: BlockText, Text: text}
}

// DocumentRefBlock returns a block referencing an uploaded provider file.
func DocumentRefBlock(ref, title string) Block {
	return Block{Type: BlockDocument, DocumentRef: ref, Title: title}
}

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content []Block
}

// Request is a provider-neutral model request.
type Request struct {
	// Model is filled from the client default when empty.
	Model       string
	MaxTokens   int
	Temperature *float64
	System      []Block
	Messages    []Message
}

// HasDocumentRefs reports whether any message references an uploaded file.
func (r Request) HasDocumentRefs() bool {
	for _, m := range r.Messages {
		for _, b := range m.Content {
			if b.Type == BlockDocument {
				return true
			}
		}
	}
	return false
}

// SystemText joins the system blocks with blank lines.
func (r Request) SystemText() string {
	parts := make([]string, 0, len(r.System))
	for _, b := range r.System {
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Response is the provider-neutral result of one model call.
type Response struct {
	// Text concatenates the response's text blocks.
	Text string

	// StopReason is the provider's stop reason (e.g. "end_turn", "max_tokens").
	StopReason string

	Usage types.Usage
}

// Truncated reports whether the model stopped at the token limit.
func (r *Response) Truncated() bool {
	return r.StopReason == "max_tokens" || r.StopReason == "length"
}

// Temp returns a pointer to t for Request.Temperature.
func Temp(t float64) *float64 {
	return &t
}
