// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "sort"

// ProducedCard is the finished text of one planned card.
type ProducedCard struct {
	Number    int    `json:"number" yaml:"number"`
	Title     string `json:"title" yaml:"title"`
	Content   string `json:"content" yaml:"content"`
	WordCount int    `json:"word_count" yaml:"word_count"`
}

// SortCards orders cards by number in place.
func SortCards(cards []ProducedCard) {
	sort.Slice(cards, func(i, j int) bool { return cards[i].Number < cards[j].Number })
}

// Usage reports token consumption of one model response.
type Usage struct {
	Provider         string `json:"provider" yaml:"provider"`
	Model            string `json:"model" yaml:"model"`
	InputTokens      int64  `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens     int64  `json:"output_tokens" yaml:"output_tokens"`
	CacheReadTokens  int64  `json:"cache_read_tokens,omitempty" yaml:"cache_read_tokens,omitempty"`
	CacheWriteTokens int64  `json:"cache_write_tokens,omitempty" yaml:"cache_write_tokens,omitempty"`
}

// IsZero reports whether no tokens were counted.
func (u Usage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0 && u.CacheReadTokens == 0 && u.CacheWriteTokens == 0
}

// Add accumulates o into u, keeping u's provider and model.
func (u *Usage) Add(o Usage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.CacheReadTokens += o.CacheReadTokens
	u.CacheWriteTokens += o.CacheWriteTokens
}

// NoticeLevel grades a non-fatal notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
)

// Notice is a non-fatal message for the user, such as a grounding gap in a
// produced card.
type Notice struct {
	Level NoticeLevel `json:"level" yaml:"level"`

	// Card is the card number the notice refers to, 0 for deck-wide notices.
	Card int `json:"card,omitempty" yaml:"card,omitempty"`

	Message string `json:"message" yaml:"message"`
}

// ErrorKind classifies a session error for the presentation layer.
type ErrorKind string

const (
	ErrorTransient ErrorKind = "transient"
	ErrorTerminal  ErrorKind = "terminal"
	ErrorSchema    ErrorKind = "schema"
)

// ErrorInfo is the recoverable error a session exposes in its error state.
type ErrorInfo struct {
	Kind ErrorKind `json:"kind" yaml:"kind"`

	// Op names the operation that failed: plan, revise, or produce.
	Op string `json:"op" yaml:"op"`

	Message string `json:"message" yaml:"message"`

	// Batches lists the failed batches of a production run, each with its
	// own kind. Kind is then the most severe of them.
	Batches []BatchError `json:"batches,omitempty" yaml:"batches,omitempty"`
}

// BatchError is one failed production batch.
type BatchError struct {
	First   int       `json:"first" yaml:"first"`
	Last    int       `json:"last" yaml:"last"`
	Kind    ErrorKind `json:"kind" yaml:"kind"`
	Message string    `json:"message" yaml:"message"`
}
