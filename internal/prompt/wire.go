// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompt

import (
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"
)

// PlanResponse is the JSON object the planning model returns. A bare array
// of cards is also accepted by the planner.
type PlanResponse struct {
	Cards     []PlanCard     `json:"cards" jsonschema_description:"Cards in deck order, numbered 1..N"`
	Questions []PlanQuestion `json:"questions,omitempty" jsonschema_description:"Clarifying questions for the reviewer"`
}

// PlanCard is one card in the plan contract.
type PlanCard struct {
	Number          int           `json:"number" jsonschema:"minimum=1"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Sources         []PlanSource  `json:"sources" jsonschema:"minItems=1"`
	KeyDataPoints   []string      `json:"keyDataPoints,omitempty" jsonschema_description:"Verbatim facts or quotes the card must carry"`
	Guidance        *PlanGuidance `json:"guidance"`
	WordTarget      int           `json:"wordTarget,omitempty"`
	CrossReferences string        `json:"crossReferences,omitempty"`
}

// PlanSource cites a document passage. Exactly one locator is expected.
type PlanSource struct {
	Document            string `json:"document" jsonschema_description:"Document id"`
	Heading             string `json:"heading,omitempty"`
	Section             string `json:"section,omitempty"`
	FallbackDescription string `json:"fallbackDescription,omitempty"`
}

// PlanGuidance is the writing guidance for one card.
type PlanGuidance struct {
	Emphasis string `json:"emphasis"`
	Tone     string `json:"tone"`
	Exclude  string `json:"exclude"`
}

// PlanQuestion is a clarifying question in the plan contract.
type PlanQuestion struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Recommended string `json:"recommended,omitempty"`
	Answer      string `json:"answer,omitempty"`
}

// Producer response statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ProduceResponse is the JSON object the production model returns.
type ProduceResponse struct {
	Status  string        `json:"status" jsonschema:"enum=ok,enum=error"`
	Message string        `json:"message,omitempty" jsonschema_description:"Reason when status is error"`
	Cards   []ProduceCard `json:"cards"`
}

// ProduceCard is one produced card in the production contract.
type ProduceCard struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Content   string `json:"content" jsonschema_description:"Markdown body of the card"`
	WordCount int    `json:"wordCount"`
}

// schemaFor renders the JSON schema of v, inlined without references.
func schemaFor(v any) string {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	data, err := json.MarshalIndent(reflector.Reflect(v), "", "  ")
	if err != nil {
		// Reflected schemas always marshal.
		panic(err)
	}
	return string(data)
}

var (
	planSchema    = schemaFor(&PlanResponse{})
	produceSchema = schemaFor(&ProduceResponse{})
)

// PlanSchema returns the JSON schema of the plan contract.
func PlanSchema() string { return planSchema }

// ProduceSchema returns the JSON schema of the production contract.
func ProduceSchema() string { return produceSchema }

// ExtractJSON returns the JSON value in a model response, unwrapping a
// Markdown code fence and trimming prose around the outermost object or
// array. It returns "" when no JSON value is present.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	// Card content may itself contain fences, so only unwrap when the
	// response does not open with JSON, and close on the last fence.
	if i := strings.Index(text, "```"); i >= 0 && !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "[") {
		rest := text[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.LastIndex(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		text = strings.TrimSpace(rest)
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end < start {
		return ""
	}
	return text[start : end+1]
}
