// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pdiddy/deck-engine/pkg/types"
)

// OpenAIBackend sends requests through the OpenAI chat completions API.
// System blocks are joined into one system message and document references
// become file content parts. Caching is automatic on this provider, so
// cache markers are ignored.
type OpenAIBackend struct {
	client openai.Client
}

// NewOpenAIBackend builds a backend from cfg with SDK retries disabled.
func NewOpenAIBackend(cfg types.AIConfig, opts ...option.RequestOption) *OpenAIBackend {
	base := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		base = append(base, option.WithRequestTimeout(cfg.Timeout))
	}
	return &OpenAIBackend{client: openai.NewClient(append(base, opts...)...)}
}

// Provider returns types.ProviderOpenAI.
func (b *OpenAIBackend) Provider() types.Provider {
	return types.ProviderOpenAI
}

// Send issues one chat completion with credential.
func (b *OpenAIBackend) Send(ctx context.Context, credential string, req Request) (*Response, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	if sys := req.SystemText(); sys != "" {
		msgs = append(msgs, openai.SystemMessage(sys))
	}
	for _, m := range req.Messages {
		if m.Role == RoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(joinText(m.Content)))
			continue
		}
		msgs = append(msgs, openai.UserMessage(openaiParts(m.Content)))
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: msgs,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	completion, err := b.client.Chat.Completions.New(ctx, params, option.WithAPIKey(credential))
	if err != nil {
		return nil, openaiError(err)
	}

	cached := completion.Usage.PromptTokensDetails.CachedTokens
	resp := &Response{
		Usage: types.Usage{
			Provider:        string(types.ProviderOpenAI),
			Model:           completion.Model,
			InputTokens:     completion.Usage.PromptTokens - cached,
			OutputTokens:    completion.Usage.CompletionTokens,
			CacheReadTokens: cached,
		},
	}
	if len(completion.Choices) == 0 {
		return resp, &APIError{Provider: string(types.ProviderOpenAI), Message: "response has no choices"}
	}
	choice := completion.Choices[0]
	resp.Text = choice.Message.Content
	resp.StopReason = choice.FinishReason
	if resp.Text == "" {
		return resp, &APIError{Provider: string(types.ProviderOpenAI), Message: "response has no text content"}
	}
	return resp, nil
}

func openaiParts(blocks []Block) []openai.ChatCompletionContentPartUnionParam {
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == BlockDocument {
			file := openai.ChatCompletionContentPartFileFileParam{FileID: openai.String(b.DocumentRef)}
			if b.Title != "" {
				file.Filename = openai.String(b.Title)
			}
			parts = append(parts, openai.FileContentPart(file))
			continue
		}
		parts = append(parts, openai.TextContentPart(b.Text))
	}
	return parts
}

func joinText(blocks []Block) string {
	return Request{System: blocks}.SystemText()
}

func openaiError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if apiErr.Code != "" {
			msg = apiErr.Code + ": " + msg
		}
		return &APIError{
			Provider:   string(types.ProviderOpenAI),
			StatusCode: apiErr.StatusCode,
			Message:    msg,
			Err:        err,
		}
	}
	return fmt.Errorf("calling openai: %w", err)
}
