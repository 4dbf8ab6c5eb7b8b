// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pdiddy/deck-engine/pkg/types"
)

// AnthropicBackend sends requests through the Anthropic beta Messages API,
// which accepts Files API document references and cache-control markers.
type AnthropicBackend struct {
	client anthropic.Client
}

// NewAnthropicBackend builds a backend from cfg. Credentials are supplied
// per request by the Client, and SDK-level retries are disabled so that the
// Client owns the retry budget.
func NewAnthropicBackend(cfg types.AIConfig, opts ...option.RequestOption) *AnthropicBackend {
	base := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		base = append(base, option.WithRequestTimeout(cfg.Timeout))
	}
	return &AnthropicBackend{client: anthropic.NewClient(append(base, opts...)...)}
}

// Provider returns types.ProviderAnthropic.
func (b *AnthropicBackend) Provider() types.Provider {
	return types.ProviderAnthropic
}

// Send issues one Messages call with credential.
func (b *AnthropicBackend) Send(ctx context.Context, credential string, req Request) (*Response, error) {
	params := anthropic.BetaMessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		System:    anthropicSystem(req.System),
		Messages:  anthropicMessages(req.Messages),
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.HasDocumentRefs() {
		params.Betas = []anthropic.AnthropicBeta{anthropic.AnthropicBetaFilesAPI2025_04_14}
	}

	msg, err := b.client.Beta.Messages.New(ctx, params, option.WithAPIKey(credential))
	if err != nil {
		return nil, anthropicError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	resp := &Response{
		Text:       text.String(),
		StopReason: string(msg.StopReason),
		Usage: types.Usage{
			Provider:         string(types.ProviderAnthropic),
			Model:            string(msg.Model),
			InputTokens:      msg.Usage.InputTokens,
			OutputTokens:     msg.Usage.OutputTokens,
			CacheReadTokens:  msg.Usage.CacheReadInputTokens,
			CacheWriteTokens: msg.Usage.CacheCreationInputTokens,
		},
	}
	if resp.Text == "" {
		return resp, &APIError{Provider: string(types.ProviderAnthropic), Message: "response has no text content"}
	}
	return resp, nil
}

func anthropicSystem(blocks []Block) []anthropic.BetaTextBlockParam {
	var out []anthropic.BetaTextBlockParam
	for _, b := range blocks {
		if b.Type != BlockText || b.Text == "" {
			continue
		}
		p := anthropic.BetaTextBlockParam{Text: b.Text}
		if b.Cacheable {
			p.CacheControl = anthropic.NewBetaCacheControlEphemeralParam()
		}
		out = append(out, p)
	}
	return out
}

func anthropicMessages(msgs []Message) []anthropic.BetaMessageParam {
	out := make([]anthropic.BetaMessageParam, 0, len(msgs))
	for _, m := range msgs {
		role := anthropic.BetaMessageParamRoleUser
		if m.Role == RoleAssistant {
			role = anthropic.BetaMessageParamRoleAssistant
		}
		out = append(out, anthropic.BetaMessageParam{
			Role:    role,
			Content: anthropicBlocks(m.Content),
		})
	}
	return out
}

func anthropicBlocks(blocks []Block) []anthropic.BetaContentBlockParamUnion {
	out := make([]anthropic.BetaContentBlockParamUnion, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case BlockDocument:
			doc := &anthropic.BetaRequestDocumentBlockParam{
				Source: anthropic.BetaRequestDocumentBlockSourceUnionParam{
					OfFile: &anthropic.BetaFileDocumentSourceParam{FileID: b.DocumentRef},
				},
			}
			if b.Title != "" {
				doc.Title = anthropic.String(b.Title)
			}
			if b.Cacheable {
				doc.CacheControl = anthropic.NewBetaCacheControlEphemeralParam()
			}
			out = append(out, anthropic.BetaContentBlockParamUnion{OfDocument: doc})
		default:
			text := &anthropic.BetaTextBlockParam{Text: b.Text}
			if b.Cacheable {
				text.CacheControl = anthropic.NewBetaCacheControlEphemeralParam()
			}
			out = append(out, anthropic.BetaContentBlockParamUnion{OfText: text})
		}
	}
	return out
}

// anthropicError maps SDK errors onto *APIError. Context errors pass
// through unchanged so the Client can report cancellation.
func anthropicError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &APIError{
			Provider:   string(types.ProviderAnthropic),
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Error(),
			Err:        err,
		}
	}
	return fmt.Errorf("calling anthropic: %w", err)
}
