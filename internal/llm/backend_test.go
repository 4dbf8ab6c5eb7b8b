// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deck-engine/pkg/types"
)

type captured struct {
	path    string
	headers http.Header
	body    map[string]any
}

func captureServer(t *testing.T, status int, response string, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		got.path = r.URL.Path
		got.headers = r.Header.Clone()
		got.body = map[string]any{}
		_ = json.Unmarshal(raw, &got.body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func sampleRequest() Request {
	doc := DocumentRefBlock("file_abc", "Annual report")
	doc.Cacheable = true
	return Request{
		Model:       "model-x",
		MaxTokens:   512,
		Temperature: Temp(0.2),
		System: []Block{
			{Type: BlockText, Text: "You are a planner."},
			{Type: BlockText, Text: "Stable rules.", Cacheable: true},
		},
		Messages: []Message{{Role: RoleUser, Content: []Block{doc, TextBlock("Plan the deck.")}}},
	}
}

const anthropicOK = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "model-x",
  "content": [{"type": "text", "text": "{\"cards\": []}"}],
  "stop_reason": "end_turn",
  "stop_sequence": null,
  "usage": {"input_tokens": 120, "output_tokens": 40, "cache_read_input_tokens": 900, "cache_creation_input_tokens": 15}
}`

func TestAnthropicBackend_Send(t *testing.T) {
	var got captured
	srv := captureServer(t, http.StatusOK, anthropicOK, &got)
	b := NewAnthropicBackend(types.AIConfig{BaseURL: srv.URL})

	resp, err := b.Send(context.Background(), "sk-primary", sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, `{"cards": []}`, resp.Text)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, types.Usage{
		Provider:         "anthropic",
		Model:            "model-x",
		InputTokens:      120,
		OutputTokens:     40,
		CacheReadTokens:  900,
		CacheWriteTokens: 15,
	}, resp.Usage)

	assert.True(t, strings.HasSuffix(got.path, "/v1/messages"), got.path)
	assert.Equal(t, "sk-primary", got.headers.Get("X-Api-Key"))
	assert.Contains(t, got.headers.Get("Anthropic-Beta"), "files-api-2025-04-14")

	assert.Equal(t, "model-x", got.body["model"])
	assert.EqualValues(t, 512, got.body["max_tokens"])
	assert.InDelta(t, 0.2, got.body["temperature"], 1e-9)

	system, ok := got.body["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 2)
	assert.NotContains(t, system[0], "cache_control")
	assert.Contains(t, system[1], "cache_control")

	messages := got.body["messages"].([]any)
	require.Len(t, messages, 1)
	content := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)
	doc := content[0].(map[string]any)
	assert.Equal(t, "document", doc["type"])
	assert.Equal(t, "Annual report", doc["title"])
	assert.Equal(t, map[string]any{"type": "file", "file_id": "file_abc"}, doc["source"])
	assert.Contains(t, doc, "cache_control")
}

func TestAnthropicBackend_NoBetaHeaderWithoutDocuments(t *testing.T) {
	var got captured
	srv := captureServer(t, http.StatusOK, anthropicOK, &got)
	b := NewAnthropicBackend(types.AIConfig{BaseURL: srv.URL})

	req := Request{Model: "model-x", MaxTokens: 10, Messages: []Message{{Role: RoleUser, Content: []Block{TextBlock("hi")}}}}
	_, err := b.Send(context.Background(), "k", req)
	require.NoError(t, err)
	assert.Empty(t, got.headers.Get("Anthropic-Beta"))
	assert.NotContains(t, got.body, "temperature")
}

func TestAnthropicBackend_OverloadedIsRetryable(t *testing.T) {
	var got captured
	srv := captureServer(t, 529, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, &got)
	b := NewAnthropicBackend(types.AIConfig{BaseURL: srv.URL})

	_, err := b.Send(context.Background(), "k", sampleRequest())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 529, apiErr.StatusCode)
	assert.True(t, IsRetryable(err))
}

func TestAnthropicBackend_BadRequestIsTerminal(t *testing.T) {
	var got captured
	srv := captureServer(t, http.StatusBadRequest, `{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens: too large"}}`, &got)
	b := NewAnthropicBackend(types.AIConfig{BaseURL: srv.URL})

	_, err := b.Send(context.Background(), "k", sampleRequest())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.False(t, IsRetryable(err))
}

const openaiOK = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-test",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"status\":\"ok\",\"cards\":[]}"}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 100, "completion_tokens": 30, "total_tokens": 130, "prompt_tokens_details": {"cached_tokens": 60}}
}`

func TestOpenAIBackend_Send(t *testing.T) {
	var got captured
	srv := captureServer(t, http.StatusOK, openaiOK, &got)
	b := NewOpenAIBackend(types.AIConfig{BaseURL: srv.URL})

	resp, err := b.Send(context.Background(), "sk-openai", sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, `{"status":"ok","cards":[]}`, resp.Text)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, types.Usage{
		Provider:        "openai",
		Model:           "gpt-test",
		InputTokens:     40,
		OutputTokens:    30,
		CacheReadTokens: 60,
	}, resp.Usage)

	assert.True(t, strings.HasSuffix(got.path, "/chat/completions"), got.path)
	assert.Equal(t, "Bearer sk-openai", got.headers.Get("Authorization"))
	assert.EqualValues(t, 512, got.body["max_completion_tokens"])

	messages := got.body["messages"].([]any)
	require.Len(t, messages, 2)
	system := messages[0].(map[string]any)
	assert.Equal(t, "system", system["role"])
	assert.Equal(t, "You are a planner.\n\nStable rules.", system["content"])

	user := messages[1].(map[string]any)
	parts := user["content"].([]any)
	require.Len(t, parts, 2)
	file := parts[0].(map[string]any)
	assert.Equal(t, "file", file["type"])
	assert.Equal(t, "file_abc", file["file"].(map[string]any)["file_id"])
}

func TestOpenAIBackend_RateLimitIsRetryable(t *testing.T) {
	var got captured
	srv := captureServer(t, http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached","type":"requests","param":null,"code":"rate_limit_exceeded"}}`, &got)
	b := NewOpenAIBackend(types.AIConfig{BaseURL: srv.URL})

	_, err := b.Send(context.Background(), "k", sampleRequest())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.True(t, IsRetryable(err))
}

func TestClient_WithHTTPBackendRetries(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"unavailable"}}`)
			return
		}
		_, _ = io.WriteString(w, anthropicOK)
	}))
	defer srv.Close()

	var usage types.Usage
	rec := &sleepRecorder{}
	c, err := New(NewAnthropicBackend(types.AIConfig{BaseURL: srv.URL}), Config{
		Model:       "model-x",
		Credentials: []string{"k"},
		UsageSink:   UsageSinkFunc(func(u types.Usage) { usage.Add(u) }),
	}, WithSleep(rec.sleep))
	require.NoError(t, err)

	resp, err := c.Call(context.Background(), Request{MaxTokens: 100, Messages: []Message{{Role: RoleUser, Content: []Block{TextBlock("go")}}}})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Text)
	assert.Equal(t, 2, calls)
	assert.EqualValues(t, 120, usage.InputTokens)
	require.Len(t, rec.delays, 1)
}
