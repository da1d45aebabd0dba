// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noRetry = Options{RetryCount: -1, Timeout: 5 * time.Second}

func jsonServer(t *testing.T, status int, reply string, capture *map[string]any, headers *http.Header) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if capture != nil {
			require.NoError(t, json.Unmarshal(body, capture))
		}
		if headers != nil {
			*headers = r.Header.Clone()
			headers.Set("X-Path", r.URL.Path)
			headers.Set("X-Query", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIClient_Chat(t *testing.T) {
	var req map[string]any
	var hdr http.Header
	srv := jsonServer(t, 200, `{"choices":[{"message":{"content":"{\"target\":\"level3\"}"}}],"usage":{"prompt_tokens":11,"completion_tokens":7}}`, &req, &hdr)

	opts := noRetry
	opts.BaseURL = srv.URL
	c, err := NewOpenAIClient("gpt-test", "sk-1", opts)
	require.NoError(t, err)

	resp, err := c.Chat(context.Background(), []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "hi"},
	}, GenerateOptions{Temperature: 0, MaxTokens: 64, JSONMode: true})
	require.NoError(t, err)
	assert.Equal(t, `{"target":"level3"}`, resp.Content)
	assert.Equal(t, 11, resp.PromptTokens)
	assert.Equal(t, 7, resp.CompletionTokens)

	assert.Equal(t, "gpt-test", req["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, req["response_format"])
	assert.Len(t, req["messages"], 2)
	assert.Equal(t, "Bearer sk-1", hdr.Get("Authorization"))
	assert.Equal(t, "/chat/completions", hdr.Get("X-Path"))
	assert.Equal(t, "openai", c.Provider())
}

func TestOpenAIClient_ErrorStatus(t *testing.T) {
	srv := jsonServer(t, 401, `{"error":"bad key"}`, nil, nil)
	opts := noRetry
	opts.BaseURL = srv.URL
	c, err := NewOpenAIClient("", "sk-1", opts)
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), []Message{{Role: "user", Content: "x"}}, GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	srv := jsonServer(t, 200, `{"choices":[]}`, nil, nil)
	opts := noRetry
	opts.BaseURL = srv.URL
	c, _ := NewOpenAIClient("m", "k", opts)
	_, err := c.Chat(context.Background(), nil, GenerateOptions{})
	assert.Error(t, err)
}

func TestClaudeClient_Chat(t *testing.T) {
	var req map[string]any
	var hdr http.Header
	srv := jsonServer(t, 200, `{"content":[{"type":"text","text":"{\"action\":\"ask\"}"}],"usage":{"input_tokens":5,"output_tokens":3}}`, &req, &hdr)

	opts := noRetry
	opts.BaseURL = srv.URL
	c, err := NewClaudeClient("claude-test", "ak", opts)
	require.NoError(t, err)
	resp, err := c.Chat(context.Background(), []Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hi"},
	}, GenerateOptions{JSONMode: true})
	require.NoError(t, err)
	assert.Equal(t, `{"action":"ask"}`, resp.Content)
	assert.Equal(t, 5, resp.PromptTokens)

	assert.Contains(t, req["system"], "be terse")
	assert.Contains(t, req["system"], jsonOnlyInstruction)
	assert.Len(t, req["messages"], 1)
	assert.EqualValues(t, 1024, req["max_tokens"])
	assert.Equal(t, "ak", hdr.Get("X-Api-Key"))
	assert.Equal(t, "/messages", hdr.Get("X-Path"))
}

func TestGeminiClient_Chat(t *testing.T) {
	var req map[string]any
	var hdr http.Header
	srv := jsonServer(t, 200, `{"candidates":[{"content":{"parts":[{"text":"{\"selection\":"},{"text":"\"x\"}"}]}}],"usageMetadata":{"promptTokenCount":9,"candidatesTokenCount":4}}`, &req, &hdr)

	opts := noRetry
	opts.BaseURL = srv.URL
	c, err := NewGeminiClient("gemini-test", "gk", opts)
	require.NoError(t, err)
	resp, err := c.Chat(context.Background(), []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "u"},
		{Role: "assistant", Content: "a"},
	}, GenerateOptions{JSONMode: true})
	require.NoError(t, err)
	assert.Equal(t, `{"selection":"x"}`, resp.Content)
	assert.Equal(t, 4, resp.CompletionTokens)

	contents := req["contents"].([]any)
	require.Len(t, contents, 2)
	assert.Equal(t, "model", contents[1].(map[string]any)["role"])
	assert.Equal(t, "application/json", req["generationConfig"].(map[string]any)["responseMimeType"])
	assert.NotNil(t, req["systemInstruction"])
	assert.Equal(t, "/models/gemini-test:generateContent", hdr.Get("X-Path"))
	assert.Equal(t, "key=gk", hdr.Get("X-Query"))
}

func TestNewClient(t *testing.T) {
	_, err := NewClient("openai", "m", "", Options{})
	assert.Error(t, err)

	c, err := NewClient("qwen", "qwen-plus", "k", Options{BaseURL: "http://example"})
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Provider())

	c, err = NewClient("anthropic", "", "k", Options{})
	require.NoError(t, err)
	assert.Equal(t, "claude", c.Provider())

	c, err = NewClient("gemini", "", "k", Options{})
	require.NoError(t, err)
	assert.Equal(t, "gemini", c.Provider())
}

type fakeChatModel struct {
	got  []*schema.Message
	opts *model.Options
	out  *schema.Message
	err  error
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.got = input
	f.opts = model.GetCommonOptions(nil, opts...)
	return f.out, f.err
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, f.err
}

func TestEinoClient_Chat(t *testing.T) {
	fake := &fakeChatModel{out: &schema.Message{
		Role:    schema.Assistant,
		Content: `{"target":"level2"}`,
		ResponseMeta: &schema.ResponseMeta{
			Usage: &schema.TokenUsage{PromptTokens: 20, CompletionTokens: 6},
		},
	}}
	c := NewEinoClient(fake, "openai", "gpt-x")
	resp, err := c.Chat(context.Background(), []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "u"},
		{Role: "assistant", Content: "a"},
	}, GenerateOptions{JSONMode: true, MaxTokens: 50, Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, `{"target":"level2"}`, resp.Content)
	assert.Equal(t, 20, resp.PromptTokens)

	require.Len(t, fake.got, 4)
	assert.Equal(t, schema.System, fake.got[0].Role)
	assert.Equal(t, jsonOnlyInstruction, fake.got[0].Content)
	assert.Equal(t, schema.Assistant, fake.got[3].Role)
	require.NotNil(t, fake.opts.MaxTokens)
	assert.Equal(t, 50, *fake.opts.MaxTokens)
	assert.Equal(t, "gpt-x", c.Model())
}

func TestEinoClient_Error(t *testing.T) {
	c := NewEinoClient(&fakeChatModel{err: context.DeadlineExceeded}, "openai", "m")
	_, err := c.Chat(context.Background(), nil, GenerateOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
