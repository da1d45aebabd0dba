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
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EinoClient 将 eino ChatModel 适配为 Client
type EinoClient struct {
	chat     model.BaseChatModel
	provider string
	model    string
}

// NewEinoClient 包装任意 eino ChatModel
func NewEinoClient(chat model.BaseChatModel, provider, modelName string) *EinoClient {
	return &EinoClient{chat: chat, provider: provider, model: modelName}
}

// NewEinoOpenAIClient 基于 eino-ext openai ChatModel 创建客户端
func NewEinoOpenAIClient(ctx context.Context, modelName, apiKey, baseURL string, timeout time.Duration) (*EinoClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("LLM provider %q 的 api_key 未配置", "openai")
	}
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		Model:   modelName,
		APIKey:  apiKey,
		BaseURL: baseURL,
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 OpenAI ChatModel failed: %w", err)
	}
	return NewEinoClient(cm, "openai", modelName), nil
}

// Chat 实现 Client
func (c *EinoClient) Chat(ctx context.Context, messages []Message, options GenerateOptions) (*Response, error) {
	in := make([]*schema.Message, 0, len(messages)+1)
	for _, m := range messages {
		switch m.Role {
		case "system":
			in = append(in, schema.SystemMessage(m.Content))
		case "assistant":
			in = append(in, schema.AssistantMessage(m.Content, nil))
		default:
			in = append(in, schema.UserMessage(m.Content))
		}
	}
	if options.JSONMode {
		in = append([]*schema.Message{schema.SystemMessage(jsonOnlyInstruction)}, in...)
	}

	opts := []model.Option{model.WithTemperature(float32(options.Temperature))}
	if options.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(options.MaxTokens))
	}
	if options.TopP > 0 {
		opts = append(opts, model.WithTopP(float32(options.TopP)))
	}
	if len(options.Stop) > 0 {
		opts = append(opts, model.WithStop(options.Stop))
	}

	out, err := c.chat.Generate(ctx, in, opts...)
	if err != nil {
		return nil, fmt.Errorf("eino ChatModel generate failed: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("eino ChatModel 没有返回结果")
	}
	resp := &Response{Content: out.Content}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		resp.PromptTokens = out.ResponseMeta.Usage.PromptTokens
		resp.CompletionTokens = out.ResponseMeta.Usage.CompletionTokens
	}
	return resp, nil
}

// Model 返回模型名称
func (c *EinoClient) Model() string { return c.model }

// Provider 返回提供商名称
func (c *EinoClient) Provider() string { return c.provider }
