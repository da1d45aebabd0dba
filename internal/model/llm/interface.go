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
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client LLM 客户端接口
type Client interface {
	// Chat 发送多轮消息并返回模型回复
	Chat(ctx context.Context, messages []Message, options GenerateOptions) (*Response, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	TopP        float64  `json:"top_p"`
	Stop        []string `json:"stop"`
	// JSONMode 要求模型只输出一个 JSON 对象
	JSONMode bool `json:"json_mode"`
}

// Message 聊天消息
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Response 模型回复及 token 用量（提供商未返回用量时为 0）
type Response struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// Options 传输层选项
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.RetryCount < 0 {
		o.RetryCount = 0
	} else if o.RetryCount == 0 {
		o.RetryCount = 3
	}
	return o
}

// NewClient 创建新的 LLM 客户端；openai 兼容端点（qwen/deepseek 等）通过 BaseURL 指定
func NewClient(provider, model, apiKey string, opts Options) (Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("LLM provider %q 的 api_key 未配置", provider)
	}
	switch provider {
	case "claude", "anthropic":
		return NewClaudeClient(model, apiKey, opts)
	case "gemini":
		return NewGeminiClient(model, apiKey, opts)
	default:
		return NewOpenAIClient(model, apiKey, opts)
	}
}

// newRestyClient 各提供商共用的 HTTP 客户端：超时 + 对 429/5xx 重试
func newRestyClient(opts Options) *resty.Client {
	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetRetryCount(opts.RetryCount)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil || r == nil {
			return false
		}
		return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
	})
	return client
}

// splitSystem 将 system 消息合并为一段，其余按原顺序返回
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

const jsonOnlyInstruction = "Respond with a single JSON object and nothing else."
