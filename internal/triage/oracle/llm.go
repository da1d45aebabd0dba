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

package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"triage-platform/internal/model/llm"
	"triage-platform/pkg/errors"
)

// LLMOracle 基于 llm.Client 的 Oracle 实现：JSON 模式调用，宽松解析
type LLMOracle struct {
	client      llm.Client
	temperature float64
	maxTokens   int
}

// LLMOption LLMOracle 选项
type LLMOption func(*LLMOracle)

// WithTemperature 设置采样温度，默认 0
func WithTemperature(t float64) LLMOption {
	return func(o *LLMOracle) { o.temperature = t }
}

// WithMaxTokens 设置单次回复 token 上限，默认 512
func WithMaxTokens(n int) LLMOption {
	return func(o *LLMOracle) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// NewLLMOracle 创建 LLMOracle
func NewLLMOracle(client llm.Client, opts ...LLMOption) *LLMOracle {
	o := &LLMOracle{client: client, maxTokens: 512}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Judge 实现 Oracle
func (o *LLMOracle) Judge(ctx context.Context, req JudgeRequest) (*JudgeResult, error) {
	var out JudgeResult
	if err := o.call(ctx, "judge", judgeMessages(req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Retriage 实现 Oracle
func (o *LLMOracle) Retriage(ctx context.Context, req RetriageRequest) (*RetriageResult, error) {
	var out RetriageResult
	if err := o.call(ctx, "retriage "+string(req.Level), retriageMessages(req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Classify 实现 Oracle
func (o *LLMOracle) Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResult, error) {
	var out ClassifyResult
	if err := o.call(ctx, "classify "+string(req.Level), classifyMessages(req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (o *LLMOracle) call(ctx context.Context, name string, prompt []promptMessage, out interface{}) error {
	msgs := make([]llm.Message, len(prompt))
	for i, m := range prompt {
		msgs[i] = llm.Message{Role: m.role, Content: m.content}
	}
	resp, err := o.client.Chat(ctx, msgs, llm.GenerateOptions{
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return err
	}
	if err := DecodeJSON(resp.Content, out); err != nil {
		return errors.Mark(fmt.Errorf("%s: %w", name, err), errors.ErrOracle)
	}
	return nil
}

// DecodeJSON 从模型输出中提取首个 JSON 对象并解码，容忍 markdown 代码块与前后说明文字
func DecodeJSON(content string, out interface{}) error {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("malformed oracle response: no JSON object in %q", truncate(content, 120))
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), out); err != nil {
		return fmt.Errorf("malformed oracle response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
