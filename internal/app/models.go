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

package app

import (
	"context"
	"fmt"
	"strings"

	"triage-platform/internal/model/llm"
	"triage-platform/internal/triage/oracle"
	"triage-platform/pkg/config"
	"triage-platform/pkg/secrets"
)

// NewLLMClientFromConfig 根据 model.defaults.llm 创建带限流的 LLM 客户端
func NewLLMClientFromConfig(ctx context.Context, cfg *config.Config, sec secrets.Store) (llm.Client, config.ModelInfo, error) {
	if cfg == nil || cfg.Model.Defaults.LLM == "" {
		return nil, config.ModelInfo{}, fmt.Errorf("model.defaults.llm 未配置")
	}
	provider, modelKey, err := parseDefaultKey(cfg.Model.Defaults.LLM)
	if err != nil {
		return nil, config.ModelInfo{}, err
	}
	pc, ok := cfg.Model.LLM.Providers[provider]
	if !ok {
		return nil, config.ModelInfo{}, fmt.Errorf("LLM provider %q 未配置", provider)
	}
	mi, ok := pc.Models[modelKey]
	if !ok {
		return nil, config.ModelInfo{}, fmt.Errorf("LLM model %q 未在 provider %q 中配置", modelKey, provider)
	}
	apiKey, err := secrets.Resolve(ctx, sec, pc.APIKey, pc.APIKeyRef)
	if err != nil {
		return nil, config.ModelInfo{}, fmt.Errorf("解析 provider %q 的 api_key 失败: %w", provider, err)
	}
	if apiKey == "" {
		return nil, config.ModelInfo{}, fmt.Errorf("LLM provider %q 的 api_key 未配置", provider)
	}

	timeout := config.ParseDuration(cfg.Triage.OracleTimeout, defaultOracleTimeout)
	var client llm.Client
	switch strings.ToLower(cfg.Model.Backend) {
	case "eino":
		if provider != "openai" {
			return nil, config.ModelInfo{}, fmt.Errorf("model.backend=eino 仅支持 openai 兼容 provider，当前: %q", provider)
		}
		client, err = llm.NewEinoOpenAIClient(ctx, mi.Name, apiKey, pc.BaseURL, timeout)
	case "", "resty":
		client, err = llm.NewClient(provider, mi.Name, apiKey, llm.Options{BaseURL: pc.BaseURL, Timeout: timeout})
	default:
		return nil, config.ModelInfo{}, fmt.Errorf("unsupported model.backend: %s", cfg.Model.Backend)
	}
	if err != nil {
		return nil, config.ModelInfo{}, err
	}

	limits := make(map[string]llm.LLMLimitConfig, len(cfg.RateLimits.LLM))
	for name, l := range cfg.RateLimits.LLM {
		limits[name] = llm.LLMLimitConfig{
			TokensPerMinute:   l.TokensPerMinute,
			RequestsPerMinute: l.RequestsPerMinute,
			MaxConcurrent:     l.MaxConcurrent,
		}
	}
	defaults := llm.DefaultLLMLimit
	return llm.NewRateLimitedClient(client, llm.NewLLMRateLimiter(limits, &defaults)), mi, nil
}

// NewOracleFromConfig 创建 LLM 驱动的分诊 oracle
func NewOracleFromConfig(ctx context.Context, cfg *config.Config, sec secrets.Store) (oracle.Oracle, error) {
	client, mi, err := NewLLMClientFromConfig(ctx, cfg, sec)
	if err != nil {
		return nil, err
	}
	opts := []oracle.LLMOption{oracle.WithTemperature(mi.Temperature)}
	if mi.MaxTokens > 0 {
		opts = append(opts, oracle.WithMaxTokens(mi.MaxTokens))
	}
	return oracle.NewLLMOracle(client, opts...), nil
}

func parseDefaultKey(key string) (provider, modelKey string, err error) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("default key 格式应为 provider.model_key，如 openai.gpt_4o_mini，当前: %q", key)
	}
	return parts[0], parts[1], nil
}
