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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Triage     TriageConfig     `mapstructure:"triage"`
	Store      StoreConfig      `mapstructure:"store"`
	Model      ModelConfig      `mapstructure:"model"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port      int        `mapstructure:"port"`
	Host      string     `mapstructure:"host"`
	Timeout   string     `mapstructure:"timeout"`
	CORS      CORSConfig `mapstructure:"cors"`
	RateLimit int        `mapstructure:"rate_limit_rps"` // <=0 不限流
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// TriageConfig 分诊 cycle 配置
type TriageConfig struct {
	TaxonomyFile   string `mapstructure:"taxonomy_file"`
	OracleTimeout  string `mapstructure:"oracle_timeout"` // 单次 oracle 调用超时，如 "20s"
	CycleTimeout   string `mapstructure:"cycle_timeout"`  // 整轮上限，空则为 oracle_timeout*5
	HistoryTurns   int    `mapstructure:"history_turns"`
	DefaultSession string `mapstructure:"default_session"`
	// DeepestLowConfidenceAsk 为 true 时最深层低置信度且带追问则转为提问
	DeepestLowConfidenceAsk *bool `mapstructure:"deepest_low_confidence_ask"`
}

// StoreConfig 会话状态存储配置
type StoreConfig struct {
	Type      string `mapstructure:"type"` // memory | redis | postgres | sqlite
	DSN       string `mapstructure:"dsn"`  // postgres 连接串或 sqlite 文件路径
	Addr      string `mapstructure:"addr"` // redis 地址
	DB        int    `mapstructure:"db"`
	Password  string `mapstructure:"password"`
	KeyPrefix string `mapstructure:"key_prefix"`
	TTL       string `mapstructure:"ttl"`        // redis 过期时间，空则不过期
	CacheSize int    `mapstructure:"cache_size"` // >0 时在后端前加 LRU
}

// RateLimitsConfig 限流配置
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
	// Backend oracle 传输实现：resty（内置 HTTP 客户端）| eino（eino-ext ChatModel）
	Backend string `mapstructure:"backend"`
}

// LLMConfig LLM 模型配置
type LLMConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig 模型提供商配置
type ProviderConfig struct {
	APIKey    string               `mapstructure:"api_key"`
	APIKeyRef string               `mapstructure:"api_key_ref"` // secrets store 中的 key，api_key 为空时使用
	BaseURL   string               `mapstructure:"base_url"`
	Models    map[string]ModelInfo `mapstructure:"models"`
}

// ModelInfo 模型信息
type ModelInfo struct {
	Name          string  `mapstructure:"name"`
	ContextWindow int     `mapstructure:"context_window"`
	Temperature   float64 `mapstructure:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"`
}

// DefaultsConfig 默认模型配置
type DefaultsConfig struct {
	LLM string `mapstructure:"llm"` // provider.model_key
}

// SecretsConfig 密钥来源
type SecretsConfig struct {
	Provider string      `mapstructure:"provider"` // env | memory | vault
	Vault    VaultConfig `mapstructure:"vault"`
}

// VaultConfig Vault 连接配置
type VaultConfig struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	PathPrefix string `mapstructure:"path_prefix"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
	// Exporter grpc（默认，obs-opentelemetry provider）| http（otlptracehttp）
	Exporter string `mapstructure:"exporter"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// DeepestAsk 返回最深层低置信度提问开关，未配置时默认开启
func (t TriageConfig) DeepestAsk() bool {
	if t.DeepestLowConfidenceAsk == nil {
		return true
	}
	return *t.DeepestLowConfidenceAsk
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.timeout", "60s")
	v.SetDefault("triage.taxonomy_file", "configs/taxonomy.yaml")
	v.SetDefault("triage.oracle_timeout", "20s")
	v.SetDefault("triage.history_turns", 6)
	v.SetDefault("triage.default_session", "default")
	v.SetDefault("store.type", "memory")
	v.SetDefault("store.key_prefix", "triage:session:")
	v.SetDefault("model.backend", "resty")
	v.SetDefault("secrets.provider", "env")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("monitoring.prometheus.enable", true)
}

// LoadConfig 加载配置文件；同目录或工作目录下的 .env 会先被载入环境变量
func LoadConfig(configPath string) (*Config, error) {
	loadDotEnv(configPath)

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	return &config, nil
}

// loadDotEnv 不覆盖已存在的环境变量，文件缺失时静默跳过
func loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if dir := filepath.Dir(configPath); dir != "." {
		candidates = append(candidates, filepath.Join(dir, ".env"), filepath.Join(dir, "..", ".env"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// replaceEnvVars 替换 ${VAR} 形式的配置值
func replaceEnvVars(config *Config) {
	for provider, pc := range config.Model.LLM.Providers {
		pc.APIKey = expandEnv(pc.APIKey)
		pc.BaseURL = expandEnv(pc.BaseURL)
		config.Model.LLM.Providers[provider] = pc
	}
	config.Store.DSN = expandEnv(config.Store.DSN)
	config.Store.Password = expandEnv(config.Store.Password)
	config.Secrets.Vault.Token = expandEnv(config.Secrets.Vault.Token)
}

func expandEnv(s string) string {
	if !strings.HasPrefix(s, "$") {
		return s
	}
	envVar := strings.TrimPrefix(strings.TrimSuffix(s, "}"), "${")
	envVar = strings.TrimPrefix(envVar, "$")
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return ""
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml，可由 TRIAGE_CONFIG 覆盖）
func LoadAPIConfig() (*Config, error) {
	path := "configs/api.yaml"
	if p := os.Getenv("TRIAGE_CONFIG"); p != "" {
		path = p
	}
	return LoadConfig(path)
}

// ParseDuration 解析时长字符串，无效或空时返回 defaultVal
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// TTLDuration redis 会话过期时间，空或无效时为 0（不过期）
func (s StoreConfig) TTLDuration() time.Duration {
	return ParseDuration(s.TTL, 0)
}
