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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := writeConfig(t, `
api:
  port: 9000
  host: "127.0.0.1"
log:
  level: "debug"
triage:
  history_turns: 4
  deepest_low_confidence_ask: false
store:
  type: sqlite
  dsn: /tmp/triage.db
  cache_size: 128
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, "127.0.0.1", cfg.API.Host)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Triage.HistoryTurns)
	assert.False(t, cfg.Triage.DeepestAsk())
	assert.Equal(t, "sqlite", cfg.Store.Type)
	assert.Equal(t, 128, cfg.Store.CacheSize)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "api:\n  port: 8081\n"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, "20s", cfg.Triage.OracleTimeout)
	assert.Equal(t, 6, cfg.Triage.HistoryTurns)
	assert.Equal(t, "default", cfg.Triage.DefaultSession)
	assert.Equal(t, "resty", cfg.Model.Backend)
	assert.True(t, cfg.Triage.DeepestAsk())
}

func TestLoadConfig_EnvAPIKey(t *testing.T) {
	t.Setenv("TRIAGE_TEST_KEY", "sk-test")
	cfg, err := LoadConfig(writeConfig(t, `
model:
  llm:
    providers:
      openai:
        api_key: "${TRIAGE_TEST_KEY}"
        models:
          mini:
            name: gpt-4o-mini
  defaults:
    llm: openai.mini
`))
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Model.LLM.Providers["openai"].APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.LLM.Providers["openai"].Models["mini"].Name)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_ShippedAPIConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-shipped")
	cfg, err := LoadConfig("../../configs/api.yaml")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "openai.gpt_4o_mini", cfg.Model.Defaults.LLM)
	assert.Equal(t, "sk-shipped", cfg.Model.LLM.Providers["openai"].APIKey)
	assert.Equal(t, "anthropic_api_key", cfg.Model.LLM.Providers["claude"].APIKeyRef)
	assert.Equal(t, 500.0, cfg.RateLimits.LLM["openai"].RequestsPerMinute)
	assert.True(t, cfg.Monitoring.Prometheus.Enable)
	assert.Equal(t, "grpc", cfg.Monitoring.Tracing.Exporter)
	assert.True(t, cfg.Triage.DeepestAsk())
}

func TestLoadAPIConfig_EnvOverride(t *testing.T) {
	path := writeConfig(t, "api:\n  port: 7070\n")
	t.Setenv("TRIAGE_CONFIG", path)
	cfg, err := LoadAPIConfig()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.API.Port)
	assert.True(t, cfg.Monitoring.Prometheus.Enable)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 3*time.Second, ParseDuration("3s", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("soon", time.Minute))
}

func TestStoreConfig_TTLDuration(t *testing.T) {
	assert.Equal(t, 30*time.Minute, StoreConfig{TTL: "30m"}.TTLDuration())
	assert.Zero(t, StoreConfig{}.TTLDuration())
	assert.Zero(t, StoreConfig{TTL: "soon"}.TTLDuration())
}
