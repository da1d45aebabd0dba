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

package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		CycleDuration, CycleTotal,
		OracleCallsTotal, OracleErrorsTotal,
		SelectionFallbackTotal, QuestionsTotal,
		RateLimitWaitSeconds, LLMTokensTotal,
		SessionLocksActive,
	)
}

// CycleDuration 单轮 cycle 耗时（秒）
var CycleDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "triage_cycle_duration_seconds",
		Help:    "单轮分诊 cycle 耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"outcome"},
)

// CycleTotal cycle 总数（按结果）
var CycleTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "triage_cycle_total",
		Help: "分诊 cycle 总数",
	},
	[]string{"outcome"}, // committed | failed | timeout
)

// OracleCallsTotal oracle 调用次数
var OracleCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "triage_oracle_calls_total",
		Help: "oracle 调用次数",
	},
	[]string{"call", "level"}, // judge | retriage | classify
)

// OracleErrorsTotal oracle 调用失败次数
var OracleErrorsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "triage_oracle_errors_total",
		Help: "oracle 调用失败次数",
	},
	[]string{"call"},
)

// SelectionFallbackTotal oracle 选择不在候选集内、回退到首个候选的次数
var SelectionFallbackTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "triage_selection_fallback_total",
		Help: "分类结果回退到首个候选的次数",
	},
	[]string{"level"},
)

// QuestionsTotal 进入待提问队列的问题数
var QuestionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "triage_questions_total",
		Help: "追加到待提问队列的问题数",
	},
	[]string{"level"},
)

// RateLimitWaitSeconds 限流等待耗时
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "triage_rate_limit_wait_seconds",
		Help:    "限流等待耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"type", "provider"},
)

// LLMTokensTotal LLM 调用 token 数
var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "triage_llm_tokens_total",
		Help: "LLM 调用 token 总数",
	},
	[]string{"direction"}, // input | output
)

// SessionLocksActive 当前持有的会话锁数量
var SessionLocksActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "triage_session_locks_active",
		Help: "当前持有的会话锁数量",
	},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
