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

// Package cycle 实现单轮分诊：判定 → 分层复评 → 追问或逐层分类，并原子提交会话状态。
package cycle

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"triage-platform/internal/triage/oracle"
	"triage-platform/internal/triage/state"
	"triage-platform/internal/triage/taxonomy"
	pkgerrors "triage-platform/pkg/errors"
	"triage-platform/pkg/log"
	"triage-platform/pkg/metrics"
	"triage-platform/pkg/tracing"
)

const (
	defaultHistoryTurns = 6
	historyTurnChars    = 100
	maxQuestions        = 3
	maxEvidenceSpans    = 3
)

// Runtime 每轮执行所依赖的外部句柄，显式传入而非全局单例
type Runtime struct {
	Oracle   oracle.Oracle
	Taxonomy taxonomy.Lookup
	Logger   *log.Logger

	// OracleTimeout 单次 oracle 调用超时，<=0 不限制
	OracleTimeout time.Duration
	// HistoryTurns 传给 oracle 的最近对话轮数
	HistoryTurns int
	// DeepestAsk 最深层低置信度且有追问时转为追问而非分类
	DeepestAsk bool
}

func (rt *Runtime) validate() error {
	if rt.Oracle == nil {
		return fmt.Errorf("cycle: oracle is required")
	}
	if rt.Taxonomy == nil {
		return fmt.Errorf("cycle: taxonomy is required")
	}
	if rt.Logger == nil {
		rt.Logger = log.Nop()
	}
	if rt.HistoryTurns <= 0 {
		rt.HistoryTurns = defaultHistoryTurns
	}
	return nil
}

// Level2Candidates 会话固定的顶层候选
func (rt *Runtime) Level2Candidates() []string {
	return rt.Taxonomy.ChildCandidates()
}

// oracleContext 由当前状态构造 oracle 上下文
func (rt *Runtime) oracleContext(st *state.State) oracle.Context {
	sel := make(map[state.Level]string, len(state.Levels))
	for _, l := range state.Levels {
		sel[l] = st.SelectionText(l)
	}
	turns := st.Conversation
	n := rt.HistoryTurns
	if n <= 0 {
		n = defaultHistoryTurns
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	history := make([]state.Turn, len(turns))
	for i, t := range turns {
		t.Text = truncate(t.Text, historyTurnChars)
		history[i] = t
	}
	return oracle.Context{LatestInput: st.LatestInput, Selections: sel, History: history}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// callOracle 统一处理单次调用的超时、指标、span 与错误归类。
// 超时归为 ErrCycleTimeout，其余失败归为 ErrOracle。
func callOracle[T any](ctx context.Context, rt *Runtime, call string, level state.Level, fn func(context.Context) (*T, error)) (*T, error) {
	label := string(level)
	if label == "" {
		label = "none"
	}
	ctx, span := tracing.StartOracleSpan(ctx, call, label)
	metrics.OracleCallsTotal.WithLabelValues(call, label).Inc()

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if rt.OracleTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, rt.OracleTimeout)
	}
	defer cancel()

	res, err := fn(callCtx)
	if err == nil && res == nil {
		err = fmt.Errorf("empty response")
	}
	if err != nil {
		metrics.OracleErrorsTotal.WithLabelValues(call).Inc()
		err = classifyErr(callCtx, fmt.Errorf("oracle %s (%s): %w", call, label, err))
		rt.Logger.Warn("oracle call failed", "call", call, "level", label, "error", err)
		tracing.EndSpan(span, err)
		return nil, err
	}
	tracing.EndSpan(span, nil)
	return res, nil
}

func classifyErr(ctx context.Context, err error) error {
	switch {
	case pkgerrors.Is(err, pkgerrors.ErrCycleTimeout), pkgerrors.Is(err, pkgerrors.ErrOracle):
		return err
	case pkgerrors.Is(err, context.DeadlineExceeded) || pkgerrors.Is(ctx.Err(), context.DeadlineExceeded):
		return pkgerrors.Mark(err, pkgerrors.ErrCycleTimeout)
	case pkgerrors.Is(err, context.Canceled):
		return err
	default:
		return pkgerrors.Mark(err, pkgerrors.ErrOracle)
	}
}

// sanitizeQuestions 去空白、去空串，最多保留 3 个
func sanitizeQuestions(in []string) []string {
	out := make([]string, 0, len(in))
	for _, q := range in {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		out = append(out, q)
		if len(out) == maxQuestions {
			break
		}
	}
	return out
}
