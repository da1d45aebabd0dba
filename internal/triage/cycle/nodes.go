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

package cycle

import (
	"context"
	"fmt"
	"strings"

	"triage-platform/internal/triage/oracle"
	"triage-platform/internal/triage/state"
	"triage-platform/pkg/metrics"
	"triage-platform/pkg/tracing"
)

const (
	nodeJudge = "retriage_judge"
	nodeAsk   = "ask_question"
)

func retriageNodeName(l state.Level) string { return "retriage_" + string(l) }
func classifyNodeName(l state.Level) string { return "classify_" + string(l) }

type patchFunc func(ctx context.Context, st *state.State) (state.Patch, error)

// lambda 将 patch 函数包装为图节点：span、错误登记、合并
func (rt *Runtime) lambda(name string, level state.Level, fn patchFunc) func(context.Context, *state.State) (*state.State, error) {
	return func(ctx context.Context, st *state.State) (*state.State, error) {
		ctx, span := tracing.StartNodeSpan(ctx, name, string(level))
		p, err := fn(ctx, st)
		tracing.EndSpan(span, err)
		if err != nil {
			return nil, runFrom(ctx).fail(err)
		}
		next := state.Merge(st, p)
		rt.Logger.Debug("node done", "node", name, "session_id", runFrom(ctx).sessionID,
			"action", actionText(next.PendingAction), "audit_entries", len(next.AuditLog))
		return next, nil
	}
}

// judge 选择本轮复评入口层级，并清除上一轮残留的 pending_action
func (rt *Runtime) judge(ctx context.Context, st *state.State) (state.Patch, error) {
	res, err := callOracle(ctx, rt, "judge", "", func(c context.Context) (*oracle.JudgeResult, error) {
		return rt.Oracle.Judge(c, oracle.JudgeRequest{Context: rt.oracleContext(st)})
	})
	if err != nil {
		return state.Patch{}, err
	}
	target, ok := state.ParseLevel(res.Target)
	if !ok {
		rt.Logger.Info("judge returned no usable target, defaulting", "raw", res.Target, "target", state.Level4)
		target = state.Level4
	}
	return state.Patch{Target: &target, ClearAction: true}, nil
}

// retriage 决定本层是追问还是重新分类
func (rt *Runtime) retriage(d levelSpec) patchFunc {
	return func(ctx context.Context, st *state.State) (state.Patch, error) {
		candidates := d.lookupCandidates(rt, st)
		res, err := callOracle(ctx, rt, "retriage", d.level, func(c context.Context) (*oracle.RetriageResult, error) {
			return rt.Oracle.Retriage(c, oracle.RetriageRequest{
				Context:    rt.oracleContext(st),
				Level:      d.level,
				Current:    st.SelectionText(d.level),
				Candidates: candidates,
			})
		})
		if err != nil {
			return state.Patch{}, err
		}

		action := state.ParseAction(res.Action)
		p := state.Patch{Action: &action}
		if action == state.ActionAsk {
			qs := sanitizeQuestions(res.Questions)
			if len(qs) == 0 {
				rt.Logger.Info("retriage asked without questions, using fallback", "level", d.level)
				qs = append([]string{}, d.fallbackQuestions...)
			}
			p.Questions = qs
			metrics.QuestionsTotal.WithLabelValues(string(d.level)).Add(float64(len(qs)))
			return p, nil
		}
		if d.refresh {
			p.Candidates = map[state.Level][]string{d.level: candidates}
		}
		return p, nil
	}
}

// classify 在本层有效候选内分类，写审计日志并推导下一层候选
func (rt *Runtime) classify(d levelSpec) patchFunc {
	return func(ctx context.Context, st *state.State) (state.Patch, error) {
		lvl := d.level
		p := state.Patch{CurrentLevel: &lvl}

		candidates := st.Candidates(lvl)
		if len(candidates) == 0 {
			rt.Logger.Debug("no candidates, skipping level", "level", lvl)
			p.Selections = map[state.Level]*string{lvl: nil}
			if !d.deepest {
				p.Candidates = map[state.Level][]string{lvl.Next(): {}}
			}
			return p, nil
		}

		res, err := callOracle(ctx, rt, "classify", lvl, func(c context.Context) (*oracle.ClassifyResult, error) {
			return rt.Oracle.Classify(c, oracle.ClassifyRequest{
				Context:    rt.oracleContext(st),
				Level:      lvl,
				Candidates: candidates,
				Deepest:    d.deepest,
			})
		})
		if err != nil {
			return state.Patch{}, err
		}

		confidence := state.ParseConfidence(res.Confidence)
		if d.deepest && rt.DeepestAsk && confidence == state.ConfidenceLow {
			if qs := sanitizeQuestions(res.Questions); len(qs) > 0 {
				ask := state.ActionAsk
				p.Action = &ask
				p.Questions = qs
				metrics.QuestionsTotal.WithLabelValues(string(lvl)).Add(float64(len(qs)))
				rt.Logger.Info("low confidence at deepest level, asking instead", "level", lvl, "questions", len(qs))
				return p, nil
			}
		}

		selection, ok := matchCandidate(candidates, res.Selection)
		if !ok {
			metrics.SelectionFallbackTotal.WithLabelValues(string(lvl)).Inc()
			rt.Logger.Info("selection outside candidates, using first candidate",
				"level", lvl, "raw", res.Selection, "selection", selection)
		}

		p.Selections = map[state.Level]*string{lvl: &selection}
		p.LogEntries = []state.LogEntry{{
			Level:         lvl,
			Selection:     selection,
			Confidence:    confidence,
			EvidenceSpans: sanitizeSpans(res.EvidenceSpans),
			Reason:        strings.TrimSpace(res.Reason),
			Cycle:         runFrom(ctx).cycle,
		}}

		if d.deepest {
			p.SetFinalSeverity = true
			if sev, ok := rt.Taxonomy.FinalSeverity(st.SelectionText(state.Level2), st.SelectionText(state.Level3), selection); ok {
				p.FinalSeverity = &sev
			}
			return p, nil
		}
		p.Candidates = map[state.Level][]string{lvl.Next(): d.childCandidates(rt, st, selection)}
		return p, nil
	}
}

// ask 把待提问队列格式化为一条 assistant 消息并清空队列；队列为空时不做任何修改
func (rt *Runtime) ask(ctx context.Context, st *state.State) (state.Patch, error) {
	if len(st.PendingQuestions) == 0 {
		return state.Patch{}, nil
	}
	return state.Patch{
		Turns:          []state.Turn{{Role: state.RoleAssistant, Text: FormatQuestions(st.PendingQuestions)}},
		ClearQuestions: true,
	}, nil
}

// FormatQuestions 单个问题用单句，多个问题用编号列表
func FormatQuestions(questions []string) string {
	if len(questions) == 1 {
		return "Please confirm: " + questions[0]
	}
	var b strings.Builder
	b.WriteString("Please confirm the following:")
	for i, q := range questions {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, q)
	}
	return b.String()
}

// routeAfterJudge 按 pending_target 进入对应层级的复评
func routeAfterJudge(_ context.Context, st *state.State) (string, error) {
	target := state.Level4
	if st.PendingTarget != nil && st.PendingTarget.Valid() {
		target = *st.PendingTarget
	}
	return retriageNodeName(target), nil
}

// routeAfterRetriage 只有字面量 ask 进入追问，其余一律分类
func routeAfterRetriage(l state.Level) func(context.Context, *state.State) (string, error) {
	return func(_ context.Context, st *state.State) (string, error) {
		if st.ActionIsAsk() {
			return nodeAsk, nil
		}
		return classifyNodeName(l), nil
	}
}

// matchCandidate 只接受候选集内的原值；其余一律回退到首个候选
func matchCandidate(candidates []string, raw string) (string, bool) {
	for _, c := range candidates {
		if c == raw {
			return c, true
		}
	}
	return candidates[0], false
}

func sanitizeSpans(in []state.EvidenceSpan) []state.EvidenceSpan {
	out := make([]state.EvidenceSpan, 0, len(in))
	for _, s := range in {
		s.Quote = strings.TrimSpace(s.Quote)
		s.Interpretation = strings.TrimSpace(s.Interpretation)
		if s.Quote == "" && s.Interpretation == "" {
			continue
		}
		out = append(out, s)
		if len(out) == maxEvidenceSpans {
			break
		}
	}
	return out
}

func actionText(a *state.Action) string {
	if a == nil {
		return ""
	}
	return string(*a)
}
