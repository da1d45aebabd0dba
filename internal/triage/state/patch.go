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

package state

// Patch 节点返回的局部更新。零值表示不修改任何字段。
type Patch struct {
	// Turns 追加到对话末尾
	Turns []Turn
	// LatestInput 非 nil 时覆盖
	LatestInput *string

	// Selections 中出现的 key 覆盖对应层级的选择，值为 nil 表示清空
	Selections map[Level]*string
	// Candidates 中出现的 key 整体替换对应层级的候选
	Candidates map[Level][]string

	// Target 非 nil 时覆盖 pending_target
	Target *Level
	// ClearAction 先清空 pending_action，Action 非 nil 时再覆盖
	ClearAction bool
	Action      *Action

	// ClearQuestions 先清空待提问队列，Questions 再追加
	ClearQuestions bool
	Questions      []string

	// LogEntries 追加到审计日志
	LogEntries []LogEntry

	// SetFinalSeverity 为 true 时用 FinalSeverity 覆盖（可为 nil）
	SetFinalSeverity bool
	FinalSeverity    *int

	// CurrentLevel 非 nil 时覆盖
	CurrentLevel *Level
}

// Empty 是否不产生任何修改
func (p Patch) Empty() bool {
	return len(p.Turns) == 0 && p.LatestInput == nil &&
		len(p.Selections) == 0 && len(p.Candidates) == 0 &&
		p.Target == nil && !p.ClearAction && p.Action == nil &&
		!p.ClearQuestions && len(p.Questions) == 0 &&
		len(p.LogEntries) == 0 && !p.SetFinalSeverity && p.CurrentLevel == nil
}

// Merge 将 patch 应用到 base 的副本上并返回；base 不被修改
func Merge(base *State, p Patch) *State {
	next := base.Clone()
	if next == nil {
		next = Initial(nil)
	}
	if len(p.Turns) > 0 {
		next.Conversation = append(next.Conversation, p.Turns...)
	}
	if p.LatestInput != nil {
		next.LatestInput = *p.LatestInput
	}
	for l, v := range p.Selections {
		next.setSelection(l, cloneString(v))
	}
	for l, v := range p.Candidates {
		next.setCandidates(l, cloneStrings(v))
	}
	if p.Target != nil {
		t := *p.Target
		next.PendingTarget = &t
	}
	if p.ClearAction {
		next.PendingAction = nil
	}
	if p.Action != nil {
		a := *p.Action
		next.PendingAction = &a
	}
	if p.ClearQuestions {
		next.PendingQuestions = []string{}
	}
	if len(p.Questions) > 0 {
		next.PendingQuestions = append(next.PendingQuestions, p.Questions...)
	}
	for _, e := range p.LogEntries {
		e.EvidenceSpans = append([]EvidenceSpan{}, e.EvidenceSpans...)
		next.AuditLog = append(next.AuditLog, e)
	}
	if p.SetFinalSeverity {
		if p.FinalSeverity == nil {
			next.FinalSeverity = nil
		} else {
			v := *p.FinalSeverity
			next.FinalSeverity = &v
		}
	}
	if p.CurrentLevel != nil {
		l := *p.CurrentLevel
		next.CurrentLevel = &l
	}
	return next
}
