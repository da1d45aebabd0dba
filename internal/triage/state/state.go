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

// Package state 定义单个会话的分诊状态及其合并规则。
//
// 节点不直接修改 State，而是返回 Patch，由 Merge 生成新的 State：
// 对话与审计日志只追加，其余字段按 Patch 覆盖。
package state

import (
	"time"
)

// Role 对话角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn 对话中的一轮
type Turn struct {
	Role   string    `json:"role"`
	Text   string    `json:"text"`
	Source string    `json:"source,omitempty"` // keyboard | stt，仅用户输入
	At     time.Time `json:"at"`
}

// EvidenceSpan 引用原文及其解读
type EvidenceSpan struct {
	Quote          string `json:"quote"`
	Interpretation string `json:"interpretation"`
}

// LogEntry 一次分类决定的审计记录，写入后不可修改
type LogEntry struct {
	Level         Level          `json:"level"`
	Selection     string         `json:"selection"`
	Confidence    Confidence     `json:"confidence"`
	EvidenceSpans []EvidenceSpan `json:"evidence_spans"`
	Reason        string         `json:"reason"`
	Cycle         int            `json:"cycle"`
}

// State 单个会话的完整状态
type State struct {
	Conversation []Turn `json:"conversation"`
	LatestInput  string `json:"latest_input"`

	Level2Selection *string `json:"level2_selection"`
	Level3Selection *string `json:"level3_selection"`
	Level4Selection *string `json:"level4_selection"`

	Level2Candidates []string `json:"level2_candidates"`
	Level3Candidates []string `json:"level3_candidates"`
	Level4Candidates []string `json:"level4_candidates"`

	PendingTarget    *Level   `json:"pending_target"`
	PendingAction    *Action  `json:"pending_action"`
	PendingQuestions []string `json:"pending_questions"`

	AuditLog      []LogEntry `json:"audit_log"`
	FinalSeverity *int       `json:"final_severity"`
	CurrentLevel  *Level     `json:"current_level"`

	Cycles    int       `json:"cycles"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Initial 会话初始状态：所有选择为空，level2 候选为固定顶层列表
func Initial(level2Candidates []string) *State {
	return &State{
		Conversation:     []Turn{},
		Level2Candidates: cloneStrings(level2Candidates),
		Level3Candidates: []string{},
		Level4Candidates: []string{},
		PendingQuestions: []string{},
		AuditLog:         []LogEntry{},
	}
}

// Selection 返回指定层级的选择，未选择时为 nil
func (s *State) Selection(l Level) *string {
	switch l {
	case Level2:
		return s.Level2Selection
	case Level3:
		return s.Level3Selection
	case Level4:
		return s.Level4Selection
	}
	return nil
}

// SelectionText 未选择时返回 ""
func (s *State) SelectionText(l Level) string {
	if p := s.Selection(l); p != nil {
		return *p
	}
	return ""
}

// Candidates 返回指定层级当前生效的候选列表
func (s *State) Candidates(l Level) []string {
	switch l {
	case Level2:
		return s.Level2Candidates
	case Level3:
		return s.Level3Candidates
	case Level4:
		return s.Level4Candidates
	}
	return nil
}

func (s *State) setSelection(l Level, v *string) {
	switch l {
	case Level2:
		s.Level2Selection = v
	case Level3:
		s.Level3Selection = v
	case Level4:
		s.Level4Selection = v
	}
}

func (s *State) setCandidates(l Level, v []string) {
	switch l {
	case Level2:
		s.Level2Candidates = v
	case Level3:
		s.Level3Candidates = v
	case Level4:
		s.Level4Candidates = v
	}
}

// ActionIsAsk 当前待执行动作是否为提问
func (s *State) ActionIsAsk() bool {
	return s.PendingAction != nil && *s.PendingAction == ActionAsk
}

// Clone 深拷贝，存储层与执行器据此隔离调用方
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Conversation = append([]Turn{}, s.Conversation...)
	c.Level2Selection = cloneString(s.Level2Selection)
	c.Level3Selection = cloneString(s.Level3Selection)
	c.Level4Selection = cloneString(s.Level4Selection)
	c.Level2Candidates = cloneStrings(s.Level2Candidates)
	c.Level3Candidates = cloneStrings(s.Level3Candidates)
	c.Level4Candidates = cloneStrings(s.Level4Candidates)
	if s.PendingTarget != nil {
		t := *s.PendingTarget
		c.PendingTarget = &t
	}
	if s.PendingAction != nil {
		a := *s.PendingAction
		c.PendingAction = &a
	}
	c.PendingQuestions = cloneStrings(s.PendingQuestions)
	c.AuditLog = make([]LogEntry, len(s.AuditLog))
	for i, e := range s.AuditLog {
		e.EvidenceSpans = append([]EvidenceSpan{}, e.EvidenceSpans...)
		c.AuditLog[i] = e
	}
	if s.FinalSeverity != nil {
		v := *s.FinalSeverity
		c.FinalSeverity = &v
	}
	if s.CurrentLevel != nil {
		l := *s.CurrentLevel
		c.CurrentLevel = &l
	}
	return &c
}

// Normalize 将 nil 切片（含审计条目的证据片段）替换为空切片，与 Clone 的结果一致
func (s *State) Normalize() *State {
	if s.Conversation == nil {
		s.Conversation = []Turn{}
	}
	if s.Level2Candidates == nil {
		s.Level2Candidates = []string{}
	}
	if s.Level3Candidates == nil {
		s.Level3Candidates = []string{}
	}
	if s.Level4Candidates == nil {
		s.Level4Candidates = []string{}
	}
	if s.PendingQuestions == nil {
		s.PendingQuestions = []string{}
	}
	if s.AuditLog == nil {
		s.AuditLog = []LogEntry{}
	}
	for i := range s.AuditLog {
		if s.AuditLog[i].EvidenceSpans == nil {
			s.AuditLog[i].EvidenceSpans = []EvidenceSpan{}
		}
	}
	return s
}

// Str 返回字符串指针
func Str(s string) *string { return &s }

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return append([]string{}, in...)
}
