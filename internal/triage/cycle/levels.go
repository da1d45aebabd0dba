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
	"triage-platform/internal/triage/state"
)

// levelSpec 层级描述符：复评与分类节点按它参数化，三层共用同一实现
type levelSpec struct {
	level state.Level
	// deepest 最深层：计算最终严重度，允许低置信度追问
	deepest bool
	// refresh 复评决定分类时按上层选择刷新本层候选（level2 候选会话内固定）
	refresh bool
	// fallbackQuestions oracle 决定追问却未给出问题时使用
	fallbackQuestions []string
}

var levelSpecs = []levelSpec{
	{
		level: state.Level2,
		fallbackQuestions: []string{
			"Can you describe the main symptom more specifically?",
			"When did the symptoms start?",
		},
	},
	{
		level:   state.Level3,
		refresh: true,
		fallbackQuestions: []string{
			"Where exactly is the problem, and what does it feel like?",
			"Has anything made it better or worse since it started?",
		},
	},
	{
		level:   state.Level4,
		deepest: true,
		refresh: true,
		fallbackQuestions: []string{
			"What are the current vital signs (blood pressure, pulse, temperature, SpO2)?",
			"How severe are the symptoms right now?",
		},
	},
}

func specFor(l state.Level) (levelSpec, bool) {
	for _, d := range levelSpecs {
		if d.level == l {
			return d, true
		}
	}
	return levelSpec{}, false
}

// parentPath 本层之上各层的选择；任一未选择时返回 false
func (d levelSpec) parentPath(st *state.State) ([]string, bool) {
	path := make([]string, 0, 2)
	for _, l := range state.Levels {
		if l == d.level {
			break
		}
		sel := st.Selection(l)
		if sel == nil || *sel == "" {
			return nil, false
		}
		path = append(path, *sel)
	}
	return path, true
}

// lookupCandidates 本层当前有效的候选：level2 取会话固定列表，其余按上层选择查表
func (d levelSpec) lookupCandidates(rt *Runtime, st *state.State) []string {
	if d.level == state.Level2 {
		return append([]string{}, st.Level2Candidates...)
	}
	path, ok := d.parentPath(st)
	if !ok {
		return []string{}
	}
	return rt.Taxonomy.ChildCandidates(path...)
}

// childCandidates 以 selection 作为本层选择时的下一层候选
func (d levelSpec) childCandidates(rt *Runtime, st *state.State, selection string) []string {
	path, ok := d.parentPath(st)
	if !ok {
		return []string{}
	}
	return rt.Taxonomy.ChildCandidates(append(path, selection)...)
}
