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

import (
	"strings"
)

// Level 分类层级
type Level string

const (
	Level2 Level = "level2"
	Level3 Level = "level3"
	Level4 Level = "level4"
)

// Levels 按深度排列
var Levels = []Level{Level2, Level3, Level4}

// Depth 返回 2/3/4，未知层级返回 0
func (l Level) Depth() int {
	switch l {
	case Level2:
		return 2
	case Level3:
		return 3
	case Level4:
		return 4
	}
	return 0
}

// Valid 是否为已知层级
func (l Level) Valid() bool { return l.Depth() != 0 }

// Next 下一层级，最深层返回 ""
func (l Level) Next() Level {
	switch l {
	case Level2:
		return Level3
	case Level3:
		return Level4
	}
	return ""
}

// ParseLevel 宽松解析 oracle 返回的层级：level3 / stage3 / 3 均可，大小写不敏感
func ParseLevel(s string) (Level, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "level")
	s = strings.TrimPrefix(s, "stage")
	s = strings.TrimSpace(strings.TrimLeft(s, "_- "))
	switch s {
	case "2":
		return Level2, true
	case "3":
		return Level3, true
	case "4":
		return Level4, true
	}
	return "", false
}

// Action retriage 的决定
type Action string

const (
	ActionAsk      Action = "ask"
	ActionClassify Action = "classify"
)

// ParseAction 仅字面 "ask" 视为提问，其余一律按 classify 处理
func ParseAction(s string) Action {
	if strings.EqualFold(strings.TrimSpace(s), string(ActionAsk)) {
		return ActionAsk
	}
	return ActionClassify
}

// Confidence 分类置信度
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence 无法识别的值按 low 处理
func ParseConfidence(s string) Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return ConfidenceHigh
	case "medium", "mid", "moderate":
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
