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

// Package oracle 定义分类 oracle 的调用契约。
//
// oracle 返回的都是原始字符串，取值校验与回退由调用方（cycle 节点）负责，
// 因此实现可以如实返回模型输出而不必自行纠正。
package oracle

import (
	"context"

	"triage-platform/internal/triage/state"
)

// Context 每次调用共用的上下文
type Context struct {
	LatestInput string
	// Selections 各层当前选择，未分类为 ""
	Selections map[state.Level]string
	// History 最近的对话轮次（已截断）
	History []state.Turn
}

// JudgeRequest 判定需要重新评估的层级
type JudgeRequest struct {
	Context
}

// JudgeResult Target 原样返回，可能为空或非法
type JudgeResult struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// RetriageRequest 某一层级的 提问/重新分类 决定
type RetriageRequest struct {
	Context
	Level      state.Level
	Current    string
	Candidates []string
}

// RetriageResult Action 原样返回
type RetriageResult struct {
	Action    string   `json:"action"`
	Questions []string `json:"questions"`
	Reason    string   `json:"reason"`
}

// ClassifyRequest 在候选集内做分类
type ClassifyRequest struct {
	Context
	Level      state.Level
	Candidates []string
	// Deepest 最深层允许返回追问
	Deepest bool
}

// ClassifyResult Selection 可能不在候选集内
type ClassifyResult struct {
	Selection     string               `json:"selection"`
	Confidence    string               `json:"confidence"`
	EvidenceSpans []state.EvidenceSpan `json:"evidence_spans"`
	Reason        string               `json:"reason"`
	Questions     []string             `json:"questions"`
}

// Oracle 分类判断服务，实现需并发安全
type Oracle interface {
	Judge(ctx context.Context, req JudgeRequest) (*JudgeResult, error)
	Retriage(ctx context.Context, req RetriageRequest) (*RetriageResult, error)
	Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResult, error)
}
