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

// Package triage 对外提供分诊会话操作：提交输入、查询状态、重置。
package triage

import (
	"context"
	"fmt"
	"strings"

	"triage-platform/internal/triage/cycle"
	"triage-platform/internal/triage/state"
	"triage-platform/internal/triage/store"
	"triage-platform/pkg/errors"
)

// Result 一轮提交的结果
type Result struct {
	SessionID string       `json:"session_id"`
	Message   string       `json:"message"`
	State     *state.State `json:"state"`
}

// Service 分诊会话服务
type Service struct {
	exec           *cycle.Executor
	store          store.Store
	defaultSession string
}

// NewService 创建服务；defaultSession 为空时使用 "default"
func NewService(exec *cycle.Executor, st store.Store, defaultSession string) *Service {
	if defaultSession == "" {
		defaultSession = "default"
	}
	return &Service{exec: exec, store: st, defaultSession: defaultSession}
}

// SessionID 规范化会话 id，空值使用默认会话
func (s *Service) SessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return s.defaultSession
	}
	return id
}

// Submit 对会话执行一轮分诊
func (s *Service) Submit(ctx context.Context, sessionID, text, source string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.Wrap(errors.ErrInvalidArg, "text is required")
	}
	switch source {
	case "", cycle.SourceKeyboard, cycle.SourceSTT:
	default:
		return nil, errors.Wrapf(errors.ErrInvalidArg, "unknown source %q", source)
	}
	id := s.SessionID(sessionID)
	st, err := s.exec.RunCycle(ctx, id, text, source)
	if err != nil {
		return nil, err
	}
	return &Result{SessionID: id, Message: Summarize(st), State: st}, nil
}

// GetState 返回会话状态；会话不存在时返回 errors.ErrNotFound
func (s *Service) GetState(ctx context.Context, sessionID string) (*state.State, error) {
	return s.store.Get(ctx, s.SessionID(sessionID))
}

// Reset 将会话恢复为初始状态
func (s *Service) Reset(ctx context.Context, sessionID string) (string, error) {
	id := s.SessionID(sessionID)
	if err := s.exec.Reset(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// Summarize 一行摘要：待追问优先，其次最深的已确定层级。
// 问题已由追问节点发出时返回该 assistant 消息。
func Summarize(st *state.State) string {
	if st == nil {
		return "cycle completed without classification"
	}
	if st.ActionIsAsk() {
		switch n := len(st.PendingQuestions); {
		case n == 1:
			return "1 follow-up question pending"
		case n > 1:
			return fmt.Sprintf("%d follow-up questions pending", n)
		}
		if k := len(st.Conversation); k > 0 && st.Conversation[k-1].Role == state.RoleAssistant {
			return st.Conversation[k-1].Text
		}
	}
	for i := len(state.Levels) - 1; i >= 0; i-- {
		l := state.Levels[i]
		if sel := st.SelectionText(l); sel != "" {
			return fmt.Sprintf("%s classified: %s", l, sel)
		}
	}
	return "cycle completed without classification"
}
