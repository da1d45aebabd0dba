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

// Package store 持久化每个会话的分诊状态，按 session id 整体替换。
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"triage-platform/internal/triage/state"
)

// Store 会话状态存储
type Store interface {
	// Get 返回状态副本；不存在时返回 errors.ErrNotFound
	Get(ctx context.Context, sessionID string) (*state.State, error)
	// Commit 原子替换会话状态
	Commit(ctx context.Context, sessionID string, st *state.State) error
	// Delete 删除会话，不存在时不报错
	Delete(ctx context.Context, sessionID string) error
	// Close 释放底层连接
	Close() error
}

func encode(st *state.State) ([]byte, error) {
	if st == nil {
		return nil, fmt.Errorf("store: state is nil")
	}
	return json.Marshal(st)
}

func decode(payload []byte) (*state.State, error) {
	var st state.State
	if err := json.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("store: 解析会话状态失败: %w", err)
	}
	return st.Normalize(), nil
}
