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

package store

import (
	"context"
	"sync"

	"triage-platform/internal/triage/state"
	"triage-platform/pkg/errors"
)

// MemoryStore 进程内实现，读写均做深拷贝
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*state.State
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*state.State)}
}

// Get 实现 Store
func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*state.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "session %s", sessionID)
	}
	return st.Clone(), nil
}

// Commit 实现 Store
func (s *MemoryStore) Commit(ctx context.Context, sessionID string, st *state.State) error {
	if st == nil {
		return errors.Wrap(errors.ErrInvalidArg, "store: state is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = st.Clone()
	return nil
}

// Delete 实现 Store
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Len 当前会话数
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close 实现 Store
func (s *MemoryStore) Close() error { return nil }
