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
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"triage-platform/internal/triage/state"
)

// CachedStore 在任意后端前加 LRU：读穿透、写直达。
// 仅适用于单实例部署，多实例共享后端时各实例缓存会相互过期。
type CachedStore struct {
	backend Store
	cache   *lru.Cache[string, *state.State]
}

// NewCachedStore 创建带 LRU 的存储，size 必须为正
func NewCachedStore(backend Store, size int) (*CachedStore, error) {
	cache, err := lru.New[string, *state.State](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &CachedStore{backend: backend, cache: cache}, nil
}

// Get 实现 Store
func (s *CachedStore) Get(ctx context.Context, sessionID string) (*state.State, error) {
	if st, ok := s.cache.Get(sessionID); ok {
		return st.Clone(), nil
	}
	st, err := s.backend.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.cache.Add(sessionID, st.Clone())
	return st, nil
}

// Commit 实现 Store；后端失败时淘汰缓存项，避免缓存领先于持久化
func (s *CachedStore) Commit(ctx context.Context, sessionID string, st *state.State) error {
	if err := s.backend.Commit(ctx, sessionID, st); err != nil {
		s.cache.Remove(sessionID)
		return err
	}
	s.cache.Add(sessionID, st.Clone())
	return nil
}

// Delete 实现 Store
func (s *CachedStore) Delete(ctx context.Context, sessionID string) error {
	s.cache.Remove(sessionID)
	return s.backend.Delete(ctx, sessionID)
}

// Close 实现 Store
func (s *CachedStore) Close() error {
	s.cache.Purge()
	return s.backend.Close()
}
