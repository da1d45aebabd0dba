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
	"strings"

	"triage-platform/pkg/config"
)

// New 按配置创建存储；CacheSize > 0 时外包一层 LRU
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		cached, err := NewCachedStore(backend, cfg.CacheSize)
		if err != nil {
			_ = backend.Close()
			return nil, err
		}
		return cached, nil
	}
	return backend, nil
}

func newBackend(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		if cfg.Addr == "" {
			return nil, fmt.Errorf("store.addr is required for redis")
		}
		return NewRedisStore(ctx, RedisConfig{
			Addr:      cfg.Addr,
			Password:  cfg.Password,
			DB:        cfg.DB,
			KeyPrefix: cfg.KeyPrefix,
			TTL:       cfg.TTLDuration(),
		})
	case "postgres", "postgresql":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("store.dsn is required for postgres")
		}
		return NewPostgresStore(ctx, cfg.DSN)
	case "sqlite":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("store.dsn is required for sqlite")
		}
		return NewSQLiteStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}
