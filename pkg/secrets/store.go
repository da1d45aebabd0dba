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

// Secret management abstraction

package secrets

import (
	"context"
	"fmt"

	"triage-platform/pkg/errors"
)

// Store Secret 存储接口，用于解析 oracle 提供商的 API Key
type Store interface {
	// Get 获取 secret 值，不存在时返回 errors.ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set 设置 secret 值
	Set(ctx context.Context, key string, value string) error

	// Delete 删除 secret
	Delete(ctx context.Context, key string) error
}

// Config Secret Store 配置
type Config struct {
	Provider string      // vault | env | memory
	Vault    VaultConfig // provider=vault 时使用
}

// NewStore 创建 Secret Store
func NewStore(config Config) (Store, error) {
	switch config.Provider {
	case "", "env":
		return NewEnvStore(), nil
	case "memory":
		return NewMemoryStore(), nil
	case "vault":
		return NewVaultStore(config.Vault)
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", config.Provider)
	}
}

// Resolve 明文优先；明文为空且 ref 非空时从 store 读取
func Resolve(ctx context.Context, store Store, plain, ref string) (string, error) {
	if plain != "" || ref == "" {
		return plain, nil
	}
	if store == nil {
		return "", fmt.Errorf("secret %q: %w", ref, errors.ErrNotFound)
	}
	return store.Get(ctx, ref)
}
