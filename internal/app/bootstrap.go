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

package app

import (
	"context"
	"fmt"
	"time"

	"triage-platform/internal/triage"
	"triage-platform/internal/triage/cycle"
	"triage-platform/internal/triage/oracle"
	"triage-platform/internal/triage/store"
	"triage-platform/internal/triage/taxonomy"
	"triage-platform/pkg/config"
	"triage-platform/pkg/log"
	"triage-platform/pkg/secrets"
)

const defaultOracleTimeout = 20 * time.Second

// Bootstrap 统一初始化：配置 → 日志 → secrets → 分类树 → oracle → 存储 → 服务
type Bootstrap struct {
	Config   *config.Config
	Logger   *log.Logger
	Secrets  secrets.Store
	Taxonomy *taxonomy.Tree
	Store    store.Store
	Executor *cycle.Executor
	Service  *triage.Service
}

// BootstrapOption 覆盖部分组件，主要用于测试与离线运行
type BootstrapOption func(*bootstrapOptions)

type bootstrapOptions struct {
	oracle oracle.Oracle
}

// WithOracle 使用给定 oracle，跳过按配置创建 LLM 客户端
func WithOracle(o oracle.Oracle) BootstrapOption {
	return func(b *bootstrapOptions) { b.oracle = o }
}

// NewBootstrap 根据配置创建 Bootstrap
func NewBootstrap(ctx context.Context, cfg *config.Config, opts ...BootstrapOption) (*Bootstrap, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	var o bootstrapOptions
	for _, opt := range opts {
		opt(&o)
	}

	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志failed: %w", err)
	}

	sec, err := secrets.NewStore(secrets.Config{
		Provider: cfg.Secrets.Provider,
		Vault: secrets.VaultConfig{
			Address:    cfg.Secrets.Vault.Address,
			Token:      cfg.Secrets.Vault.Token,
			PathPrefix: cfg.Secrets.Vault.PathPrefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 secrets failed: %w", err)
	}

	tree, err := taxonomy.LoadFile(cfg.Triage.TaxonomyFile)
	if err != nil {
		return nil, fmt.Errorf("加载分类树failed: %w", err)
	}
	stats := tree.Stats()
	logger.Info("分类树已加载", "file", cfg.Triage.TaxonomyFile,
		"level2", stats.Level2, "level3", stats.Level3, "level4", stats.Level4, "unmapped", stats.Unmapped)

	orc := o.oracle
	if orc == nil {
		orc, err = NewOracleFromConfig(ctx, cfg, sec)
		if err != nil {
			return nil, fmt.Errorf("初始化 oracle failed: %w", err)
		}
	}

	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("初始化会话存储failed: %w", err)
	}

	oracleTimeout := config.ParseDuration(cfg.Triage.OracleTimeout, defaultOracleTimeout)
	exec, err := cycle.NewExecutor(ctx, cycle.Runtime{
		Oracle:        orc,
		Taxonomy:      tree,
		Logger:        logger,
		OracleTimeout: oracleTimeout,
		HistoryTurns:  cfg.Triage.HistoryTurns,
		DeepestAsk:    cfg.Triage.DeepestAsk(),
	}, st, cycle.WithCycleTimeout(config.ParseDuration(cfg.Triage.CycleTimeout, 5*oracleTimeout)))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &Bootstrap{
		Config:   cfg,
		Logger:   logger,
		Secrets:  sec,
		Taxonomy: tree,
		Store:    st,
		Executor: exec,
		Service:  triage.NewService(exec, st, cfg.Triage.DefaultSession),
	}, nil
}

// Close 释放存储连接
func (b *Bootstrap) Close() error {
	if b.Store != nil {
		return b.Store.Close()
	}
	return nil
}
