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
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"triage-platform/internal/triage/state"
	pkgerrors "triage-platform/pkg/errors"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS triage_sessions (
	session_id  TEXT PRIMARY KEY,
	payload     JSONB NOT NULL,
	cycles      INTEGER NOT NULL DEFAULT 0,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore 多实例共享的会话存储
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 连接 Postgres 并建表
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate triage_sessions: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Get 实现 Store
func (s *PostgresStore) Get(ctx context.Context, sessionID string) (*state.State, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM triage_sessions WHERE session_id = $1`, sessionID).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "session %s", sessionID)
		}
		return nil, err
	}
	return decode(payload)
}

// Commit 实现 Store
func (s *PostgresStore) Commit(ctx context.Context, sessionID string, st *state.State) error {
	payload, err := encode(st)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO triage_sessions (session_id, payload, cycles, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (session_id) DO UPDATE SET payload = $2, cycles = $3, updated_at = now()`,
		sessionID, payload, st.Cycles)
	return err
}

// Delete 实现 Store
func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM triage_sessions WHERE session_id = $1`, sessionID)
	return err
}

// Close 实现 Store
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
