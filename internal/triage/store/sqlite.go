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
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"triage-platform/internal/triage/state"
	pkgerrors "triage-platform/pkg/errors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS triage_sessions (
	session_id  TEXT PRIMARY KEY,
	payload     TEXT NOT NULL,
	cycles      INTEGER NOT NULL DEFAULT 0,
	updated_at  TEXT NOT NULL
);
`

// SQLiteStore 单机持久化会话存储
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore 打开数据库并执行迁移
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// 单连接避免 SQLITE_BUSY，写入本就按会话串行
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get 实现 Store
func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*state.State, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM triage_sessions WHERE session_id = ?`, sessionID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "session %s", sessionID)
		}
		return nil, fmt.Errorf("query session: %w", err)
	}
	return decode([]byte(payload))
}

// Commit 实现 Store
func (s *SQLiteStore) Commit(ctx context.Context, sessionID string, st *state.State) error {
	payload, err := encode(st)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO triage_sessions (session_id, payload, cycles, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET payload = excluded.payload, cycles = excluded.cycles, updated_at = excluded.updated_at`,
		sessionID, string(payload), st.Cycles, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return tx.Commit()
}

// Delete 实现 Store
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM triage_sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close 实现 Store
func (s *SQLiteStore) Close() error { return s.db.Close() }
