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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"triage-platform/internal/triage/state"
	"triage-platform/pkg/config"
	"triage-platform/pkg/errors"
)

func sampleState() *state.State {
	st := state.Initial([]string{"Cardiovascular", "Respiratory"})
	st.LatestInput = "chest pain"
	st.Conversation = append(st.Conversation, state.Turn{Role: state.RoleUser, Text: "chest pain", Source: "keyboard"})
	st.Level2Selection = state.Str("Cardiovascular")
	st.Level3Candidates = []string{"Chest Pain", "Palpitations"}
	st.AuditLog = append(st.AuditLog, state.LogEntry{
		Level:         state.Level2,
		Selection:     "Cardiovascular",
		Confidence:    state.ConfidenceHigh,
		EvidenceSpans: []state.EvidenceSpan{{Quote: "chest pain", Interpretation: "cardiac symptom"}},
		Reason:        "explicit",
		Cycle:         1,
	})
	sev := 4
	st.FinalSeverity = &sev
	st.Cycles = 1
	st.UpdatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return st
}

func jsonOf(t *testing.T, st *state.State) string {
	t.Helper()
	b, err := json.Marshal(st)
	require.NoError(t, err)
	return string(b)
}

// runContract 所有后端共享的行为约束
func runContract(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("missing session is not found", func(t *testing.T) {
		_, err := s.Get(ctx, "nope")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
	})

	t.Run("commit then get round trips", func(t *testing.T) {
		want := sampleState()
		require.NoError(t, s.Commit(ctx, "s1", want))
		got, err := s.Get(ctx, "s1")
		require.NoError(t, err)
		assert.JSONEq(t, jsonOf(t, want), jsonOf(t, got))
	})

	t.Run("nil evidence spans read back as empty", func(t *testing.T) {
		in := state.Initial([]string{"Cardiovascular"})
		in.AuditLog = []state.LogEntry{{Level: state.Level2, Selection: "Cardiovascular", Confidence: state.ConfidenceHigh}}
		require.NoError(t, s.Commit(ctx, "spans", in))
		got, err := s.Get(ctx, "spans")
		require.NoError(t, err)
		require.Len(t, got.AuditLog, 1)
		assert.NotNil(t, got.AuditLog[0].EvidenceSpans)
		assert.Contains(t, jsonOf(t, got), `"evidence_spans":[]`)
	})

	t.Run("commit replaces whole state", func(t *testing.T) {
		require.NoError(t, s.Commit(ctx, "s2", sampleState()))
		next := state.Initial([]string{"Trauma"})
		require.NoError(t, s.Commit(ctx, "s2", next))
		got, err := s.Get(ctx, "s2")
		require.NoError(t, err)
		assert.Empty(t, got.AuditLog)
		assert.Nil(t, got.FinalSeverity)
		assert.Equal(t, []string{"Trauma"}, got.Level2Candidates)
	})

	t.Run("returned state is isolated", func(t *testing.T) {
		require.NoError(t, s.Commit(ctx, "s3", sampleState()))
		got, err := s.Get(ctx, "s3")
		require.NoError(t, err)
		got.AuditLog = append(got.AuditLog, state.LogEntry{Level: state.Level3})
		got.Level3Candidates[0] = "mutated"
		again, err := s.Get(ctx, "s3")
		require.NoError(t, err)
		assert.Len(t, again.AuditLog, 1)
		assert.Equal(t, "Chest Pain", again.Level3Candidates[0])
	})

	t.Run("delete removes and is idempotent", func(t *testing.T) {
		require.NoError(t, s.Commit(ctx, "s4", sampleState()))
		require.NoError(t, s.Delete(ctx, "s4"))
		require.NoError(t, s.Delete(ctx, "s4"))
		_, err := s.Get(ctx, "s4")
		assert.True(t, errors.Is(err, errors.ErrNotFound))
	})

	t.Run("distinct sessions commit concurrently", func(t *testing.T) {
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < 8; i++ {
			id := fmt.Sprintf("p%d", i)
			g.Go(func() error {
				st := sampleState()
				st.LatestInput = id
				return s.Commit(gctx, id, st)
			})
		}
		require.NoError(t, g.Wait())
		for i := 0; i < 8; i++ {
			id := fmt.Sprintf("p%d", i)
			got, err := s.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, id, got.LatestInput)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	runContract(t, s)
}

func TestMemoryStore_RejectsNil(t *testing.T) {
	s := NewMemoryStore()
	err := s.Commit(context.Background(), "x", nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidArg))
	assert.Equal(t, 0, s.Len())
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "triage.db"))
	require.NoError(t, err)
	defer s.Close()
	runContract(t, s)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triage.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Commit(context.Background(), "keep", sampleState()))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(context.Background(), "keep")
	require.NoError(t, err)
	assert.Equal(t, "chest pain", got.LatestInput)
}

func TestCachedStore(t *testing.T) {
	s, err := NewCachedStore(NewMemoryStore(), 4)
	require.NoError(t, err)
	defer s.Close()
	runContract(t, s)
}

// failingStore 提交总是失败
type failingStore struct{ *MemoryStore }

func (f failingStore) Commit(ctx context.Context, id string, st *state.State) error {
	return fmt.Errorf("disk full")
}

func TestCachedStore_CommitFailureDoesNotCache(t *testing.T) {
	backend := failingStore{NewMemoryStore()}
	s, err := NewCachedStore(backend, 4)
	require.NoError(t, err)

	require.Error(t, s.Commit(context.Background(), "x", sampleState()))
	_, err = s.Get(context.Background(), "x")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestCachedStore_InvalidSize(t *testing.T) {
	_, err := NewCachedStore(NewMemoryStore(), 0)
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TRIAGE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TRIAGE_TEST_REDIS_ADDR not set")
	}
	s, err := NewRedisStore(context.Background(), RedisConfig{
		Addr:      addr,
		KeyPrefix: fmt.Sprintf("triage:test:%d:", time.Now().UnixNano()),
		TTL:       time.Minute,
	})
	require.NoError(t, err)
	defer s.Close()
	runContract(t, s)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TRIAGE_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TRIAGE_TEST_PG_DSN not set")
	}
	s, err := NewPostgresStore(context.Background(), dsn)
	require.NoError(t, err)
	defer s.Close()
	for _, id := range []string{"s1", "s2", "s3", "s4", "p0", "p1", "p2", "p3", "p4", "p5", "p6", "p7"} {
		require.NoError(t, s.Delete(context.Background(), id))
	}
	runContract(t, s)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, config.StoreConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(ctx, config.StoreConfig{Type: "memory", CacheSize: 8})
	require.NoError(t, err)
	assert.IsType(t, &CachedStore{}, s)

	s, err = New(ctx, config.StoreConfig{Type: "sqlite", DSN: filepath.Join(t.TempDir(), "f.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = New(ctx, config.StoreConfig{Type: "redis"})
	assert.Error(t, err)
	_, err = New(ctx, config.StoreConfig{Type: "postgres"})
	assert.Error(t, err)
	_, err = New(ctx, config.StoreConfig{Type: "etcd"})
	assert.Error(t, err)
}
