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

package cycle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"

	"triage-platform/internal/triage/state"
	"triage-platform/internal/triage/store"
	pkgerrors "triage-platform/pkg/errors"
	"triage-platform/pkg/metrics"
	"triage-platform/pkg/tracing"
)

// Source 用户输入来源
const (
	SourceKeyboard = "keyboard"
	SourceSTT      = "stt"
)

// Executor 以会话为单位串行执行分诊 cycle，成功后整体提交
type Executor struct {
	rt           *Runtime
	store        store.Store
	graph        compose.Runnable[*state.State, *state.State]
	locks        *sessionLocks
	cycleTimeout time.Duration
	now          func() time.Time
}

// ExecutorOption 执行器选项
type ExecutorOption func(*Executor)

// WithCycleTimeout 整轮超时（含等待会话锁），<=0 不限制
func WithCycleTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.cycleTimeout = d }
}

// WithClock 替换时间源
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) { e.now = now }
}

// NewExecutor 编译分诊图并创建执行器；图编译一次，各会话复用
func NewExecutor(ctx context.Context, rt Runtime, st store.Store, opts ...ExecutorOption) (*Executor, error) {
	if err := rt.validate(); err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("cycle: store is required")
	}
	e := &Executor{rt: &rt, store: st, locks: newSessionLocks(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	g, err := buildGraph(ctx, e.rt)
	if err != nil {
		return nil, fmt.Errorf("cycle: 编译分诊图失败: %w", err)
	}
	e.graph = g
	return e, nil
}

// Runtime 返回执行器持有的运行时
func (e *Executor) Runtime() *Runtime { return e.rt }

// Initial 会话初始状态
func (e *Executor) Initial() *state.State {
	return state.Initial(e.rt.Level2Candidates())
}

// RunCycle 对会话执行一轮分诊：加载状态、写入本轮输入、走一条无环路径、原子提交。
// 任一 oracle 调用失败或超时时不提交，会话保持上一次提交的状态。
func (e *Executor) RunCycle(ctx context.Context, sessionID, text, source string) (*state.State, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "session id is required")
	}
	if source == "" {
		source = SourceKeyboard
	}
	if e.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cycleTimeout)
		defer cancel()
	}
	start := e.now()

	unlock, err := e.locks.Lock(ctx, sessionID)
	if err != nil {
		return nil, e.finish(sessionID, 0, start, classifyErr(ctx, fmt.Errorf("acquire session lock: %w", err)))
	}
	defer unlock()

	prev, err := e.store.Get(ctx, sessionID)
	if err != nil {
		if !pkgerrors.Is(err, pkgerrors.ErrNotFound) {
			return nil, e.finish(sessionID, 0, start, fmt.Errorf("load session: %w", err))
		}
		prev = e.Initial()
	}

	run := &cycleRun{id: uuid.NewString(), sessionID: sessionID, cycle: prev.Cycles + 1}
	ctx, span := tracing.StartCycleSpan(ctx, sessionID, run.cycle)
	ctx = withRun(ctx, run)

	in := state.Merge(prev, state.Patch{
		LatestInput: &text,
		Turns:       []state.Turn{{Role: state.RoleUser, Text: text, Source: source, At: start}},
	})

	out, err := e.graph.Invoke(ctx, in)
	if err != nil {
		if runErr := run.firstErr(); runErr != nil {
			err = runErr
		} else {
			err = classifyErr(ctx, fmt.Errorf("cycle graph: %w", err))
		}
		tracing.EndSpan(span, err)
		return nil, e.finish(sessionID, run.cycle, start, err)
	}

	out.Cycles = run.cycle
	out.UpdatedAt = e.now()
	if err := e.store.Commit(ctx, sessionID, out); err != nil {
		err = fmt.Errorf("commit session: %w", err)
		tracing.EndSpan(span, err)
		return nil, e.finish(sessionID, run.cycle, start, err)
	}
	tracing.EndSpan(span, nil)

	_ = e.finish(sessionID, run.cycle, start, nil)
	e.rt.Logger.Info("cycle committed",
		"session_id", sessionID,
		"cycle", run.cycle,
		"cycle_id", run.id,
		"target", levelText(out.PendingTarget),
		"action", actionText(out.PendingAction),
		"audit_entries", len(out.AuditLog)-len(prev.AuditLog),
		"duration", e.now().Sub(start))
	return out.Clone(), nil
}

// Reset 用初始状态替换会话状态
func (e *Executor) Reset(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "session id is required")
	}
	unlock, err := e.locks.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()
	if err := e.store.Commit(ctx, sessionID, e.Initial()); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	e.rt.Logger.Info("session reset", "session_id", sessionID)
	return nil
}

// finish 记录 cycle 指标；失败时记日志并原样返回 err
func (e *Executor) finish(sessionID string, cycle int, start time.Time, err error) error {
	outcome := "committed"
	switch {
	case err == nil:
	case pkgerrors.Is(err, pkgerrors.ErrCycleTimeout):
		outcome = "timeout"
	default:
		outcome = "failed"
	}
	metrics.CycleTotal.WithLabelValues(outcome).Inc()
	metrics.CycleDuration.WithLabelValues(outcome).Observe(e.now().Sub(start).Seconds())
	if err != nil {
		e.rt.Logger.Error("cycle aborted, nothing committed",
			"session_id", sessionID, "cycle", cycle, "outcome", outcome, "error", err)
	}
	return err
}

// cycleRun 单轮执行的上下文信息；节点错误登记在此，避免依赖图引擎的错误包装
type cycleRun struct {
	id        string
	sessionID string
	cycle     int

	mu  sync.Mutex
	err error
}

type runKey struct{}

func withRun(ctx context.Context, r *cycleRun) context.Context {
	return context.WithValue(ctx, runKey{}, r)
}

func runFrom(ctx context.Context) *cycleRun {
	if r, ok := ctx.Value(runKey{}).(*cycleRun); ok {
		return r
	}
	return &cycleRun{}
}

func (r *cycleRun) fail(err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
	return err
}

func (r *cycleRun) firstErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func levelText(l *state.Level) string {
	if l == nil {
		return ""
	}
	return string(*l)
}
