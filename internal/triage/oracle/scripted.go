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

package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Step 脚本中的一次应答；Err 非 nil 时返回错误，Delay 模拟耗时（受 ctx 取消）
type Step[T any] struct {
	Result *T
	Err    error
	Delay  time.Duration
}

// Scripted 按调用顺序返回预置结果的 Oracle，用于测试与离线演示
type Scripted struct {
	mu       sync.Mutex
	judge    []Step[JudgeResult]
	retriage []Step[RetriageResult]
	classify []Step[ClassifyResult]

	JudgeCalls    []JudgeRequest
	RetriageCalls []RetriageRequest
	ClassifyCalls []ClassifyRequest
}

// NewScripted 创建空脚本
func NewScripted() *Scripted { return &Scripted{} }

// OnJudge 追加 judge 应答
func (s *Scripted) OnJudge(target string) *Scripted {
	return s.AddJudge(Step[JudgeResult]{Result: &JudgeResult{Target: target}})
}

// OnRetriage 追加 retriage 应答
func (s *Scripted) OnRetriage(action string, questions ...string) *Scripted {
	return s.AddRetriage(Step[RetriageResult]{Result: &RetriageResult{Action: action, Questions: questions}})
}

// OnClassify 追加 classify 应答
func (s *Scripted) OnClassify(r ClassifyResult) *Scripted {
	return s.AddClassify(Step[ClassifyResult]{Result: &r})
}

// AddJudge 追加任意 judge 步骤
func (s *Scripted) AddJudge(step Step[JudgeResult]) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.judge = append(s.judge, step)
	return s
}

// AddRetriage 追加任意 retriage 步骤
func (s *Scripted) AddRetriage(step Step[RetriageResult]) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retriage = append(s.retriage, step)
	return s
}

// AddClassify 追加任意 classify 步骤
func (s *Scripted) AddClassify(step Step[ClassifyResult]) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classify = append(s.classify, step)
	return s
}

// Calls 已发生的调用总数
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.JudgeCalls) + len(s.RetriageCalls) + len(s.ClassifyCalls)
}

// Remaining 尚未消费的步骤数
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.judge) + len(s.retriage) + len(s.classify)
}

// Judge 实现 Oracle
func (s *Scripted) Judge(ctx context.Context, req JudgeRequest) (*JudgeResult, error) {
	s.mu.Lock()
	s.JudgeCalls = append(s.JudgeCalls, req)
	step, ok := pop(&s.judge)
	s.mu.Unlock()
	return play(ctx, "judge", step, ok)
}

// Retriage 实现 Oracle
func (s *Scripted) Retriage(ctx context.Context, req RetriageRequest) (*RetriageResult, error) {
	s.mu.Lock()
	s.RetriageCalls = append(s.RetriageCalls, req)
	step, ok := pop(&s.retriage)
	s.mu.Unlock()
	return play(ctx, "retriage", step, ok)
}

// Classify 实现 Oracle
func (s *Scripted) Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResult, error) {
	s.mu.Lock()
	s.ClassifyCalls = append(s.ClassifyCalls, req)
	step, ok := pop(&s.classify)
	s.mu.Unlock()
	return play(ctx, "classify", step, ok)
}

func pop[T any](q *[]Step[T]) (Step[T], bool) {
	if len(*q) == 0 {
		return Step[T]{}, false
	}
	step := (*q)[0]
	*q = (*q)[1:]
	return step, true
}

func play[T any](ctx context.Context, name string, step Step[T], ok bool) (*T, error) {
	if !ok {
		return nil, fmt.Errorf("scripted oracle: no %s step left", name)
	}
	if step.Delay > 0 {
		timer := time.NewTimer(step.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if step.Err != nil {
		return nil, step.Err
	}
	out := *step.Result
	return &out, nil
}
