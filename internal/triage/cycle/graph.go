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

	"github.com/cloudwego/eino/compose"

	"triage-platform/internal/triage/state"
)

const (
	graphName = "triage_cycle"
	// 最长路径 judge → retriage → classify×3，再留出余量
	maxRunSteps = 10
)

// buildGraph 组装单轮分诊图：
//
//	START → retriage_judge ─┬→ retriage_levelK ─┬→ ask_question → END
//	                        │                   └→ classify_levelK → … → classify_level4 → END
//
// 图无环，每轮最多 5 次 oracle 调用。
func buildGraph(ctx context.Context, rt *Runtime) (compose.Runnable[*state.State, *state.State], error) {
	g := compose.NewGraph[*state.State, *state.State]()

	addNode := func(name string, level state.Level, fn patchFunc) error {
		if err := g.AddLambdaNode(name, compose.InvokableLambda(rt.lambda(name, level, fn))); err != nil {
			return fmt.Errorf("cycle: 添加节点 %s 失败: %w", name, err)
		}
		return nil
	}
	addEdge := func(from, to string) error {
		if err := g.AddEdge(from, to); err != nil {
			return fmt.Errorf("cycle: 添加边 %s->%s 失败: %w", from, to, err)
		}
		return nil
	}

	if err := addNode(nodeJudge, "", rt.judge); err != nil {
		return nil, err
	}
	if err := addNode(nodeAsk, "", rt.ask); err != nil {
		return nil, err
	}
	for _, d := range levelSpecs {
		if err := addNode(retriageNodeName(d.level), d.level, rt.retriage(d)); err != nil {
			return nil, err
		}
		if err := addNode(classifyNodeName(d.level), d.level, rt.classify(d)); err != nil {
			return nil, err
		}
	}

	if err := addEdge(compose.START, nodeJudge); err != nil {
		return nil, err
	}

	judgeTargets := make(map[string]bool, len(levelSpecs))
	for _, d := range levelSpecs {
		judgeTargets[retriageNodeName(d.level)] = true
	}
	if err := g.AddBranch(nodeJudge, compose.NewGraphBranch(routeAfterJudge, judgeTargets)); err != nil {
		return nil, fmt.Errorf("cycle: 添加 judge 分支失败: %w", err)
	}

	for _, d := range levelSpecs {
		ends := map[string]bool{nodeAsk: true, classifyNodeName(d.level): true}
		if err := g.AddBranch(retriageNodeName(d.level), compose.NewGraphBranch(routeAfterRetriage(d.level), ends)); err != nil {
			return nil, fmt.Errorf("cycle: 添加 %s 分支失败: %w", retriageNodeName(d.level), err)
		}
		next := compose.END
		if !d.deepest {
			next = classifyNodeName(d.level.Next())
		}
		if err := addEdge(classifyNodeName(d.level), next); err != nil {
			return nil, err
		}
	}

	if err := addEdge(nodeAsk, compose.END); err != nil {
		return nil, err
	}

	return g.Compile(ctx, compose.WithGraphName(graphName), compose.WithMaxRunSteps(maxRunSteps))
}
