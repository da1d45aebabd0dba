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

// Package taxonomy 提供三级分类树：按父路径给出下一级候选，按完整三元组给出严重度。
package taxonomy

import (
	"fmt"
	"strings"
)

// MaxDepth 分类树深度（level2 → level3 → level4）
const MaxDepth = 3

// Lookup 分类树只读查询，实现需并发安全
type Lookup interface {
	// ChildCandidates 按父路径返回下一层候选：空路径为 level2 列表，[l2] 为 level3，[l2,l3] 为 level4。
	// 路径未命中时返回空列表。
	ChildCandidates(path ...string) []string
	// FinalSeverity 完整三元组对应的严重度，无映射时 ok=false
	FinalSeverity(level2, level3, level4 string) (severity int, ok bool)
}

// Node 分类树节点
type Node struct {
	Name     string  `yaml:"name"`
	Severity *int    `yaml:"severity,omitempty"`
	Children []*Node `yaml:"children,omitempty"`
}

// Tree 内存分类树，构建后不再修改
type Tree struct {
	roots    []*Node
	children map[string][]string
	severity map[string]int
}

const pathSep = "\x1f"

func pathKey(path []string) string { return strings.Join(path, pathSep) }

// NewTree 校验并索引分类树
func NewTree(roots []*Node) (*Tree, error) {
	t := &Tree{
		roots:    roots,
		children: make(map[string][]string),
		severity: make(map[string]int),
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("taxonomy: 顶层分类为空")
	}
	if err := t.index(nil, roots); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) index(parent []string, nodes []*Node) error {
	depth := len(parent) + 1
	if depth > MaxDepth {
		return fmt.Errorf("taxonomy: %q 超出最大深度 %d", strings.Join(parent, " / "), MaxDepth)
	}
	seen := make(map[string]bool, len(nodes))
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		name := strings.TrimSpace(n.Name)
		if name == "" {
			return fmt.Errorf("taxonomy: %q 下存在空名称节点", strings.Join(parent, " / "))
		}
		if seen[name] {
			return fmt.Errorf("taxonomy: %q 下重复节点 %q", strings.Join(parent, " / "), name)
		}
		seen[name] = true
		n.Name = name
		names = append(names, name)

		path := append(append([]string{}, parent...), name)
		if n.Severity != nil {
			if depth != MaxDepth {
				return fmt.Errorf("taxonomy: 严重度只能配置在 level4 节点上: %q", strings.Join(path, " / "))
			}
			if *n.Severity <= 0 {
				return fmt.Errorf("taxonomy: %q 严重度必须为正整数", strings.Join(path, " / "))
			}
			t.severity[pathKey(path)] = *n.Severity
		}
		if len(n.Children) > 0 {
			if err := t.index(path, n.Children); err != nil {
				return err
			}
		}
	}
	t.children[pathKey(parent)] = names
	return nil
}

// ChildCandidates 实现 Lookup
func (t *Tree) ChildCandidates(path ...string) []string {
	for _, p := range path {
		if p == "" {
			return []string{}
		}
	}
	names, ok := t.children[pathKey(path)]
	if !ok {
		return []string{}
	}
	return append([]string{}, names...)
}

// FinalSeverity 实现 Lookup
func (t *Tree) FinalSeverity(level2, level3, level4 string) (int, bool) {
	v, ok := t.severity[pathKey([]string{level2, level3, level4})]
	return v, ok
}

// Roots 返回顶层节点（只读）
func (t *Tree) Roots() []*Node { return t.roots }

// Stats 分类树统计
type Stats struct {
	Level2   int
	Level3   int
	Level4   int
	Unmapped []string // 没有严重度映射的 level4 路径
}

// Stats 统计各层节点数与缺少严重度的叶子
func (t *Tree) Stats() Stats {
	var st Stats
	for _, l2 := range t.roots {
		st.Level2++
		for _, l3 := range l2.Children {
			st.Level3++
			for _, l4 := range l3.Children {
				st.Level4++
				if l4.Severity == nil {
					st.Unmapped = append(st.Unmapped, strings.Join([]string{l2.Name, l3.Name, l4.Name}, " / "))
				}
			}
		}
	}
	return st
}
