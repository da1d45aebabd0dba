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

package taxonomy

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// document YAML 文件结构
type document struct {
	Version    int     `yaml:"version"`
	Categories []*Node `yaml:"categories"`
}

// LoadFile 按扩展名加载：.yaml/.yml 为嵌套树，.csv 为 level2,level3,level4,severity 平表
func LoadFile(path string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开分类文件失败: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(f)
	case ".csv":
		return LoadCSV(f)
	default:
		return nil, fmt.Errorf("taxonomy: 不支持的文件类型 %q", filepath.Ext(path))
	}
}

// LoadYAML 解析嵌套 YAML 分类树
func LoadYAML(r io.Reader) (*Tree, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("taxonomy: 解析 YAML 失败: %w", err)
	}
	return NewTree(doc.Categories)
}

// LoadCSV 解析平表；首行若为表头（level2 列名）则跳过，候选顺序为首次出现顺序
func LoadCSV(r io.Reader) (*Tree, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("taxonomy: 解析 CSV 失败: %w", err)
	}

	var roots []*Node
	find := func(nodes *[]*Node, name string) *Node {
		for _, n := range *nodes {
			if n.Name == name {
				return n
			}
		}
		n := &Node{Name: name}
		*nodes = append(*nodes, n)
		return n
	}

	for i, rec := range records {
		if i == 0 && len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "level2") {
			continue
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("taxonomy: 第 %d 行列数不足", i+1)
		}
		l2, l3, l4 := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1]), strings.TrimSpace(rec[2])
		if l2 == "" || l3 == "" || l4 == "" {
			return nil, fmt.Errorf("taxonomy: 第 %d 行存在空分类", i+1)
		}
		n2 := find(&roots, l2)
		n3 := find(&n2.Children, l3)
		n4 := find(&n3.Children, l4)
		if len(rec) > 3 && strings.TrimSpace(rec[3]) != "" {
			sev, err := strconv.Atoi(strings.TrimSpace(rec[3]))
			if err != nil {
				return nil, fmt.Errorf("taxonomy: 第 %d 行严重度无效: %w", i+1, err)
			}
			n4.Severity = &sev
		}
	}
	return NewTree(roots)
}
