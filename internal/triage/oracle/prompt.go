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
	"fmt"
	"strings"

	"triage-platform/internal/triage/state"
)

const unclassified = "unclassified"

var levelNames = map[state.Level]string{
	state.Level2: "level2 (broad category)",
	state.Level3: "level3 (subtype)",
	state.Level4: "level4 (specific condition)",
}

func selectionsBlock(c Context) string {
	var b strings.Builder
	for _, l := range state.Levels {
		v := c.Selections[l]
		if v == "" {
			v = unclassified
		}
		fmt.Fprintf(&b, "- %s: %s\n", levelNames[l], v)
	}
	return b.String()
}

func candidatesBlock(candidates []string) string {
	if len(candidates) == 0 {
		return "(no candidates)\n"
	}
	var b strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	return b.String()
}

func historyBlock(turns []state.Turn) string {
	if len(turns) == 0 {
		return "(none)\n"
	}
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "[%s] %s\n", t.Role, t.Text)
	}
	return b.String()
}

const judgeSystem = `You are a triage classification assistant working on a fixed three-level taxonomy.
New information about the subject has arrived. Decide which taxonomy level must be re-evaluated.

Current classification:
%s
Rules:
- "level2" if the new information changes the broad category.
- "level3" if the broad category holds but the subtype may change.
- "level4" if only the specific condition needs refinement.
- When nothing is classified yet, choose "level2".

Return JSON: {"target": "level2|level3|level4", "reason": "<one sentence>"}`

const retriageSystem = `You are a triage classification assistant re-examining %s.

Current classification:
%s
Candidates for this level:
%s
Decide one action:
- "ask": the information is insufficient to choose among the candidates. Provide 1 to 3 specific clarifying questions.
- "classify": there is enough information to choose a candidate. Provide no questions.

Return JSON: {"action": "ask|classify", "questions": ["..."], "reason": "<one or two sentences>"}`

const classifySystem = `You are a triage classification assistant selecting %s.

Current classification:
%s
Candidates (choose exactly one, copied verbatim):
%s
Recent conversation:
%s
Cite up to 3 evidence spans: a short verbatim quote from the subject's statements and how you interpreted it.
Confidence must be one of "high", "medium", "low".%s

Return JSON: {"selection": "<candidate>", "confidence": "high|medium|low", "evidence_spans": [{"quote": "...", "interpretation": "..."}], "reason": "<one or two sentences>"%s}`

const deepestHint = `
If confidence is "low" because a specific clinical detail is missing, add 1 to 3 follow-up questions.`

func judgeMessages(req JudgeRequest) []promptMessage {
	return []promptMessage{
		{role: "system", content: fmt.Sprintf(judgeSystem, selectionsBlock(req.Context))},
		{role: "user", content: req.LatestInput},
	}
}

func retriageMessages(req RetriageRequest) []promptMessage {
	return []promptMessage{
		{role: "system", content: fmt.Sprintf(retriageSystem,
			levelNames[req.Level], selectionsBlock(req.Context), candidatesBlock(req.Candidates))},
		{role: "user", content: req.LatestInput},
	}
}

func classifyMessages(req ClassifyRequest) []promptMessage {
	hint, field := "", ""
	if req.Deepest {
		hint, field = deepestHint, `, "questions": ["..."]`
	}
	return []promptMessage{
		{role: "system", content: fmt.Sprintf(classifySystem,
			levelNames[req.Level], selectionsBlock(req.Context), candidatesBlock(req.Candidates),
			historyBlock(req.History), hint, field)},
		{role: "user", content: req.LatestInput},
	}
}

type promptMessage struct {
	role    string
	content string
}
