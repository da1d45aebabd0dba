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

package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"level2", Level2, true},
		{" Level3 ", Level3, true},
		{"stage4", Level4, true},
		{"4", Level4, true},
		{"level_3", Level3, true},
		{"level5", "", false},
		{"", "", false},
		{"broad", "", false},
	}
	for _, tc := range tests {
		got, ok := ParseLevel(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestLevelNavigation(t *testing.T) {
	assert.Equal(t, Level3, Level2.Next())
	assert.Equal(t, Level4, Level3.Next())
	assert.Equal(t, Level(""), Level4.Next())
	assert.Equal(t, 4, Level4.Depth())
	assert.False(t, Level("level9").Valid())
}

func TestParseActionAndConfidence(t *testing.T) {
	assert.Equal(t, ActionAsk, ParseAction(" ASK "))
	assert.Equal(t, ActionClassify, ParseAction("classify"))
	assert.Equal(t, ActionClassify, ParseAction("reclassify-maybe"))
	assert.Equal(t, ActionClassify, ParseAction(""))

	assert.Equal(t, ConfidenceHigh, ParseConfidence("High"))
	assert.Equal(t, ConfidenceMedium, ParseConfidence("moderate"))
	assert.Equal(t, ConfidenceLow, ParseConfidence("low"))
	assert.Equal(t, ConfidenceLow, ParseConfidence("certain-ish"))
}

func TestInitial(t *testing.T) {
	top := []string{"a", "b"}
	s := Initial(top)
	top[0] = "mutated"

	assert.Equal(t, []string{"a", "b"}, s.Level2Candidates)
	assert.Nil(t, s.Level2Selection)
	assert.Nil(t, s.FinalSeverity)
	assert.Empty(t, s.AuditLog)
	assert.NotNil(t, s.AuditLog)
	assert.Empty(t, s.PendingQuestions)
}

func TestMerge_AppendOnlyCollections(t *testing.T) {
	base := Initial([]string{"a"})
	base = Merge(base, Patch{
		Turns:      []Turn{{Role: RoleUser, Text: "one"}},
		Questions:  []string{"q1"},
		LogEntries: []LogEntry{{Level: Level2, Selection: "a"}},
	})
	next := Merge(base, Patch{
		Turns:      []Turn{{Role: RoleAssistant, Text: "two"}},
		Questions:  []string{"q2"},
		LogEntries: []LogEntry{{Level: Level3, Selection: "b"}},
	})

	require.Len(t, next.Conversation, 2)
	assert.Equal(t, "one", next.Conversation[0].Text)
	assert.Equal(t, "two", next.Conversation[1].Text)
	assert.Equal(t, []string{"q1", "q2"}, next.PendingQuestions)
	require.Len(t, next.AuditLog, 2)
	assert.Equal(t, Level3, next.AuditLog[1].Level)

	// base 未被修改
	assert.Len(t, base.Conversation, 1)
	assert.Len(t, base.AuditLog, 1)
}

func TestMerge_OverlayFields(t *testing.T) {
	sev := 2
	base := Merge(Initial([]string{"a"}), Patch{
		Selections:       map[Level]*string{Level2: Str("a"), Level3: Str("x")},
		Candidates:       map[Level][]string{Level3: {"x", "y"}},
		Action:           ptrAction(ActionAsk),
		SetFinalSeverity: true,
		FinalSeverity:    &sev,
	})
	assert.Equal(t, "a", base.SelectionText(Level2))
	assert.Equal(t, []string{"x", "y"}, base.Level3Candidates)
	assert.True(t, base.ActionIsAsk())
	require.NotNil(t, base.FinalSeverity)

	target := Level4
	next := Merge(base, Patch{
		Selections:       map[Level]*string{Level3: nil},
		Target:           &target,
		ClearAction:      true,
		ClearQuestions:   true,
		SetFinalSeverity: true,
	})
	assert.Nil(t, next.Level3Selection)
	assert.Equal(t, "a", next.SelectionText(Level2))
	assert.Nil(t, next.PendingAction)
	assert.Equal(t, Level4, *next.PendingTarget)
	assert.Nil(t, next.FinalSeverity)
	assert.Equal(t, 2, *base.FinalSeverity)
}

func TestMerge_ClearThenAppendQuestions(t *testing.T) {
	base := Merge(Initial(nil), Patch{Questions: []string{"old"}})
	next := Merge(base, Patch{ClearQuestions: true, Questions: []string{"new"}})
	assert.Equal(t, []string{"new"}, next.PendingQuestions)
}

func TestPatchEmpty(t *testing.T) {
	assert.True(t, Patch{}.Empty())
	assert.False(t, Patch{ClearAction: true}.Empty())
	assert.False(t, Patch{SetFinalSeverity: true}.Empty())
}

func TestClone_Independent(t *testing.T) {
	s := Merge(Initial([]string{"a"}), Patch{
		Selections: map[Level]*string{Level2: Str("a")},
		LogEntries: []LogEntry{{Level: Level2, Selection: "a", EvidenceSpans: []EvidenceSpan{{Quote: "q"}}}},
	})
	c := s.Clone()
	*c.Level2Selection = "changed"
	c.AuditLog[0].EvidenceSpans[0].Quote = "changed"
	c.Level2Candidates[0] = "changed"

	assert.Equal(t, "a", *s.Level2Selection)
	assert.Equal(t, "q", s.AuditLog[0].EvidenceSpans[0].Quote)
	assert.Equal(t, "a", s.Level2Candidates[0])
}

func TestJSONShape(t *testing.T) {
	b, err := json.Marshal(Initial([]string{"a"}))
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Nil(t, m["pending_action"])
	assert.Nil(t, m["final_severity"])
	assert.Equal(t, []any{"a"}, m["level2_candidates"])
	assert.Equal(t, []any{}, m["audit_log"])
}

func TestNormalize(t *testing.T) {
	s := (&State{}).Normalize()
	assert.NotNil(t, s.Conversation)
	assert.NotNil(t, s.AuditLog)
	assert.NotNil(t, s.Level4Candidates)
}

func TestNormalize_MatchesClone(t *testing.T) {
	s := Initial([]string{"a"})
	s.AuditLog = []LogEntry{{Level: Level2, Selection: "a"}}

	cloned, err := json.Marshal(s.Clone())
	require.NoError(t, err)
	normalized, err := json.Marshal(s.Normalize())
	require.NoError(t, err)
	assert.JSONEq(t, string(cloned), string(normalized))
	assert.Contains(t, string(normalized), `"evidence_spans":[]`)
}

func ptrAction(a Action) *Action { return &a }
