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

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triage-platform/internal/triage/state"
)

// fakeAPI 记录请求并返回固定响应
type fakeAPI struct {
	mu      sync.Mutex
	inputs  []inputRequest
	resets  []string
	fail    bool
	missing bool
}

func (f *fakeAPI) recorded() ([]inputRequest, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]inputRequest(nil), f.inputs...), append([]string(nil), f.resets...)
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("/api/triage/input", func(w http.ResponseWriter, r *http.Request) {
		var req inputRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
			return
		}
		f.mu.Lock()
		f.inputs = append(f.inputs, req)
		fail := f.fail
		f.mu.Unlock()
		if fail {
			writeJSON(w, http.StatusBadGateway, apiError{Error: "oracle call failed"})
			return
		}
		st := state.Initial(nil)
		sev := 2
		st.FinalSeverity = &sev
		st.Conversation = append(st.Conversation,
			state.Turn{Role: state.RoleUser, Text: req.Text},
			state.Turn{Role: state.RoleAssistant, Text: "Please confirm: when did it start?"},
		)
		writeJSON(w, http.StatusOK, inputResponse{SessionID: req.SessionID, Message: "1 follow-up question(s) pending", State: st})
	})
	mux.HandleFunc("/api/triage/state", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		missing := f.missing
		f.mu.Unlock()
		if missing {
			writeJSON(w, http.StatusNotFound, apiError{Error: "session not found"})
			return
		}
		st := state.Initial(nil)
		st.Cycles = 3
		writeJSON(w, http.StatusOK, st)
	})
	mux.HandleFunc("/api/triage/reset", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("session_id")
		f.mu.Lock()
		f.resets = append(f.resets, id)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, resetResponse{SessionID: id, Message: "session " + id + " reset"})
	})
	return mux
}

func newFakeServer(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return f, srv
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestChat_SubmitsEachLine(t *testing.T) {
	f, srv := newFakeServer(t)

	out, err := execute(t, "chest pain since this morning\n\n/reset\n/quit\nignored\n",
		"chat", "--server", srv.URL, "--session", "s1")
	require.NoError(t, err)

	inputs, resets := f.recorded()
	require.Len(t, inputs, 1)
	assert.Equal(t, "s1", inputs[0].SessionID)
	assert.Equal(t, "keyboard", inputs[0].Source)
	assert.Equal(t, "chest pain since this morning", inputs[0].Text)
	assert.Equal(t, []string{"s1"}, resets)

	assert.Contains(t, out, "session s1")
	assert.Contains(t, out, "Please confirm: when did it start?")
	assert.Contains(t, out, "1 follow-up question(s) pending")
	assert.Contains(t, out, "severity: 2")
	assert.Contains(t, out, "session s1 reset")
}

func TestChat_RandomSessionAndErrorsContinue(t *testing.T) {
	f, srv := newFakeServer(t)
	f.mu.Lock()
	f.fail = true
	f.mu.Unlock()

	out, err := execute(t, "first\nsecond\n", "chat", "--server", srv.URL, "--source", "stt")
	require.NoError(t, err)

	inputs, _ := f.recorded()
	require.Len(t, inputs, 2)
	assert.NotEmpty(t, inputs[0].SessionID)
	assert.Equal(t, inputs[0].SessionID, inputs[1].SessionID)
	assert.Equal(t, "stt", inputs[1].Source)
	assert.Equal(t, 2, strings.Count(out, "oracle call failed"))
}

func TestStateCommand(t *testing.T) {
	f, srv := newFakeServer(t)

	out, err := execute(t, "", "state", "--server", srv.URL, "--session", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, `"cycles": 3`)

	f.mu.Lock()
	f.missing = true
	f.mu.Unlock()
	_, err = execute(t, "", "state", "--server", srv.URL, "--session", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "session not found")
}

func TestResetCommand(t *testing.T) {
	f, srv := newFakeServer(t)

	out, err := execute(t, "", "reset", "--server", srv.URL, "--session", "abc")
	require.NoError(t, err)
	assert.Equal(t, "session abc reset\n", out)
	_, resets := f.recorded()
	assert.Equal(t, []string{"abc"}, resets)
}

func TestTaxonomyValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tax.csv")
	csv := "level2,level3,level4,severity\n" +
		"Cardiovascular,Chest Pain,Severe Chest Pain,2\n" +
		"Cardiovascular,Chest Pain,Mild Chest Pain,4\n" +
		"Respiratory,Shortness Of Breath,Mild Dyspnea,\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	out, err := execute(t, "", "taxonomy", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "level2: 2")
	assert.Contains(t, out, "level3: 2")
	assert.Contains(t, out, "level4: 3")
	assert.Contains(t, out, "unmapped leaves: 1")
	assert.Contains(t, out, "Respiratory / Shortness Of Breath / Mild Dyspnea")
}

func TestTaxonomyValidate_ShippedFile(t *testing.T) {
	out, err := execute(t, "", "taxonomy", "validate", "../../configs/taxonomy.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "all leaves have a severity")
}

func TestTaxonomyValidate_Errors(t *testing.T) {
	_, err := execute(t, "", "taxonomy", "validate")
	require.Error(t, err)

	_, err = execute(t, "", "taxonomy", "validate", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "triage dev\n", out)
}
