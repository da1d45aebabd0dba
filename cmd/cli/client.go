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
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"triage-platform/internal/triage/state"
)

const (
	defaultServer  = "http://localhost:8080"
	requestTimeout = time.Minute
)

func apiBaseURL() string {
	if u := os.Getenv("TRIAGE_API_URL"); u != "" {
		return u
	}
	return defaultServer
}

// client 分诊 HTTP API 客户端
type client struct {
	rc *resty.Client
}

func newClient(baseURL string) *client {
	if baseURL == "" {
		baseURL = apiBaseURL()
	}
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("Content-Type", "application/json")
	return &client{rc: rc}
}

type inputRequest struct {
	Text      string `json:"text"`
	Source    string `json:"source,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type inputResponse struct {
	SessionID string       `json:"session_id"`
	Message   string       `json:"message"`
	State     *state.State `json:"state"`
}

type resetResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type apiError struct {
	Error string `json:"error"`
}

func (c *client) submit(sessionID, text, source string) (*inputResponse, error) {
	var out inputResponse
	var apiErr apiError
	resp, err := c.rc.R().
		SetBody(inputRequest{Text: text, Source: source, SessionID: sessionID}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/api/triage/input")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, statusError("POST /api/triage/input", resp, apiErr)
	}
	return &out, nil
}

func (c *client) state(sessionID string) (*state.State, error) {
	var out state.State
	var apiErr apiError
	resp, err := c.rc.R().
		SetQueryParam("session_id", sessionID).
		SetResult(&out).
		SetError(&apiErr).
		Get("/api/triage/state")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, statusError("GET /api/triage/state", resp, apiErr)
	}
	return &out, nil
}

func (c *client) reset(sessionID string) (*resetResponse, error) {
	var out resetResponse
	var apiErr apiError
	resp, err := c.rc.R().
		SetQueryParam("session_id", sessionID).
		SetResult(&out).
		SetError(&apiErr).
		Post("/api/triage/reset")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, statusError("POST /api/triage/reset", resp, apiErr)
	}
	return &out, nil
}

func statusError(op string, resp *resty.Response, apiErr apiError) error {
	if apiErr.Error != "" {
		return fmt.Errorf("%s: %d %s", op, resp.StatusCode(), apiErr.Error)
	}
	return fmt.Errorf("%s: %d %s", op, resp.StatusCode(), resp.String())
}

func prettyJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
