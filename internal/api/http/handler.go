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

package http

import (
	"bytes"
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"triage-platform/internal/triage"
	"triage-platform/pkg/errors"
	"triage-platform/pkg/metrics"
)

// Handler HTTP 处理器
type Handler struct {
	svc       *triage.Service
	startedAt time.Time
}

// NewHandler 创建新的处理器
func NewHandler(svc *triage.Service) *Handler {
	return &Handler{svc: svc, startedAt: time.Now()}
}

// InputRequest POST /api/triage/input 请求体
type InputRequest struct {
	Text      string `json:"text"`
	Source    string `json:"source,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// ResetResponse 重置结果
type ResetResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]interface{}{
		"status": "ok",
		"ready":  h.svc != nil,
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// SubmitInput 提交一段输入并执行一轮分诊
// POST /api/triage/input
func (h *Handler) SubmitInput(c context.Context, ctx *app.RequestContext) {
	if h.svc == nil {
		writeError(c, ctx, errors.Wrap(errors.ErrServiceUnavailable, "triage service is not configured"))
		return
	}
	var req InputRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{
			"error": "invalid request body: " + err.Error(),
		})
		return
	}
	res, err := h.svc.Submit(c, req.SessionID, req.Text, req.Source)
	if err != nil {
		writeError(c, ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, res)
}

// GetState 查询会话状态
// GET /api/triage/state?session_id=
func (h *Handler) GetState(c context.Context, ctx *app.RequestContext) {
	if h.svc == nil {
		writeError(c, ctx, errors.Wrap(errors.ErrServiceUnavailable, "triage service is not configured"))
		return
	}
	st, err := h.svc.GetState(c, ctx.Query("session_id"))
	if err != nil {
		writeError(c, ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, st)
}

// ResetSession 重置会话
// POST /api/triage/reset?session_id=
func (h *Handler) ResetSession(c context.Context, ctx *app.RequestContext) {
	if h.svc == nil {
		writeError(c, ctx, errors.Wrap(errors.ErrServiceUnavailable, "triage service is not configured"))
		return
	}
	id, err := h.svc.Reset(c, ctx.Query("session_id"))
	if err != nil {
		writeError(c, ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, ResetResponse{SessionID: id, Message: "session " + id + " reset"})
}

// Metrics Prometheus 文本格式
// GET /api/metrics
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		hlog.CtxErrorf(c, "failed to gather metrics: %v", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// writeError 按错误类别映射状态码
func writeError(c context.Context, ctx *app.RequestContext, err error) {
	status := statusFor(err)
	if status >= consts.StatusInternalServerError {
		hlog.CtxErrorf(c, "%s %s failed: %v", ctx.Method(), ctx.Path(), err)
	}
	ctx.JSON(status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrInvalidArg):
		return consts.StatusBadRequest
	case errors.Is(err, errors.ErrNotFound):
		return consts.StatusNotFound
	case errors.Is(err, errors.ErrCycleTimeout):
		return consts.StatusGatewayTimeout
	case errors.Is(err, errors.ErrOracle):
		return consts.StatusBadGateway
	case errors.Is(err, errors.ErrServiceUnavailable):
		return consts.StatusServiceUnavailable
	default:
		return consts.StatusInternalServerError
	}
}
