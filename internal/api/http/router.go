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
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"triage-platform/internal/api/http/middleware"
)

// Router 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
	metrics    bool
}

// NewRouter 创建新的路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	if mw == nil {
		mw = middleware.NewMiddleware(middleware.Config{})
	}
	return &Router{handler: handler, middleware: mw, metrics: true}
}

// SetMetricsEnabled 是否暴露 /api/metrics
func (r *Router) SetMetricsEnabled(enabled bool) {
	r.metrics = enabled
}

// Build 创建 Hertz 服务并注册路由；opts 追加在监听地址之后（如 tracer）
func (r *Router) Build(addr string, opts ...hertzconfig.Option) *server.Hertz {
	h := server.Default(append([]hertzconfig.Option{server.WithHostPorts(addr)}, opts...)...)
	r.Register(h)
	return h
}

// Register 在已有 Hertz 实例上注册路由
func (r *Router) Register(h *server.Hertz) {
	h.Use(r.middleware.Logger(), r.middleware.CORS())

	api := h.Group("/api")
	api.GET("/health", r.handler.HealthCheck)
	if r.metrics {
		api.GET("/metrics", r.handler.Metrics)
	}
	// 预检请求由 CORS 中间件应答
	api.OPTIONS("/*path", func(ctx context.Context, c *app.RequestContext) {
		c.AbortWithStatus(consts.StatusNoContent)
	})

	t := api.Group("/triage", r.middleware.RateLimit())
	t.POST("/input", r.handler.SubmitInput)
	t.GET("/state", r.handler.GetState)
	t.POST("/reset", r.handler.ResetSession)
}
