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

package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"triage-platform/internal/api/http"
	"triage-platform/internal/api/http/middleware"
	"triage-platform/internal/app"
	"triage-platform/pkg/config"
	"triage-platform/pkg/log"
	"triage-platform/pkg/tracing"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配 HTTP Router、Handler、Middleware）
type App struct {
	config       *app.Bootstrap
	router       *http.Router
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	if bootstrap == nil || bootstrap.Service == nil {
		return nil, fmt.Errorf("bootstrap 未初始化分诊服务")
	}
	cfg := bootstrap.Config.API
	mw := middleware.NewMiddleware(middleware.Config{
		CORSEnable:   cfg.CORS.Enable,
		AllowOrigins: cfg.CORS.AllowOrigins,
		RateLimitRPS: cfg.RateLimit,
	})
	router := http.NewRouter(http.NewHandler(bootstrap.Service), mw)
	router.SetMetricsEnabled(bootstrap.Config.Monitoring.Prometheus.Enable)
	return &App{
		config: bootstrap,
		router: router,
	}, nil
}

// Run 启动 HTTP 服务，addr 如 ":8080"
func (a *App) Run(addr string) error {
	a.config.Logger.Info("API 服务启动", "addr", addr)

	// 使用 Hertz slog 扩展，与 bootstrap 配置对齐
	output := os.Stdout
	if a.config.Config.Log.File != "" {
		f, err := os.OpenFile(a.config.Config.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	levelVar.Set(log.ParseLevel(a.config.Config.Log.Level))
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	opts := []hertzconfig.Option{
		server.WithReadTimeout(config.ParseDuration(a.config.Config.API.Timeout, 60*time.Second)),
	}

	// 可选：启用链路追踪（OpenTelemetry）
	tc := a.config.Config.Monitoring.Tracing
	if tc.Enable {
		serviceName := tc.ServiceName
		if serviceName == "" {
			serviceName = "triage-api"
		}
		exportEndpoint := tc.ExportEndpoint
		if exportEndpoint == "" {
			exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		if exportEndpoint != "" {
			if err := a.initTracing(serviceName, exportEndpoint, tc.Insecure, tc.Exporter); err != nil {
				a.config.Logger.Warn("链路追踪初始化失败，继续启动", "error", err)
			} else {
				tracerOpt, cfg := hertztracing.NewServerTracer()
				opts = append(opts, tracerOpt)
				a.hertz = a.router.Build(addr, opts...)
				a.hertz.Use(hertztracing.ServerMiddleware(cfg))
				a.config.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
			}
		}
	}
	if a.hertz == nil {
		a.hertz = a.router.Build(addr, opts...)
	}
	return a.hertz.Run()
}

// initTracing 安装全局 TracerProvider；cycle/node/oracle span 与 HTTP span 共用
func (a *App) initTracing(serviceName, endpoint string, insecure bool, exporter string) error {
	if strings.EqualFold(exporter, "http") {
		tp, err := tracing.InitTracer(tracing.OTelConfig{
			ServiceName:    serviceName,
			ExportEndpoint: endpoint,
			Insecure:       insecure,
		})
		if err != nil {
			return err
		}
		a.otelProvider = tp
		return nil
	}
	opts := []provider.Option{
		provider.WithServiceName(serviceName),
		provider.WithExportEndpoint(endpoint),
	}
	if insecure {
		opts = append(opts, provider.WithInsecure())
	}
	a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
	return nil
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	return a.config.Close()
}
