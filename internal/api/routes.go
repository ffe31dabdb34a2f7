// Package api 电子负载 HTTP 控制接口
package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/eload/internal/api/middleware"
	cfgpkg "github.com/taoyao-code/eload/internal/config"
)

// RegisterRoutes 注册 /api/v1/load 路由。
// 认证作用于整个分组，限流只作用于会改变设备状态的请求；
// 关断（/off）不限流
func RegisterRoutes(r gin.IRouter, h *LoadHandler, auth cfgpkg.AuthConfig, limiter *middleware.RateLimiter, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := r.Group("/api/v1/load")
	g.Use(middleware.APIKeyAuth(auth, logger))

	g.GET("", h.Snapshot)
	g.GET("/latest", h.Latest)
	g.GET("/history", h.History)
	g.GET("/readings", h.ListReadings)
	g.GET("/runs", h.ListRuns)
	g.GET("/runs/:id", h.GetRun)
	g.GET("/stream", h.Stream)

	g.POST("/off", h.TurnOff)

	mut := g.Group("")
	if limiter != nil {
		mut.Use(limiter.Middleware(logger))
	}
	mut.POST("/on", h.TurnOn)
	mut.PUT("/current", h.SetCurrent)
	mut.PUT("/cutoff", h.SetCutoff)
	mut.PUT("/timer", h.SetTimer)
	mut.POST("/counters/reset", h.ResetCounters)

	logger.Info("load api routes registered", zap.Bool("auth", auth.Enabled), zap.Bool("rate_limit", limiter != nil))
}
