package app

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/eload/internal/health"
)

// NewHealthAggregator 创建健康检查聚合器，设备检查始终存在
func NewHealthAggregator(dev health.DeviceProbe, dbpool *pgxpool.Pool) *health.Aggregator {
	agg := health.NewAggregator(health.NewDeviceChecker(dev))
	if dbpool != nil {
		agg.AddChecker(health.NewDatabaseChecker(dbpool))
	}
	return agg
}

// RegisterHealthRoutes 注册健康检查 HTTP 路由
func RegisterHealthRoutes(r *gin.Engine, aggregator *health.Aggregator) {
	health.RegisterHTTPRoutes(r, aggregator)
}
