package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/eload/internal/config"
	"github.com/taoyao-code/eload/internal/health"
	redisstorage "github.com/taoyao-code/eload/internal/storage/redis"
)

// NewRedisClient 创建 Redis 客户端；未启用时返回 nil
func NewRedisClient(cfg cfgpkg.RedisConfig, logger *zap.Logger) (*redisstorage.Client, error) {
	if !cfg.Enabled {
		logger.Info("redis is disabled, skipping initialization")
		return nil, nil
	}

	client, err := redisstorage.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("redis client initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("pool_size", cfg.PoolSize))

	return client, nil
}

// NewSnapshotCache 创建最新快照缓存
func NewSnapshotCache(client *redisstorage.Client, cfg cfgpkg.RedisConfig) *redisstorage.SnapshotCache {
	return redisstorage.NewSnapshotCache(client, cfg.SnapshotTTL)
}

// AddRedisChecker 添加 Redis 检查器到聚合器
func AddRedisChecker(aggregator *health.Aggregator, redisClient *redisstorage.Client) {
	if redisClient != nil {
		aggregator.AddChecker(health.NewRedisChecker(redisClient))
	}
}
