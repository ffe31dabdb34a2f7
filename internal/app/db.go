package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/eload/internal/config"
	"github.com/taoyao-code/eload/internal/migrate"
	"github.com/taoyao-code/eload/internal/storage/gormrepo"
	pgstorage "github.com/taoyao-code/eload/internal/storage/pg"
)

// ConnectDBAndMigrate 建立数据库连接并按需执行迁移；migrateDir 为空时使用内置迁移
func ConnectDBAndMigrate(ctx context.Context, cfg cfgpkg.DatabaseConfig, migrateDir string, log *zap.Logger) (*pgxpool.Pool, error) {
	dbpool, err := pgstorage.NewPool(ctx, cfg, log)
	if err != nil {
		log.Error("db connect error", zap.Error(err))
		return nil, err
	}
	if cfg.AutoMigrate {
		if err = (migrate.Runner{Dir: migrateDir}).Up(ctx, dbpool); err != nil {
			log.Error("db migrate error", zap.Error(err))
			return dbpool, err
		}
		log.Info("db migrations applied")
	}
	return dbpool, nil
}

// NewRepositories 基于同一连接池创建采样仓库（pgx）与设备/放电记录仓库（gorm）
func NewRepositories(dbpool *pgxpool.Pool) (*pgstorage.Repository, *gormrepo.Repository, error) {
	db, err := gormrepo.OpenFromPool(dbpool)
	if err != nil {
		return nil, nil, err
	}
	return pgstorage.NewRepository(dbpool), gormrepo.New(db), nil
}
