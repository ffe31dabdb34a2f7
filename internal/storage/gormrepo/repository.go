package gormrepo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/taoyao-code/eload/internal/sampler"
	"github.com/taoyao-code/eload/internal/storage/models"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// Repository 基于 GORM 的设备与放电记录存储
type Repository struct {
	db *gorm.DB
}

// New 返回使用给定 *gorm.DB 的仓库
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// OpenFromPool 复用 pgx 连接池打开 GORM，避免维护两套连接
func OpenFromPool(pool *pgxpool.Pool) (*gorm.DB, error) {
	sqlDB := stdlib.OpenDBFromPool(pool)
	return gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

// WithTx 在事务中执行 fn
func (r *Repository) WithTx(ctx context.Context, fn func(*Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// EnsureDevice 不存在则插入，存在则刷新连接参数与 last_seen_at
func (r *Repository) EnsureDevice(ctx context.Context, id, transport, port string) (*models.Device, error) {
	now := time.Now()
	record := &models.Device{ID: id, Transport: transport, Port: port, LastSeenAt: &now}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"transport":    transport,
				"port":         port,
				"last_seen_at": now,
				"updated_at":   gorm.Expr("NOW()"),
			}),
		}).
		Create(record).Error
	if err != nil {
		return nil, err
	}
	return r.GetDevice(ctx, id)
}

// TouchDevice 刷新 last_seen_at
func (r *Repository) TouchDevice(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Device{}).Where("id = ?", id).Update("last_seen_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// StoreReading 实现 sampler.Sink：每次采样刷新设备在线时间
func (r *Repository) StoreReading(ctx context.Context, rd sampler.Reading) error {
	return r.TouchDevice(ctx, rd.Device, rd.TakenAt)
}

// GetDevice 查询设备
func (r *Repository) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	var d models.Device
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// StartProfileRun 记录放电开始
func (r *Repository) StartProfileRun(ctx context.Context, id uuid.UUID, profile, device string) error {
	return r.db.WithContext(ctx).Create(&models.ProfileRun{
		ID:        id.String(),
		Profile:   profile,
		Device:    device,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}).Error
}

// FinishProfileRun 记录放电结束；runErr 为 nil 表示成功
func (r *Repository) FinishProfileRun(ctx context.Context, id uuid.UUID, runErr error) error {
	updates := map[string]any{
		"finished_at": time.Now(),
		"status":      models.RunStatusCompleted,
	}
	if runErr != nil {
		updates["status"] = models.RunStatusFailed
		updates["error"] = runErr.Error()
	}
	res := r.db.WithContext(ctx).Model(&models.ProfileRun{}).Where("id = ?", id.String()).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetProfileRun 查询执行记录
func (r *Repository) GetProfileRun(ctx context.Context, id uuid.UUID) (*models.ProfileRun, error) {
	var pr models.ProfileRun
	err := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&pr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

// ListProfileRuns 某设备最近的执行记录
func (r *Repository) ListProfileRuns(ctx context.Context, device string, limit int) ([]models.ProfileRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []models.ProfileRun
	err := r.db.WithContext(ctx).
		Where("device = ?", device).
		Order("started_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
