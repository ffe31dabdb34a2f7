package models

import (
	"time"
)

// 注意：
// - 与 internal/migrate/sql 下的建表语句保持一致
// - 不使用 gorm.Model，显式声明每个字段

// Device 映射 devices 表：连接过的电子负载
type Device struct {
	ID         string     `gorm:"column:id;primaryKey;type:text"`
	Transport  string     `gorm:"column:transport;type:text;not null"`
	Port       string     `gorm:"column:port;type:text;not null"`
	LastSeenAt *time.Time `gorm:"column:last_seen_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Device) TableName() string { return "devices" }

// 放电执行状态
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ProfileRun 映射 profile_runs 表
type ProfileRun struct {
	ID         string     `gorm:"column:id;primaryKey;type:uuid"`
	Profile    string     `gorm:"column:profile;type:text;not null"`
	Device     string     `gorm:"column:device;type:text;not null"`
	StartedAt  time.Time  `gorm:"column:started_at;not null"`
	FinishedAt *time.Time `gorm:"column:finished_at"`
	Status     string     `gorm:"column:status;type:text;not null"`
	Error      *string    `gorm:"column:error;type:text"`
}

func (ProfileRun) TableName() string { return "profile_runs" }
