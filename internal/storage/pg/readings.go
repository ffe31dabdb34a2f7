package pg

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/eload/internal/device"
	"github.com/taoyao-code/eload/internal/sampler"
)

// Repository 采样数据存储（写入频繁，直接使用 pgx）
type Repository struct {
	Pool *pgxpool.Pool
}

// NewRepository 创建仓库
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{Pool: pool}
}

// InsertReading 写入一次采样
func (r *Repository) InsertReading(ctx context.Context, rd sampler.Reading) error {
	_, err := r.Pool.Exec(ctx, `INSERT INTO readings
        (run_id, device, taken_at, enabled, voltage, current, elapsed_seconds,
         capacity_mah, energy_mwh, temperature_c, current_setting, cutoff_voltage, timer_seconds)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		rd.RunID.String(), rd.Device, rd.TakenAt, rd.Enabled, rd.Voltage, rd.Current, rd.ElapsedSeconds,
		int64(rd.CapacityMAh), int64(rd.EnergyMWh), int64(rd.TemperatureC),
		rd.CurrentSetting, rd.CutoffVoltage, rd.TimerSeconds)
	return err
}

// StoreReading 实现 sampler.Sink
func (r *Repository) StoreReading(ctx context.Context, rd sampler.Reading) error {
	return r.InsertReading(ctx, rd)
}

// ListReadings 按时间倒序返回某设备最近 limit 条采样
func (r *Repository) ListReadings(ctx context.Context, deviceID string, limit int) ([]sampler.Reading, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := r.Pool.Query(ctx, `SELECT run_id::text, device, taken_at, enabled, voltage, current,
        elapsed_seconds, capacity_mah, energy_mwh, temperature_c, current_setting, cutoff_voltage, timer_seconds
        FROM readings WHERE device=$1 ORDER BY taken_at DESC LIMIT $2`, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sampler.Reading
	for rows.Next() {
		var (
			runID          string
			s              device.Snapshot
			mah, mwh, temp int64
		)
		if err := rows.Scan(&runID, &s.Device, &s.TakenAt, &s.Enabled, &s.Voltage, &s.Current,
			&s.ElapsedSeconds, &mah, &mwh, &temp, &s.CurrentSetting, &s.CutoffVoltage, &s.TimerSeconds); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(runID)
		if err != nil {
			return nil, err
		}
		s.CapacityMAh, s.EnergyMWh, s.TemperatureC = uint32(mah), uint32(mwh), uint32(temp)
		out = append(out, sampler.Reading{RunID: id, Snapshot: s})
	}
	return out, rows.Err()
}
