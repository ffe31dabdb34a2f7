package device

import (
	"context"
	"time"
)

// Snapshot 一次完整读数
type Snapshot struct {
	Device         string    `json:"device"`
	TakenAt        time.Time `json:"taken_at"`
	Enabled        bool      `json:"enabled"`
	Voltage        float64   `json:"voltage"`
	Current        float64   `json:"current"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
	CapacityMAh    uint32    `json:"capacity_mah"`
	EnergyMWh      uint32    `json:"energy_mwh"`
	TemperatureC   uint32    `json:"temperature_c"`
	CurrentSetting float64   `json:"current_setting"`
	CutoffVoltage  float64   `json:"cutoff_voltage"`
	TimerSeconds   int64     `json:"timer_seconds"`
}

// Snapshot 依次查询全部读数；任一查询失败即返回
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	s := Snapshot{Device: c.id}
	var err error
	if s.Enabled, err = c.LoadEnabled(ctx); err != nil {
		return s, err
	}
	if s.Voltage, err = c.Voltage(ctx); err != nil {
		return s, err
	}
	if s.Current, err = c.Current(ctx); err != nil {
		return s, err
	}
	elapsed, err := c.ElapsedTime(ctx)
	if err != nil {
		return s, err
	}
	s.ElapsedSeconds = int64(elapsed / time.Second)
	if s.CapacityMAh, err = c.CapacityMilliAmpHours(ctx); err != nil {
		return s, err
	}
	if s.EnergyMWh, err = c.CapacityMilliWattHours(ctx); err != nil {
		return s, err
	}
	if s.TemperatureC, err = c.MosfetTemperature(ctx); err != nil {
		return s, err
	}
	if s.CurrentSetting, err = c.CurrentSetting(ctx); err != nil {
		return s, err
	}
	if s.CutoffVoltage, err = c.CutoffVoltageSetting(ctx); err != nil {
		return s, err
	}
	timer, err := c.TimerSetting(ctx)
	if err != nil {
		return s, err
	}
	s.TimerSeconds = int64(timer / time.Second)
	s.TakenAt = time.Now()
	return s, nil
}
