package health

import (
	"context"
	"fmt"
	"time"
)

// DeviceProbe 设备检查所需操作（*device.Controller）
type DeviceProbe interface {
	ID() string
	IsOpen() bool
	Voltage(ctx context.Context) (float64, error)
	SafetyInProgress() bool
}

// DeviceChecker 通过一次电压查询确认链路可用
type DeviceChecker struct {
	dev DeviceProbe
}

// NewDeviceChecker 创建设备检查器
func NewDeviceChecker(dev DeviceProbe) *DeviceChecker {
	return &DeviceChecker{dev: dev}
}

func (c *DeviceChecker) Name() string { return "device" }

// Check 通道关闭或查询失败为 Unhealthy；安全关断执行中为 Degraded 且不访问设备
func (c *DeviceChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	details := map[string]any{"device": c.dev.ID()}

	if !c.dev.IsOpen() {
		return CheckResult{Status: StatusUnhealthy, Message: "channel closed", Details: details, Latency: time.Since(start)}
	}
	if c.dev.SafetyInProgress() {
		return CheckResult{Status: StatusDegraded, Message: "safety shutdown in progress", Details: details, Latency: time.Since(start)}
	}

	v, err := c.dev.Voltage(ctx)
	if err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("probe failed: %v", err),
			Details: details,
			Latency: time.Since(start),
		}
	}
	details["voltage"] = v
	return CheckResult{Status: StatusHealthy, Message: "ok", Details: details, Latency: time.Since(start)}
}
