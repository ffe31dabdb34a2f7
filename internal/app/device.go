package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/eload/internal/config"
	"github.com/taoyao-code/eload/internal/device"
	"github.com/taoyao-code/eload/internal/dispatcher"
	"github.com/taoyao-code/eload/internal/metrics"
	"github.com/taoyao-code/eload/internal/simulator"
	"github.com/taoyao-code/eload/internal/transport"
)

// NewChannel 按配置选择通道：模拟器、串口或 TCP 网桥
func NewChannel(cfg *cfgpkg.Config, logger *zap.Logger) (transport.Channel, error) {
	if cfg.App.Simulate {
		logger.Warn("using simulated electronic load")
		return simulator.New(), nil
	}
	switch cfg.Device.Transport {
	case "serial":
		return transport.NewSerial(cfg.Device, logger)
	case "tcp":
		return transport.NewTCP(cfg.Device, logger), nil
	default:
		return nil, fmt.Errorf("unknown device transport %q", cfg.Device.Transport)
	}
}

// DispatcherOptions 设备配置转换为事务参数
func DispatcherOptions(cfg cfgpkg.DeviceConfig) dispatcher.Options {
	return dispatcher.Options{
		RetryCount:      cfg.RetryCount,
		Pause:           cfg.Pause,
		PollInterval:    cfg.PollInterval,
		ResponseTimeout: cfg.ReadTimeout,
	}
}

// DeviceOptions 设备配置转换为控制器参数
func DeviceOptions(cfg cfgpkg.DeviceConfig) device.Options {
	return device.Options{SafetyTimeout: cfg.SafetyTimeout, SafetyPause: cfg.SafetyPause}
}

// NewController 创建并打开控制器
func NewController(ctx context.Context, cfg *cfgpkg.Config, logger *zap.Logger, m *metrics.AppMetrics) (*device.Controller, error) {
	ch, err := NewChannel(cfg, logger)
	if err != nil {
		return nil, err
	}
	disp := dispatcher.New(ch, DispatcherOptions(cfg.Device), logger, m)
	ctrl := device.New(cfg.Device.ID, ch, disp, DeviceOptions(cfg.Device), logger, m)
	if err := ctrl.Open(ctx); err != nil {
		// 探测失败时通道可能已打开，释放串口或连接
		_ = ctrl.Close()
		return nil, fmt.Errorf("open device %s: %w", cfg.Device.ID, err)
	}
	return ctrl, nil
}
