package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/eload/internal/dispatcher"
	"github.com/taoyao-code/eload/internal/metrics"
	"github.com/taoyao-code/eload/internal/protocol/eload"
	"github.com/taoyao-code/eload/internal/transport"
)

// ErrCommandRejected 设备对命令应答非 0x6F
var ErrCommandRejected = errors.New("command rejected by device")

// DeviceError 设备拒绝命令，保留原始应答字节
type DeviceError struct {
	Command eload.CommandType
	Code    byte
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: %s returned 0x%02x", ErrCommandRejected, e.Command, e.Code)
}

func (e *DeviceError) Unwrap() error { return ErrCommandRejected }

// Options 控制器参数
type Options struct {
	SafetyTimeout time.Duration // 安全关断每个阶段的内部计时
	SafetyPause   time.Duration // 关断重试间隔
}

// DefaultOptions 默认参数
func DefaultOptions() Options {
	return Options{SafetyTimeout: 5 * time.Second, SafetyPause: 100 * time.Millisecond}
}

// Controller 电子负载的对外操作面，全部通过 Dispatcher 完成
type Controller struct {
	id      string
	ch      transport.Channel
	disp    *dispatcher.Dispatcher
	opts    Options
	logger  *zap.Logger
	metrics *metrics.AppMetrics

	openMu   sync.Mutex
	shutting atomic.Bool // EnsureLoadOff 单飞标记
}

// New 创建控制器；ch 必须与 disp 使用的是同一通道
func New(id string, ch transport.Channel, disp *dispatcher.Dispatcher, opts Options, logger *zap.Logger, m *metrics.AppMetrics) *Controller {
	def := DefaultOptions()
	if opts.SafetyTimeout <= 0 {
		opts.SafetyTimeout = def.SafetyTimeout
	}
	if opts.SafetyPause <= 0 {
		opts.SafetyPause = def.SafetyPause
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		id:      id,
		ch:      ch,
		disp:    disp,
		opts:    opts,
		logger:  logger.With(zap.String("device", id)),
		metrics: m,
	}
}

// ID 设备标识
func (c *Controller) ID() string { return c.id }

// Open 通道未打开时打开，并用电压查询探测链路
func (c *Controller) Open(ctx context.Context) error {
	c.openMu.Lock()
	if !c.ch.IsOpen() {
		if err := c.ch.Open(); err != nil {
			c.openMu.Unlock()
			return err
		}
	}
	c.openMu.Unlock()

	v, err := c.Voltage(ctx)
	if err != nil {
		return fmt.Errorf("probe device: %w", err)
	}
	c.logger.Info("device opened", zap.Float64("voltage", v))
	return nil
}

// Close 幂等关闭
func (c *Controller) Close() error {
	c.openMu.Lock()
	defer c.openMu.Unlock()
	if !c.ch.IsOpen() {
		return nil
	}
	return c.ch.Close()
}

// IsOpen 通道是否打开
func (c *Controller) IsOpen() bool { return c.ch.IsOpen() }

// reconnect 强制关闭并重新打开通道，期间不允许事务在途，随后探测链路
func (c *Controller) reconnect(ctx context.Context) error {
	c.metrics.IncReconnect()
	err := c.disp.Exclusive(func() error {
		c.openMu.Lock()
		defer c.openMu.Unlock()
		if err := c.ch.Close(); err != nil {
			c.logger.Warn("close before reconnect failed", zap.Error(err))
		}
		return c.ch.Open()
	})
	if err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	if _, err := c.Voltage(ctx); err != nil {
		return fmt.Errorf("reconnect probe: %w", err)
	}
	c.logger.Info("device reconnected")
	return nil
}

func (c *Controller) query(ctx context.Context, q eload.QueryType) (eload.Value, error) {
	return c.disp.Query(ctx, q)
}

func (c *Controller) command(ctx context.Context, cmd eload.CommandType, payload [2]byte) error {
	res, err := c.disp.Command(ctx, cmd, payload)
	if err != nil {
		return err
	}
	if !res.OK {
		return &DeviceError{Command: cmd, Code: res.Code}
	}
	return nil
}

func (c *Controller) integer(ctx context.Context, q eload.QueryType) (uint32, error) {
	v, err := c.query(ctx, q)
	if err != nil {
		return 0, err
	}
	return v.Integer(), nil
}

func (c *Controller) duration(ctx context.Context, q eload.QueryType) (time.Duration, error) {
	v, err := c.query(ctx, q)
	if err != nil {
		return 0, err
	}
	return v.Duration(), nil
}

// LoadEnabled 负载输入是否开启
func (c *Controller) LoadEnabled(ctx context.Context) (bool, error) {
	v, err := c.query(ctx, eload.LoadEnabled)
	if err != nil {
		return false, err
	}
	return v.Bool(), nil
}

// Voltage 输入电压（V）
func (c *Controller) Voltage(ctx context.Context) (float64, error) {
	n, err := c.integer(ctx, eload.VoltageReading)
	return float64(n) / 1000, err
}

// Current 负载电流（A）
func (c *Controller) Current(ctx context.Context) (float64, error) {
	n, err := c.integer(ctx, eload.CurrentReading)
	return float64(n) / 1000, err
}

// ElapsedTime 本次放电已运行时间
func (c *Controller) ElapsedTime(ctx context.Context) (time.Duration, error) {
	return c.duration(ctx, eload.ElapsedTime)
}

// CapacityMilliAmpHours 累计容量（mAh）
func (c *Controller) CapacityMilliAmpHours(ctx context.Context) (uint32, error) {
	return c.integer(ctx, eload.CapacityMilliAmpHours)
}

// CapacityMilliWattHours 累计能量（mWh）
func (c *Controller) CapacityMilliWattHours(ctx context.Context) (uint32, error) {
	return c.integer(ctx, eload.CapacityMilliWattHours)
}

// MosfetTemperature MOS 管温度（℃）
func (c *Controller) MosfetTemperature(ctx context.Context) (uint32, error) {
	return c.integer(ctx, eload.MosfetTemperature)
}

// CurrentSetting 电流设定（A）
func (c *Controller) CurrentSetting(ctx context.Context) (float64, error) {
	n, err := c.integer(ctx, eload.CurrentSetting)
	return float64(n) / 100, err
}

// CutoffVoltageSetting 截止电压设定（V）
func (c *Controller) CutoffVoltageSetting(ctx context.Context) (float64, error) {
	n, err := c.integer(ctx, eload.CutoffVoltageSetting)
	return float64(n) / 100, err
}

// TimerSetting 定时设定
func (c *Controller) TimerSetting(ctx context.Context) (time.Duration, error) {
	return c.duration(ctx, eload.TimerSetting)
}

// SetLoadEnabled 开启/关闭负载输入
func (c *Controller) SetLoadEnabled(ctx context.Context, on bool) error {
	return c.command(ctx, eload.ToggleLoad, eload.EncodeBool(on))
}

// SetCurrent 设定电流（A，两位小数截断）
func (c *Controller) SetCurrent(ctx context.Context, amps float64) error {
	return c.command(ctx, eload.SetCurrent, eload.EncodeFixedPoint(amps))
}

// SetCutoffVoltage 设定截止电压（V，两位小数截断）
func (c *Controller) SetCutoffVoltage(ctx context.Context, volts float64) error {
	return c.command(ctx, eload.SetCutoffVoltage, eload.EncodeFixedPoint(volts))
}

// SetTimer 设定定时；超过 65535 秒按 16 位回绕
func (c *Controller) SetTimer(ctx context.Context, d time.Duration) error {
	return c.command(ctx, eload.SetTimeout, eload.EncodeDuration(d))
}

// ResetCounters 清零时间与容量累计
func (c *Controller) ResetCounters(ctx context.Context) error {
	return c.command(ctx, eload.ResetCounters, [2]byte{})
}

// SetCurrentIfChanged 仅当设定值不同时写入；返回是否写入。
// 设备可靠性随命令频率下降，读比写便宜
func (c *Controller) SetCurrentIfChanged(ctx context.Context, amps float64) (bool, error) {
	cur, err := c.CurrentSetting(ctx)
	if err != nil {
		return false, err
	}
	if cur == amps {
		return false, nil
	}
	return true, c.SetCurrent(ctx, amps)
}

// SetCutoffVoltageIfChanged 仅当设定值不同时写入
func (c *Controller) SetCutoffVoltageIfChanged(ctx context.Context, volts float64) (bool, error) {
	cur, err := c.CutoffVoltageSetting(ctx)
	if err != nil {
		return false, err
	}
	if cur == volts {
		return false, nil
	}
	return true, c.SetCutoffVoltage(ctx, volts)
}

// SetTimerIfChanged 仅当设定值不同时写入
func (c *Controller) SetTimerIfChanged(ctx context.Context, d time.Duration) (bool, error) {
	cur, err := c.TimerSetting(ctx)
	if err != nil {
		return false, err
	}
	if cur == d {
		return false, nil
	}
	return true, c.SetTimer(ctx, d)
}
