package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrLoadNotOff 完整恢复流程后仍无法确认负载已关闭
var ErrLoadNotOff = errors.New("load could not be confirmed off")

// SafetyError 安全关断失败，设备可能处于不安全状态
type SafetyError struct {
	Device string
	Err    error
}

func (e *SafetyError) Error() string {
	if errors.Is(e.Err, ErrLoadNotOff) {
		return fmt.Sprintf("safety: device %s: %v", e.Device, e.Err)
	}
	return fmt.Sprintf("safety: device %s: %v: %v", e.Device, ErrLoadNotOff, e.Err)
}

func (e *SafetyError) Unwrap() []error { return []error{ErrLoadNotOff, e.Err} }

// EnsureLoadOff 保证负载最终处于关闭状态。
//
// 同一设备上并发调用只有一个真正执行，其余立即返回 nil。
// 调用方的取消不会中断该流程：每个阶段使用内部计时器（SafetyTimeout）。
//  1. 循环：查询开关，开启则发送关闭并等待 SafetyPause，直到确认关闭或计时结束；忽略所有错误
//  2. 复查；查询失败按“仍开启”处理
//  3. 仍开启：强制重连，再执行一次关闭+确认；此阶段任何错误均返回 *SafetyError
//
// 单飞标记不阻止调用方同时发起普通命令，这由调用方负责。
func (c *Controller) EnsureLoadOff(ctx context.Context) error {
	if !c.shutting.CompareAndSwap(false, true) {
		c.metrics.IncSafety("skipped")
		return nil
	}
	defer c.shutting.Store(false)

	base := context.WithoutCancel(ctx)
	start := time.Now()

	loopCtx, cancel := context.WithTimeout(base, c.opts.SafetyTimeout)
	c.switchOffLoop(loopCtx)
	cancel()

	checkCtx, cancel := context.WithTimeout(base, c.opts.SafetyTimeout)
	enabled, err := c.LoadEnabled(checkCtx)
	cancel()
	if err != nil {
		c.logger.Warn("load state re-check failed, assuming enabled", zap.Error(err))
		enabled = true
	}
	if !enabled {
		c.metrics.IncSafety("off")
		c.logger.Info("load confirmed off", zap.Duration("took", time.Since(start)))
		return nil
	}

	c.logger.Warn("load still enabled, forcing reconnect")
	finalCtx, cancel := context.WithTimeout(base, c.opts.SafetyTimeout)
	defer cancel()
	if err := c.finalAttempt(finalCtx); err != nil {
		c.metrics.IncSafety("failed")
		c.logger.DPanic("unable to confirm load is off",
			zap.Bool("safety", true),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return &SafetyError{Device: c.id, Err: err}
	}
	c.metrics.IncSafety("reconnected")
	c.logger.Info("load confirmed off after reconnect", zap.Duration("took", time.Since(start)))
	return nil
}

// SafetyInProgress EnsureLoadOff 是否正在执行
func (c *Controller) SafetyInProgress() bool { return c.shutting.Load() }

// switchOffLoop 阶段1：计时结束或确认关闭时返回
func (c *Controller) switchOffLoop(ctx context.Context) {
	for {
		enabled, err := c.LoadEnabled(ctx)
		switch {
		case err == nil && !enabled:
			return
		case err == nil:
			if err := c.SetLoadEnabled(ctx, false); err != nil {
				c.logger.Debug("switch off failed", zap.Error(err))
			}
		default:
			c.logger.Debug("load state query failed", zap.Error(err))
		}
		if err := sleepCtx(ctx, c.opts.SafetyPause); err != nil {
			return
		}
	}
}

// finalAttempt 阶段3：重连后关闭并确认
func (c *Controller) finalAttempt(ctx context.Context) error {
	if err := c.reconnect(ctx); err != nil {
		return err
	}
	if err := c.SetLoadEnabled(ctx, false); err != nil {
		return err
	}
	if err := sleepCtx(ctx, c.opts.SafetyPause); err != nil {
		return err
	}
	enabled, err := c.LoadEnabled(ctx)
	if err != nil {
		return err
	}
	if enabled {
		return ErrLoadNotOff
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
