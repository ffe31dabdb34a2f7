package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Device 执行曲线所需的设备操作（*device.Controller）
type Device interface {
	ID() string
	SetCurrentIfChanged(ctx context.Context, amps float64) (bool, error)
	SetCutoffVoltageIfChanged(ctx context.Context, volts float64) (bool, error)
	SetTimerIfChanged(ctx context.Context, d time.Duration) (bool, error)
	ResetCounters(ctx context.Context) error
	SetLoadEnabled(ctx context.Context, on bool) error
	LoadEnabled(ctx context.Context) (bool, error)
	EnsureLoadOff(ctx context.Context) error
}

// Recorder 执行记录（gormrepo.Repository）；可为 nil
type Recorder interface {
	StartProfileRun(ctx context.Context, id uuid.UUID, profile, device string) error
	FinishProfileRun(ctx context.Context, id uuid.UUID, runErr error) error
}

// StepResult 单步结果
type StepResult struct {
	Name            string        `json:"name"`
	Duration        time.Duration `json:"duration"`
	StoppedByDevice bool          `json:"stopped_by_device"` // 设备定时或截止电压先触发
}

// Result 一次执行结果
type Result struct {
	RunID uuid.UUID    `json:"run_id"`
	Steps []StepResult `json:"steps"`
}

// Runner 曲线执行器
type Runner struct {
	dev    Device
	rec    Recorder
	logger *zap.Logger
}

// NewRunner 创建执行器
func NewRunner(dev Device, rec Recorder, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{dev: dev, rec: rec, logger: logger}
}

// Run 依次执行各步骤。无论成功、出错还是 ctx 取消，返回前都会执行 EnsureLoadOff，
// 其错误与执行错误合并返回
func (r *Runner) Run(ctx context.Context, p *Profile) (res Result, err error) {
	res.RunID = uuid.New()
	logger := r.logger.With(zap.String("profile", p.Name), zap.String("run_id", res.RunID.String()))
	bg := context.WithoutCancel(ctx)

	if r.rec != nil {
		if err := r.rec.StartProfileRun(bg, res.RunID, p.Name, r.dev.ID()); err != nil {
			logger.Warn("record profile start failed", zap.Error(err))
		}
	}
	defer func() {
		if offErr := r.dev.EnsureLoadOff(ctx); offErr != nil {
			err = errors.Join(err, offErr)
		}
		if r.rec != nil {
			if recErr := r.rec.FinishProfileRun(bg, res.RunID, err); recErr != nil {
				logger.Warn("record profile finish failed", zap.Error(recErr))
			}
		}
		if err != nil {
			logger.Error("profile failed", zap.Error(err))
		} else {
			logger.Info("profile completed", zap.Int("steps", len(res.Steps)))
		}
	}()

	logger.Info("profile started", zap.Int("steps", len(p.Steps)))
	for i, step := range p.Steps {
		sr, err := r.runStep(ctx, p, step, logger.With(zap.Int("step", i), zap.String("step_name", step.Name)))
		res.Steps = append(res.Steps, sr)
		if err != nil {
			return res, fmt.Errorf("step %d (%s): %w", i, step.Name, err)
		}
	}
	return res, nil
}

func (r *Runner) runStep(ctx context.Context, p *Profile, s Step, logger *zap.Logger) (StepResult, error) {
	sr := StepResult{Name: s.Name}

	// 切换参数前先关断
	if err := r.dev.SetLoadEnabled(ctx, false); err != nil {
		return sr, err
	}
	if s.ResetCounters {
		if err := r.dev.ResetCounters(ctx); err != nil {
			return sr, err
		}
	}
	if _, err := r.dev.SetCurrentIfChanged(ctx, s.Current); err != nil {
		return sr, err
	}
	if _, err := r.dev.SetCutoffVoltageIfChanged(ctx, s.CutoffVoltage); err != nil {
		return sr, err
	}
	if _, err := r.dev.SetTimerIfChanged(ctx, s.Timer); err != nil {
		return sr, err
	}
	if err := r.dev.SetLoadEnabled(ctx, true); err != nil {
		return sr, err
	}
	logger.Info("step started", zap.Float64("current", s.Current), zap.Duration("hold", s.Hold))

	start := time.Now()
	hold := time.NewTimer(s.Hold)
	defer hold.Stop()
	poll := time.NewTicker(p.PollInterval)
	defer poll.Stop()
	for {
		select {
		case <-ctx.Done():
			sr.Duration = time.Since(start)
			return sr, ctx.Err()
		case <-hold.C:
			sr.Duration = time.Since(start)
			return sr, nil
		case <-poll.C:
			on, err := r.dev.LoadEnabled(ctx)
			if err != nil {
				logger.Warn("poll load state failed", zap.Error(err))
				continue
			}
			if !on {
				sr.Duration = time.Since(start)
				sr.StoppedByDevice = true
				logger.Info("step stopped by device", zap.Duration("after", sr.Duration))
				return sr, nil
			}
		}
	}
}
