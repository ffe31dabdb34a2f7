// Package sampler 周期读取设备快照，写入存储并推送给订阅者。
package sampler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taoyao-code/eload/internal/device"
	"github.com/taoyao-code/eload/internal/metrics"
)

// Source 快照来源（*device.Controller）
type Source interface {
	Snapshot(ctx context.Context) (device.Snapshot, error)
}

// Reading 一次采样
type Reading struct {
	RunID uuid.UUID `json:"run_id"`
	device.Snapshot
}

// Sink 采样落地（Postgres、Redis）
type Sink interface {
	StoreReading(ctx context.Context, r Reading) error
}

// Options 采样参数
type Options struct {
	Interval         time.Duration
	BreakerThreshold int
	BreakerTimeout   time.Duration
}

// Sampler 周期采样器
type Sampler struct {
	src     Source
	sinks   []Sink
	opts    Options
	breaker *Breaker
	runID   uuid.UUID
	logger  *zap.Logger
	metrics *metrics.AppMetrics

	mu     sync.RWMutex
	latest *Reading
	subs   map[chan Reading]struct{}
}

// New 创建采样器
func New(src Source, opts Options, logger *zap.Logger, m *metrics.AppMetrics, sinks ...Sink) *Sampler {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sampler{
		src:     src,
		sinks:   sinks,
		opts:    opts,
		breaker: NewBreaker(opts.BreakerThreshold, opts.BreakerTimeout),
		runID:   uuid.New(),
		metrics: m,
		subs:    make(map[chan Reading]struct{}),
	}
	s.logger = logger.With(zap.String("run_id", s.runID.String()))
	s.breaker.SetStateChangeCallback(func(from, to State) {
		s.logger.Warn("sampler breaker state changed",
			zap.String("from", from.String()), zap.String("to", to.String()))
	})
	return s
}

// RunID 本次运行标识
func (s *Sampler) RunID() uuid.UUID { return s.runID }

// Breaker 采样熔断器
func (s *Sampler) Breaker() *Breaker { return s.breaker }

// Run 按 Interval 采样直到 ctx 结束
func (s *Sampler) Run(ctx context.Context) error {
	s.logger.Info("sampler started", zap.Duration("interval", s.opts.Interval))
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sampler stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SampleOnce(ctx); err != nil && !errors.Is(err, ErrCircuitOpen) {
				s.logger.Warn("sample failed", zap.Error(err))
			}
		}
	}
}

// SampleOnce 采样一次；存储失败只记录日志，不影响返回值
func (s *Sampler) SampleOnce(ctx context.Context) (Reading, error) {
	var snap device.Snapshot
	err := s.breaker.Call(func() error {
		var err error
		snap, err = s.src.Snapshot(ctx)
		return err
	})
	switch {
	case errors.Is(err, ErrCircuitOpen):
		s.metrics.IncSample("breaker_open")
		return Reading{}, err
	case err != nil:
		s.metrics.IncSample("error")
		return Reading{}, err
	}
	s.metrics.IncSample("ok")
	s.metrics.SetReadings(snap.Enabled, snap.Voltage, snap.Current, float64(snap.TemperatureC))

	r := Reading{RunID: s.runID, Snapshot: snap}
	for _, sink := range s.sinks {
		if err := sink.StoreReading(ctx, r); err != nil {
			s.logger.Warn("store reading failed", zap.Error(err))
		}
	}
	s.publish(r)
	return r, nil
}

// Latest 最近一次成功采样
func (s *Sampler) Latest() (Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return Reading{}, false
	}
	return *s.latest, true
}

// Subscribe 订阅后续采样；慢订阅者会丢失中间数据。返回取消函数
func (s *Sampler) Subscribe() (<-chan Reading, func()) {
	ch := make(chan Reading, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Sampler) publish(r Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &r
	for ch := range s.subs {
		select {
		case ch <- r:
		default:
		}
	}
}
