package dispatcher

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/eload/internal/metrics"
	"github.com/taoyao-code/eload/internal/protocol/eload"
	"github.com/taoyao-code/eload/internal/transport"
)

// ErrResponseTimeout 在应答超时内未收到足够字节（不重试）
var ErrResponseTimeout = errors.New("response timeout")

// Options 事务参数
type Options struct {
	RetryCount      int           // 总尝试次数（含首次）
	Pause           time.Duration // 成功后的命令间隔
	PollInterval    time.Duration // 等待应答字节的轮询间隔
	ResponseTimeout time.Duration // 单次尝试等待应答的上限
}

// DefaultOptions 默认事务参数
func DefaultOptions() Options {
	return Options{
		RetryCount:      3,
		Pause:           100 * time.Millisecond,
		PollInterval:    10 * time.Millisecond,
		ResponseTimeout: time.Second,
	}
}

// Dispatcher 单设备事务循环：写帧、丢弃残留输入、等待并读取定长应答、分类、
// 对 ErrInvalidResponse 重试。协议无请求ID，应答按字节流位置对应最近一次请求，
// 因此同一时刻只允许一个事务在途，由内部互斥锁保证
type Dispatcher struct {
	ch      transport.Channel
	opts    Options
	logger  *zap.Logger
	metrics *metrics.AppMetrics

	mu sync.Mutex
}

// New 创建 Dispatcher；opts 中的零值回退到默认值
func New(ch transport.Channel, opts Options, logger *zap.Logger, m *metrics.AppMetrics) *Dispatcher {
	def := DefaultOptions()
	if opts.RetryCount <= 0 {
		opts.RetryCount = def.RetryCount
	}
	if opts.Pause <= 0 {
		opts.Pause = def.Pause
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.ResponseTimeout <= 0 {
		opts.ResponseTimeout = def.ResponseTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{ch: ch, opts: opts, logger: logger, metrics: m}
}

// Options 当前生效的参数
func (d *Dispatcher) Options() Options { return d.opts }

// Do 执行一次事务。成功后按 Pause 休眠再返回；
// 休眠期间 ctx 取消时返回已得到的应答与 ctx 错误（命令已生效）
func (d *Dispatcher) Do(ctx context.Context, req eload.Request) (eload.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name := req.Name()
	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= d.opts.RetryCount; attempt++ {
		resp, err := d.attempt(ctx, req)
		if err == nil {
			result := "ok"
			if resp.IsCommand() && !resp.Ack.OK {
				result = "rejected"
			}
			d.metrics.ObserveTransaction(name, result, time.Since(start).Seconds())
			if d.opts.Pause > 0 {
				if err := sleepCtx(ctx, d.opts.Pause); err != nil {
					return resp, err
				}
			}
			return resp, nil
		}

		lastErr = err
		if !errors.Is(err, eload.ErrInvalidResponse) {
			d.metrics.ObserveTransaction(name, "error", time.Since(start).Seconds())
			return eload.Response{}, err
		}

		d.logger.Warn("invalid response, retrying",
			zap.String("type", name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", d.opts.RetryCount),
			zap.Error(err))
		_ = d.ch.DiscardInput()
		_ = d.ch.DiscardOutput()
		if attempt < d.opts.RetryCount {
			d.metrics.IncRetry(name)
		}
	}

	d.metrics.ObserveTransaction(name, "invalid_response", time.Since(start).Seconds())
	return eload.Response{}, lastErr
}

// attempt 单次尝试
func (d *Dispatcher) attempt(ctx context.Context, req eload.Request) (eload.Response, error) {
	frame := eload.Encode(req)
	if err := d.ch.Write(ctx, frame[:]); err != nil {
		return eload.Response{}, err
	}
	// 设备会持续主动上报状态，写入后立即丢弃残留输入
	if err := d.ch.DiscardInput(); err != nil {
		return eload.Response{}, err
	}
	if err := d.ch.Flush(ctx); err != nil {
		return eload.Response{}, err
	}

	if err := d.waitAvailable(ctx, req.ExpectedLen); err != nil {
		return eload.Response{}, err
	}
	b, err := d.ch.ReadExact(ctx, req.ExpectedLen)
	if err != nil {
		return eload.Response{}, err
	}

	d.logger.Debug("transaction",
		zap.String("type", req.Name()),
		zap.String("tx", hex.EncodeToString(frame[:])),
		zap.String("rx", hex.EncodeToString(b)))
	return eload.Classify(req.Type, b)
}

// waitAvailable 固定间隔轮询，直到可读字节数达到 n
func (d *Dispatcher) waitAvailable(ctx context.Context, n int) error {
	deadline := time.NewTimer(d.opts.ResponseTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()
	for {
		avail, err := d.ch.BytesAvailable()
		if err != nil {
			return err
		}
		if avail >= n {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: %d of %d bytes", ErrResponseTimeout, avail, n)
		case <-ticker.C:
		}
	}
}

// Command 发送命令并返回应答
func (d *Dispatcher) Command(ctx context.Context, c eload.CommandType, payload [2]byte) (eload.CommandResult, error) {
	req, err := eload.NewCommand(c, payload)
	if err != nil {
		return eload.CommandResult{}, err
	}
	resp, err := d.Do(ctx, req)
	return resp.Ack, err
}

// Query 发送查询并返回解码值
func (d *Dispatcher) Query(ctx context.Context, q eload.QueryType) (eload.Value, error) {
	req, err := eload.NewQuery(q)
	if err != nil {
		return eload.Value{}, err
	}
	resp, err := d.Do(ctx, req)
	return resp.Value, err
}

// Exclusive 在没有事务在途时执行 fn（如强制重连）
func (d *Dispatcher) Exclusive(fn func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn()
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
