package bridge

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyClients 等待名额超时
var ErrTooManyClients = errors.New("bridge: too many clients")

// ClientLimiter 客户端名额（信号量）
type ClientLimiter struct {
	sem      chan struct{}
	timeout  time.Duration
	limit    int
	active   atomic.Int64
	rejected atomic.Int64
}

// NewClientLimiter limit 为并发上限，timeout 为获取名额的等待上限
func NewClientLimiter(limit int, timeout time.Duration) *ClientLimiter {
	if limit <= 0 {
		limit = 1
	}
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	return &ClientLimiter{sem: make(chan struct{}, limit), timeout: timeout, limit: limit}
}

// Acquire 获取名额
func (l *ClientLimiter) Acquire(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	select {
	case l.sem <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		l.rejected.Add(1)
		return ErrTooManyClients
	}
}

// Release 归还名额
func (l *ClientLimiter) Release() {
	select {
	case <-l.sem:
		l.active.Add(-1)
	default:
	}
}

// Stats 统计信息
func (l *ClientLimiter) Stats() LimiterStats {
	return LimiterStats{
		MaxClients:    l.limit,
		ActiveClients: int(l.active.Load()),
		RejectedTotal: l.rejected.Load(),
	}
}

// LimiterStats 名额统计
type LimiterStats struct {
	MaxClients    int   `json:"max_clients"`
	ActiveClients int   `json:"active_clients"`
	RejectedTotal int64 `json:"rejected_total"`
}
