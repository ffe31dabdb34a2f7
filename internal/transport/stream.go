package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// rawPort 底层字节流（串口或 TCP 连接）
type rawPort interface {
	io.ReadWriteCloser
	ResetInput() error
	ResetOutput() error
	Drain() error
}

// streamChannel 通用实现：后台协程持续读取底层端口，写入内存缓冲，
// 以便回答 BytesAvailable 并支持按字节数精确读取
type streamChannel struct {
	name        string
	open        func() (rawPort, error)
	readTimeout time.Duration
	logger      *zap.Logger

	mu     sync.Mutex
	port   rawPort
	buf    []byte
	notify chan struct{}
	rerr   error
	done   chan struct{}
}

func newStreamChannel(name string, open func() (rawPort, error), readTimeout time.Duration, logger *zap.Logger) *streamChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	if readTimeout <= 0 {
		readTimeout = time.Second
	}
	return &streamChannel{
		name:        name,
		open:        open,
		readTimeout: readTimeout,
		logger:      logger,
		notify:      make(chan struct{}),
	}
}

// Open 打开底层端口并启动读协程
func (c *streamChannel) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port != nil {
		return nil
	}
	p, err := c.open()
	if err != nil {
		return fmt.Errorf("open %s: %w", c.name, err)
	}
	c.port = p
	c.buf = c.buf[:0]
	c.rerr = nil
	c.done = make(chan struct{})
	go c.readLoop(p, c.done)
	c.logger.Info("channel opened", zap.String("port", c.name))
	return nil
}

// Close 幂等关闭
func (c *streamChannel) Close() error {
	c.mu.Lock()
	p, done := c.port, c.done
	c.port = nil
	c.buf = c.buf[:0]
	c.wake()
	c.mu.Unlock()

	if p == nil {
		return nil
	}
	err := p.Close()
	<-done
	c.logger.Info("channel closed", zap.String("port", c.name))
	return err
}

func (c *streamChannel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port != nil
}

func (c *streamChannel) current() (rawPort, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port == nil {
		return nil, ErrClosed
	}
	return c.port, nil
}

func (c *streamChannel) Write(ctx context.Context, p []byte) error {
	port, err := c.current()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for len(p) > 0 {
		n, err := port.Write(p)
		if err != nil {
			return fmt.Errorf("write %s: %w", c.name, err)
		}
		p = p[n:]
	}
	return nil
}

func (c *streamChannel) Flush(ctx context.Context) error {
	port, err := c.current()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return port.Drain()
}

func (c *streamChannel) ReadExact(ctx context.Context, n int) ([]byte, error) {
	timer := time.NewTimer(c.readTimeout)
	defer timer.Stop()
	for {
		c.mu.Lock()
		if c.port == nil {
			c.mu.Unlock()
			return nil, ErrClosed
		}
		if len(c.buf) >= n {
			out := make([]byte, n)
			copy(out, c.buf)
			c.buf = append(c.buf[:0], c.buf[n:]...)
			c.mu.Unlock()
			return out, nil
		}
		if c.rerr != nil {
			err := c.rerr
			c.mu.Unlock()
			return nil, err
		}
		wait := c.notify
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, ErrReadTimeout
		case <-wait:
		}
	}
}

func (c *streamChannel) DiscardInput() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port == nil {
		return ErrClosed
	}
	if len(c.buf) > 0 {
		c.logger.Debug("discard pending input", zap.String("port", c.name), zap.Int("bytes", len(c.buf)))
	}
	c.buf = c.buf[:0]
	return c.port.ResetInput()
}

func (c *streamChannel) DiscardOutput() error {
	port, err := c.current()
	if err != nil {
		return err
	}
	return port.ResetOutput()
}

func (c *streamChannel) BytesAvailable() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port == nil {
		return 0, ErrClosed
	}
	if c.rerr != nil && len(c.buf) == 0 {
		return 0, c.rerr
	}
	return len(c.buf), nil
}

// readLoop 后台读取；端口关闭后退出
func (c *streamChannel) readLoop(p rawPort, done chan struct{}) {
	defer close(done)
	chunk := make([]byte, 256)
	for {
		n, err := p.Read(chunk)
		c.mu.Lock()
		if c.port != p {
			c.mu.Unlock()
			return
		}
		if n > 0 {
			c.buf = append(c.buf, chunk[:n]...)
			c.wake()
		}
		if err != nil {
			c.rerr = fmt.Errorf("read %s: %w", c.name, err)
			c.wake()
			c.mu.Unlock()
			c.logger.Warn("channel read failed", zap.String("port", c.name), zap.Error(err))
			return
		}
		c.mu.Unlock()
	}
}

// wake 唤醒所有等待者；调用方持有 mu
func (c *streamChannel) wake() {
	close(c.notify)
	c.notify = make(chan struct{})
}
