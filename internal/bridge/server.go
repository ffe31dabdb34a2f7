// Package bridge 将本地串口（或模拟负载）以原始字节流暴露在 TCP 上，
// 与 ser2net 的 raw 模式兼容，供 transport.NewTCP 远程连接。
package bridge

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/eload/internal/config"
	"github.com/taoyao-code/eload/internal/metrics"
	"github.com/taoyao-code/eload/internal/transport"
)

// pollInterval 设备侧输出的轮询间隔
const pollInterval = 2 * time.Millisecond

// Server 网桥服务
type Server struct {
	cfg     cfgpkg.BridgeConfig
	ch      transport.Channel
	limiter *ClientLimiter
	logger  *zap.Logger
	metrics *metrics.AppMetrics

	ln     net.Listener
	wg     sync.WaitGroup
	stopC  chan struct{}
	nextID atomic.Uint64

	mu    sync.Mutex
	conns map[uint64]net.Conn
}

// New 创建网桥；ch 在首个客户端连接时打开
func New(cfg cfgpkg.BridgeConfig, ch transport.Channel, logger *zap.Logger, m *metrics.AppMetrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:     cfg,
		ch:      ch,
		limiter: NewClientLimiter(cfg.MaxClients, cfg.AcquireTimeout),
		logger:  logger,
		metrics: m,
		stopC:   make(chan struct{}),
		conns:   make(map[uint64]net.Conn),
	}
}

// Start 监听并接受连接（非阻塞）
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Info("bridge listening", zap.String("addr", ln.Addr().String()))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.ln.Accept()
			if err != nil {
				select {
				case <-s.stopC:
					return
				default:
				}
				// 短暂错误等待后重试
				time.Sleep(50 * time.Millisecond)
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.serve(conn)
			}()
		}
	}()
	return nil
}

// Addr 实际监听地址
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Stats 客户端名额统计
func (s *Server) Stats() LimiterStats { return s.limiter.Stats() }

// Shutdown 关闭监听与所有客户端，等待转发协程退出
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.stopC)
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.mu.Lock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (s *Server) track(c net.Conn) uint64 {
	id := s.nextID.Add(1)
	s.mu.Lock()
	s.conns[id] = c
	s.mu.Unlock()
	return id
}

func (s *Server) untrack(id uint64) {
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
}

// serve 单个客户端：上行写入设备，设备输出回写客户端
func (s *Server) serve(conn net.Conn) {
	defer conn.Close()
	log := s.logger.With(zap.String("remote", conn.RemoteAddr().String()))

	if err := s.limiter.Acquire(context.Background()); err != nil {
		s.metrics.IncBridgeConn("rejected")
		log.Warn("bridge client rejected", zap.Error(err))
		return
	}
	defer s.limiter.Release()
	s.metrics.IncBridgeConn("accepted")

	id := s.track(conn)
	defer s.untrack(id)

	if !s.ch.IsOpen() {
		if err := s.ch.Open(); err != nil {
			log.Error("open device channel failed", zap.Error(err))
			return
		}
	}
	// 丢弃上一个客户端残留的应答
	_ = s.ch.DiscardInput()
	log.Info("bridge client connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	down := make(chan error, 1)
	go func() {
		err := s.downlink(ctx, conn)
		if err != nil && ctx.Err() == nil {
			// 设备侧失败，关闭客户端以结束上行读取并释放名额
			_ = conn.Close()
		}
		down <- err
	}()

	err := s.uplink(ctx, conn)
	cancel()
	if derr := <-down; derr != nil && !errors.Is(derr, context.Canceled) {
		err = derr
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, net.ErrClosed) {
		log.Info("bridge client disconnected", zap.Error(err))
		return
	}
	log.Info("bridge client disconnected")
}

func (s *Server) uplink(ctx context.Context, conn net.Conn) error {
	buf := make([]byte, 256)
	for {
		if s.cfg.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		n, err := conn.Read(buf)
		if n > 0 {
			s.metrics.AddBridgeBytes("rx", n)
			if werr := s.ch.Write(ctx, buf[:n]); werr != nil {
				return werr
			}
			if ferr := s.ch.Flush(ctx); ferr != nil {
				return ferr
			}
		}
		if err != nil {
			return err
		}
	}
}

func (s *Server) downlink(ctx context.Context, conn net.Conn) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		n, err := s.ch.BytesAvailable()
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		b, err := s.ch.ReadExact(ctx, n)
		if err != nil {
			return err
		}
		if _, err := conn.Write(b); err != nil {
			return err
		}
		s.metrics.AddBridgeBytes("tx", len(b))
	}
}
