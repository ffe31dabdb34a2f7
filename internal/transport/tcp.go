package transport

import (
	"net"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/eload/internal/config"
)

// TCPChannel 串口转 TCP 网桥（ser2net、蓝牙 SPP 网关等）
type TCPChannel struct {
	*streamChannel
}

// NewTCP 创建 TCP 通道（未打开）
func NewTCP(cfg cfgpkg.DeviceConfig, logger *zap.Logger) *TCPChannel {
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = time.Second
	}
	addr := cfg.Port
	dial := func() (net.Conn, error) {
		return net.DialTimeout("tcp", addr, 5*time.Second)
	}
	return newTCPWithDialer(addr, dial, cfg.ReadTimeout, writeTimeout, logger)
}

func newTCPWithDialer(name string, dial func() (net.Conn, error), readTimeout, writeTimeout time.Duration, logger *zap.Logger) *TCPChannel {
	open := func() (rawPort, error) {
		conn, err := dial()
		if err != nil {
			return nil, err
		}
		return &tcpPort{Conn: conn, writeTimeout: writeTimeout}, nil
	}
	return &TCPChannel{streamChannel: newStreamChannel(name, open, readTimeout, logger)}
}

// tcpPort TCP 没有内核级输入/输出缓冲清理，丢弃由上层内存缓冲完成
type tcpPort struct {
	net.Conn
	writeTimeout time.Duration
}

func (p *tcpPort) Write(b []byte) (int, error) {
	if err := p.Conn.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
		return 0, err
	}
	return p.Conn.Write(b)
}

func (p *tcpPort) ResetInput() error  { return nil }
func (p *tcpPort) ResetOutput() error { return nil }
func (p *tcpPort) Drain() error       { return nil }
