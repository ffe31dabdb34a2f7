package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/eload/internal/config"
)

// serialPollTimeout 后台读协程的读超时，用于及时感知关闭
const serialPollTimeout = 50 * time.Millisecond

// SerialChannel 基于 go.bug.st/serial 的串口通道
type SerialChannel struct {
	*streamChannel
}

// NewSerial 创建串口通道（未打开）
func NewSerial(cfg cfgpkg.DeviceConfig, logger *zap.Logger) (*SerialChannel, error) {
	mode, err := SerialMode(cfg)
	if err != nil {
		return nil, err
	}
	portName := cfg.Port
	open := func() (rawPort, error) {
		p, err := serial.Open(portName, mode)
		if err != nil {
			return nil, err
		}
		if err := p.SetReadTimeout(serialPollTimeout); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("set read timeout: %w", err)
		}
		return serialPort{Port: p}, nil
	}
	return &SerialChannel{streamChannel: newStreamChannel(portName, open, cfg.ReadTimeout, logger)}, nil
}

// SerialMode 将配置转换为串口参数
func SerialMode(cfg cfgpkg.DeviceConfig) (*serial.Mode, error) {
	mode := &serial.Mode{BaudRate: cfg.BaudRate, DataBits: cfg.DataBits}
	if mode.BaudRate <= 0 {
		mode.BaudRate = 9600
	}
	if mode.DataBits == 0 {
		mode.DataBits = 8
	}

	switch cfg.Parity {
	case "", "none":
		mode.Parity = serial.NoParity
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	case "mark":
		mode.Parity = serial.MarkParity
	case "space":
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("unknown parity %q", cfg.Parity)
	}

	switch cfg.StopBits {
	case "", "1":
		mode.StopBits = serial.OneStopBit
	case "1.5":
		mode.StopBits = serial.OnePointFiveStopBits
	case "2":
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("unknown stop bits %q", cfg.StopBits)
	}
	return mode, nil
}

// serialPort 适配 serial.Port 到 rawPort
type serialPort struct {
	serial.Port
}

func (p serialPort) ResetInput() error  { return p.ResetInputBuffer() }
func (p serialPort) ResetOutput() error { return p.ResetOutputBuffer() }
