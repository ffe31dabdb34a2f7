package transport

import (
	"context"
	"errors"
)

var (
	// ErrClosed 通道未打开或已关闭
	ErrClosed = errors.New("channel closed")
	// ErrReadTimeout 在读超时内未收到足够字节
	ErrReadTimeout = errors.New("read timeout")
)

// Channel 负载设备的字节通道（串口、串口转TCP网桥、模拟器）
// 同一时刻只允许一个事务使用，由调用方（dispatcher）保证串行
type Channel interface {
	Open() error
	Close() error
	IsOpen() bool

	// Write 写入整帧；Flush 等待输出缓冲发送完毕
	Write(ctx context.Context, p []byte) error
	Flush(ctx context.Context) error

	// ReadExact 读取恰好 n 个字节，受 ctx 与读超时约束
	ReadExact(ctx context.Context, n int) ([]byte, error)

	// DiscardInput 丢弃已缓冲的输入（设备周期性上报的状态字节）
	DiscardInput() error
	// DiscardOutput 丢弃尚未发送的输出
	DiscardOutput() error

	// BytesAvailable 当前可读字节数
	BytesAvailable() (int, error)
}
