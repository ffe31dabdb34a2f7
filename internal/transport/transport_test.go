package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	cfgpkg "github.com/taoyao-code/eload/internal/config"
)

// newPipeChannel 用 net.Pipe 模拟网桥，返回通道与设备侧连接
func newPipeChannel(t *testing.T) (*TCPChannel, func() net.Conn) {
	t.Helper()
	peers := make(chan net.Conn, 4)
	dial := func() (net.Conn, error) {
		client, server := net.Pipe()
		peers <- server
		return client, nil
	}
	ch := newTCPWithDialer("pipe", dial, 200*time.Millisecond, time.Second, nil)
	t.Cleanup(func() { _ = ch.Close() })
	return ch, func() net.Conn { return <-peers }
}

func TestStreamChannelReadExact(t *testing.T) {
	ch, peer := newPipeChannel(t)
	require.NoError(t, ch.Open())
	dev := peer()
	defer dev.Close()

	go func() { _, _ = dev.Write([]byte{0xCA, 0xCB, 0x00}) }()

	assert.Eventually(t, func() bool {
		n, err := ch.BytesAvailable()
		return err == nil && n == 3
	}, time.Second, 5*time.Millisecond)

	got, err := ch.ReadExact(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xCA, 0xCB}, got)

	n, err := ch.BytesAvailable()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStreamChannelDiscardInput(t *testing.T) {
	ch, peer := newPipeChannel(t)
	require.NoError(t, ch.Open())
	dev := peer()
	defer dev.Close()

	go func() { _, _ = dev.Write([]byte{1, 2, 3, 4}) }()
	assert.Eventually(t, func() bool {
		n, _ := ch.BytesAvailable()
		return n == 4
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, ch.DiscardInput())
	n, err := ch.BytesAvailable()
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = ch.ReadExact(context.Background(), 1)
	assert.ErrorIs(t, err, ErrReadTimeout)
}

func TestStreamChannelWrite(t *testing.T) {
	ch, peer := newPipeChannel(t)
	require.NoError(t, ch.Open())
	dev := peer()
	defer dev.Close()

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 6)
		n, _ := dev.Read(buf)
		got <- buf[:n]
	}()

	frame := []byte{0xB1, 0xB2, 0x10, 0x00, 0x00, 0xB6}
	require.NoError(t, ch.Write(context.Background(), frame))
	require.NoError(t, ch.Flush(context.Background()))
	assert.Equal(t, frame, <-got)
}

func TestStreamChannelContextCancel(t *testing.T) {
	ch, peer := newPipeChannel(t)
	require.NoError(t, ch.Open())
	dev := peer()
	defer dev.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ch.ReadExact(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)

	assert.ErrorIs(t, ch.Write(ctx, []byte{0}), context.Canceled)
}

func TestStreamChannelCloseIdempotent(t *testing.T) {
	ch, peer := newPipeChannel(t)
	require.NoError(t, ch.Open())
	require.NoError(t, ch.Open()) // 已打开时不重复拨号
	dev := peer()
	defer dev.Close()

	assert.True(t, ch.IsOpen())
	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	assert.False(t, ch.IsOpen())

	_, err := ch.BytesAvailable()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, ch.Write(context.Background(), []byte{0}), ErrClosed)
	_, err = ch.ReadExact(context.Background(), 1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, ch.DiscardInput(), ErrClosed)
}

func TestStreamChannelReopen(t *testing.T) {
	ch, peer := newPipeChannel(t)
	require.NoError(t, ch.Open())
	first := peer()
	require.NoError(t, ch.Close())
	_ = first.Close()

	require.NoError(t, ch.Open())
	second := peer()
	defer second.Close()

	go func() { _, _ = second.Write([]byte{0x6F}) }()
	got, err := ch.ReadExact(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x6F}, got)
}

func TestStreamChannelPeerClosed(t *testing.T) {
	ch, peer := newPipeChannel(t)
	require.NoError(t, ch.Open())
	dev := peer()
	_ = dev.Close()

	_, err := ch.ReadExact(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrReadTimeout)
}

func TestSerialMode(t *testing.T) {
	mode, err := SerialMode(cfgpkg.DeviceConfig{BaudRate: 115200, Parity: "even", StopBits: "2"})
	require.NoError(t, err)
	assert.Equal(t, 115200, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.EvenParity, mode.Parity)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)

	_, err = SerialMode(cfgpkg.DeviceConfig{Parity: "bogus"})
	assert.Error(t, err)
	_, err = SerialMode(cfgpkg.DeviceConfig{StopBits: "3"})
	assert.Error(t, err)
}
