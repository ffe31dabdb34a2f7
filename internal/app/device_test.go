package app

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/eload/internal/config"
	"github.com/taoyao-code/eload/internal/dispatcher"
	"github.com/taoyao-code/eload/internal/simulator"
	"github.com/taoyao-code/eload/internal/transport"
)

func TestNewChannel(t *testing.T) {
	cfg := &cfgpkg.Config{}

	cfg.App.Simulate = true
	ch, err := NewChannel(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &simulator.Load{}, ch)

	cfg.App.Simulate = false
	cfg.Device.Transport = "tcp"
	cfg.Device.Port = "127.0.0.1:1"
	ch, err = NewChannel(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &transport.TCPChannel{}, ch)

	cfg.Device.Transport = "usb"
	_, err = NewChannel(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	dc := cfgpkg.DeviceConfig{
		RetryCount:    4,
		Pause:         50 * time.Millisecond,
		PollInterval:  5 * time.Millisecond,
		ReadTimeout:   2 * time.Second,
		SafetyTimeout: 3 * time.Second,
		SafetyPause:   20 * time.Millisecond,
	}
	d := DispatcherOptions(dc)
	assert.Equal(t, 4, d.RetryCount)
	assert.Equal(t, 2*time.Second, d.ResponseTimeout)

	o := DeviceOptions(dc)
	assert.Equal(t, 3*time.Second, o.SafetyTimeout)
	assert.Equal(t, 20*time.Millisecond, o.SafetyPause)
}

func TestNewControllerSimulated(t *testing.T) {
	cfg := &cfgpkg.Config{}
	cfg.App.Simulate = true
	cfg.Device.ID = "sim-1"
	cfg.Device.RetryCount = 3

	_, m := NewMetrics()
	ctrl, err := NewController(context.Background(), cfg, zap.NewNop(), m)
	require.NoError(t, err)
	defer ctrl.Close()

	assert.Equal(t, "sim-1", ctrl.ID())
	assert.True(t, ctrl.IsOpen())
	v, err := ctrl.Voltage(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 12.6, v, 1e-9)
}

func TestNewControllerClosesChannelOnProbeFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// 对端接受连接但从不应答
	readErr := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			readErr <- err
			return
		}
		defer conn.Close()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		buf := make([]byte, 64)
		for {
			if _, err := conn.Read(buf); err != nil {
				readErr <- err
				return
			}
		}
	}()

	cfg := &cfgpkg.Config{}
	cfg.Device.ID = "silent"
	cfg.Device.Transport = "tcp"
	cfg.Device.Port = ln.Addr().String()
	cfg.Device.ReadTimeout = 30 * time.Millisecond
	cfg.Device.RetryCount = 1
	cfg.Device.Pause = time.Millisecond
	cfg.Device.PollInterval = time.Millisecond

	ctrl, err := NewController(context.Background(), cfg, zap.NewNop(), nil)
	require.Error(t, err)
	assert.Nil(t, ctrl)
	assert.ErrorIs(t, err, dispatcher.ErrResponseTimeout)

	select {
	case err := <-readErr:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(3 * time.Second):
		t.Fatal("device connection not closed")
	}
}
