package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/eload/internal/dispatcher"
	"github.com/taoyao-code/eload/internal/metrics"
	"github.com/taoyao-code/eload/internal/protocol/eload"
	"github.com/taoyao-code/eload/internal/simulator"
)

func newTestController(t *testing.T) (*Controller, *simulator.Load, *metrics.AppMetrics) {
	t.Helper()
	load := simulator.New()
	m := metrics.NewAppMetrics(metrics.NewRegistry())
	disp := dispatcher.New(load, dispatcher.Options{
		RetryCount:      3,
		Pause:           time.Millisecond,
		PollInterval:    time.Millisecond,
		ResponseTimeout: 20 * time.Millisecond,
	}, nil, m)
	c := New("eload-test", load, disp, Options{SafetyTimeout: 40 * time.Millisecond, SafetyPause: 5 * time.Millisecond}, nil, m)
	require.NoError(t, c.Open(context.Background()))
	return c, load, m
}

func TestOpenProbesAndCloseIsIdempotent(t *testing.T) {
	c, load, _ := newTestController(t)
	assert.True(t, c.IsOpen())
	assert.Equal(t, 1, load.Queries(eload.VoltageReading))

	// 已打开时再次 Open 不重开通道
	require.NoError(t, c.Open(context.Background()))
	assert.Equal(t, 1, load.Opens())

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, load.Closes())
	assert.False(t, c.IsOpen())
}

func TestOpenFailure(t *testing.T) {
	load := simulator.New()
	load.FailOpen(1)
	c := New("x", load, dispatcher.New(load, dispatcher.Options{}, nil, nil), Options{}, nil, nil)
	assert.Error(t, c.Open(context.Background()))
	assert.False(t, c.IsOpen())
}

func TestSettersAndReadings(t *testing.T) {
	c, load, _ := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.SetCurrent(ctx, 1.5))
	require.NoError(t, c.SetCutoffVoltage(ctx, 10.8))
	require.NoError(t, c.SetTimer(ctx, 90*time.Minute))

	cur, err := c.CurrentSetting(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, cur, 1e-9)
	cut, err := c.CutoffVoltageSetting(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10.8, cut, 1e-9)
	timer, err := c.TimerSetting(ctx)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, timer)

	require.NoError(t, c.SetLoadEnabled(ctx, true))
	assert.True(t, load.Enabled())
	on, err := c.LoadEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, on)

	amps, err := c.Current(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, amps, 1e-9)
	volts, err := c.Voltage(ctx)
	require.NoError(t, err)
	assert.Less(t, volts, 12.6)

	require.NoError(t, c.ResetCounters(ctx))
	assert.Equal(t, 1, load.Commands(eload.ResetCounters))
}

func TestSetTimerWraps(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.SetTimer(ctx, 70000*time.Second))
	got, err := c.TimerSetting(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4464*time.Second, got)
}

func TestCommandRejected(t *testing.T) {
	c, load, _ := newTestController(t)
	load.RejectNext(0x70)

	err := c.SetCurrent(context.Background(), 2)
	assert.ErrorIs(t, err, ErrCommandRejected)
	var de *DeviceError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, eload.SetCurrent, de.Command)
	assert.Equal(t, byte(0x70), de.Code)
}

func TestSetIfChanged(t *testing.T) {
	c, load, _ := newTestController(t)
	ctx := context.Background()

	wrote, err := c.SetCurrentIfChanged(ctx, 2.5)
	require.NoError(t, err)
	assert.True(t, wrote)
	wrote, err = c.SetCurrentIfChanged(ctx, 2.5)
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Equal(t, 1, load.Commands(eload.SetCurrent))

	wrote, err = c.SetCutoffVoltageIfChanged(ctx, 0)
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Zero(t, load.Commands(eload.SetCutoffVoltage))

	wrote, err = c.SetTimerIfChanged(ctx, time.Hour)
	require.NoError(t, err)
	assert.True(t, wrote)
	wrote, err = c.SetTimerIfChanged(ctx, time.Hour)
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Equal(t, 1, load.Commands(eload.SetTimeout))
}

func TestSnapshot(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()
	require.NoError(t, c.SetCurrent(ctx, 1))
	require.NoError(t, c.SetTimer(ctx, time.Minute))

	s, err := c.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "eload-test", s.Device)
	assert.False(t, s.Enabled)
	assert.InDelta(t, 12.6, s.Voltage, 1e-9)
	assert.InDelta(t, 1.0, s.CurrentSetting, 1e-9)
	assert.Equal(t, int64(60), s.TimerSeconds)
	assert.Equal(t, uint32(25), s.TemperatureC)
	assert.False(t, s.TakenAt.IsZero())
}

func TestSnapshotStopsOnError(t *testing.T) {
	c, _, _ := newTestController(t)
	require.NoError(t, c.Close())

	_, err := c.Snapshot(context.Background())
	assert.Error(t, err)
}
