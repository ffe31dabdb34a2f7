package sampler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/eload/internal/device"
	"github.com/taoyao-code/eload/internal/dispatcher"
	"github.com/taoyao-code/eload/internal/metrics"
	"github.com/taoyao-code/eload/internal/simulator"
)

type memorySink struct {
	mu       sync.Mutex
	readings []Reading
	err      error
}

func (s *memorySink) StoreReading(_ context.Context, r Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r)
	return s.err
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.readings)
}

type failingSource struct{ calls int }

func (f *failingSource) Snapshot(context.Context) (device.Snapshot, error) {
	f.calls++
	return device.Snapshot{}, errors.New("link down")
}

func newSimController(t *testing.T) *device.Controller {
	t.Helper()
	load := simulator.New()
	disp := dispatcher.New(load, dispatcher.Options{Pause: time.Microsecond, PollInterval: time.Millisecond}, nil, nil)
	c := device.New("sim", load, disp, device.Options{}, nil, nil)
	require.NoError(t, c.Open(context.Background()))
	return c
}

func TestSampleOnce(t *testing.T) {
	m := metrics.NewAppMetrics(metrics.NewRegistry())
	sink := &memorySink{}
	s := New(newSimController(t), Options{}, nil, m, sink, &memorySink{err: errors.New("down")})

	_, ok := s.Latest()
	assert.False(t, ok)

	r, err := s.SampleOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, s.RunID(), r.RunID)
	assert.Equal(t, "sim", r.Device)
	assert.Equal(t, 1, sink.count())

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, r, latest)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SamplesTotal.WithLabelValues("ok")))
	assert.InDelta(t, 12.6, testutil.ToFloat64(m.VoltageVolts), 1e-9)
}

func TestSampleBreaker(t *testing.T) {
	m := metrics.NewAppMetrics(metrics.NewRegistry())
	src := &failingSource{}
	s := New(src, Options{BreakerThreshold: 2, BreakerTimeout: time.Hour}, nil, m)

	for i := 0; i < 4; i++ {
		_, _ = s.SampleOnce(context.Background())
	}
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, StateOpen, s.Breaker().State())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SamplesTotal.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SamplesTotal.WithLabelValues("breaker_open")))
}

func TestSubscribe(t *testing.T) {
	s := New(newSimController(t), Options{}, nil, nil)
	ch, cancel := s.Subscribe()

	r, err := s.SampleOnce(context.Background())
	require.NoError(t, err)
	select {
	case got := <-ch:
		assert.Equal(t, r.TakenAt, got.TakenAt)
	case <-time.After(time.Second):
		t.Fatal("没有收到推送")
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestRunStopsOnCancel(t *testing.T) {
	sink := &memorySink{}
	s := New(newSimController(t), Options{Interval: 5 * time.Millisecond}, nil, nil, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.count() >= 2 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
